package normalize

import (
	"regexp"
	"strings"
	"time"

	"salesportal/internal/domain"
)

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	rangePattern   = regexp.MustCompile(`(?i)from\s+(.+?)\s+12:00\s*AM\s+to\s+`)
)

var rangeDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"1/2/2006",
}

// ExtractPeriod scans a grid for the reporting date of the file. It prefers a
// bare ISO date token anywhere in the sheet; failing that it reads the start
// date of a "From <date> 12:00 AM to <date> 11:59 PM" range cell. Returns nil
// when the file carries no recognizable date.
func ExtractPeriod(g [][]string) *domain.ReportingPeriod {
	for _, row := range g {
		for _, cell := range row {
			if m := isoDatePattern.FindStringSubmatch(cell); m != nil {
				if d, err := time.Parse("2006-01-02", m[1]); err == nil {
					p := domain.NewReportingPeriod(d)
					return &p
				}
			}
		}
	}
	for _, row := range g {
		for _, cell := range row {
			if m := rangePattern.FindStringSubmatch(cell); m != nil {
				if d, ok := parseRangeDate(m[1]); ok {
					p := domain.NewReportingPeriod(d)
					return &p
				}
			}
		}
	}
	return nil
}

func parseRangeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range rangeDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
