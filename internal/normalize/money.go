package normalize

import (
	"log"
	"strconv"
	"strings"
)

// ParseNumber converts a spreadsheet cell into a float. Thousands separators
// are stripped first. Blank cells are 0; malformed cells are logged and
// treated as 0 so one bad cell never sinks a whole upload.
func ParseNumber(cell string) float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("[normalize] WARN: unparseable numeric cell %q, using 0", cell)
		return 0
	}
	return v
}

// ParseCount is ParseNumber truncated to an int, for tally columns.
func ParseCount(cell string) int {
	return int(ParseNumber(cell))
}
