// Package catalog holds the in-memory barcode index used to classify
// item-sales rows.
package catalog

import (
	"strings"

	"salesportal/internal/domain"
)

// Index maps a canonical barcode to its classification. Keys are trimmed and
// lowercased so lookups tolerate the casing and whitespace uploads arrive with.
type Index map[string]domain.Classification

// Key canonicalizes a barcode for index access.
func Key(barcode string) string {
	return strings.ToLower(strings.TrimSpace(barcode))
}

// Build constructs an Index from catalog entries in order. When a barcode
// repeats, the later entry wins.
func Build(entries []domain.CatalogEntry) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		k := Key(e.Barcode)
		if k == "" {
			continue
		}
		idx[k] = e.Classification
	}
	return idx
}

// Lookup classifies a barcode. ok is false when the barcode is not cataloged.
func (idx Index) Lookup(barcode string) (domain.Classification, bool) {
	c, ok := idx[Key(barcode)]
	return c, ok
}
