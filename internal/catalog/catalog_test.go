package catalog

import (
	"testing"

	"salesportal/internal/domain"
)

func TestBuildLastWins(t *testing.T) {
	idx := Build([]domain.CatalogEntry{
		{Barcode: "4800011111111", Classification: domain.ClassificationRegular},
		{Barcode: "4800011111111", Classification: domain.ClassificationNonRegular},
	})
	c, ok := idx.Lookup("4800011111111")
	if !ok {
		t.Fatal("expected barcode in index")
	}
	if c != domain.ClassificationNonRegular {
		t.Fatalf("expected later entry to win, got %q", c)
	}
}

func TestLookupNormalizesBarcode(t *testing.T) {
	idx := Build([]domain.CatalogEntry{
		{Barcode: " 4800022222222 ", Classification: domain.ClassificationRegular},
	})
	if _, ok := idx.Lookup("4800022222222"); !ok {
		t.Fatal("expected trimmed barcode to match")
	}
	if _, ok := idx.Lookup("  4800022222222"); !ok {
		t.Fatal("expected padded lookup to match")
	}
	if _, ok := idx.Lookup("4800099999999"); ok {
		t.Fatal("expected unknown barcode to miss")
	}
}

func TestBuildSkipsEmptyBarcodes(t *testing.T) {
	idx := Build([]domain.CatalogEntry{
		{Barcode: "   ", Classification: domain.ClassificationRegular},
		{Barcode: "123", Classification: domain.ClassificationRegular},
	})
	if len(idx) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(idx))
	}
}
