// Package normalize converts raw sheet grids into typed rows the pipeline can
// aggregate. Each normalizer resolves its columns exactly once per file, then
// walks the data rows with that map.
package normalize

import (
	"strings"

	"salesportal/internal/catalog"
	"salesportal/internal/domain"
	"salesportal/internal/sheet"
)

// ItemHeaderAnchors are the cell values that mark an item-sales header row.
var ItemHeaderAnchors = []string{"barcode", "bar code", "item barcode"}

// ItemColumns resolves the columns an item-sales report must and may carry.
var ItemColumns = []sheet.ColumnSpec{
	{Canonical: "barcode", Aliases: []string{"bar code", "item barcode"}, Required: true},
	{Canonical: "quantity", Aliases: []string{"qty", "qty sold", "quantity sold"}, Required: true},
	{Canonical: "amount", Aliases: []string{"total amount", "net amount", "sales amount", "amount due"}, Required: true},
	{Canonical: "description", Aliases: []string{"item description", "item name", "product name"}},
}

// ItemResult is the outcome of normalizing one item-sales file.
type ItemResult struct {
	Branch    string
	Period    *domain.ReportingPeriod
	Rows      []domain.ItemRow
	Unmatched []domain.ItemRow
}

// Items normalizes an item-sales grid. Data rows are recognized by their
// first cell being all digits, which skips titles, subtotals and blank lines
// without any per-report configuration. Rows whose barcode is not in the
// catalog index land in Unmatched.
func Items(g sheet.Grid, idx catalog.Index) (*ItemResult, error) {
	hdr, err := sheet.Locate(g, ItemHeaderAnchors, ItemColumns)
	if err != nil {
		return nil, err
	}

	res := &ItemResult{
		Branch: hdr.Branch,
		Period: ExtractPeriod(g),
	}
	barcodeCol := hdr.Column("barcode")
	qtyCol := hdr.Column("quantity")
	amtCol := hdr.Column("amount")
	descCol := hdr.Column("description")

	for i := hdr.RowIndex + 1; i < len(g); i++ {
		if !isDataRow(g, i) {
			continue
		}
		row := domain.ItemRow{
			Barcode:  g.Cell(i, barcodeCol),
			Quantity: ParseNumber(g.Cell(i, qtyCol)),
			Amount:   ParseNumber(g.Cell(i, amtCol)),
		}
		if descCol >= 0 {
			row.Description = g.Cell(i, descCol)
		}
		if c, ok := idx.Lookup(row.Barcode); ok {
			row.Classification = c
			res.Rows = append(res.Rows, row)
		} else {
			res.Unmatched = append(res.Unmatched, row)
		}
	}
	return res, nil
}

// isDataRow reports whether the first cell of a row is a non-empty run of
// digits. Report exports put the barcode first, so this single rule separates
// data from decoration.
func isDataRow(g sheet.Grid, row int) bool {
	first := g.Cell(row, 0)
	if first == "" {
		return false
	}
	for _, r := range first {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CatalogHeaderAnchors mark a catalog upload's header row.
var CatalogHeaderAnchors = []string{"barcode", "bar code", "item barcode"}

// CatalogColumns resolves the two columns a catalog upload must carry.
var CatalogColumns = []sheet.ColumnSpec{
	{Canonical: "barcode", Aliases: []string{"bar code", "item barcode"}, Required: true},
	{Canonical: "classification", Aliases: []string{"class", "price type", "pricing", "item class"}, Required: true},
}

// Catalog normalizes a catalog upload into entries, in file order so that
// duplicate handling downstream stays last-wins. Classification cells that
// read "regular" in any casing map to Regular; everything else is Non-Regular.
func Catalog(g sheet.Grid) ([]domain.CatalogEntry, error) {
	hdr, err := sheet.Locate(g, CatalogHeaderAnchors, CatalogColumns)
	if err != nil {
		return nil, err
	}
	barcodeCol := hdr.Column("barcode")
	classCol := hdr.Column("classification")

	var entries []domain.CatalogEntry
	for i := hdr.RowIndex + 1; i < len(g); i++ {
		if !isDataRow(g, i) {
			continue
		}
		entries = append(entries, domain.CatalogEntry{
			Barcode:        g.Cell(i, barcodeCol),
			Classification: parseClassification(g.Cell(i, classCol)),
		})
	}
	return entries, nil
}

func parseClassification(cell string) domain.Classification {
	if strings.EqualFold(strings.TrimSpace(cell), "regular") {
		return domain.ClassificationRegular
	}
	return domain.ClassificationNonRegular
}
