package portfolio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bobmcallan/folio/internal/models"
)

// Workbook column positions (zero based) on the first sheet
const (
	colSerial        = 0 // A: serial number, numeric on holding rows
	colParticulars   = 1 // B
	colPurchasePrice = 2 // C
	colQuantity      = 3 // D
	colSymbol        = 6 // G: NSE ticker or BSE code
)

// ReadWorkbook parses holdings from the first sheet of an .xlsx file.
// Holding rows start with a serial number. A row with text in the
// particulars column and no purchase price is a sector heading and labels
// the holdings that follow it. Everything else is skipped.
func ReadWorkbook(path string) ([]models.Holding, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	return parseRows(rows), nil
}

func parseRows(rows [][]string) []models.Holding {
	var (
		holdings []models.Holding
		sector   string
	)

	for _, row := range rows {
		if _, ok := parseNumber(cell(row, colSerial)); ok {
			holdings = append(holdings, models.Holding{
				Symbol:        normaliseSymbol(cell(row, colSymbol)),
				Name:          particulars(cell(row, colParticulars), len(holdings)+1),
				Sector:        sector,
				PurchasePrice: number(cell(row, colPurchasePrice)),
				Quantity:      number(cell(row, colQuantity)),
			})
			continue
		}

		label := cell(row, colParticulars)
		if label != "" && cell(row, colPurchasePrice) == "" {
			sector = strings.TrimSpace(label)
		}
	}
	return holdings
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func particulars(name string, n int) string {
	if name == "" {
		return fmt.Sprintf("Stock %d", n)
	}
	return name
}

// normaliseSymbol drops a trailing ".0" left by numeric BSE codes
func normaliseSymbol(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// parseNumber accepts plain and formatted numbers ("1,250.50", "₹ 980").
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(",", "", "₹", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func number(s string) float64 {
	v, _ := parseNumber(s)
	return v
}
