package spreadsheet

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// headerScanRows is how far down the sheet the header row is searched for
const headerScanRows = 20

// column roles recognised in a price list header
const (
	colName = iota
	colPrice
	colUnit
	colQuantity
	colCount
)

// headerAliases lists Indonesian and English header labels per column role
var headerAliases = [colCount][]string{
	colName:     {"nama", "nama barang", "nama produk", "produk", "barang", "item", "product", "product name", "name", "description", "deskripsi"},
	colPrice:    {"harga", "harga satuan", "harga jual", "price", "unit price", "harga (rp)"},
	colUnit:     {"satuan", "unit", "uom"},
	colQuantity: {"qty", "isi", "kemasan", "quantity", "pack size", "size", "ukuran"},
}

var (
	currencyPattern = regexp.MustCompile(`(?i)\b(rp|idr)\.?`)
	thousandsDots   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	thousandsCommas = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	sizePattern     = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*([\p{L}]+)$`)
)

// Parser is the rule-based price list extractor for spreadsheet uploads
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a spreadsheet parser
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse reads a .xlsx, .xls or .csv price list and reports how complete the extraction was
func (p *Parser) Parse(r io.Reader, filename string) (*domain.Extraction, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}

	headerIdx, cols, ok := findHeader(rows)
	if !ok {
		p.logger.Warn().Str("file", filename).Msg("no name/price header found")
		return &domain.Extraction{
			Source: string(domain.SourceRule),
			Rows:   []domain.ExtractedRow{},
			Report: usecase.NewExtractionReport(countNonEmpty(rows), 0, 0),
		}, nil
	}

	extracted := make([]domain.ExtractedRow, 0, len(rows)-headerIdx)
	detected := 0
	distinct := make(map[string]struct{})

	for i := headerIdx + 1; i < len(rows); i++ {
		rec := rows[i]
		if isEmptyRow(rec) {
			continue
		}
		detected++

		row, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		row.Line = i + 1
		extracted = append(extracted, row)
		distinct[strings.ToLower(row.Name)+"|"+usecase.CanonicalUnit(row.Unit)] = struct{}{}
	}

	return &domain.Extraction{
		Source: string(domain.SourceRule),
		Rows:   extracted,
		Report: usecase.NewExtractionReport(detected, len(extracted), len(distinct)),
	}, nil
}

func readRows(r io.Reader, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(r)
	case ".xls":
		return readXLS(r)
	case ".csv":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, filename)
	}
}

// findHeader returns the header row index and the column index of each role.
// A header needs at least a name and a price column.
func findHeader(rows [][]string) (int, [colCount]int, bool) {
	limit := min(len(rows), headerScanRows)
	for i := 0; i < limit; i++ {
		cols := matchHeader(rows[i])
		if cols[colName] >= 0 && cols[colPrice] >= 0 {
			return i, cols, true
		}
	}
	return -1, [colCount]int{-1, -1, -1, -1}, false
}

// matchHeader assigns exact alias matches first, then labels containing an alias
func matchHeader(row []string) [colCount]int {
	cols := [colCount]int{-1, -1, -1, -1}
	used := make(map[int]bool)

	labels := make([]string, len(row))
	for i, cell := range row {
		labels[i] = strings.Join(strings.Fields(strings.ToLower(cell)), " ")
	}

	for role := 0; role < colCount; role++ {
		for i, label := range labels {
			if !used[i] && containsString(headerAliases[role], label) {
				cols[role], used[i] = i, true
				break
			}
		}
	}
	for role := 0; role < colCount; role++ {
		if cols[role] >= 0 {
			continue
		}
		for i, label := range labels {
			if !used[i] && label != "" && hasAliasPrefix(headerAliases[role], label) {
				cols[role], used[i] = i, true
				break
			}
		}
	}
	return cols
}

func parseRow(rec []string, cols [colCount]int) (domain.ExtractedRow, bool) {
	name := strings.Join(strings.Fields(cell(rec, cols[colName])), " ")
	if name == "" {
		return domain.ExtractedRow{}, false
	}
	price, ok := ParsePrice(cell(rec, cols[colPrice]))
	if !ok || price <= 0 {
		return domain.ExtractedRow{}, false
	}

	row := domain.ExtractedRow{Name: name, Price: price}
	unit := strings.TrimSpace(cell(rec, cols[colUnit]))
	qtyCell := strings.TrimSpace(cell(rec, cols[colQuantity]))

	// "500 g" in either column carries both quantity and unit
	if q, u, ok := parseSize(qtyCell); ok {
		row.Quantity, row.Unit = q, u
	} else if q, u, ok := parseSize(unit); ok {
		row.Quantity, row.Unit = q, u
	} else {
		row.Unit = unit
		if q, ok := ParsePrice(qtyCell); ok {
			row.Quantity = q
		}
	}
	return row, true
}

// ParsePrice reads Indonesian and English number formats:
// "Rp 12.500", "12.500,50", "12,500.50", "12500".
func ParsePrice(s string) (float64, bool) {
	s = currencyPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ",-")
	s = strings.TrimSuffix(s, ".-")
	if s == "" {
		return 0, false
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0 && thousandsDots.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case lastComma >= 0 && thousandsCommas.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func parseSize(s string) (float64, string, bool) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, "", false
	}
	q, ok := ParsePrice(m[1])
	if !ok || q <= 0 {
		return 0, "", false
	}
	return q, strings.ToLower(m[2]), true
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func isEmptyRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func countNonEmpty(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if !isEmptyRow(r) {
			n++
		}
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasAliasPrefix(aliases []string, label string) bool {
	for _, a := range aliases {
		if strings.HasPrefix(label, a+" ") || strings.HasPrefix(label, a+"(") {
			return true
		}
	}
	return false
}
