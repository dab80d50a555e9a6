package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	excelize "github.com/xuri/excelize/v2"

	"github.com/pricelens/backend/internal/domain"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12500", 12500, true},
		{"Rp 12.500", 12500, true},
		{"Rp.12.500,-", 12500, true},
		{"IDR 1.250.000", 1250000, true},
		{"12.500,50", 12500.5, true},
		{"12,500.50", 12500.5, true},
		{"12,500", 12500, true},
		{"2,5", 2.5, true},
		{"1.5", 1.5, true},
		{"", 0, false},
		{"Rp", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	q, u, ok := parseSize("500 g")
	require.True(t, ok)
	assert.Equal(t, 500.0, q)
	assert.Equal(t, "g", u)

	q, u, ok = parseSize("1,5Kg")
	require.True(t, ok)
	assert.Equal(t, 1.5, q)
	assert.Equal(t, "kg", u)

	_, _, ok = parseSize("kg")
	assert.False(t, ok)
}

func TestMatchHeader(t *testing.T) {
	t.Run("exact aliases", func(t *testing.T) {
		cols := matchHeader([]string{"No", "Nama Barang", "Satuan", "Harga Satuan", "Isi"})
		assert.Equal(t, 1, cols[colName])
		assert.Equal(t, 3, cols[colPrice])
		assert.Equal(t, 2, cols[colUnit])
		assert.Equal(t, 4, cols[colQuantity])
	})

	t.Run("prefixed labels", func(t *testing.T) {
		cols := matchHeader([]string{"Product Name", "Price (IDR)", "UoM"})
		assert.Equal(t, 0, cols[colName])
		assert.Equal(t, 1, cols[colPrice])
		assert.Equal(t, 2, cols[colUnit])
		assert.Equal(t, -1, cols[colQuantity])
	})
}

func TestParser_CSV(t *testing.T) {
	csv := strings.Join([]string{
		"DAFTAR HARGA SAYUR",
		"",
		"Nama Barang,Satuan,Harga",
		"Wortel Brastagi,kg,\"12.500\"",
		"Bawang Merah,500 g,\"Rp 18.000\"",
		"Kentang,kg,",
		",kg,5000",
		"",
		"Tomat,kg,9000",
	}, "\n")

	p := NewParser(zerolog.Nop())
	ext, err := p.Parse(strings.NewReader(csv), "harga.csv")
	require.NoError(t, err)

	require.Len(t, ext.Rows, 3)
	assert.Equal(t, "Wortel Brastagi", ext.Rows[0].Name)
	assert.Equal(t, 12500.0, ext.Rows[0].Price)
	assert.Equal(t, "kg", ext.Rows[0].Unit)
	assert.Equal(t, 3, ext.Rows[0].Line) // csv skips blank lines

	assert.Equal(t, 500.0, ext.Rows[1].Quantity)
	assert.Equal(t, "g", ext.Rows[1].Unit)
	assert.Equal(t, 18000.0, ext.Rows[1].Price)

	assert.Equal(t, 5, ext.Report.TotalRowsDetected)
	assert.Equal(t, 3, ext.Report.TotalRowsProcessed)
	assert.Equal(t, 3, ext.Report.ProductCount)
	require.NotNil(t, ext.Report.CompletenessRatio)
	assert.InDelta(t, 0.6, *ext.Report.CompletenessRatio, 1e-9)
	assert.Equal(t, "rule", ext.Source)
}

func TestParser_CSVWithBOM(t *testing.T) {
	csv := "\ufeffnama,harga,satuan\nwortel,12000,kg\nbawang,15000,kg\n"

	ext, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(csv), "list.csv")
	require.NoError(t, err)

	require.Len(t, ext.Rows, 2)
	assert.Equal(t, "wortel", ext.Rows[0].Name)
	assert.Equal(t, 12000.0, ext.Rows[0].Price)
	assert.Equal(t, "kg", ext.Rows[0].Unit)
	assert.Equal(t, 2, ext.Report.ProductCount)
	assert.Equal(t, 2, ext.Report.TotalRowsDetected)
	require.NotNil(t, ext.Report.CompletenessRatio)
	assert.InDelta(t, 1.0, *ext.Report.CompletenessRatio, 1e-9)
}

func TestParser_CSVSemicolon(t *testing.T) {
	csv := "Produk;Harga;Qty;Satuan\nGula Pasir;15.500,00;1;kg\n"

	ext, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(csv), "list.CSV")
	require.NoError(t, err)

	require.Len(t, ext.Rows, 1)
	assert.Equal(t, 15500.0, ext.Rows[0].Price)
	assert.Equal(t, 1.0, ext.Rows[0].Quantity)
	assert.Equal(t, "kg", ext.Rows[0].Unit)
}

func TestParser_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Item", "Price", "Unit"},
		{"Carrot", 12000, "kg"},
		{"Red Onion", "Rp 30.000", "kg"},
		{"Sweet Potato", 9000, "kg"},
	}
	for i, r := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ext, err := NewParser(zerolog.Nop()).Parse(bytes.NewReader(buf.Bytes()), "supplier.xlsx")
	require.NoError(t, err)

	require.Len(t, ext.Rows, 3)
	assert.Equal(t, "Red Onion", ext.Rows[1].Name)
	assert.Equal(t, 30000.0, ext.Rows[1].Price)
	require.NotNil(t, ext.Report.CompletenessRatio)
	assert.Equal(t, 1.0, *ext.Report.CompletenessRatio)
}

func TestParser_NoHeader(t *testing.T) {
	csv := "foo,bar\n1,2\n3,4\n"

	ext, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(csv), "x.csv")
	require.NoError(t, err)

	assert.Empty(t, ext.Rows)
	assert.Equal(t, 0, ext.Report.ProductCount)
	assert.Equal(t, 3, ext.Report.TotalRowsDetected)
}

func TestParser_UnsupportedFile(t *testing.T) {
	_, err := NewParser(zerolog.Nop()).Parse(strings.NewReader("%PDF"), "list.pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFile)
}

func TestParser_DuplicateRowsCountOnce(t *testing.T) {
	csv := "Nama,Harga,Satuan\nWortel,1000,kg\nwortel,1100,Kg\nWortel,500,pcs\n"

	ext, err := NewParser(zerolog.Nop()).Parse(strings.NewReader(csv), "x.csv")
	require.NoError(t, err)

	assert.Len(t, ext.Rows, 3)
	assert.Equal(t, 2, ext.Report.ProductCount)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n")))
}
