package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSVDelimiters(t *testing.T) {
	cases := map[string]struct {
		body  string
		delim rune
	}{
		"comma":     {"sku,name,price\nA,Widget,\"10,50\"\nB,Gadget,5\n", ','},
		"semicolon": {"sku;name;price\nA;Widget;10,50\nB;Gadget;5\n", ';'},
		"tab":       {"sku\tname\tprice\nA\tWidget\t10,50\nB\tGadget\t5\n", '\t'},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Parse([]byte(tc.body), "products.csv", "text/csv")
			require.NoError(t, err)
			assert.Equal(t, tc.delim, res.Delimiter)
			assert.Equal(t, []string{"sku", "name", "price"}, res.Headers)
			assert.Equal(t, 2, res.TotalRows)
			assert.Equal(t, "10,50", res.Rows[0]["price"])
			assert.Equal(t, "Gadget", res.Rows[1]["name"])
		})
	}
}

func TestParseStripsBOMAndKeepsHeaderCase(t *testing.T) {
	body := "\ufeffSKU,Nombre\nA,Widget\n"
	res, err := Parse([]byte(body), "x.csv", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU", "Nombre"}, res.Headers)
	assert.Equal(t, []string{"sku", "nombre"}, res.LowerHeaders)
	assert.Equal(t, "A", res.Rows[0]["SKU"])
}

func TestParseLegacyEncoding(t *testing.T) {
	// "Año" in Windows-1252.
	body := []byte("nombre,a\xf1o\nCaf\xe9,2024\n")
	res, err := Parse(body, "legacy.csv", "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "año", res.Headers[1])
	assert.Equal(t, "Café", res.Rows[0]["nombre"])
}

func TestParseSkipsBlankRowsAndPadsShortRows(t *testing.T) {
	body := "a,b,c\n1,2\n,,\n\n4,5,6\n"
	res, err := Parse([]byte(body), "x.csv", "")
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalRows)
	assert.Equal(t, "", res.Rows[0]["c"])
	assert.Equal(t, "6", res.Rows[1]["c"])
}

func TestParseDisambiguatesHeaders(t *testing.T) {
	res, err := Parse([]byte("name,,Name\nx,y,z\n"), "x.csv", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "Column 2", "Name (2)"}, res.Headers)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		data     []byte
		fileName string
		mime     string
	}{
		"unsupported extension": {[]byte("x"), "file.pdf", "application/pdf"},
		"legacy xls":            {[]byte("x"), "file.xls", "application/vnd.ms-excel"},
		"unknown mime":          {[]byte("x"), "upload", "application/octet-stream"},
		"empty":                 {[]byte(""), "x.csv", ""},
		"header only":           {[]byte("sku,name\n"), "x.csv", ""},
		"corrupt workbook":      {[]byte("not a zip"), "x.xlsx", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.data, tc.fileName, tc.mime)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParseWorkbookFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"sku", "name", "price"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A", "Widget", 10.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"B", "Gadget", 5}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"ignored"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := Parse(buf.Bytes(), "products.xlsx", "")
	require.NoError(t, err)
	assert.Equal(t, FormatWorkbook, res.Format)
	assert.Equal(t, []string{"sku", "name", "price"}, res.Headers)
	require.Equal(t, 2, res.TotalRows)
	assert.Equal(t, "10.5", res.Rows[0]["price"])
	assert.Equal(t, "Gadget", res.Rows[1]["name"])
}

func TestDetectDelimiterTieFallsBackToComma(t *testing.T) {
	assert.Equal(t, ',', DetectDelimiter("a,b;c"))
	assert.Equal(t, ',', DetectDelimiter("single"))
}
