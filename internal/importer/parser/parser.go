// Package parser decodes uploaded spreadsheets into headers and row dictionaries.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const utf8BOM = "\ufeff"

// Format is the decoded container kind.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatWorkbook  Format = "workbook"
)

// Result is a decoded file. Rows are keyed by the verbatim header.
type Result struct {
	Format       Format
	Delimiter    rune
	Headers      []string
	LowerHeaders []string
	Rows         []map[string]string
	TotalRows    int
}

// ParseError reports a file that cannot be imported.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse file: %s: %v", e.Reason, e.Err)
	}
	return "parse file: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(reason string, err error) error {
	return &ParseError{Reason: reason, Err: err}
}

// Parse decodes data according to the file extension, falling back to the declared MIME type.
func Parse(data []byte, fileName, mimeType string) (*Result, error) {
	format, err := detectFormat(fileName, mimeType)
	if err != nil {
		return nil, err
	}

	var records [][]string
	var delim rune
	switch format {
	case FormatDelimited:
		records, delim, err = readDelimited(data)
	case FormatWorkbook:
		records, err = readWorkbook(data)
	}
	if err != nil {
		return nil, err
	}

	res, err := buildResult(records)
	if err != nil {
		return nil, err
	}
	res.Format = format
	res.Delimiter = delim
	return res, nil
}

func detectFormat(fileName, mimeType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".tsv":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm":
		return FormatWorkbook, nil
	case ".xls":
		return "", parseErr("legacy .xls workbooks are not supported, save the file as .xlsx or .csv", nil)
	case "":
	default:
		return "", parseErr(fmt.Sprintf("unsupported file extension %q", filepath.Ext(fileName)), nil)
	}

	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch mt {
	case "text/csv", "text/plain", "text/tab-separated-values", "application/csv":
		return FormatDelimited, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel.sheet.macroenabled.12":
		return FormatWorkbook, nil
	}
	return "", parseErr(fmt.Sprintf("unsupported content type %q", mimeType), nil)
}

// DetectDelimiter picks the most frequent of comma, semicolon and tab in the first line.
// Ties resolve to comma.
func DetectDelimiter(firstLine string) rune {
	best, bestCount := ',', strings.Count(firstLine, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(firstLine, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func readDelimited(data []byte) ([][]string, rune, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, 0, parseErr("file encoding is not supported", err)
		}
		data = decoded
	}

	firstLine := string(data)
	if i := strings.IndexAny(firstLine, "\r\n"); i >= 0 {
		firstLine = firstLine[:i]
	}
	delim := DetectDelimiter(firstLine)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = delim != '\t'

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, parseErr("malformed delimited text", err)
		}
		records = append(records, rec)
	}
	return records, delim, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parseErr("unreadable workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseErr("workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, parseErr("unreadable first sheet", errors.Wrap(err, sheets[0]))
	}
	return rows, nil
}

func buildResult(records [][]string) (*Result, error) {
	headerIdx := -1
	for i, rec := range records {
		if !blank(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, parseErr("file has no header row", nil)
	}

	headers := uniqueHeaders(records[headerIdx])
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]map[string]string, 0, len(records)-headerIdx-1)
	for _, rec := range records[headerIdx+1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, parseErr("file contains no data rows", nil)
	}

	return &Result{
		Headers:      headers,
		LowerHeaders: lower,
		Rows:         rows,
		TotalRows:    len(rows),
	}, nil
}

func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		key := strings.ToLower(h)
		seen[key]++
		if n := seen[key]; n > 1 {
			h = fmt.Sprintf("%s (%d)", h, n)
		}
		out[i] = h
	}
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
