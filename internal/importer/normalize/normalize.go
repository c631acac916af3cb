// Package normalize converts raw spreadsheet cell values into canonical typed values.
// Every function is pure and tolerant of arbitrary input.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultArraySeparator splits list cells when a field declares none.
const DefaultArraySeparator = ","

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDate is 9999-12-31.
const maxSerialDate = 2958465

var (
	truthy = map[string]struct{}{
		"si": {}, "sí": {}, "yes": {}, "true": {}, "1": {}, "s": {}, "y": {}, "verdadero": {}, "v": {},
	}
	falsy = map[string]struct{}{
		"no": {}, "false": {}, "0": {}, "n": {}, "falso": {}, "f": {},
	}
)

// Amount parses a locale-formatted money amount. Dots are thousands separators and the comma
// is the decimal mark; parenthesized values are negative. A lone dot followed by anything but
// exactly three digits is read as a decimal point so raw workbook numbers survive.
// Unparsable input yields 0.
func Amount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-':
			if b.Len() == 0 {
				negative = !negative
			}
		}
	}
	s = b.String()
	if s == "" {
		return 0
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case dots == 1:
		if frac := s[strings.Index(s, ".")+1:]; len(frac) == 3 {
			s = strings.Replace(s, ".", "", 1)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if negative {
		v = -v
	}
	return v
}

// AmountValue normalizes an amount that may already be numeric. Numbers are returned as is.
func AmountValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return Amount(t)
	case nil:
		return 0
	default:
		return Amount(Value(t))
	}
}

// Number parses a plain decimal, accepting a comma as the decimal point.
func Number(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Boolean reports the truth value of a cell. ok is false when the value is not recognised and
// the caller must fall back to the field default.
func Boolean(raw string) (value bool, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, hit := truthy[s]; hit {
		return true, true
	}
	if _, hit := falsy[s]; hit {
		return false, true
	}
	return false, false
}

// Array splits a list cell, trimming elements and dropping empty ones.
func Array(raw, sep string) []string {
	if sep == "" {
		sep = DefaultArraySeparator
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SanitizeString trims, collapses whitespace runs and strips leading formula characters.
func SanitizeString(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "=+-@\t\r")
	return strings.Join(strings.Fields(s), " ")
}

var dayFirstLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006"}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date parses serial dates, dd/mm/yyyy, dd-mm-yyyy and ISO-8601.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if plainDecimal(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil || serial <= 0 || serial > maxSerialDate || bareYear(s) {
			return time.Time{}, false
		}
		days := math.Floor(serial)
		frac := serial - days
		t := serialEpoch.AddDate(0, 0, int(days))
		return t.Add(time.Duration(math.Round(frac*86400)) * time.Second), true
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// plainDecimal reports whether s is digits with at most one decimal point. NaN, Inf, exponents
// and hex floats are not serial dates.
func plainDecimal(s string) bool {
	digits, dot := 0, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// bareYear reports whether s is a four digit year between 1900 and 2100. Those serials fall in
// 1905 and are far more likely to be a year typed into a date column.
func bareYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	y, err := strconv.Atoi(s)
	return err == nil && y >= 1900 && y <= 2100
}

// Value renders any cell value as a string.
func Value(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	case []string:
		return strings.Join(t, ", ")
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}

// Header folds a column name for matching: no BOM, no accents, lowercase, separators as
// single spaces.
func Header(raw string) string {
	s := strings.TrimPrefix(raw, "\ufeff")
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripper, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '/', '(', ')', ':', '#':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Compact is Header with all spaces removed, so "unitOfMeasure" and "Unit of measure" meet.
func Compact(raw string) string {
	return strings.ReplaceAll(Header(raw), " ", "")
}
