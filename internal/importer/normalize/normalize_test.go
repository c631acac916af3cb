package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	cases := map[string]float64{
		"10,50":         10.5,
		"1.234,56":      1234.56,
		"$ 1.500":       1500,
		"Bs. 2.000,00":  2000,
		"(1.200,00)":    -1200,
		"-45":           -45,
		"10.5":          10.5,
		"1,234,567":     1234567,
		"1.234.567":     1234567,
		"  7  ":         7,
		"":              0,
		"...":           0,
		",":             0,
		"abc":           0,
		"()":            0,
		"--":            0,
		"1.234.567,891": 1234567.891,
	}
	for in, want := range cases {
		assert.InDelta(t, want, Amount(in), 1e-9, "input %q", in)
	}
}

func TestAmountNeverPanics(t *testing.T) {
	inputs := []string{"", " ", "(", ")", "((", "-", "-(", "(-)", ".,.,", "€", "∞", "NaN", "Inf", "1e400", "\x00"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Amount(in) }, "input %q", in)
	}
}

func TestAmountValueIdempotent(t *testing.T) {
	for _, raw := range []string{"10,50", "1.234,56", "(3,25)", "0", "99"} {
		once := AmountValue(raw)
		assert.Equal(t, once, AmountValue(once))
		assert.Equal(t, once, AmountValue(AmountValue(once)))
	}
}

func TestNumber(t *testing.T) {
	v, ok := Number("12,5")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = Number(" 3.25 ")
	require.True(t, ok)
	assert.Equal(t, 3.25, v)

	_, ok = Number("twelve")
	assert.False(t, ok)
	_, ok = Number("")
	assert.False(t, ok)
}

func TestBoolean(t *testing.T) {
	for _, in := range []string{"si", "Sí", "YES", "true", "1", "s", "y", "Verdadero", "v"} {
		v, ok := Boolean(in)
		assert.True(t, ok, in)
		assert.True(t, v, in)
	}
	for _, in := range []string{"no", "FALSE", "0", "n", "falso", "F"} {
		v, ok := Boolean(in)
		assert.True(t, ok, in)
		assert.False(t, v, in)
	}
	_, ok := Boolean("maybe")
	assert.False(t, ok)
}

func TestArray(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Array(" a, b,,c , ", ""))
	assert.Equal(t, []string{"x", "y"}, Array("x|y", "|"))
	assert.Empty(t, Array("  ", ","))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "SUM(A1:A2)", SanitizeString("=SUM(A1:A2)"))
	assert.Equal(t, "cmd", SanitizeString("@+-=cmd"))
	assert.Equal(t, "Widget Pro Max", SanitizeString("  Widget   Pro\tMax "))
	assert.Equal(t, "", SanitizeString("   "))
}

func TestDate(t *testing.T) {
	got, ok := Date("45306")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), got)

	got, ok = Date("45306.5")
	require.True(t, ok)
	assert.Equal(t, 12, got.Hour())

	got, ok = Date("15/01/2024")
	require.True(t, ok)
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 15, got.Day())

	got, ok = Date("5-3-2024")
	require.True(t, ok)
	assert.Equal(t, time.March, got.Month())

	got, ok = Date("2024-02-29")
	require.True(t, ok)
	assert.Equal(t, 29, got.Day())

	_, ok = Date("2024-02-30")
	assert.False(t, ok)
	_, ok = Date("not a date")
	assert.False(t, ok)
	_, ok = Date("-4")
	assert.False(t, ok)
}

func TestDateRejectsNonSerialNumbers(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "1e4", "0x1p4", "2024", "1900", "2100", "0", "45306.5.1", "."} {
		got, ok := Date(raw)
		assert.False(t, ok, raw)
		assert.True(t, got.IsZero(), raw)
	}

	got, ok := Date("2101")
	require.True(t, ok)
	assert.Equal(t, 1905, got.Year())
	got, ok = Date("1899")
	require.True(t, ok)
	assert.Equal(t, 1905, got.Year())
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "codigo de barras", Header("\ufeffCódigo_de-Barras"))
	assert.Equal(t, "precio unitario", Header("  PRECIO   UNITARIO "))
	assert.Equal(t, "unitofmeasure", Compact("Unit of Measure"))
	assert.Equal(t, Compact("unitOfMeasure"), Compact("Unit Of Measure"))
}
