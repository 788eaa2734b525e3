// Package currency converts between centavo amounts and Brazilian real
// display strings. Amounts are int64 centavos everywhere else in the
// system; this package only touches the display boundary.
package currency

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Format renders cents as "R$ 1.234,56" with dot thousands grouping and
// exactly two fraction digits. Negative amounts render as "-R$ 1.234,56".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := printer.Sprintf("%d", cents/100)
	return sign + "R$ " + whole + "," + pad2(cents%100)
}

// Parse reads a currency string back into cents. It keeps only digits,
// comma, dot and minus, drops thousands dots, treats the comma as the
// decimal separator, and returns 0 for anything unparseable. It never
// fails: garbage in, zero out.
func Parse(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return int64(math.Round(value * 100))
}

// Mask interprets raw digit input as centavos, the way a point-of-sale
// amount field fills from the right ("12345" -> R$ 123,45). Non-digit
// runes are ignored.
func Mask(input string) int64 {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return 0
	}
	cents, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return cents
}

// FormatInput renders cents as a bare editable value, "1234,56": no
// symbol, no grouping, comma decimal separator.
func FormatInput(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "," + pad2(cents%100)
}

func pad2(frac int64) string {
	if frac < 10 {
		return "0" + strconv.FormatInt(frac, 10)
	}
	return strconv.FormatInt(frac, 10)
}
