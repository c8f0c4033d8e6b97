// Package money formats integer amounts held in the smallest currency unit.
package money

import (
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// minorUnits lists currencies whose minor unit differs from two decimal places.
var minorUnits = map[string]int32{
	"IDR": 0,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

var defaultCurrency atomic.Value

func init() {
	defaultCurrency.Store("IDR")
}

// SetDefaultCurrency sets the currency used by Format. Unknown codes are
// ignored.
func SetDefaultCurrency(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsCurrency(code) {
		return
	}
	defaultCurrency.Store(code)
}

// DefaultCurrency returns the currency used by Format.
func DefaultCurrency() string {
	return defaultCurrency.Load().(string)
}

// Format renders amount in the default currency, e.g. "IDR 1,250,000".
func Format(amount int64) string {
	return Formatter{Currency: DefaultCurrency()}.Format(amount)
}

// Formatter renders amounts for one currency.
type Formatter struct {
	Currency string
}

// Exponent returns the number of minor-unit digits for the formatter's currency.
func (f Formatter) Exponent() int32 {
	if exp, ok := minorUnits[strings.ToUpper(f.Currency)]; ok {
		return exp
	}
	return 2
}

// Format renders amount with thousands grouping and the currency code prefix.
func (f Formatter) Format(amount int64) string {
	exp := f.Exponent()
	s := decimal.New(amount, -exp).StringFixed(exp)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(strings.ToUpper(f.Currency))
	b.WriteByte(' ')
	b.WriteString(sign)
	b.WriteString(group(whole))
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Percent returns part/whole*100 rounded half away from zero to two decimals.
// A non-positive whole yields 0.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(2).
		InexactFloat64()
}
