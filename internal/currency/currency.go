// Package currency converts amounts between supported currencies using a
// USD-based rates table fetched from an external provider, with cached
// and embedded fallbacks.
package currency

import "sort"

// BaseCurrency is the base every rates table is expressed against.
const BaseCurrency = "USD"

// DefaultCurrency is what new users see until they pick one.
const DefaultCurrency = "NGN"

// Info describes one supported currency.
type Info struct {
	Code   string
	Name   string
	Symbol string
	Flag   string
}

var supported = map[string]Info{
	"USD": {Code: "USD", Name: "US Dollar", Symbol: "$", Flag: "🇺🇸"},
	"EUR": {Code: "EUR", Name: "Euro", Symbol: "€", Flag: "🇪🇺"},
	"GBP": {Code: "GBP", Name: "British Pound", Symbol: "£", Flag: "🇬🇧"},
	"NGN": {Code: "NGN", Name: "Nigerian Naira", Symbol: "₦", Flag: "🇳🇬"},
	"JPY": {Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Flag: "🇯🇵"},
	"CAD": {Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", Flag: "🇨🇦"},
	"AUD": {Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Flag: "🇦🇺"},
	"CHF": {Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", Flag: "🇨🇭"},
	"CNY": {Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Flag: "🇨🇳"},
	"INR": {Code: "INR", Name: "Indian Rupee", Symbol: "₹", Flag: "🇮🇳"},
	"ZAR": {Code: "ZAR", Name: "South African Rand", Symbol: "R", Flag: "🇿🇦"},
	"KES": {Code: "KES", Name: "Kenyan Shilling", Symbol: "KSh", Flag: "🇰🇪"},
	"GHS": {Code: "GHS", Name: "Ghanaian Cedi", Symbol: "₵", Flag: "🇬🇭"},
}

// Supported reports whether the code is a known currency.
func Supported(code string) bool {
	_, ok := supported[code]
	return ok
}

// Lookup returns the Info for a code; ok is false for unknown codes.
func Lookup(code string) (Info, bool) {
	info, ok := supported[code]
	return info, ok
}

// Symbol returns the display symbol for a code, or the code itself when
// unknown.
func Symbol(code string) string {
	if info, ok := supported[code]; ok {
		return info.Symbol
	}
	return code
}

// Codes returns the supported currency codes in alphabetical order.
func Codes() []string {
	out := make([]string, 0, len(supported))
	for code := range supported {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
