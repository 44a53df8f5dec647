package enums

import "fmt"

// Currency represents supported ISO-4217 denominations for transaction amounts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyCHF Currency = "CHF"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencySGD Currency = "SGD"
	CurrencyHKD Currency = "HKD"
	CurrencyAED Currency = "AED"
	CurrencyTHB Currency = "THB"
	CurrencyINR Currency = "INR"
	CurrencyCNY Currency = "CNY"
	CurrencyKRW Currency = "KRW"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencyJPY,
	CurrencyCHF,
	CurrencyCAD,
	CurrencyAUD,
	CurrencySGD,
	CurrencyHKD,
	CurrencyAED,
	CurrencyTHB,
	CurrencyINR,
	CurrencyCNY,
	CurrencyKRW,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
