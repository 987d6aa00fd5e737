// Package tax provides TaxCalculator implementations.
package tax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownJurisdiction = errors.New("unknown tax jurisdiction")

// FlatRate applies one rate per jurisdiction, in basis points (2300 = 23%).
// An empty jurisdiction is untaxed.
type FlatRate struct {
	rates map[string]int64
}

func NewFlatRate(rates map[string]int64) (*FlatRate, error) {
	normalized := make(map[string]int64, len(rates))
	for code, bps := range rates {
		if bps < 0 || bps > 10000 {
			return nil, fmt.Errorf("tax rate for %s out of range: %d bps", code, bps)
		}
		normalized[strings.ToUpper(code)] = bps
	}
	return &FlatRate{rates: normalized}, nil
}

func (f *FlatRate) ComputeTax(subtotal int64, currency, jurisdiction string) (int64, error) {
	if jurisdiction == "" {
		return 0, nil
	}
	bps, ok := f.rates[strings.ToUpper(jurisdiction)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJurisdiction, jurisdiction)
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(10000)).
		RoundBank(0).
		IntPart(), nil
}
