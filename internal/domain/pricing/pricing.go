// Package pricing turns an evaluated selection into an itemized quote. All
// amounts are int64 minor units; fractional results use banker's rounding.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// TaxCalculator computes the tax owed on a subtotal.
type TaxCalculator interface {
	ComputeTax(subtotal int64, currency, jurisdiction string) (int64, error)
}

// Terms are the order parameters that are not part of the selection.
type Terms struct {
	Quantity     int
	Jurisdiction string
}

type Calculator struct {
	Tax TaxCalculator
}

func NewCalculator(tax TaxCalculator) *Calculator {
	return &Calculator{Tax: tax}
}

// Calculate prices the effective selection. A zero quantity means one unit.
func (c *Calculator) Calculate(cfg *domain.Configuration, state domain.SelectionState, effects *domain.EffectSet, terms Terms) (domain.PriceBreakdown, error) {
	qty := terms.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return domain.PriceBreakdown{}, fmt.Errorf("pricing: invalid quantity %d", qty)
	}

	b := domain.PriceBreakdown{Currency: cfg.Currency, Quantity: qty}
	unit := cfg.BasePrice
	b.Lines = append(b.Lines, domain.LineItem{Label: "Base price", Amount: cfg.BasePrice, Kind: domain.LineBase})

	deltas := make(map[string]int64)
	for _, comp := range cfg.Components {
		for _, o := range comp.Options {
			if !state.Effective.Has(comp.ID, o.ID) || effects.IsDisabled(comp.ID, o.ID) {
				continue
			}
			unit += o.BasePriceDelta
			deltas[comp.ID] += o.BasePriceDelta
			b.Lines = append(b.Lines, domain.LineItem{
				Label:       optionLabel(comp, o),
				Amount:      o.BasePriceDelta,
				Kind:        domain.LineOption,
				ComponentID: comp.ID,
				OptionID:    o.ID,
			})
		}
	}

	for _, m := range effects.PriceModifiers {
		line := domain.LineItem{Label: modifierLabel(m), Kind: domain.LineModifier, RuleID: m.RuleID}
		if m.AppliesTo == domain.AppliesToTotal || m.AppliesTo == "" {
			line.Amount = adjustment(m, unit)
		} else {
			if state.Effective.Count(m.AppliesTo) == 0 {
				continue
			}
			line.Amount = adjustment(m, deltas[m.AppliesTo])
			line.ComponentID = m.AppliesTo
		}
		unit += line.Amount
		b.Lines = append(b.Lines, line)
	}

	if tier, ok := discountTier(cfg.QuantityDiscounts, qty); ok && tier.Percent > 0 && unit > 0 {
		amount := -percentOf(unit, tier.Percent)
		unit += amount
		b.Lines = append(b.Lines, domain.LineItem{
			Label:  fmt.Sprintf("Volume discount %d%% (%d+ units)", tier.Percent, tier.MinQuantity),
			Amount: amount,
			Kind:   domain.LineQuantityDiscount,
		})
	}

	b.UnitSubtotal = unit
	b.Subtotal = unit * int64(qty)
	if qty > 1 {
		b.Lines = append(b.Lines, domain.LineItem{
			Label:  fmt.Sprintf("Quantity x%d", qty),
			Amount: unit * int64(qty-1),
			Kind:   domain.LineQuantity,
		})
	}

	if b.Subtotal < 0 {
		b.Lines = append(b.Lines, domain.LineItem{
			Label:  "Adjustment to zero",
			Amount: -b.Subtotal,
			Kind:   domain.LineClamp,
		})
		b.Subtotal = 0
	}

	if c != nil && c.Tax != nil {
		tax, err := c.Tax.ComputeTax(b.Subtotal, cfg.Currency, terms.Jurisdiction)
		if err != nil {
			return domain.PriceBreakdown{}, fmt.Errorf("compute tax: %w", err)
		}
		b.TaxAmount = tax
	}
	b.Total = b.Subtotal + b.TaxAmount
	return b, nil
}

func adjustment(m domain.AppliedModifier, base int64) int64 {
	if m.Kind == domain.ModifierPercent {
		return percentOf(base, m.Amount)
	}
	return m.Amount
}

// percentOf returns base*pct/100 rounded half to even.
func percentOf(base, pct int64) int64 {
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		RoundBank(0).
		IntPart()
}

func discountTier(tiers []domain.QuantityDiscount, qty int) (domain.QuantityDiscount, bool) {
	var best domain.QuantityDiscount
	found := false
	for _, t := range tiers {
		if t.MinQuantity <= qty && (!found || t.MinQuantity > best.MinQuantity) {
			best, found = t, true
		}
	}
	return best, found
}

func optionLabel(c domain.Component, o domain.Option) string {
	comp, opt := c.Name, o.Name
	if comp == "" {
		comp = c.ID
	}
	if opt == "" {
		opt = o.ID
	}
	return comp + ": " + opt
}

func modifierLabel(m domain.AppliedModifier) string {
	if m.Label != "" {
		return m.Label
	}
	if m.Kind == domain.ModifierPercent {
		return fmt.Sprintf("%s %+d%%", m.RuleID, m.Amount)
	}
	return m.RuleID
}
