package engine

import (
	"fmt"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/pricing"
	"github.com/Victor-armando18/product-configurator/internal/domain/validation"
)

// Phases recorded in ExecutionStep.Phase.
const (
	PhaseRules      = "rules"
	PhaseValidation = "validation"
	PhasePricing    = "pricing"
)

// Outcome is everything one pipeline run derives from a selection.
type Outcome struct {
	Effects    *domain.EffectSet
	State      domain.SelectionState
	Validation domain.ValidationResult
	Price      domain.PriceBreakdown
}

// Pipeline chains rule evaluation, validation and pricing.
type Pipeline struct {
	Rules   *Engine
	Pricing *pricing.Calculator
}

func NewPipeline(rules *Engine, calc *pricing.Calculator) *Pipeline {
	if rules == nil {
		rules = New()
	}
	if calc == nil {
		calc = pricing.NewCalculator(nil)
	}
	return &Pipeline{Rules: rules, Pricing: calc}
}

// Run evaluates user against cfg. Only a rule cycle or a pricing failure
// returns an error; invalid configurations are reported in Validation.
func (p *Pipeline) Run(cfg *domain.Configuration, user domain.Selection, terms pricing.Terms) (*Outcome, error) {
	effects, err := p.Rules.Evaluate(cfg, user)
	if err != nil {
		return nil, err
	}
	state := domain.NewSelectionState(cfg, user, effects)

	res := validation.Validate(cfg, state, effects)
	effects.Log = append(effects.Log, domain.ExecutionStep{
		Phase:   PhaseValidation,
		Action:  "checked",
		Message: fmt.Sprintf("valid=%t errors=%d", res.Valid, len(res.Errors)),
	})

	price, err := p.Pricing.Calculate(cfg, state, effects, terms)
	if err != nil {
		return nil, err
	}
	effects.Log = append(effects.Log, domain.ExecutionStep{
		Phase:   PhasePricing,
		Action:  "priced",
		Message: fmt.Sprintf("subtotal=%d tax=%d total=%d %s", price.Subtotal, price.TaxAmount, price.Total, price.Currency),
	})

	return &Outcome{Effects: effects, State: state, Validation: res, Price: price}, nil
}
