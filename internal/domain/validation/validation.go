// Package validation checks an evaluated selection. Every check runs, so the
// caller sees all violations at once; failures are data, never errors.
package validation

import (
	"fmt"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// Validate reports, in order: missing required components, disabled options
// that are still selected, rule invalidations, then multiplicity violations.
// Selected out-of-stock options are reported as warnings.
func Validate(cfg *domain.Configuration, state domain.SelectionState, effects *domain.EffectSet) domain.ValidationResult {
	errs := make([]domain.ValidationError, 0)
	errs = append(errs, requiredMissing(cfg, state, effects)...)
	errs = append(errs, optionDisabled(cfg, state, effects)...)
	errs = append(errs, ruleViolations(effects)...)
	errs = append(errs, multiplicity(cfg, state)...)

	return domain.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: outOfStock(cfg, state),
	}
}

func requiredMissing(cfg *domain.Configuration, state domain.SelectionState, effects *domain.EffectSet) []domain.ValidationError {
	var out []domain.ValidationError
	for _, c := range cfg.Components {
		if !c.Required || !effects.IsVisible(c.ID) || state.Effective.Count(c.ID) > 0 {
			continue
		}
		out = append(out, domain.ValidationError{
			Code:        domain.CodeRequiredMissing,
			ComponentID: c.ID,
			Message:     fmt.Sprintf("%s is required", displayName(c)),
		})
	}
	return out
}

func optionDisabled(cfg *domain.Configuration, state domain.SelectionState, effects *domain.EffectSet) []domain.ValidationError {
	var out []domain.ValidationError
	for _, c := range cfg.Components {
		for _, o := range c.Options {
			if !state.Effective.Has(c.ID, o.ID) || !effects.IsDisabled(c.ID, o.ID) {
				continue
			}
			out = append(out, domain.ValidationError{
				Code:        domain.CodeOptionDisabled,
				ComponentID: c.ID,
				OptionID:    o.ID,
				Message:     fmt.Sprintf("option %s is not available for %s", o.ID, displayName(c)),
			})
		}
	}
	return out
}

func ruleViolations(effects *domain.EffectSet) []domain.ValidationError {
	out := make([]domain.ValidationError, 0, len(effects.Invalidations))
	for _, inv := range effects.Invalidations {
		out = append(out, domain.ValidationError{
			Code:    domain.CodeRuleViolation,
			RuleID:  inv.RuleID,
			Message: inv.Message,
		})
	}
	return out
}

func multiplicity(cfg *domain.Configuration, state domain.SelectionState) []domain.ValidationError {
	var out []domain.ValidationError
	for _, c := range cfg.Components {
		n := state.Effective.Count(c.ID)
		if n == 0 {
			continue
		}
		switch {
		case !c.AllowMultiple && n > 1:
			out = append(out, domain.ValidationError{
				Code:        domain.CodeTooManySelections,
				ComponentID: c.ID,
				Message:     fmt.Sprintf("%s accepts a single option, got %d", displayName(c), n),
			})
		case c.AllowMultiple && c.MaxSelections > 0 && n > c.MaxSelections:
			out = append(out, domain.ValidationError{
				Code:        domain.CodeTooManySelections,
				ComponentID: c.ID,
				Message:     fmt.Sprintf("%s accepts at most %d options, got %d", displayName(c), c.MaxSelections, n),
			})
		case c.AllowMultiple && n < c.MinSelections:
			out = append(out, domain.ValidationError{
				Code:        domain.CodeTooFewSelections,
				ComponentID: c.ID,
				Message:     fmt.Sprintf("%s needs at least %d options, got %d", displayName(c), c.MinSelections, n),
			})
		}
	}
	return out
}

func outOfStock(cfg *domain.Configuration, state domain.SelectionState) []domain.ValidationError {
	out := make([]domain.ValidationError, 0)
	for _, c := range cfg.Components {
		for _, o := range c.Options {
			if o.IsInStock() || !state.Effective.Has(c.ID, o.ID) {
				continue
			}
			out = append(out, domain.ValidationError{
				Code:        domain.CodeOutOfStock,
				ComponentID: c.ID,
				OptionID:    o.ID,
				Message:     fmt.Sprintf("option %s of %s is out of stock", o.ID, displayName(c)),
			})
		}
	}
	return out
}

func displayName(c domain.Component) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
