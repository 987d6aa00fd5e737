// Package catalog turns a decoded product definition into an immutable
// domain.Configuration, refusing anything that would later surface as a
// confusing rule failure.
package catalog

import (
	"fmt"
	"sort"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

const (
	MaxRules             = 200
	MaxPredicatesPerRule = 20
	MaxEffectsPerRule    = 20
)

// Document is the storage-neutral shape of a product definition, as produced
// by a catalog loader.
type Document struct {
	ID                string                    `json:"id"`
	Name              string                    `json:"name,omitempty"`
	BasePrice         int64                     `json:"basePrice"`
	Currency          string                    `json:"currency"`
	Components        []domain.Component        `json:"components"`
	Rules             []RuleSpec                `json:"rules,omitempty"`
	QuantityDiscounts []domain.QuantityDiscount `json:"quantityDiscounts,omitempty"`
}

type RuleSpec struct {
	ID             string           `json:"id"`
	Name           string           `json:"name,omitempty"`
	Priority       int              `json:"priority"`
	Enabled        *bool            `json:"enabled,omitempty"`
	StopProcessing bool             `json:"stopProcessing,omitempty"`
	Condition      domain.Condition `json:"condition"`
	Effects        []EffectSpec     `json:"effects"`
}

// EffectSpec is the flat wire form of every effect kind; Type selects which
// fields are meaningful.
type EffectSpec struct {
	Type        domain.EffectKind   `json:"type"`
	ComponentID string              `json:"componentId,omitempty"`
	OptionID    string              `json:"optionId,omitempty"`
	Amount      int64               `json:"amount,omitempty"`
	Kind        domain.ModifierKind `json:"kind,omitempty"`
	AppliesTo   string              `json:"appliesTo,omitempty"`
	Label       string              `json:"label,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// ExpressionEvaluator checks JsonLogic expressions at load time.
type ExpressionEvaluator interface {
	Evaluate(expr map[string]any, data map[string]any) (bool, error)
}

type Option func(*loader)

// WithExpressionEvaluator enables rules carrying a JsonLogic expression.
func WithExpressionEvaluator(ev ExpressionEvaluator) Option {
	return func(l *loader) { l.expressions = ev }
}

type loader struct {
	expressions ExpressionEvaluator
	components  map[string]*domain.Component
	optionIDs   map[string]string
}

// Load validates doc and builds the Configuration. Every failure wraps
// domain.ErrMalformedCatalog and names the offending id.
func Load(doc Document, opts ...Option) (*domain.Configuration, error) {
	l := &loader{
		components: make(map[string]*domain.Component),
		optionIDs:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}

	if doc.ID == "" {
		return nil, malformed("", "configuration id is required")
	}
	if !validCurrency(doc.Currency) {
		return nil, malformed(doc.ID, fmt.Sprintf("currency %q is not an ISO 4217 code", doc.Currency))
	}
	if doc.BasePrice < 0 {
		return nil, malformed(doc.ID, "base price must not be negative")
	}

	components, err := l.loadComponents(doc.Components)
	if err != nil {
		return nil, err
	}
	discounts, err := quantityDiscounts(doc.ID, doc.QuantityDiscounts)
	if err != nil {
		return nil, err
	}
	rules, err := l.loadRules(doc.Rules)
	if err != nil {
		return nil, err
	}

	return domain.NewConfiguration(doc.ID, doc.Name, doc.BasePrice, doc.Currency, components, rules, discounts), nil
}

func (l *loader) loadComponents(in []domain.Component) ([]domain.Component, error) {
	out := make([]domain.Component, len(in))
	for i, c := range in {
		if c.ID == "" {
			return nil, malformed("", fmt.Sprintf("component #%d has no id", i))
		}
		if _, dup := l.components[c.ID]; dup {
			return nil, malformed(c.ID, "duplicate component id")
		}
		if c.MinSelections < 0 || c.MaxSelections < 0 {
			return nil, malformed(c.ID, "selection bounds must not be negative")
		}
		if c.MaxSelections > 0 && c.MinSelections > c.MaxSelections {
			return nil, malformed(c.ID, "minSelections exceeds maxSelections")
		}

		comp := c
		comp.Options = make([]domain.Option, len(c.Options))
		for j, o := range c.Options {
			if o.ID == "" {
				return nil, malformed(c.ID, fmt.Sprintf("option #%d has no id", j))
			}
			if owner, dup := l.optionIDs[o.ID]; dup {
				return nil, malformed(o.ID, fmt.Sprintf("duplicate option id (already in component %s)", owner))
			}
			if o.ComponentID != "" && o.ComponentID != c.ID {
				return nil, malformed(o.ID, fmt.Sprintf("option references component %s but is declared in %s", o.ComponentID, c.ID))
			}
			if o.IsDefault && !o.IsEnabled() {
				return nil, malformed(o.ID, "default option is disabled")
			}
			l.optionIDs[o.ID] = c.ID
			opt := o
			opt.ComponentID = c.ID
			opt.Enabled = copyFlag(o.Enabled)
			opt.InStock = copyFlag(o.InStock)
			if len(o.Metadata) > 0 {
				opt.Metadata = make(map[string]string, len(o.Metadata))
				for k, v := range o.Metadata {
					opt.Metadata[k] = v
				}
			}
			comp.Options[j] = opt
		}
		out[i] = comp
		l.components[c.ID] = &out[i]
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	// re-point the index after sorting
	for i := range out {
		l.components[out[i].ID] = &out[i]
	}
	return out, nil
}

func copyFlag(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func quantityDiscounts(configID string, in []domain.QuantityDiscount) ([]domain.QuantityDiscount, error) {
	seen := make(map[int]bool, len(in))
	out := make([]domain.QuantityDiscount, 0, len(in))
	for _, d := range in {
		if d.MinQuantity < 1 {
			return nil, malformed(configID, fmt.Sprintf("quantity discount minQuantity %d must be at least 1", d.MinQuantity))
		}
		if d.Percent < 0 || d.Percent > 100 {
			return nil, malformed(configID, fmt.Sprintf("quantity discount percent %d out of range", d.Percent))
		}
		if seen[d.MinQuantity] {
			return nil, malformed(configID, fmt.Sprintf("duplicate quantity discount tier %d", d.MinQuantity))
		}
		seen[d.MinQuantity] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinQuantity < out[j].MinQuantity })
	return out, nil
}

func (l *loader) loadRules(in []RuleSpec) ([]domain.Rule, error) {
	if len(in) > MaxRules {
		return nil, malformed("", fmt.Sprintf("maximum %d rules per configuration, got %d", MaxRules, len(in)))
	}
	seen := make(map[string]bool, len(in))
	out := make([]domain.Rule, 0, len(in))
	for i, rs := range in {
		if rs.ID == "" {
			return nil, malformed("", fmt.Sprintf("rule #%d has no id", i))
		}
		if seen[rs.ID] {
			return nil, malformed(rs.ID, "duplicate rule id")
		}
		seen[rs.ID] = true

		rule, err := l.rule(rs)
		if err != nil {
			return nil, err
		}
		rule.Order = i
		out = append(out, rule)
	}
	return out, nil
}

func (l *loader) rule(rs RuleSpec) (domain.Rule, error) {
	if len(rs.Effects) == 0 {
		return domain.Rule{}, malformed(rs.ID, "rule has no effects")
	}
	if len(rs.Effects) > MaxEffectsPerRule {
		return domain.Rule{}, malformed(rs.ID, fmt.Sprintf("maximum %d effects per rule", MaxEffectsPerRule))
	}
	if len(rs.Condition.All) > MaxPredicatesPerRule {
		return domain.Rule{}, malformed(rs.ID, fmt.Sprintf("maximum %d conditions per rule", MaxPredicatesPerRule))
	}

	cond := domain.Condition{Expression: rs.Condition.Expression}
	for _, p := range rs.Condition.All {
		pred, err := l.predicate(rs.ID, p)
		if err != nil {
			return domain.Rule{}, err
		}
		cond.All = append(cond.All, pred)
	}
	if len(cond.Expression) > 0 {
		if l.expressions == nil {
			return domain.Rule{}, malformed(rs.ID, "expression conditions are not enabled")
		}
		if _, err := l.expressions.Evaluate(cond.Expression, domain.Selection{}.ToMap()); err != nil {
			return domain.Rule{}, malformed(rs.ID, fmt.Sprintf("invalid expression: %v", err))
		}
	}

	effects := make([]domain.Effect, 0, len(rs.Effects))
	for _, es := range rs.Effects {
		eff, err := l.effect(rs.ID, es)
		if err != nil {
			return domain.Rule{}, err
		}
		effects = append(effects, eff)
	}

	enabled := true
	if rs.Enabled != nil {
		enabled = *rs.Enabled
	}
	return domain.Rule{
		ID:             rs.ID,
		Name:           rs.Name,
		Priority:       rs.Priority,
		Enabled:        enabled,
		StopProcessing: rs.StopProcessing,
		Condition:      cond,
		Effects:        effects,
	}, nil
}

func (l *loader) predicate(ruleID string, p domain.Predicate) (domain.Predicate, error) {
	if err := l.requireComponent(ruleID, p.ComponentID); err != nil {
		return p, err
	}
	switch p.Op {
	case domain.OpSelected, domain.OpNotSelected:
		if err := l.requireOption(ruleID, p.ComponentID, p.OptionID); err != nil {
			return p, err
		}
	case domain.OpIn, domain.OpNotIn:
		if len(p.OptionIDs) == 0 {
			return p, malformed(ruleID, fmt.Sprintf("operator %s needs optionIds", p.Op))
		}
		for _, o := range p.OptionIDs {
			if err := l.requireOption(ruleID, p.ComponentID, o); err != nil {
				return p, err
			}
		}
		p.OptionIDs = append([]string(nil), p.OptionIDs...)
	case domain.OpAny, domain.OpNone:
	default:
		return p, malformed(ruleID, fmt.Sprintf("unknown condition operator %q", p.Op))
	}
	return p, nil
}

func (l *loader) effect(ruleID string, es EffectSpec) (domain.Effect, error) {
	switch es.Type {
	case domain.EffectHide, domain.EffectShow:
		if err := l.requireComponent(ruleID, es.ComponentID); err != nil {
			return nil, err
		}
		if es.Type == domain.EffectHide {
			return domain.Hide{ComponentID: es.ComponentID}, nil
		}
		return domain.Show{ComponentID: es.ComponentID}, nil

	case domain.EffectDisableOption, domain.EffectEnableOption, domain.EffectForceSelect:
		if err := l.requireComponent(ruleID, es.ComponentID); err != nil {
			return nil, err
		}
		if err := l.requireOption(ruleID, es.ComponentID, es.OptionID); err != nil {
			return nil, err
		}
		switch es.Type {
		case domain.EffectDisableOption:
			return domain.DisableOption{ComponentID: es.ComponentID, OptionID: es.OptionID}, nil
		case domain.EffectEnableOption:
			return domain.EnableOption{ComponentID: es.ComponentID, OptionID: es.OptionID}, nil
		default:
			return domain.ForceSelect{ComponentID: es.ComponentID, OptionID: es.OptionID}, nil
		}

	case domain.EffectPriceModifier:
		if es.Kind != domain.ModifierFlat && es.Kind != domain.ModifierPercent {
			return nil, malformed(ruleID, fmt.Sprintf("price modifier kind %q must be flat or percent", es.Kind))
		}
		target := es.AppliesTo
		if target == "" {
			target = domain.AppliesToTotal
		}
		if target != domain.AppliesToTotal {
			if err := l.requireComponent(ruleID, target); err != nil {
				return nil, err
			}
		}
		return domain.PriceModifier{Amount: es.Amount, Mode: es.Kind, AppliesTo: target, Label: es.Label}, nil

	case domain.EffectInvalidate:
		if es.Message == "" {
			return nil, malformed(ruleID, "invalidate effect needs a message")
		}
		return domain.Invalidate{Message: es.Message}, nil
	}
	return nil, malformed(ruleID, fmt.Sprintf("unknown effect type %q", es.Type))
}

func (l *loader) requireComponent(ruleID, componentID string) error {
	if componentID == "" {
		return malformed(ruleID, "missing component id")
	}
	if _, ok := l.components[componentID]; !ok {
		return malformed(ruleID, fmt.Sprintf("unknown component %s", componentID))
	}
	return nil
}

func (l *loader) requireOption(ruleID, componentID, optionID string) error {
	if optionID == "" {
		return malformed(ruleID, fmt.Sprintf("missing option id for component %s", componentID))
	}
	owner, ok := l.optionIDs[optionID]
	if !ok {
		return malformed(ruleID, fmt.Sprintf("unknown option %s", optionID))
	}
	if owner != componentID {
		return malformed(ruleID, fmt.Sprintf("option %s belongs to component %s, not %s", optionID, owner, componentID))
	}
	return nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func malformed(id, reason string) error {
	return &domain.CatalogError{ID: id, Reason: reason}
}
