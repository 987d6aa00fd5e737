package engine

import (
	"fmt"
	"sort"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// DefaultMaxPasses bounds forceSelect propagation.
const DefaultMaxPasses = 10

// Engine interprets the ordered rule list of a Configuration. It holds no
// per-session state and is safe for concurrent use.
type Engine struct {
	MaxPasses   int
	Expressions ExpressionEvaluator
}

type Option func(*Engine)

func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.MaxPasses = n
		}
	}
}

// WithExpressionEvaluator enables JsonLogic expression conditions.
func WithExpressionEvaluator(ev ExpressionEvaluator) Option {
	return func(e *Engine) { e.Expressions = ev }
}

func New(opts ...Option) *Engine {
	e := &Engine{MaxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every enabled rule against the user selection until the
// forced selections stop changing. The result is a pure function of its
// inputs.
func (e *Engine) Evaluate(cfg *domain.Configuration, user domain.Selection) (*domain.EffectSet, error) {
	maxPasses := e.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	rules := orderedRules(cfg.Rules)

	var log []domain.ExecutionStep
	previous := forcedMap{}
	for pass := 1; pass <= maxPasses; pass++ {
		st := newPassState(cfg, user, previous, pass)
		for _, rule := range rules {
			if stop := e.apply(st, rule); stop {
				break
			}
		}
		log = append(log, st.log...)

		if st.forced.equal(previous) {
			return st.effectSet(log), nil
		}
		if pass == maxPasses {
			return nil, &domain.RuleCycleError{
				RuleIDs: previous.changedRules(st.forced),
				Passes:  pass,
			}
		}
		previous = st.forced
	}
	// unreachable: the loop either returns a set or a cycle error
	return nil, fmt.Errorf("engine: no passes run")
}

// apply evaluates one rule and reports whether the pass must stop.
func (e *Engine) apply(st *passState, rule domain.Rule) bool {
	if !rule.Enabled {
		st.step(rule.ID, "skipped", "rule disabled")
		return false
	}
	ok, err := e.holds(rule.Condition, st.viewFor(rule.ID))
	if err != nil {
		st.step(rule.ID, "error", err.Error())
		return false
	}
	if !ok {
		return false
	}

	st.fired = append(st.fired, rule.ID)
	for _, eff := range rule.Effects {
		st.applyEffect(rule, eff)
	}
	if rule.StopProcessing {
		st.step(rule.ID, "stop", "stopProcessing: remaining rules skipped")
		return true
	}
	return false
}

func orderedRules(in []domain.Rule) []domain.Rule {
	rules := append([]domain.Rule(nil), in...)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Order < rules[j].Order
	})
	return rules
}
