package engine

import (
	"errors"
	"fmt"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// ExpressionEvaluator evaluates a JsonLogic expression against plain data
// and reports its truthiness.
type ExpressionEvaluator interface {
	Evaluate(expr map[string]any, data map[string]any) (bool, error)
}

var errNoEvaluator = errors.New("expression condition without evaluator")

// holds reports whether every predicate and the optional expression are
// satisfied by sel.
func (e *Engine) holds(cond domain.Condition, sel domain.Selection) (bool, error) {
	for _, p := range cond.All {
		if !predicateHolds(p, sel) {
			return false, nil
		}
	}
	if len(cond.Expression) == 0 {
		return true, nil
	}
	if e.Expressions == nil {
		return false, errNoEvaluator
	}
	ok, err := e.Expressions.Evaluate(cond.Expression, sel.ToMap())
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	return ok, nil
}

func predicateHolds(p domain.Predicate, sel domain.Selection) bool {
	switch p.Op {
	case domain.OpSelected:
		return sel.Has(p.ComponentID, p.OptionID)
	case domain.OpNotSelected:
		return !sel.Has(p.ComponentID, p.OptionID)
	case domain.OpIn:
		return anySelected(sel, p.ComponentID, p.OptionIDs)
	case domain.OpNotIn:
		return !anySelected(sel, p.ComponentID, p.OptionIDs)
	case domain.OpAny:
		return sel.Count(p.ComponentID) > 0
	case domain.OpNone:
		return sel.Count(p.ComponentID) == 0
	}
	return false
}

func anySelected(sel domain.Selection, componentID string, optionIDs []string) bool {
	for _, o := range optionIDs {
		if sel.Has(componentID, o) {
			return true
		}
	}
	return false
}
