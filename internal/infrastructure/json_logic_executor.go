package infrastructure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
)

var ErrExpressionFailed = errors.New("expression evaluation failed")

// JsonLogicExecutor evaluates rule expressions with diegoholiveira/jsonlogic.
// Custom operators are resolved before the expression is handed to
// jsonlogic, at any depth, and replaced by their result.
type JsonLogicExecutor struct {
	customOps map[string]func(args ...any) any
}

func NewJsonLogicExecutor() *JsonLogicExecutor {
	j := &JsonLogicExecutor{customOps: make(map[string]func(args ...any) any)}
	j.RegisterCustomOperator("has_option", CustomHasOption)
	return j
}

func (j *JsonLogicExecutor) RegisterCustomOperator(name string, logic func(args ...any) any) {
	j.customOps[name] = logic
}

// Evaluate applies expr to data and reports whether the result is truthy.
func (j *JsonLogicExecutor) Evaluate(expr map[string]any, data map[string]any) (bool, error) {
	resolved := j.resolveCustom(expr, data)
	if _, ok := resolved.(map[string]any); !ok {
		return truthy(resolved), nil
	}

	ruleJSON, err := json.Marshal(resolved)
	if err != nil {
		return false, fmt.Errorf("%w: encode expression: %v", ErrExpressionFailed, err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("%w: encode data: %v", ErrExpressionFailed, err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrExpressionFailed, err)
	}
	raw := strings.TrimSpace(out.String())
	if raw == "" || raw == "null" {
		return false, nil
	}
	var res any
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return false, fmt.Errorf("%w: decode result: %v", ErrExpressionFailed, err)
	}
	return truthy(res), nil
}

// resolveCustom walks node bottom-up and replaces every custom operator
// call with the value it returns. expr itself is not modified.
func (j *JsonLogicExecutor) resolveCustom(node any, data map[string]any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = j.resolveCustom(v, data)
		}
		if len(out) == 1 {
			for op, args := range out {
				if fn, ok := j.customOps[op]; ok {
					return j.handleManualEval(args, data, fn)
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = j.resolveCustom(v, data)
		}
		return out
	}
	return node
}

func (j *JsonLogicExecutor) handleManualEval(args any, data map[string]any, fn func(args ...any) any) any {
	var params []any
	if v, ok := args.([]any); ok {
		for _, arg := range v {
			params = append(params, resolveVar(arg, data))
		}
	} else {
		params = append(params, resolveVar(args, data))
	}
	return fn(params...)
}

// resolveVar follows a dotted {"var": "a.b"} path through nested maps.
func resolveVar(arg any, data map[string]any) any {
	m, ok := arg.(map[string]any)
	if !ok {
		return arg
	}
	path, ok := m["var"].(string)
	if !ok {
		return arg
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[part]
	}
	return cur
}

// CustomHasOption is {"has_option": [{"var": "selections.frame"}, "alu"]}.
func CustomHasOption(args ...any) any {
	if len(args) < 2 {
		return false
	}
	list, _ := args[0].([]any)
	for _, v := range list {
		if v == args[1] {
			return true
		}
	}
	return false
}

// truthy follows JsonLogic truthiness.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}
	return true
}
