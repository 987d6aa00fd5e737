package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/catalog"
)

func selected(comp, opt string) domain.Predicate {
	return domain.Predicate{Op: domain.OpSelected, ComponentID: comp, OptionID: opt}
}

func when(preds ...domain.Predicate) domain.Condition {
	return domain.Condition{All: preds}
}

func testConfiguration(t *testing.T, rules ...catalog.RuleSpec) *domain.Configuration {
	t.Helper()
	cfg, err := catalog.Load(catalog.Document{
		ID:        "desk",
		BasePrice: 1000,
		Currency:  "EUR",
		Components: []domain.Component{
			{ID: "top", Required: true, Options: []domain.Option{{ID: "oak"}, {ID: "glass"}}},
			{ID: "legs", Required: true, Options: []domain.Option{{ID: "wood"}, {ID: "metal"}}},
			{ID: "finish", Options: []domain.Option{{ID: "matte"}, {ID: "gloss"}}},
			{ID: "extras", AllowMultiple: true, Options: []domain.Option{{ID: "drawer"}, {ID: "cable"}, {ID: "lamp"}}},
		},
		Rules: rules,
	}, catalog.WithExpressionEvaluator(fakeExpressions{}))
	if err != nil {
		t.Fatalf("load test catalog: %v", err)
	}
	return cfg
}

// fakeExpressions treats {"has": [component, option]} as a selection test.
type fakeExpressions struct{}

func (fakeExpressions) Evaluate(expr map[string]any, data map[string]any) (bool, error) {
	args, ok := expr["has"].([]any)
	if !ok {
		if _, trivial := expr["true"]; trivial {
			return true, nil
		}
		return false, errors.New("unsupported expression")
	}
	sel, _ := data["selections"].(map[string]any)
	opts, _ := sel[args[0].(string)].([]any)
	for _, o := range opts {
		if o == args[1] {
			return true, nil
		}
	}
	return false, nil
}

func TestEvaluate_Defaults(t *testing.T) {
	cfg := testConfiguration(t)
	set, err := New().Evaluate(cfg, domain.Selection{"top": {"oak"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(set.HiddenComponents) != 0 || len(set.DisabledOptions) != 0 {
		t.Errorf("expected everything visible and enabled, got %+v", set)
	}
	if set.Passes != 1 {
		t.Errorf("passes = %d, want 1", set.Passes)
	}
	if !set.Effective.Equal(domain.Selection{"top": {"oak"}}) {
		t.Errorf("effective = %v", set.Effective)
	}
}

func TestEvaluate_Determinism(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "glass-metal", Priority: 1, Condition: when(selected("top", "glass")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "legs", OptionID: "metal"}}},
		catalog.RuleSpec{ID: "metal-no-drawer", Priority: 2, Condition: when(selected("legs", "metal")),
			Effects: []catalog.EffectSpec{
				{Type: domain.EffectDisableOption, ComponentID: "extras", OptionID: "drawer"},
				{Type: domain.EffectHide, ComponentID: "finish"},
			}},
		catalog.RuleSpec{ID: "surcharge", Priority: 3, Condition: when(selected("top", "glass")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectPriceModifier, Amount: 10, Kind: domain.ModifierPercent}}},
	)
	sel := domain.Selection{"top": {"glass"}, "extras": {"lamp", "cable"}}

	first, err := New().Evaluate(cfg, sel)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := New().Evaluate(cfg, sel)
		if err != nil {
			t.Fatalf("evaluate #%d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation #%d differs:\n%+v\n%+v", i, first, again)
		}
	}
	if sel.Has("legs", "metal") {
		t.Errorf("input selection was mutated")
	}
}

func TestEvaluate_PriorityTieBreak(t *testing.T) {
	disable := catalog.EffectSpec{Type: domain.EffectDisableOption, ComponentID: "finish", OptionID: "gloss"}
	enable := catalog.EffectSpec{Type: domain.EffectEnableOption, ComponentID: "finish", OptionID: "gloss"}

	t.Run("equal priority, later declared wins", func(t *testing.T) {
		cfg := testConfiguration(t,
			catalog.RuleSpec{ID: "disable", Priority: 5, Effects: []catalog.EffectSpec{disable}},
			catalog.RuleSpec{ID: "enable", Priority: 5, Effects: []catalog.EffectSpec{enable}},
		)
		set, err := New().Evaluate(cfg, domain.Selection{})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if set.IsDisabled("finish", "gloss") {
			t.Errorf("later enable should win")
		}

		cfg = testConfiguration(t,
			catalog.RuleSpec{ID: "enable", Priority: 5, Effects: []catalog.EffectSpec{enable}},
			catalog.RuleSpec{ID: "disable", Priority: 5, Effects: []catalog.EffectSpec{disable}},
		)
		set, err = New().Evaluate(cfg, domain.Selection{})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !set.IsDisabled("finish", "gloss") {
			t.Errorf("later disable should win")
		}
	})

	t.Run("lower priority number wins regardless of declaration", func(t *testing.T) {
		cfg := testConfiguration(t,
			catalog.RuleSpec{ID: "enable", Priority: 9, Effects: []catalog.EffectSpec{enable}},
			catalog.RuleSpec{ID: "disable", Priority: 1, Effects: []catalog.EffectSpec{disable}},
		)
		set, err := New().Evaluate(cfg, domain.Selection{})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !set.IsDisabled("finish", "gloss") {
			t.Errorf("priority 1 disable should hold")
		}
		found := false
		for _, step := range set.Log {
			if step.RuleID == "enable" && step.Action == "overridden" {
				found = true
			}
		}
		if !found {
			t.Errorf("overridden effect not logged: %+v", set.Log)
		}
	})
}

func TestEvaluate_ForcedSelectionPropagation(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "B", Priority: 2, Condition: when(selected("legs", "metal")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "finish"}}},
		catalog.RuleSpec{ID: "A", Priority: 1, Condition: when(selected("top", "glass")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "legs", OptionID: "metal"}}},
	)
	set, err := New().Evaluate(cfg, domain.Selection{"top": {"glass"}, "legs": {"wood"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !reflect.DeepEqual(set.FiredRules, []string{"A", "B"}) {
		t.Errorf("fired rules = %v, want [A B]", set.FiredRules)
	}
	if set.IsVisible("finish") {
		t.Errorf("rule B did not fire in the same pass")
	}
	if got := set.Effective["legs"]; !reflect.DeepEqual(got, []string{"metal"}) {
		t.Errorf("forced option should replace user choice, got %v", got)
	}
	want := []domain.ForcedSelection{{ComponentID: "legs", OptionID: "metal", RuleID: "A"}}
	if !reflect.DeepEqual(set.ForcedSelections, want) {
		t.Errorf("forced = %+v", set.ForcedSelections)
	}

	for _, step := range set.Log {
		if step.Pass == 1 && step.RuleID == "B" && step.Action == "applied" {
			return
		}
	}
	t.Errorf("rule B not applied in pass 1: %+v", set.Log)
}

func TestEvaluate_ForceOnMultiSelectAdds(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "lamp-cable", Condition: when(selected("extras", "lamp")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "extras", OptionID: "cable"}}},
	)
	set, err := New().Evaluate(cfg, domain.Selection{"extras": {"lamp"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := set.Effective["extras"]; !reflect.DeepEqual(got, []string{"cable", "lamp"}) {
		t.Errorf("effective extras = %v, want [cable lamp]", got)
	}
}

func TestEvaluate_CycleDetection(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "oak-forces-metal", Priority: 1, Condition: when(selected("top", "oak")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "legs", OptionID: "metal"}}},
		catalog.RuleSpec{ID: "metal-forces-glass", Priority: 2, Condition: when(selected("legs", "metal")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "top", OptionID: "glass"}}},
	)

	for _, limit := range []int{3, DefaultMaxPasses} {
		_, err := New(WithMaxPasses(limit)).Evaluate(cfg, domain.Selection{"top": {"oak"}})
		if !errors.Is(err, domain.ErrRuleCycle) {
			t.Fatalf("limit=%d: expected ErrRuleCycle, got %v", limit, err)
		}
		var ce *domain.RuleCycleError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *RuleCycleError, got %T", err)
		}
		if ce.Passes != limit {
			t.Errorf("passes = %d, want %d", ce.Passes, limit)
		}
		if len(ce.RuleIDs) == 0 {
			t.Errorf("cycle error names no rules")
		}
		for _, id := range ce.RuleIDs {
			if id != "oak-forces-metal" && id != "metal-forces-glass" {
				t.Errorf("unexpected rule in cycle: %s", id)
			}
		}
	}
}

func TestEvaluate_StableChainConverges(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "oak-metal", Condition: when(selected("top", "oak")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "legs", OptionID: "metal"}}},
		catalog.RuleSpec{ID: "metal-oak", Condition: when(selected("legs", "metal")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "top", OptionID: "oak"}}},
	)
	set, err := New().Evaluate(cfg, domain.Selection{"top": {"oak"}})
	if err != nil {
		t.Fatalf("mutually consistent forces must converge: %v", err)
	}
	if set.Passes != 2 {
		t.Errorf("passes = %d, want 2", set.Passes)
	}
}

func TestEvaluate_DefaultForceOnEmptyComponent(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "default-finish", Priority: 1,
			Condition: when(domain.Predicate{Op: domain.OpNone, ComponentID: "finish"}),
			Effects:   []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "finish", OptionID: "matte"}}},
		catalog.RuleSpec{ID: "matte-hides-extras", Priority: 2, Condition: when(selected("finish", "matte")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "extras"}}},
	)

	t.Run("empty component gets the default", func(t *testing.T) {
		set, err := New().Evaluate(cfg, domain.Selection{"top": {"oak"}})
		if err != nil {
			t.Fatalf("default force must converge: %v", err)
		}
		if got := set.Effective["finish"]; !reflect.DeepEqual(got, []string{"matte"}) {
			t.Errorf("effective finish = %v, want [matte]", got)
		}
		want := []domain.ForcedSelection{{ComponentID: "finish", OptionID: "matte", RuleID: "default-finish"}}
		if !reflect.DeepEqual(set.ForcedSelections, want) {
			t.Errorf("forced = %+v", set.ForcedSelections)
		}
		if set.IsVisible("extras") {
			t.Errorf("rule depending on the defaulted option did not fire")
		}
		if set.Passes != 2 {
			t.Errorf("passes = %d, want 2", set.Passes)
		}
	})

	t.Run("user choice wins over the default", func(t *testing.T) {
		set, err := New().Evaluate(cfg, domain.Selection{"finish": {"gloss"}})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if len(set.ForcedSelections) != 0 || !reflect.DeepEqual(set.Effective["finish"], []string{"gloss"}) {
			t.Errorf("default applied over a user choice: %+v %v", set.ForcedSelections, set.Effective)
		}
	})

	t.Run("replacing force on single select converges", func(t *testing.T) {
		cfg := testConfiguration(t,
			catalog.RuleSpec{ID: "wood-to-metal", Condition: when(selected("legs", "wood")),
				Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "legs", OptionID: "metal"}}},
		)
		set, err := New().Evaluate(cfg, domain.Selection{"legs": {"wood"}})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got := set.Effective["legs"]; !reflect.DeepEqual(got, []string{"metal"}) {
			t.Errorf("effective legs = %v, want [metal]", got)
		}
	})
}

func TestEvaluate_CatalogDisabledOptions(t *testing.T) {
	off := false
	cfg, err := catalog.Load(catalog.Document{
		ID:        "lamp",
		BasePrice: 100,
		Currency:  "EUR",
		Components: []domain.Component{
			{ID: "shade", Options: []domain.Option{{ID: "paper"}, {ID: "silk", Enabled: &off}, {ID: "glass", Enabled: &off}}},
			{ID: "bulb", Options: []domain.Option{{ID: "led"}, {ID: "halogen"}}},
		},
		Rules: []catalog.RuleSpec{
			{ID: "led-allows-glass", Condition: when(selected("bulb", "led")),
				Effects: []catalog.EffectSpec{{Type: domain.EffectEnableOption, ComponentID: "shade", OptionID: "glass"}}},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	set, err := New().Evaluate(cfg, domain.Selection{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !set.IsDisabled("shade", "silk") || !set.IsDisabled("shade", "glass") || set.IsDisabled("shade", "paper") {
		t.Errorf("catalog availability not applied: %+v", set.DisabledOptions)
	}

	set, err = New().Evaluate(cfg, domain.Selection{"bulb": {"led"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if set.IsDisabled("shade", "glass") {
		t.Errorf("enable_option should override the catalog flag")
	}
	if !set.IsDisabled("shade", "silk") {
		t.Errorf("silk should stay disabled")
	}
}

func TestEvaluate_StopProcessingAndDisabledRules(t *testing.T) {
	off := false
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "off", Priority: 1, Enabled: &off,
			Effects: []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "legs"}}},
		catalog.RuleSpec{ID: "stop", Priority: 2, StopProcessing: true, Condition: when(selected("top", "glass")),
			Effects: []catalog.EffectSpec{{Type: domain.EffectInvalidate, Message: "glass tops are discontinued"}}},
		catalog.RuleSpec{ID: "after", Priority: 3,
			Effects: []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "finish"}}},
	)

	set, err := New().Evaluate(cfg, domain.Selection{"top": {"glass"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !set.IsVisible("legs") {
		t.Errorf("disabled rule must not apply")
	}
	if !set.IsVisible("finish") {
		t.Errorf("rule after stopProcessing must not apply")
	}
	if len(set.Invalidations) != 1 || set.Invalidations[0].RuleID != "stop" {
		t.Errorf("invalidations = %+v", set.Invalidations)
	}

	set, err = New().Evaluate(cfg, domain.Selection{"top": {"oak"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if set.IsVisible("finish") {
		t.Errorf("stop rule did not fire, later rule should apply")
	}
}

func TestEvaluate_Expressions(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "expr", Condition: domain.Condition{Expression: map[string]any{"has": []any{"top", "oak"}}},
			Effects: []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "finish"}}},
	)

	set, err := New(WithExpressionEvaluator(fakeExpressions{})).Evaluate(cfg, domain.Selection{"top": {"oak"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if set.IsVisible("finish") {
		t.Errorf("expression condition should hold")
	}

	set, err = New().Evaluate(cfg, domain.Selection{"top": {"oak"}})
	if err != nil {
		t.Fatalf("evaluate without evaluator: %v", err)
	}
	if !set.IsVisible("finish") {
		t.Errorf("expression without evaluator must not fire")
	}
	if len(set.Log) == 0 || set.Log[0].Action != "error" {
		t.Errorf("expected error step in log, got %+v", set.Log)
	}
}

func TestEvaluate_ModifiersAccumulateInRuleOrder(t *testing.T) {
	cfg := testConfiguration(t,
		catalog.RuleSpec{ID: "second", Priority: 2,
			Effects: []catalog.EffectSpec{{Type: domain.EffectPriceModifier, Amount: 10, Kind: domain.ModifierPercent}}},
		catalog.RuleSpec{ID: "first", Priority: 1,
			Effects: []catalog.EffectSpec{{Type: domain.EffectPriceModifier, Amount: 50, Kind: domain.ModifierFlat}}},
	)
	set, err := New().Evaluate(cfg, domain.Selection{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(set.PriceModifiers) != 2 || set.PriceModifiers[0].RuleID != "first" || set.PriceModifiers[1].RuleID != "second" {
		t.Errorf("modifiers = %+v", set.PriceModifiers)
	}
}
