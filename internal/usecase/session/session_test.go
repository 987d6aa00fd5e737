package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/catalog"
	"github.com/Victor-armando18/product-configurator/internal/domain/engine"
	"github.com/Victor-armando18/product-configurator/internal/domain/pricing"
)

func selected(comp, opt string) domain.Predicate {
	return domain.Predicate{Op: domain.OpSelected, ComponentID: comp, OptionID: opt}
}

func bikeConfiguration(t *testing.T) *domain.Configuration {
	t.Helper()
	cfg, err := catalog.Load(catalog.Document{
		ID:        "bike",
		BasePrice: 1000,
		Currency:  "EUR",
		Components: []domain.Component{
			{ID: "frame", SortOrder: 1, Required: true, Options: []domain.Option{
				{ID: "steel", IsDefault: true}, {ID: "alu", BasePriceDelta: 200}, {ID: "carbon", BasePriceDelta: 900},
			}},
			{ID: "color", SortOrder: 2, Required: true, Options: []domain.Option{
				{ID: "black", IsDefault: true}, {ID: "red", BasePriceDelta: 15},
			}},
			{ID: "drivetrain", SortOrder: 3, Required: true, Options: []domain.Option{
				{ID: "hub", IsDefault: true}, {ID: "ebike", BasePriceDelta: 1200},
			}},
			{ID: "battery", SortOrder: 4, Required: true, Options: []domain.Option{
				{ID: "standard"}, {ID: "extended", BasePriceDelta: 150},
			}},
			{ID: "accessories", SortOrder: 5, AllowMultiple: true, MaxSelections: 2, Options: []domain.Option{
				{ID: "bell", BasePriceDelta: 5}, {ID: "rack", BasePriceDelta: 35}, {ID: "lights", BasePriceDelta: 25},
			}},
			{ID: "mode", SortOrder: 6, Options: []domain.Option{{ID: "a"}, {ID: "b"}}},
			{ID: "sub", SortOrder: 7, Options: []domain.Option{{ID: "x"}, {ID: "y"}}},
		},
		Rules: []catalog.RuleSpec{
			{ID: "battery-only-ebike", Priority: 1,
				Condition: domain.Condition{All: []domain.Predicate{{Op: domain.OpNotSelected, ComponentID: "drivetrain", OptionID: "ebike"}}},
				Effects:   []catalog.EffectSpec{{Type: domain.EffectHide, ComponentID: "battery"}}},
			{ID: "carbon-no-rack", Priority: 1, Condition: domain.Condition{All: []domain.Predicate{selected("frame", "carbon")}},
				Effects: []catalog.EffectSpec{{Type: domain.EffectDisableOption, ComponentID: "accessories", OptionID: "rack"}}},
			{ID: "ebike-lights", Priority: 2, Condition: domain.Condition{All: []domain.Predicate{selected("drivetrain", "ebike")}},
				Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "accessories", OptionID: "lights"}}},
			{ID: "a-forces-x", Priority: 3, Condition: domain.Condition{All: []domain.Predicate{selected("mode", "a")}},
				Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "sub", OptionID: "x"}}},
			{ID: "x-forces-b", Priority: 4, Condition: domain.Condition{All: []domain.Predicate{selected("sub", "x")}},
				Effects: []catalog.EffectSpec{{Type: domain.EffectForceSelect, ComponentID: "mode", OptionID: "b"}}},
		},
	})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cfg
}

func start(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := Start(bikeConfiguration(t), append([]Option{WithID("s-1")}, opts...)...)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func apply(t *testing.T, s *Session, comp string, opts ...string) domain.Snapshot {
	t.Helper()
	snap, err := s.ApplySelection(comp, opts)
	if err != nil {
		t.Fatalf("apply %s=%v: %v", comp, opts, err)
	}
	return snap
}

func TestStart(t *testing.T) {
	s := start(t)
	snap := s.Snapshot()
	if snap.Status != domain.StatusActive || snap.Revision != 0 || snap.SessionID != "s-1" {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	want := domain.Selection{"frame": {"steel"}, "color": {"black"}, "drivetrain": {"hub"}}
	if !snap.Selection.Selections.Equal(want) {
		t.Errorf("defaults = %v, want %v", snap.Selection.Selections, want)
	}
	if !snap.Validation.Valid {
		t.Errorf("defaults should be valid: %+v", snap.Validation.Errors)
	}
	if snap.Price.Total != 1000 || snap.Price.Currency != "EUR" {
		t.Errorf("price = %+v", snap.Price)
	}
	for _, id := range snap.Selection.VisibleComponents {
		if id == "battery" {
			t.Errorf("battery should be hidden without ebike")
		}
	}

	if _, err := Start(bikeConfiguration(t), WithQuantity(0)); !errors.Is(err, domain.ErrSelectionRejected) {
		t.Errorf("expected invalid quantity rejection, got %v", err)
	}
}

func TestApplySelection_Idempotent(t *testing.T) {
	s := start(t)
	first := apply(t, s, "frame", "alu")
	second := apply(t, s, "frame", "alu")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated selection changed the snapshot:\n%+v\n%+v", first, second)
	}
	if first.Revision != 1 {
		t.Errorf("revision = %d, want 1", first.Revision)
	}
	if first.Price.Subtotal != 1200 {
		t.Errorf("subtotal = %d, want 1200", first.Price.Subtotal)
	}

	dup := apply(t, s, "accessories", "bell", "bell")
	if !reflect.DeepEqual(dup.Selection.Selections["accessories"], []string{"bell"}) {
		t.Errorf("duplicates should collapse: %v", dup.Selection.Selections["accessories"])
	}
}

func TestApplySelection_Rejections(t *testing.T) {
	s := start(t)
	apply(t, s, "frame", "carbon")
	before := s.Snapshot()

	cases := []struct {
		name   string
		comp   string
		opts   []string
		reason domain.RejectReason
	}{
		{"unknown component", "wheels", []string{"x"}, domain.RejectUnknownComponent},
		{"unknown option", "frame", []string{"titanium"}, domain.RejectUnknownOption},
		{"option of another component", "frame", []string{"red"}, domain.RejectUnknownOption},
		{"hidden component", "battery", []string{"standard"}, domain.RejectHiddenComponent},
		{"disabled option", "accessories", []string{"rack"}, domain.RejectDisabledOption},
		{"single select with two", "color", []string{"black", "red"}, domain.RejectWrongMultiplicity},
		{"disabled option among several", "accessories", []string{"bell", "lights", "bell", "rack"}, domain.RejectDisabledOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ApplySelection(tc.comp, tc.opts)
			var re *domain.SelectionRejectedError
			if !errors.As(err, &re) {
				t.Fatalf("expected SelectionRejectedError, got %v", err)
			}
			if re.Reason != tc.reason {
				t.Errorf("reason = %s, want %s", re.Reason, tc.reason)
			}
			if !errors.Is(err, domain.ErrSelectionRejected) {
				t.Errorf("error should wrap ErrSelectionRejected")
			}
			if !reflect.DeepEqual(before, s.Snapshot()) {
				t.Errorf("rejected change modified the session")
			}
		})
	}

	apply(t, s, "frame", "steel")
	if _, err := s.ApplySelection("accessories", []string{"bell", "rack", "lights"}); err == nil {
		t.Fatalf("expected wrong multiplicity for three accessories")
	} else {
		var re *domain.SelectionRejectedError
		if !errors.As(err, &re) || re.Reason != domain.RejectWrongMultiplicity {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestApplySelection_ClearAndForce(t *testing.T) {
	s := start(t)
	snap := apply(t, s, "drivetrain", "ebike")
	if !snap.Selection.Effective.Has("accessories", "lights") {
		t.Errorf("ebike should force lights: %v", snap.Selection.Effective)
	}
	if snap.Selection.Selections.Has("accessories", "lights") {
		t.Errorf("forced option must not leak into user selections")
	}
	if snap.Validation.Valid || snap.Validation.Errors[0].ComponentID != "battery" {
		t.Errorf("battery should now be required: %+v", snap.Validation)
	}

	snap = apply(t, s, "color")
	if snap.Selection.Selections.Count("color") != 0 {
		t.Errorf("empty list should clear the component")
	}
	if snap.Validation.Valid {
		t.Errorf("cleared required component should be invalid")
	}
}

func TestApplySelection_RuleCycleLeavesStateUnchanged(t *testing.T) {
	s := start(t)
	before := s.Snapshot()
	_, err := s.ApplySelection("mode", []string{"a"})
	if !errors.Is(err, domain.ErrRuleCycle) {
		t.Fatalf("expected rule cycle, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Errorf("failed evaluation modified the session")
	}
}

func TestComplete(t *testing.T) {
	s := start(t)
	apply(t, s, "drivetrain", "ebike")

	if _, err := s.Complete(); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	apply(t, s, "battery", "standard")

	snap, err := s.Complete()
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if snap.Status != domain.StatusCompleted {
		t.Errorf("status = %s", snap.Status)
	}

	_, err = s.Complete()
	if !errors.Is(err, domain.ErrSessionAlreadyCompleted) || !errors.Is(err, domain.ErrSessionState) {
		t.Fatalf("expected ErrSessionAlreadyCompleted, got %v", err)
	}
	_, err = s.ApplySelection("color", []string{"red"})
	var se *domain.SessionStateError
	if !errors.As(err, &se) || se.State != domain.StatusCompleted {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
	if _, err := s.Abandon(); !errors.Is(err, domain.ErrSessionState) {
		t.Fatalf("completed sessions cannot be abandoned, got %v", err)
	}
}

func TestAbandon(t *testing.T) {
	s := start(t)
	snap, err := s.Abandon()
	if err != nil || snap.Status != domain.StatusAbandoned {
		t.Fatalf("abandon: %+v %v", snap, err)
	}
	if _, err := s.Abandon(); err != nil {
		t.Errorf("second abandon should be a no-op, got %v", err)
	}
	if _, err := s.SetQuantity(2); !errors.Is(err, domain.ErrSessionState) {
		t.Errorf("expected state error, got %v", err)
	}
}

type percentTax struct{ pct int64 }

func (p percentTax) ComputeTax(subtotal int64, _, jurisdiction string) (int64, error) {
	if jurisdiction == "" {
		return 0, nil
	}
	return subtotal * p.pct / 100, nil
}

func TestQuantityAndJurisdiction(t *testing.T) {
	pipeline := engine.NewPipeline(engine.New(), pricing.NewCalculator(percentTax{pct: 10}))
	s := start(t, WithPipeline(pipeline))

	snap, err := s.SetQuantity(3)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if snap.Price.Subtotal != 3000 || snap.Revision != 1 {
		t.Errorf("unexpected snapshot: rev %d price %+v", snap.Revision, snap.Price)
	}
	if _, err := s.SetQuantity(0); !errors.Is(err, domain.ErrSelectionRejected) {
		t.Errorf("expected invalid quantity, got %v", err)
	}

	snap, err = s.SetJurisdiction("PT")
	if err != nil {
		t.Fatalf("set jurisdiction: %v", err)
	}
	if snap.Price.TaxAmount != 300 || snap.Price.Total != 3300 || snap.Jurisdiction != "PT" {
		t.Errorf("unexpected price: %+v", snap.Price)
	}

	again, _ := s.SetJurisdiction("PT")
	if again.Revision != snap.Revision {
		t.Errorf("unchanged jurisdiction bumped the revision")
	}
}

func TestRestore(t *testing.T) {
	s := start(t, WithJurisdiction("PT"))
	apply(t, s, "frame", "alu")
	apply(t, s, "accessories", "bell", "lights")
	stored := s.Snapshot()

	restored, err := Restore(s.Configuration(), stored)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(stored, restored.Snapshot()) {
		t.Fatalf("restored snapshot differs:\n%+v\n%+v", stored, restored.Snapshot())
	}

	next := apply(t, restored, "color", "red")
	if next.Revision != stored.Revision+1 {
		t.Errorf("revision = %d, want %d", next.Revision, stored.Revision+1)
	}

	stored.ConfigurationID = "desk"
	if _, err := Restore(s.Configuration(), stored); err == nil {
		t.Errorf("expected configuration mismatch")
	}
	stored.ConfigurationID = "bike"
	stored.Status = domain.StatusInitializing
	if _, err := Restore(s.Configuration(), stored); !errors.Is(err, domain.ErrSessionState) {
		t.Errorf("expected state error, got %v", err)
	}
}

func TestExportSelection(t *testing.T) {
	s := start(t)
	snap := apply(t, s, "drivetrain", "ebike")
	choices := snap.ExportSelection(s.Configuration())
	var ids []string
	for _, c := range choices {
		ids = append(ids, c.ComponentID+"/"+c.OptionID)
	}
	want := []string{"frame/steel", "color/black", "drivetrain/ebike", "accessories/lights"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("exported %v, want %v", ids, want)
	}
}
