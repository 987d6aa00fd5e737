package engine

import (
	"fmt"
	"sort"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// forcedMap holds the forced selections of one pass, keyed by the target
// they claim: the component for single-select, component+option otherwise.
type forcedMap map[string]domain.ForcedSelection

func (m forcedMap) equal(other forcedMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if o, ok := other[k]; !ok || o != v {
			return false
		}
	}
	return true
}

// changedRules lists the ids of rules whose forced selections differ
// between m and next, sorted and unique.
func (m forcedMap) changedRules(next forcedMap) []string {
	set := map[string]bool{}
	for k, v := range m {
		if o, ok := next[k]; !ok || o != v {
			set[v.RuleID] = true
			if ok {
				set[o.RuleID] = true
			}
		}
	}
	for k, v := range next {
		if _, ok := m[k]; !ok {
			set[v.RuleID] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// claim remembers which rule last set a target in the current pass.
type claim struct {
	ruleID   string
	priority int
}

type passState struct {
	cfg     *domain.Configuration
	pass    int
	user    domain.Selection
	working domain.Selection
	carried forcedMap

	hidden    map[string]bool
	disabled  map[string]domain.OptionRef
	forced    forcedMap
	claims    map[string]claim
	modifiers []domain.AppliedModifier
	invalid   []domain.Invalidation
	fired     []string
	log       []domain.ExecutionStep
}

func newPassState(cfg *domain.Configuration, user domain.Selection, previous forcedMap, pass int) *passState {
	st := &passState{
		cfg:      cfg,
		pass:     pass,
		user:     user,
		working:  user.Clone(),
		carried:  previous,
		hidden:   map[string]bool{},
		disabled: map[string]domain.OptionRef{},
		forced:   forcedMap{},
		claims:   map[string]claim{},
	}
	for _, c := range cfg.Components {
		for _, o := range c.Options {
			if !o.IsEnabled() {
				st.disabled[c.ID+"\x00"+o.ID] = domain.OptionRef{ComponentID: c.ID, OptionID: o.ID}
			}
		}
	}
	keys := make([]string, 0, len(previous))
	for k := range previous {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := previous[k]
		st.overlay(f.ComponentID, f.OptionID)
	}
	return st
}

// viewFor returns the selection a rule's condition is checked against: the
// working selection with the options that rule forced in the previous pass
// put back to the user's choice.
func (st *passState) viewFor(ruleID string) domain.Selection {
	var own []domain.ForcedSelection
	for _, f := range st.carried {
		if f.RuleID == ruleID {
			own = append(own, f)
		}
	}
	if len(own) == 0 {
		return st.working
	}
	view := st.working.Clone()
	for _, f := range own {
		if st.user.Has(f.ComponentID, f.OptionID) {
			continue
		}
		if st.cfg.IsMulti(f.ComponentID) {
			kept := make([]string, 0, len(view[f.ComponentID]))
			for _, o := range view[f.ComponentID] {
				if o != f.OptionID {
					kept = append(kept, o)
				}
			}
			view[f.ComponentID] = kept
			continue
		}
		// another rule may already have replaced the option in this pass
		if cur := view[f.ComponentID]; len(cur) == 1 && cur[0] == f.OptionID {
			if prev, ok := st.user[f.ComponentID]; ok {
				view[f.ComponentID] = append([]string(nil), prev...)
			} else {
				delete(view, f.ComponentID)
			}
		}
	}
	return view
}

func (st *passState) step(ruleID, action, msg string) {
	st.log = append(st.log, domain.ExecutionStep{
		Phase:   PhaseRules,
		Pass:    st.pass,
		RuleID:  ruleID,
		Action:  action,
		Message: msg,
	})
}

// overlay puts a forced option into the working selection.
func (st *passState) overlay(componentID, optionID string) {
	if st.cfg.IsMulti(componentID) {
		if !st.working.Has(componentID, optionID) {
			st.working[componentID] = st.cfg.NormalizeOptions(componentID,
				append(append([]string(nil), st.working[componentID]...), optionID))
		}
		return
	}
	st.working[componentID] = []string{optionID}
}

// acquire decides whether rule may set target. An earlier rule with a
// strictly lower priority number keeps the target; otherwise the latest
// rule wins.
func (st *passState) acquire(target string, rule domain.Rule, eff domain.Effect) bool {
	if c, ok := st.claims[target]; ok {
		if c.priority < rule.Priority {
			st.step(rule.ID, "overridden", fmt.Sprintf("%s ignored, target held by %s", eff, c.ruleID))
			return false
		}
		if c.ruleID != rule.ID {
			st.step(rule.ID, "override", fmt.Sprintf("%s replaces effect of %s", eff, c.ruleID))
		}
	}
	st.claims[target] = claim{ruleID: rule.ID, priority: rule.Priority}
	return true
}

func (st *passState) applyEffect(rule domain.Rule, eff domain.Effect) {
	switch e := eff.(type) {
	case domain.Hide:
		if st.acquire("visible\x00"+e.ComponentID, rule, eff) {
			st.hidden[e.ComponentID] = true
		}
	case domain.Show:
		if st.acquire("visible\x00"+e.ComponentID, rule, eff) {
			delete(st.hidden, e.ComponentID)
		}
	case domain.DisableOption:
		key := e.ComponentID + "\x00" + e.OptionID
		if st.acquire("enabled\x00"+key, rule, eff) {
			st.disabled[key] = domain.OptionRef{ComponentID: e.ComponentID, OptionID: e.OptionID}
		}
	case domain.EnableOption:
		key := e.ComponentID + "\x00" + e.OptionID
		if st.acquire("enabled\x00"+key, rule, eff) {
			delete(st.disabled, key)
		}
	case domain.ForceSelect:
		key := e.ComponentID
		if st.cfg.IsMulti(e.ComponentID) {
			key += "\x00" + e.OptionID
		}
		if !st.acquire("forced\x00"+key, rule, eff) {
			return
		}
		st.forced[key] = domain.ForcedSelection{ComponentID: e.ComponentID, OptionID: e.OptionID, RuleID: rule.ID}
		st.overlay(e.ComponentID, e.OptionID)
	case domain.PriceModifier:
		st.modifiers = append(st.modifiers, domain.AppliedModifier{
			RuleID:    rule.ID,
			Amount:    e.Amount,
			Kind:      e.Mode,
			AppliesTo: e.AppliesTo,
			Label:     e.Label,
		})
	case domain.Invalidate:
		st.invalid = append(st.invalid, domain.Invalidation{RuleID: rule.ID, Message: e.Message})
	default:
		st.step(rule.ID, "error", fmt.Sprintf("unsupported effect %T", eff))
		return
	}
	st.step(rule.ID, "applied", eff.String())
}

// effectSet freezes the pass into an EffectSet with sorted, stable slices.
func (st *passState) effectSet(log []domain.ExecutionStep) *domain.EffectSet {
	set := &domain.EffectSet{
		HiddenComponents: make([]string, 0, len(st.hidden)),
		DisabledOptions:  make([]domain.OptionRef, 0, len(st.disabled)),
		ForcedSelections: make([]domain.ForcedSelection, 0, len(st.forced)),
		PriceModifiers:   append([]domain.AppliedModifier{}, st.modifiers...),
		Invalidations:    append([]domain.Invalidation{}, st.invalid...),
		FiredRules:       append([]string{}, st.fired...),
		Effective:        domain.Selection{},
		Passes:           st.pass,
		Log:              log,
	}
	for id := range st.hidden {
		set.HiddenComponents = append(set.HiddenComponents, id)
	}
	sort.Strings(set.HiddenComponents)

	for _, ref := range st.disabled {
		set.DisabledOptions = append(set.DisabledOptions, ref)
	}
	sort.Slice(set.DisabledOptions, func(i, j int) bool {
		a, b := set.DisabledOptions[i], set.DisabledOptions[j]
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		return a.OptionID < b.OptionID
	})

	for _, f := range st.forced {
		set.ForcedSelections = append(set.ForcedSelections, f)
	}
	sort.Slice(set.ForcedSelections, func(i, j int) bool {
		a, b := set.ForcedSelections[i], set.ForcedSelections[j]
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		return a.OptionID < b.OptionID
	})

	for comp, opts := range st.working {
		if norm := st.cfg.NormalizeOptions(comp, opts); len(norm) > 0 {
			set.Effective[comp] = norm
		}
	}
	return set
}
