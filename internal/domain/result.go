package domain

import "encoding/json"

// --- Rule evaluation output ---

type OptionRef struct {
	ComponentID string `json:"componentId"`
	OptionID    string `json:"optionId"`
}

type ForcedSelection struct {
	ComponentID string `json:"componentId"`
	OptionID    string `json:"optionId"`
	RuleID      string `json:"ruleId"`
}

type AppliedModifier struct {
	RuleID    string       `json:"ruleId"`
	Amount    int64        `json:"amount"`
	Kind      ModifierKind `json:"kind"`
	AppliesTo string       `json:"appliesTo"`
	Label     string       `json:"label,omitempty"`
}

type Invalidation struct {
	RuleID  string `json:"ruleId"`
	Message string `json:"message"`
}

// ExecutionStep is one audit line of a pipeline run.
type ExecutionStep struct {
	Phase   string `json:"phase"`
	Pass    int    `json:"pass,omitempty"`
	RuleID  string `json:"ruleId,omitempty"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// EffectSet is the accumulated result of one rule evaluation. Slices are
// kept sorted (or in rule order for modifiers and invalidations) so equal
// inputs always produce equal sets.
type EffectSet struct {
	HiddenComponents []string          `json:"hiddenComponents"`
	DisabledOptions  []OptionRef       `json:"disabledOptions"`
	ForcedSelections []ForcedSelection `json:"forcedSelections"`
	PriceModifiers   []AppliedModifier `json:"priceModifiers"`
	Invalidations    []Invalidation    `json:"invalidations"`
	FiredRules       []string          `json:"firedRules"`
	Effective        Selection         `json:"effectiveSelection"`
	Passes           int               `json:"passes"`
	Log              []ExecutionStep   `json:"log,omitempty"`
}

// IsVisible reports whether the component is visible after rule effects.
func (e *EffectSet) IsVisible(componentID string) bool {
	for _, id := range e.HiddenComponents {
		if id == componentID {
			return false
		}
	}
	return true
}

// IsDisabled reports whether the option is disabled after rule effects.
func (e *EffectSet) IsDisabled(componentID, optionID string) bool {
	for _, ref := range e.DisabledOptions {
		if ref.ComponentID == componentID && ref.OptionID == optionID {
			return true
		}
	}
	return false
}

// Forced returns the forced selections on a component.
func (e *EffectSet) Forced(componentID string) []ForcedSelection {
	var out []ForcedSelection
	for _, f := range e.ForcedSelections {
		if f.ComponentID == componentID {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of the set.
func (e *EffectSet) Clone() *EffectSet {
	if e == nil {
		return nil
	}
	out := &EffectSet{
		HiddenComponents: append([]string(nil), e.HiddenComponents...),
		DisabledOptions:  append([]OptionRef(nil), e.DisabledOptions...),
		ForcedSelections: append([]ForcedSelection(nil), e.ForcedSelections...),
		PriceModifiers:   append([]AppliedModifier(nil), e.PriceModifiers...),
		Invalidations:    append([]Invalidation(nil), e.Invalidations...),
		FiredRules:       append([]string(nil), e.FiredRules...),
		Effective:        e.Effective.Clone(),
		Passes:           e.Passes,
		Log:              append([]ExecutionStep(nil), e.Log...),
	}
	return out
}

// SelectionState is the user's choices plus the flags derived from rules.
type SelectionState struct {
	Selections        Selection         `json:"selections"`
	Effective         Selection         `json:"effective"`
	VisibleComponents []string          `json:"visibleComponents"`
	DisabledOptions   []OptionRef       `json:"disabledOptions"`
	ForcedSelections  []ForcedSelection `json:"forcedSelections"`
}

// NewSelectionState derives the presentation state of a selection from an
// effect set. Visible components are listed in catalog order.
func NewSelectionState(cfg *Configuration, user Selection, effects *EffectSet) SelectionState {
	st := SelectionState{
		Selections:        user.Clone(),
		Effective:         effects.Effective.Clone(),
		VisibleComponents: make([]string, 0, len(cfg.Components)),
		DisabledOptions:   append([]OptionRef(nil), effects.DisabledOptions...),
		ForcedSelections:  append([]ForcedSelection(nil), effects.ForcedSelections...),
	}
	for _, c := range cfg.Components {
		if effects.IsVisible(c.ID) {
			st.VisibleComponents = append(st.VisibleComponents, c.ID)
		}
	}
	return st
}

// --- Validation ---

const (
	CodeRequiredMissing   = "REQUIRED_MISSING"
	CodeOptionDisabled    = "OPTION_DISABLED"
	CodeRuleViolation     = "RULE_VIOLATION"
	CodeTooManySelections = "TOO_MANY_SELECTIONS"
	CodeTooFewSelections  = "TOO_FEW_SELECTIONS"

	CodeOutOfStock = "OUT_OF_STOCK"
)

type ValidationError struct {
	Code        string `json:"code"`
	ComponentID string `json:"componentId,omitempty"`
	OptionID    string `json:"optionId,omitempty"`
	RuleID      string `json:"ruleId,omitempty"`
	Message     string `json:"message"`
}

// ValidationResult lists blocking errors and advisory warnings. Warnings
// never affect Valid.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// --- Pricing ---

type LineKind string

const (
	LineBase             LineKind = "base"
	LineOption           LineKind = "option"
	LineModifier         LineKind = "modifier"
	LineQuantityDiscount LineKind = "quantity_discount"
	LineQuantity         LineKind = "quantity"
	LineClamp            LineKind = "clamp"
)

type LineItem struct {
	Label       string   `json:"label"`
	Amount      int64    `json:"amount"`
	Kind        LineKind `json:"kind"`
	RuleID      string   `json:"ruleId,omitempty"`
	ComponentID string   `json:"componentId,omitempty"`
	OptionID    string   `json:"optionId,omitempty"`
}

// PriceBreakdown is an itemized quote. All amounts are minor currency units.
type PriceBreakdown struct {
	Currency     string     `json:"currency"`
	Lines        []LineItem `json:"lines"`
	UnitSubtotal int64      `json:"unitSubtotal"`
	Quantity     int        `json:"quantity"`
	Subtotal     int64      `json:"subtotal"`
	TaxAmount    int64      `json:"taxAmount"`
	Total        int64      `json:"total"`
}

// --- Session ---

type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusActive       SessionStatus = "active"
	StatusCompleted    SessionStatus = "completed"
	StatusAbandoned    SessionStatus = "abandoned"
)

// SelectionChangeRequest replaces the options chosen for one component.
type SelectionChangeRequest struct {
	ComponentID string   `json:"componentId"`
	OptionIDs   []string `json:"optionIds"`
}

// Snapshot is the complete, serializable outcome of a session at a revision.
type Snapshot struct {
	SessionID       string           `json:"sessionId"`
	ConfigurationID string           `json:"configurationId"`
	Status          SessionStatus    `json:"status"`
	Revision        int              `json:"revision"`
	Quantity        int              `json:"quantity"`
	Jurisdiction    string           `json:"jurisdiction,omitempty"`
	Selection       SelectionState   `json:"selectionState"`
	Effects         EffectSet        `json:"effectSet"`
	Validation      ValidationResult `json:"validationResult"`
	Price           PriceBreakdown   `json:"priceBreakdown"`
}

// SessionResult is what the session service returns for every call: the
// snapshot plus the merge patch from the previously stored snapshot.
type SessionResult struct {
	Snapshot    Snapshot        `json:"snapshot"`
	Delta       json.RawMessage `json:"delta,omitempty"`
	ServerDelta bool            `json:"serverDelta"`
}
