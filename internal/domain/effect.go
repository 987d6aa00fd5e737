package domain

import "fmt"

type EffectKind string

const (
	EffectHide          EffectKind = "hide"
	EffectShow          EffectKind = "show"
	EffectDisableOption EffectKind = "disable_option"
	EffectEnableOption  EffectKind = "enable_option"
	EffectForceSelect   EffectKind = "force_select"
	EffectPriceModifier EffectKind = "price_modifier"
	EffectInvalidate    EffectKind = "invalidate"
)

// Effect is an instruction emitted by a rule whose condition holds. The set
// of implementations is closed: Hide, Show, DisableOption, EnableOption,
// ForceSelect, PriceModifier and Invalidate.
type Effect interface {
	Kind() EffectKind
	fmt.Stringer
	effect()
}

type Hide struct {
	ComponentID string
}

type Show struct {
	ComponentID string
}

type DisableOption struct {
	ComponentID string
	OptionID    string
}

type EnableOption struct {
	ComponentID string
	OptionID    string
}

// ForceSelect overrides the user's choice for a component.
type ForceSelect struct {
	ComponentID string
	OptionID    string
}

type ModifierKind string

const (
	ModifierFlat    ModifierKind = "flat"
	ModifierPercent ModifierKind = "percent"
)

// AppliesToTotal targets the running subtotal instead of a single component.
const AppliesToTotal = "total"

// PriceModifier changes the price by a signed flat amount (minor units) or a
// signed whole percentage.
type PriceModifier struct {
	Amount    int64
	Mode      ModifierKind
	AppliesTo string
	Label     string
}

type Invalidate struct {
	Message string
}

func (Hide) Kind() EffectKind          { return EffectHide }
func (Show) Kind() EffectKind          { return EffectShow }
func (DisableOption) Kind() EffectKind { return EffectDisableOption }
func (EnableOption) Kind() EffectKind  { return EffectEnableOption }
func (ForceSelect) Kind() EffectKind   { return EffectForceSelect }
func (PriceModifier) Kind() EffectKind { return EffectPriceModifier }
func (Invalidate) Kind() EffectKind    { return EffectInvalidate }

func (e Hide) String() string { return fmt.Sprintf("hide(%s)", e.ComponentID) }
func (e Show) String() string { return fmt.Sprintf("show(%s)", e.ComponentID) }
func (e DisableOption) String() string {
	return fmt.Sprintf("disableOption(%s, %s)", e.ComponentID, e.OptionID)
}
func (e EnableOption) String() string {
	return fmt.Sprintf("enableOption(%s, %s)", e.ComponentID, e.OptionID)
}
func (e ForceSelect) String() string {
	return fmt.Sprintf("forceSelect(%s, %s)", e.ComponentID, e.OptionID)
}
func (e PriceModifier) String() string {
	return fmt.Sprintf("priceModifier(%d, %s, %s)", e.Amount, e.Mode, e.AppliesTo)
}
func (e Invalidate) String() string { return fmt.Sprintf("invalidate(%q)", e.Message) }

func (Hide) effect()          {}
func (Show) effect()          {}
func (DisableOption) effect() {}
func (EnableOption) effect()  {}
func (ForceSelect) effect()   {}
func (PriceModifier) effect() {}
func (Invalidate) effect()    {}
