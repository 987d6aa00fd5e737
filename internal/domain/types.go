package domain

// --- Catalog ---

// Configuration is the root catalog entity of a configurable product. It is
// immutable once built and may be shared read-only by any number of sessions.
type Configuration struct {
	ID                string             `json:"id"`
	Name              string             `json:"name,omitempty"`
	BasePrice         int64              `json:"basePrice"`
	Currency          string             `json:"currency"`
	Components        []Component        `json:"components"`
	Rules             []Rule             `json:"-"`
	QuantityDiscounts []QuantityDiscount `json:"quantityDiscounts,omitempty"`

	components map[string]int
	options    map[string]optionRef
}

type optionRef struct {
	component int
	option    int
}

// Component is a configurable slot of the product (e.g. "frame color").
type Component struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	SortOrder     int      `json:"sortOrder"`
	Required      bool     `json:"required"`
	AllowMultiple bool     `json:"allowMultiple"`
	MinSelections int      `json:"minSelections,omitempty"`
	MaxSelections int      `json:"maxSelections,omitempty"`
	Options       []Option `json:"options"`
}

// Option is one selectable value of a Component. Enabled and InStock
// default to true when absent.
type Option struct {
	ID             string            `json:"id"`
	ComponentID    string            `json:"componentId,omitempty"`
	Name           string            `json:"name,omitempty"`
	BasePriceDelta int64             `json:"basePriceDelta"`
	IsDefault      bool              `json:"isDefault"`
	Enabled        *bool             `json:"enabled,omitempty"`
	InStock        *bool             `json:"inStock,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsEnabled reports whether the catalog offers the option. Rules may still
// disable or re-enable it.
func (o Option) IsEnabled() bool { return o.Enabled == nil || *o.Enabled }

// IsInStock reports whether the option can ship now. Out-of-stock options
// stay selectable and raise a validation warning.
func (o Option) IsInStock() bool { return o.InStock == nil || *o.InStock }

// QuantityDiscount lowers the unit price by Percent once the ordered
// quantity reaches MinQuantity.
type QuantityDiscount struct {
	MinQuantity int   `json:"minQuantity"`
	Percent     int64 `json:"percent"`
}

// --- Rules ---

// Rule is one conditional entry of the ordered rule list.
type Rule struct {
	ID             string
	Name           string
	Priority       int
	Enabled        bool
	StopProcessing bool
	Condition      Condition
	Effects        []Effect

	// Order is the declaration index inside the catalog, used to break
	// priority ties.
	Order int
}

// Condition is a conjunction of predicates, optionally AND-ed with a
// JsonLogic expression. An empty condition always holds.
type Condition struct {
	All        []Predicate    `json:"all,omitempty"`
	Expression map[string]any `json:"expression,omitempty"`
}

// IsEmpty reports whether the condition has neither predicates nor expression.
func (c Condition) IsEmpty() bool {
	return len(c.All) == 0 && len(c.Expression) == 0
}

type PredicateOperator string

const (
	OpSelected    PredicateOperator = "selected"
	OpNotSelected PredicateOperator = "not_selected"
	OpIn          PredicateOperator = "in"
	OpNotIn       PredicateOperator = "not_in"
	OpAny         PredicateOperator = "any"
	OpNone        PredicateOperator = "none"
)

// Predicate is a single test against one component's selection.
type Predicate struct {
	Op          PredicateOperator `json:"op"`
	ComponentID string            `json:"componentId"`
	OptionID    string            `json:"optionId,omitempty"`
	OptionIDs   []string          `json:"optionIds,omitempty"`
}

// NewConfiguration assembles a Configuration and builds its lookup indexes.
// The inputs are expected to be validated already (see package catalog).
func NewConfiguration(id, name string, basePrice int64, currency string, components []Component, rules []Rule, discounts []QuantityDiscount) *Configuration {
	cfg := &Configuration{
		ID:                id,
		Name:              name,
		BasePrice:         basePrice,
		Currency:          currency,
		Components:        components,
		Rules:             rules,
		QuantityDiscounts: discounts,
		components:        make(map[string]int, len(components)),
		options:           make(map[string]optionRef),
	}
	for ci, c := range components {
		cfg.components[c.ID] = ci
		for oi, o := range c.Options {
			cfg.options[optionKey(c.ID, o.ID)] = optionRef{component: ci, option: oi}
		}
	}
	return cfg
}

// Component returns the component with the given id.
func (c *Configuration) Component(id string) (*Component, bool) {
	i, ok := c.components[id]
	if !ok {
		return nil, false
	}
	return &c.Components[i], true
}

// Option returns the option optionID of component componentID.
func (c *Configuration) Option(componentID, optionID string) (*Option, bool) {
	ref, ok := c.options[optionKey(componentID, optionID)]
	if !ok {
		return nil, false
	}
	return &c.Components[ref.component].Options[ref.option], true
}

// optionIndex returns the declaration index of an option inside its
// component, or -1.
func (c *Configuration) optionIndex(componentID, optionID string) int {
	ref, ok := c.options[optionKey(componentID, optionID)]
	if !ok {
		return -1
	}
	return ref.option
}

// IsMulti reports whether the component accepts more than one option.
func (c *Configuration) IsMulti(componentID string) bool {
	comp, ok := c.Component(componentID)
	return ok && comp.AllowMultiple
}

func optionKey(componentID, optionID string) string {
	return componentID + "\x00" + optionID
}
