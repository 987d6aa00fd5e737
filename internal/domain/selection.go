package domain

import (
	"sort"
)

// Selection maps a component id to its chosen option ids. Option lists are
// kept in catalog declaration order and never contain duplicates.
type Selection map[string][]string

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for c, opts := range s {
		if len(opts) == 0 {
			continue
		}
		out[c] = append([]string(nil), opts...)
	}
	return out
}

// Has reports whether optionID is selected on componentID.
func (s Selection) Has(componentID, optionID string) bool {
	for _, o := range s[componentID] {
		if o == optionID {
			return true
		}
	}
	return false
}

// Count returns the number of options selected on componentID.
func (s Selection) Count(componentID string) int {
	return len(s[componentID])
}

// Equal compares two selections, treating a missing component and an empty
// option list as the same thing.
func (s Selection) Equal(other Selection) bool {
	for c, opts := range s {
		if !sameOptions(opts, other[c]) {
			return false
		}
	}
	for c, opts := range other {
		if _, ok := s[c]; !ok && len(opts) > 0 {
			return false
		}
	}
	return true
}

// ToMap exposes the selection as plain data for expression evaluation:
// {"selections": {componentId: [optionId, ...]}}.
func (s Selection) ToMap() map[string]any {
	sel := make(map[string]any, len(s))
	for c, opts := range s {
		items := make([]any, len(opts))
		for i, o := range opts {
			items[i] = o
		}
		sel[c] = items
	}
	return map[string]any{"selections": sel}
}

// ComponentIDs returns the ids of components with at least one option, sorted.
func (s Selection) ComponentIDs() []string {
	ids := make([]string, 0, len(s))
	for c, opts := range s {
		if len(opts) > 0 {
			ids = append(ids, c)
		}
	}
	sort.Strings(ids)
	return ids
}

func sameOptions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NormalizeOptions deduplicates optionIDs and orders them by their
// declaration order in the component. Unknown ids are dropped.
func (c *Configuration) NormalizeOptions(componentID string, optionIDs []string) []string {
	seen := make(map[string]bool, len(optionIDs))
	out := make([]string, 0, len(optionIDs))
	for _, id := range optionIDs {
		if seen[id] || c.optionIndex(componentID, id) < 0 {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.optionIndex(componentID, out[i]) < c.optionIndex(componentID, out[j])
	})
	return out
}

// DefaultSelection returns the catalog defaults: options flagged isDefault on
// required components. Single-select components take the first default only.
func (c *Configuration) DefaultSelection() Selection {
	sel := Selection{}
	for _, comp := range c.Components {
		if !comp.Required {
			continue
		}
		for _, o := range comp.Options {
			if !o.IsDefault {
				continue
			}
			sel[comp.ID] = append(sel[comp.ID], o.ID)
			if !comp.AllowMultiple {
				break
			}
		}
	}
	return sel
}

// ExportedChoice is what downstream scene/export pipelines receive: the
// chosen option and its opaque metadata, without any rule state.
type ExportedChoice struct {
	ComponentID string            `json:"componentId"`
	OptionID    string            `json:"optionId"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Export lists the selection in catalog order together with option metadata.
func (c *Configuration) Export(sel Selection) []ExportedChoice {
	var out []ExportedChoice
	for _, comp := range c.Components {
		for _, o := range comp.Options {
			if !sel.Has(comp.ID, o.ID) {
				continue
			}
			var meta map[string]string
			if len(o.Metadata) > 0 {
				meta = make(map[string]string, len(o.Metadata))
				for k, v := range o.Metadata {
					meta[k] = v
				}
			}
			out = append(out, ExportedChoice{ComponentID: comp.ID, OptionID: o.ID, Metadata: meta})
		}
	}
	return out
}

// ExportSelection hands the effective selection of a snapshot to export
// pipelines.
func (s Snapshot) ExportSelection(cfg *Configuration) []ExportedChoice {
	return cfg.Export(s.Selection.Effective)
}
