package infrastructure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/Victor-armando18/product-configurator/internal/domain"
)

// ApplySelectionPatch applies a patch to a selection map and returns the
// component changes it implies, ordered by component id. A JSON array is
// decoded as an RFC 6902 patch, anything else as an RFC 7396 merge patch
// (a null value clears the component).
func ApplySelectionPatch(current domain.Selection, patchData []byte) ([]domain.SelectionChangeRequest, error) {
	originalJSON, err := json.Marshal(selectionDocument(current))
	if err != nil {
		return nil, fmt.Errorf("encode selection: %w", err)
	}

	var modifiedJSON []byte
	if trimmed := bytes.TrimSpace(patchData); len(trimmed) > 0 && trimmed[0] == '[' {
		patch, err := jsonpatch.DecodePatch(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode patch: %w", err)
		}
		modifiedJSON, err = patch.Apply(originalJSON)
		if err != nil {
			return nil, fmt.Errorf("apply patch: %w", err)
		}
	} else {
		modifiedJSON, err = jsonpatch.MergePatch(originalJSON, patchData)
		if err != nil {
			return nil, fmt.Errorf("apply merge patch: %w", err)
		}
	}

	var updated map[string][]string
	if err := json.Unmarshal(modifiedJSON, &updated); err != nil {
		return nil, fmt.Errorf("patched selection is not a component map: %w", err)
	}

	ids := map[string]bool{}
	for c := range current {
		ids[c] = true
	}
	for c := range updated {
		ids[c] = true
	}
	var changes []domain.SelectionChangeRequest
	for c := range ids {
		before, after := current[c], updated[c]
		if (domain.Selection{c: before}).Equal(domain.Selection{c: after}) {
			continue
		}
		changes = append(changes, domain.SelectionChangeRequest{ComponentID: c, OptionIDs: append([]string{}, after...)})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ComponentID < changes[j].ComponentID })
	return changes, nil
}

func selectionDocument(sel domain.Selection) map[string][]string {
	doc := make(map[string][]string, len(sel))
	for c, opts := range sel {
		if len(opts) > 0 {
			doc[c] = opts
		}
	}
	return doc
}
