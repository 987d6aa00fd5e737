package diff

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Differ computes RFC 7396 merge patches between two serializable values.
type Differ struct{}

// Diff returns the merge patch turning before into after, or nil when they
// serialize identically. A nil before yields the full after document.
func (d *Differ) Diff(before, after any) (json.RawMessage, error) {
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("encode after: %w", err)
	}
	if before == nil {
		return afterJSON, nil
	}
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("encode before: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(beforeJSON, afterJSON)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	if string(patch) == "{}" {
		return nil, nil
	}
	return patch, nil
}
