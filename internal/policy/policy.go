// Package policy loads the operator-editable JSONC document describing
// default key-slot flags and overrides for the reserved SHE slot IDs,
// loaded by cmd/shed's --policy flag and consulted when a slot is written
// without an authenticated flags field (LOAD_PLAIN_KEY, and `shed provision`
// when --flags is not given). Grounded in
// calvinalkan-agent-task's config.go, which reads a commented JSON config
// file through tailscale/hujson before unmarshaling it as plain JSON.
package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/barnettlynn/she-core/internal/sheconst"
)

// SlotPolicy is one reserved-slot entry in the policy document.
type SlotPolicy struct {
	Slot  sheconst.Slot `json:"slot"`
	Flags byte          `json:"flags"`
}

// Policy is the decoded policy document: a default flags value applied to
// every slot that has no override (reserved IDs included) plus explicit
// per-slot overrides, most commonly used to mark the reserved IDs
// write-protected or wildcard-enabled out of the box.
type Policy struct {
	DefaultFlags byte         `json:"default_flags"`
	Overrides    []SlotPolicy `json:"overrides,omitempty"`
}

// Default returns the zero-value policy: no flags set anywhere, which is
// the safe starting point for a fresh keystore.
func Default() Policy {
	return Policy{}
}

// FlagsFor resolves the effective flags for slot, applying an override if
// one is configured, falling back to DefaultFlags otherwise.
func (p Policy) FlagsFor(slot sheconst.Slot) byte {
	for _, o := range p.Overrides {
		if o.Slot == slot {
			return o.Flags
		}
	}
	return p.DefaultFlags
}

// Load reads and parses a JSONC policy file at path.
func Load(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	var p Policy
	if err := json.Unmarshal(standardized, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy file: %w", err)
	}
	return p, nil
}
