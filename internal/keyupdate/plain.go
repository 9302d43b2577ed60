package keyupdate

import (
	"context"

	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
)

// LoadPlainKey is the unauthenticated direct key write spec.md's opcode
// table names (LOAD_PLAIN_KEY) but never specifies an algorithm for
// (SPEC_FULL.md §4). It carries the same write-protect enforcement as
// LOAD_KEY's write step, skips M1..M5 entirely, and always targets
// RAM_KEY_ID: that is the slot the plaintext path has any business filling,
// since every other slot requires the authenticated protocol to set
// replay/wildcard metadata sanely. Since there is no M2 to derive flags
// from, the written record's flags come from p.Policy's configured default
// or per-slot override for RAM_KEY_ID (internal/policy), the operator-side
// equivalent of LOAD_KEY's authenticated flags field.
func (p *Protocol) LoadPlainKey(ctx context.Context, key [sheconst.KeySize]byte) error {
	existing, err := p.Store.ReadKey(ctx, keystore.ID{Client: p.Client, Slot: sheconst.RAMKeyID})
	if err != nil && err != keystore.ErrNotFound {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}
	if err == nil && existing.Metadata.Flags&sheconst.FlagWriteProtect != 0 {
		return sheerr.New(sheerr.WriteProtected)
	}

	rec := keystore.Record{
		ID:       keystore.ID{Client: p.Client, Slot: sheconst.RAMKeyID},
		Metadata: keystore.Metadata{Flags: p.Policy.FlagsFor(sheconst.RAMKeyID)},
		Key:      key,
	}
	if err := p.Store.CacheKey(ctx, rec); err != nil {
		return sheerr.Wrap(sheerr.KeyUpdateError, err)
	}
	return nil
}
