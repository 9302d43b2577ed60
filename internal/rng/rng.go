// Package rng implements the SHE deterministic PRNG (spec.md §4.G): init
// from a persisted seed, ratcheted CBC-driven output generation, and
// entropy extension via the AES-MP16 KDF.
package rng

import (
	"context"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/mp16"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

// Engine runs PRNG operations against a keystore for one client.
type Engine struct {
	Store  keystore.Store
	Client string
}

// Init is INIT_RND (spec.md §4.G): one-shot, derives the seed/working keys
// from SECRET_KEY_ID, ratchets the persisted seed forward by one step, and
// marks rnd_inited.
func (e *Engine) Init(ctx context.Context, sc *shectx.Context) error {
	if sc.RNDInited {
		return sheerr.New(sheerr.SequenceError)
	}

	secretRec, err := e.Store.ReadKey(ctx, keystore.ID{Client: e.Client, Slot: sheconst.SecretKeyID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return sheerr.New(sheerr.KeyNotAvailable)
		}
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	seedKey, err := mp16.Derive(secretRec.Key, sheconst.CPRNGSeed)
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	seedRec, err := e.Store.ReadKey(ctx, keystore.ID{Client: e.Client, Slot: sheconst.PRNGSeedID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return sheerr.New(sheerr.KeyNotAvailable)
		}
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	var iv [sheconst.KeySize]byte
	newSeed, err := bulkcrypto.CBCEncrypt(seedKey, iv, seedRec.Key[:])
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	var seedRecord keystore.Record
	seedRecord.ID = keystore.ID{Client: e.Client, Slot: sheconst.PRNGSeedID}
	copy(seedRecord.Key[:], newSeed)
	if err := e.Store.AddObject(ctx, seedRecord); err != nil {
		// spec.md §5: a partial persisted-seed write leaves rnd_inited
		// false and reports KeyUpdateError, not GeneralError.
		return sheerr.Wrap(sheerr.KeyUpdateError, err)
	}

	copy(sc.PRNGState[:], newSeed)

	prngKey, err := mp16.Derive(secretRec.Key, sheconst.CPRNGKey)
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}
	sc.PRNGKey = prngKey
	sc.RNDInited = true
	return nil
}

// Next is RND (spec.md §4.G): ratchet prng_state forward one CBC step and
// return the new state.
func (e *Engine) Next(sc *shectx.Context) ([sheconst.KeySize]byte, error) {
	var out [sheconst.KeySize]byte
	if !sc.RNDInited {
		return out, sheerr.New(sheerr.SequenceError)
	}

	var iv [sheconst.KeySize]byte
	next, err := bulkcrypto.CBCEncrypt(sc.PRNGKey, iv, sc.PRNGState[:])
	if err != nil {
		return out, sheerr.Wrap(sheerr.GeneralError, err)
	}
	copy(sc.PRNGState[:], next)
	copy(out[:], next)
	return out, nil
}

// ExtendSeed is EXTEND_SEED (spec.md §4.G): fold fresh entropy into both the
// live in-memory state and the persisted seed via AES-MP16.
func (e *Engine) ExtendSeed(ctx context.Context, sc *shectx.Context, entropy [sheconst.KeySize]byte) error {
	if !sc.RNDInited {
		return sheerr.New(sheerr.SequenceError)
	}

	newState, err := mp16.Sum(append(append([]byte{}, sc.PRNGState[:]...), entropy[:]...))
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}
	sc.PRNGState = newState

	seedRec, err := e.Store.ReadKey(ctx, keystore.ID{Client: e.Client, Slot: sheconst.PRNGSeedID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return sheerr.New(sheerr.KeyNotAvailable)
		}
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	newSeed, err := mp16.Sum(append(append([]byte{}, seedRec.Key[:]...), entropy[:]...))
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	var seedRecord keystore.Record
	seedRecord.ID = keystore.ID{Client: e.Client, Slot: sheconst.PRNGSeedID}
	seedRecord.Key = newSeed
	if err := e.Store.AddObject(ctx, seedRecord); err != nil {
		return sheerr.Wrap(sheerr.KeyUpdateError, err)
	}
	return nil
}
