// Package keyupdate implements the SHE authenticated key-update and
// RAM-key-export protocols (spec.md §4.E/§4.F): the M1..M5 message tuples,
// replay/policy enforcement, and the plaintext LOAD_PLAIN_KEY variant
// spec.md's opcode list names but never fully specifies (see SPEC_FULL.md
// §4).
package keyupdate

import (
	"bytes"
	"context"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/mp16"
	"github.com/barnettlynn/she-core/internal/policy"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/wire"
)

// Protocol runs LOAD_KEY/EXPORT_RAM_KEY/LOAD_PLAIN_KEY against a keystore
// for one client.
type Protocol struct {
	Store  keystore.Store
	Client string

	// Policy supplies the default/override slot flags LoadPlainKey stamps
	// onto a freshly-written slot (spec.md has no M2-equivalent authenticated
	// flags field on that unauthenticated path). The zero Policy carries no
	// overrides and defaults every slot to flags 0, matching prior behavior.
	Policy policy.Policy
}

// Request is the decoded LOAD_KEY input (spec.md §4.E).
type Request struct {
	M1 [16]byte
	M2 [32]byte
	M3 [16]byte
}

// Response is LOAD_KEY's confirmation output.
type Response struct {
	M4 [32]byte
	M5 [16]byte
}

var zeroUID [sheconst.UIDSize]byte

// LoadKey runs the full authenticated key-update algorithm (spec.md §4.E).
// serverUID is the context's latched UID, checked against M1's UID field
// when the target slot already exists and lacks the WILDCARD flag. A target
// slot with no stored record is written without the write-protect, counter
// or UID checks. The returned bool reports
// whether the write targeted RAM_KEY_ID, in which case the dispatcher must
// mark the context's RAM key as plain-known for EXPORT_RAM_KEY to use.
func (p *Protocol) LoadKey(ctx context.Context, serverUID [sheconst.UIDSize]byte, req Request) (Response, bool, error) {
	var resp Response

	m1 := wire.DecodeM1(req.M1[:])

	authRec, err := p.Store.ReadKey(ctx, keystore.ID{Client: p.Client, Slot: m1.AuthID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return resp, false, sheerr.New(sheerr.KeyNotAvailable)
		}
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}

	k2, err := mp16.Derive(authRec.Key, sheconst.CMac)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	m3Input := append(append([]byte{}, req.M1[:]...), req.M2[:]...)
	m3Check, err := bulkcrypto.CMACSum(k2, m3Input)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	if !bytes.Equal(m3Check[:], req.M3[:]) {
		return resp, false, sheerr.New(sheerr.KeyUpdateError)
	}

	k1, err := mp16.Derive(authRec.Key, sheconst.CEnc)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	var iv [sheconst.KeySize]byte
	m2Plain, err := bulkcrypto.CBCDecrypt(k1, iv, req.M2[:])
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	header := wire.DecodeM2Header(m2Plain)
	var newKey [sheconst.KeySize]byte
	copy(newKey[:], m2Plain[16:32])

	existing, err := p.Store.ReadKey(ctx, keystore.ID{Client: p.Client, Slot: m1.ID})
	exists := true
	if err != nil {
		if err != keystore.ErrNotFound {
			return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
		}
		exists = false
	}

	if exists {
		if existing.Metadata.Flags&sheconst.FlagWriteProtect != 0 {
			return resp, false, sheerr.New(sheerr.WriteProtected)
		}
		if header.Counter <= existing.Metadata.Count {
			return resp, false, sheerr.New(sheerr.KeyUpdateError)
		}
		if m1.UID == zeroUID {
			if existing.Metadata.Flags&sheconst.FlagWildcard == 0 {
				return resp, false, sheerr.New(sheerr.KeyUpdateError)
			}
		} else if m1.UID != serverUID {
			return resp, false, sheerr.New(sheerr.KeyUpdateError)
		}
	}

	newRec := keystore.Record{
		ID:       keystore.ID{Client: p.Client, Slot: m1.ID},
		Metadata: keystore.Metadata{Flags: header.Flags, Count: header.Counter},
		Key:      newKey,
	}

	ramKeyPlain := false
	if m1.ID == sheconst.RAMKeyID {
		if err := p.Store.CacheKey(ctx, newRec); err != nil {
			return resp, false, sheerr.Wrap(sheerr.KeyUpdateError, err)
		}
		ramKeyPlain = true
	} else {
		if err := p.Store.AddObject(ctx, newRec); err != nil {
			return resp, false, sheerr.Wrap(sheerr.KeyUpdateError, err)
		}
		confirm, err := p.Store.ReadKey(ctx, newRec.ID)
		if err != nil || confirm.Key != newRec.Key {
			return resp, false, sheerr.New(sheerr.KeyUpdateError)
		}
	}

	k3, err := mp16.Derive(newKey, sheconst.CEnc)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	k4, err := mp16.Derive(newKey, sheconst.CMac)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}

	copy(resp.M4[:16], req.M1[:])
	var block [sheconst.KeySize]byte
	word := wire.CounterPaddingWord(header.Counter)
	copy(block[:4], word[:])
	enc, err := bulkcrypto.ECBEncryptBlock(k3, block)
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	copy(resp.M4[16:], enc[:])

	m5, err := bulkcrypto.CMACSum(k4, resp.M4[:])
	if err != nil {
		return resp, false, sheerr.Wrap(sheerr.GeneralError, err)
	}
	resp.M5 = m5

	return resp, ramKeyPlain, nil
}
