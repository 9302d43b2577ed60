package keyupdate

import (
	"context"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/mp16"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/wire"
)

// ExportResponse is EXPORT_RAM_KEY's M1..M5 output, authenticated under
// SECRET_KEY_ID (spec.md §4.F).
type ExportResponse struct {
	M1 [16]byte
	M2 [32]byte
	M3 [16]byte
	M4 [32]byte
	M5 [16]byte
}

// ExportRAMKey builds the M1..M5 tuple that lets a second ECU import the
// currently-plain RAM key (spec.md §4.F). serverUID is the context's latched
// UID, carried in M1/M4 exactly like LOAD_KEY's own M1 so that a re-import
// via LOAD_KEY against a slot that already has a stored, non-wildcard UID
// check still matches. ramKeyPlain reports whether the context's RAM slot is
// presently known in plaintext; if it isn't, this is KeyInvalid: there is
// nothing authenticated to export.
func (p *Protocol) ExportRAMKey(ctx context.Context, serverUID [sheconst.UIDSize]byte, ramKeyPlain bool) (ExportResponse, error) {
	var resp ExportResponse
	if !ramKeyPlain {
		return resp, sheerr.New(sheerr.KeyInvalid)
	}

	ramRec, err := p.Store.ReadKey(ctx, keystore.ID{Client: p.Client, Slot: sheconst.RAMKeyID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return resp, sheerr.New(sheerr.KeyEmpty)
		}
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}

	secretRec, err := p.Store.ReadKey(ctx, keystore.ID{Client: p.Client, Slot: sheconst.SecretKeyID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return resp, sheerr.New(sheerr.KeyNotAvailable)
		}
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}

	k1, err := mp16.Derive(secretRec.Key, sheconst.CEnc)
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	k2, err := mp16.Derive(secretRec.Key, sheconst.CMac)
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	k3, err := mp16.Derive(ramRec.Key, sheconst.CEnc)
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	k4, err := mp16.Derive(ramRec.Key, sheconst.CMac)
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}

	copy(resp.M1[:sheconst.UIDSize], serverUID[:])
	resp.M1[sheconst.UIDSize] = byte(sheconst.RAMKeyID)<<4 | byte(sheconst.SecretKeyID)

	// spec.md §4.F fixes the confirmation counter at the literal value 1
	// regardless of the RAM slot's actual stored counter/flags: export
	// authenticates under SECRET_KEY_ID, not under the RAM slot's own
	// update history, so the M2/M4 counter field is the protocol constant
	// the source always uses here, not ramRec.Metadata.Count.
	const exportCounter = 1
	var m2Plain [32]byte
	wire.EncodeM2Header(m2Plain[:], wire.M2Header{Counter: exportCounter, Flags: 0})
	copy(m2Plain[16:], ramRec.Key[:])

	var iv [sheconst.KeySize]byte
	cipherM2, err := bulkcrypto.CBCEncrypt(k1, iv, m2Plain[:])
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	copy(resp.M2[:], cipherM2)

	m3, err := bulkcrypto.CMACSum(k2, append(append([]byte{}, resp.M1[:]...), resp.M2[:]...))
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	resp.M3 = m3

	copy(resp.M4[:16], resp.M1[:])
	var block [sheconst.KeySize]byte
	word := wire.CounterPaddingWord(exportCounter)
	copy(block[:4], word[:])
	enc, err := bulkcrypto.ECBEncryptBlock(k3, block)
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	copy(resp.M4[16:], enc[:])

	m5, err := bulkcrypto.CMACSum(k4, resp.M4[:])
	if err != nil {
		return resp, sheerr.Wrap(sheerr.GeneralError, err)
	}
	resp.M5 = m5

	return resp, nil
}
