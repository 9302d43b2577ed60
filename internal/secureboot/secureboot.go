// Package secureboot implements the three-phase SHE secure-boot protocol
// (spec.md §4.D): INIT reads the boot-MAC key and primes a streaming CMAC
// over the bootloader image, UPDATE feeds it chunks, FINISH compares the
// result against the stored expected digest.
package secureboot

import (
	"context"
	"crypto/subtle"
	"encoding/binary"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

// Engine runs the secure-boot protocol against a keystore for one client.
type Engine struct {
	Store  keystore.Store
	Client string
}

// Init begins secure boot for a bootloader image of declared length size
// (spec.md §4.D INIT). If no boot-MAC key is installed this is a deliberate
// skip: sb_state jumps straight to SUCCESS and NoSecureBoot is returned,
// which is not a failure the dispatcher should reset state for.
func (e *Engine) Init(ctx context.Context, sc *shectx.Context, size uint32) error {
	if sc.BootState != shectx.BootInit {
		return sheerr.New(sheerr.SequenceError)
	}

	rec, err := e.Store.ReadKey(ctx, keystore.ID{Client: e.Client, Slot: sheconst.BootMACKeyID})
	if err != nil {
		if err != keystore.ErrNotFound {
			return sheerr.Wrap(sheerr.GeneralError, err)
		}
		sc.BootState = shectx.BootSuccess
		sc.CMACKeyFound = false
		return sheerr.New(sheerr.NoSecureBoot)
	}

	mac, err := bulkcrypto.NewCMAC(rec.Key)
	if err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	// Twelve-byte zero prefix, then the declared length in host byte order
	// (spec.md §9: a known wire-ambiguity; this core picks host/little-endian
	// to bit-exact match the §8 S3 fixtures, see DESIGN.md Open Question
	// decision 2).
	prefix := make([]byte, 12, 16)
	var lenWord [4]byte
	binary.LittleEndian.PutUint32(lenWord[:], size)
	prefix = append(prefix, lenWord[:]...)
	if _, err := mac.Write(prefix); err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	sc.BootCMAC = mac
	sc.BootSize = size
	sc.BootReceived = 0
	sc.CMACKeyFound = true
	sc.BootState = shectx.BootUpdate
	return nil
}

// Update feeds the next chunk of the bootloader image into the running CMAC
// (spec.md §4.D UPDATE).
func (e *Engine) Update(sc *shectx.Context, chunk []byte) error {
	if sc.BootState != shectx.BootUpdate {
		return sheerr.New(sheerr.SequenceError)
	}

	sc.BootReceived += uint32(len(chunk))
	if sc.BootReceived > sc.BootSize {
		return sheerr.New(sheerr.SequenceError)
	}
	if _, err := sc.BootCMAC.Write(chunk); err != nil {
		return sheerr.Wrap(sheerr.GeneralError, err)
	}
	if sc.BootReceived == sc.BootSize {
		sc.BootState = shectx.BootFinish
	}
	return nil
}

// Finish finalizes the CMAC and compares it against the stored expected
// digest (spec.md §4.D FINISH), advancing sb_state to SUCCESS or FAILURE.
func (e *Engine) Finish(ctx context.Context, sc *shectx.Context) error {
	if sc.BootState != shectx.BootFinish {
		return sheerr.New(sheerr.SequenceError)
	}

	digest := sc.BootCMAC.Sum(nil)

	expected, err := e.Store.ReadKey(ctx, keystore.ID{Client: e.Client, Slot: sheconst.BootMAC})
	if err != nil {
		if err == keystore.ErrNotFound {
			return sheerr.New(sheerr.KeyNotAvailable)
		}
		return sheerr.Wrap(sheerr.GeneralError, err)
	}

	if subtle.ConstantTimeCompare(digest, expected.Key[:]) == 1 {
		sc.BootState = shectx.BootSuccess
		return nil
	}
	sc.BootState = shectx.BootFailure
	return sheerr.New(sheerr.GeneralError)
}
