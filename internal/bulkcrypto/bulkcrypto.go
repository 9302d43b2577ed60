// Package bulkcrypto implements the SHE bulk AES operations (spec.md §4.H):
// ECB/CBC encrypt/decrypt and CMAC generate/verify against a key addressed
// by slot id, plus the CMAC primitive shared by every other component that
// needs one (secure-boot, key-update, RAM-key export).
//
// AES/CMAC are treated as black-box oracles per spec.md §1; ECB/CBC go
// through crypto/aes+crypto/cipher exactly as the teacher's crypto.go does,
// and CMAC goes through github.com/enceve/crypto/cmac (see SPEC_FULL.md §3)
// instead of a hand-rolled one-shot implementation, since secure-boot needs
// an incremental hash.Hash-shaped CMAC context.
package bulkcrypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"hash"

	"github.com/enceve/crypto/cmac"

	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
)

// NewCMAC opens a fresh streaming CMAC context keyed by key. Callers must
// discard it (letting it be GC'd) once Sum is taken; there is no persistent
// state to zeroize beyond the key bytes the caller already owns.
func NewCMAC(key [sheconst.KeySize]byte) (hash.Hash, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cmac.New(block)
}

// CMACSum is the one-shot convenience every non-streaming call site
// (key-update verification, RAM-key export, GEN_MAC/VERIFY_MAC) uses.
func CMACSum(key [sheconst.KeySize]byte, msg []byte) ([sheconst.KeySize]byte, error) {
	var out [sheconst.KeySize]byte
	mac, err := NewCMAC(key)
	if err != nil {
		return out, err
	}
	if _, err := mac.Write(msg); err != nil {
		return out, err
	}
	copy(out[:], mac.Sum(nil))
	return out, nil
}

// ECBEncryptBlock runs one 16-byte AES-ECB encryption, the primitive the
// key-update/export confirmation step (spec.md §4.E/§4.F) builds M4/M5 on.
func ECBEncryptBlock(key [sheconst.KeySize]byte, block [sheconst.KeySize]byte) ([sheconst.KeySize]byte, error) {
	var out [sheconst.KeySize]byte
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return out, err
	}
	c.Encrypt(out[:], block[:])
	return out, nil
}

// CBCEncrypt runs AES-CBC-Encrypt with the given IV over data, which must be
// a whole number of 16-byte blocks.
func CBCEncrypt(key, iv [sheconst.KeySize]byte, data []byte) ([]byte, error) {
	if len(data)%sheconst.KeySize != 0 {
		return nil, sheerr.New(sheerr.BadArgs)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	ivCopy := iv
	cipher.NewCBCEncrypter(block, ivCopy[:]).CryptBlocks(out, data)
	return out, nil
}

// CBCDecrypt runs AES-CBC-Decrypt with the given IV over data, which must be
// a whole number of 16-byte blocks.
func CBCDecrypt(key, iv [sheconst.KeySize]byte, data []byte) ([]byte, error) {
	if len(data)%sheconst.KeySize != 0 {
		return nil, sheerr.New(sheerr.BadArgs)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	ivCopy := iv
	cipher.NewCBCDecrypter(block, ivCopy[:]).CryptBlocks(out, data)
	return out, nil
}

// Op identifies a bulk operation's cipher mode for Run.
type Op int

const (
	OpEncECB Op = iota
	OpEncCBC
	OpDecECB
	OpDecCBC
)

// Run loads keyID from the keystore and executes one bulk AES operation
// (spec.md §4.H). The payload length is truncated down to a multiple of 16
// bytes before the primitive runs; the returned output has that truncated
// length, which is how the dispatcher reports it back to the caller. iv is
// ignored for the ECB
// variants.
func Run(ctx context.Context, store keystore.Store, client string, keyID sheconst.Slot, op Op, iv [sheconst.KeySize]byte, payload []byte) ([]byte, error) {
	rec, err := store.ReadKey(ctx, keystore.ID{Client: client, Slot: keyID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return nil, sheerr.New(sheerr.KeyNotAvailable)
		}
		return nil, sheerr.Wrap(sheerr.GeneralError, err)
	}

	n := (len(payload) / sheconst.KeySize) * sheconst.KeySize
	truncated := payload[:n]

	switch op {
	case OpEncECB:
		out := make([]byte, 0, n)
		c, err := aes.NewCipher(rec.Key[:])
		if err != nil {
			return nil, sheerr.Wrap(sheerr.GeneralError, err)
		}
		block := make([]byte, sheconst.KeySize)
		for off := 0; off < n; off += sheconst.KeySize {
			c.Encrypt(block, truncated[off:off+sheconst.KeySize])
			out = append(out, block...)
		}
		return out, nil
	case OpDecECB:
		out := make([]byte, 0, n)
		c, err := aes.NewCipher(rec.Key[:])
		if err != nil {
			return nil, sheerr.Wrap(sheerr.GeneralError, err)
		}
		block := make([]byte, sheconst.KeySize)
		for off := 0; off < n; off += sheconst.KeySize {
			c.Decrypt(block, truncated[off:off+sheconst.KeySize])
			out = append(out, block...)
		}
		return out, nil
	case OpEncCBC:
		out, err := CBCEncrypt(rec.Key, iv, truncated)
		if err != nil {
			return nil, sheerr.Wrap(sheerr.GeneralError, err)
		}
		return out, nil
	case OpDecCBC:
		out, err := CBCDecrypt(rec.Key, iv, truncated)
		if err != nil {
			return nil, sheerr.Wrap(sheerr.GeneralError, err)
		}
		return out, nil
	default:
		return nil, sheerr.New(sheerr.BadArgs)
	}
}

// GenMAC computes the CMAC of payload under keyID (spec.md §4.H).
func GenMAC(ctx context.Context, store keystore.Store, client string, keyID sheconst.Slot, payload []byte) ([sheconst.KeySize]byte, error) {
	var out [sheconst.KeySize]byte
	rec, err := store.ReadKey(ctx, keystore.ID{Client: client, Slot: keyID})
	if err != nil {
		if err == keystore.ErrNotFound {
			return out, sheerr.New(sheerr.KeyNotAvailable)
		}
		return out, sheerr.Wrap(sheerr.GeneralError, err)
	}
	sum, err := CMACSum(rec.Key, payload)
	if err != nil {
		return out, sheerr.Wrap(sheerr.GeneralError, err)
	}
	return sum, nil
}

// VerifyMAC checks tag against the CMAC of payload under keyID. It returns
// (valid, error): per spec.md §4.H, a bad tag is status 1, not a transport
// failure, so valid=false with err=nil is the expected shape for a mismatch.
func VerifyMAC(ctx context.Context, store keystore.Store, client string, keyID sheconst.Slot, payload []byte, tag [sheconst.KeySize]byte) (bool, error) {
	sum, err := GenMAC(ctx, store, client, keyID, payload)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(sum[:], tag[:]) == 1, nil
}
