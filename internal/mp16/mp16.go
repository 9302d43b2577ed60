// Package mp16 implements AES-MP16, the Miyaguchi-Preneel one-way
// compression KDF SHE uses to derive per-message keys from a parent key
// (spec.md §4.A). It is the only KDF primitive in the core; every other
// component that needs a derived key calls through here.
package mp16

import (
	"crypto/aes"

	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/sheconst"
)

// Sum computes AES-MP16 over in, an arbitrary-length input assembled by the
// caller from fixed-length fields that already sum to a whole number of
// 16-byte blocks (spec.md §4.A: callers pre-commit to a deterministic
// padding; this function does not append a length encoding). The final
// block is zero-padded if short.
//
// Algorithm: H0 = 0; for each block Mi, Hi = AES_Encrypt(Hi-1, Mi) xor Mi xor Hi-1.
func Sum(in []byte) ([sheconst.KeySize]byte, error) {
	var out [sheconst.KeySize]byte
	if len(in) == 0 {
		return out, sheerr.New(sheerr.BadArgs)
	}

	h := make([]byte, sheconst.KeySize)
	block := make([]byte, sheconst.KeySize)
	enc := make([]byte, sheconst.KeySize)

	for off := 0; off < len(in); off += sheconst.KeySize {
		end := off + sheconst.KeySize
		if end > len(in) {
			end = len(in)
		}
		clear(block)
		copy(block, in[off:end])

		cipherBlock, err := aes.NewCipher(h)
		if err != nil {
			return out, err
		}
		cipherBlock.Encrypt(enc, block)

		for i := range h {
			h[i] = enc[i] ^ block[i] ^ h[i]
		}
	}

	copy(out[:], h)
	return out, nil
}

// Derive computes AES-MP16(key || constant), the shape every SHE derived
// key (K1..K4, the PRNG seed/key derivations) is built from.
func Derive(key [sheconst.KeySize]byte, constant [sheconst.KeySize]byte) ([sheconst.KeySize]byte, error) {
	buf := make([]byte, 0, 2*sheconst.KeySize)
	buf = append(buf, key[:]...)
	buf = append(buf, constant[:]...)
	return Sum(buf)
}
