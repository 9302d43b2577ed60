package mp16_test

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/mp16"
	"github.com/barnettlynn/she-core/internal/sheerr"
)

func TestSum_EmptyInputFails(t *testing.T) {
	_, err := mp16.Sum(nil)
	require.Error(t, err)
	require.Equal(t, sheerr.BadArgs, sheerr.CodeOf(err))
}

func TestSum_SingleZeroBlock(t *testing.T) {
	// spec.md §8 invariant 9: MP16 of one all-zero block equals
	// AES_Encrypt(0, 0) xor 0 xor 0.
	zero := make([]byte, 16)
	block, err := aes.NewCipher(zero)
	require.NoError(t, err)
	want := make([]byte, 16)
	block.Encrypt(want, zero)

	got, err := mp16.Sum(zero)
	require.NoError(t, err)
	require.Equal(t, want, got[:])
}

func TestSum_Deterministic(t *testing.T) {
	in := []byte("0123456789ABCDEF0123456789ABCDEF")
	a, err := mp16.Sum(in)
	require.NoError(t, err)
	b, err := mp16.Sum(in)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSum_ShortLastBlockZeroPadded(t *testing.T) {
	full := make([]byte, 16)
	short := append([]byte{}, full...)
	short = append(short, 0x01, 0x02)

	padded := make([]byte, 32)
	copy(padded, short)

	got, err := mp16.Sum(short)
	require.NoError(t, err)
	want, err := mp16.Sum(padded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDerive_MatchesManualConcat(t *testing.T) {
	var key, constant [16]byte
	for i := range key {
		key[i] = byte(i)
		constant[i] = byte(0xA0 + i)
	}
	got, err := mp16.Derive(key, constant)
	require.NoError(t, err)

	manual := append(append([]byte{}, key[:]...), constant[:]...)
	want, err := mp16.Sum(manual)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
