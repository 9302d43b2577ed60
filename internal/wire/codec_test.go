package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/wire"
)

func TestM1RoundTrip(t *testing.T) {
	f := wire.M1Fields{ID: sheconst.Slot(0xA), AuthID: sheconst.Slot(0x3)}
	for i := range f.UID {
		f.UID[i] = byte(i)
	}
	encoded := wire.EncodeM1(f)
	require.Equal(t, byte(0xA3), encoded[15])

	got := wire.DecodeM1(encoded[:])
	require.Equal(t, f, got)
}

func TestM2HeaderRoundTrip(t *testing.T) {
	h := wire.M2Header{Counter: 0x0ABCDEF0 & 0x0FFFFFFF, Flags: 0x13}
	buf := make([]byte, 16)
	wire.EncodeM2Header(buf, h)
	got := wire.DecodeM2Header(buf)
	require.Equal(t, h, got)
}

func TestM2HeaderCounterMaxValue(t *testing.T) {
	h := wire.M2Header{Counter: 0x0FFFFFFF, Flags: 0x00}
	buf := make([]byte, 16)
	wire.EncodeM2Header(buf, h)
	got := wire.DecodeM2Header(buf)
	require.Equal(t, uint32(0x0FFFFFFF), got.Counter)
}

func TestCounterPaddingWord(t *testing.T) {
	word := wire.CounterPaddingWord(6)
	// counter=6 in high 28 bits, then a single set padding bit.
	require.Equal(t, [4]byte{0x00, 0x00, 0x00, 0x68}, word)
}
