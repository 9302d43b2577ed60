package bulkcrypto_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
)

func testKey(b byte) [sheconst.KeySize]byte {
	var k [sheconst.KeySize]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestCBCRoundTrip(t *testing.T) {
	key := testKey(0x11)
	var iv [sheconst.KeySize]byte
	plain := make([]byte, 32)
	for i := range plain {
		plain[i] = byte(i)
	}

	enc, err := bulkcrypto.CBCEncrypt(key, iv, plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, enc)

	dec, err := bulkcrypto.CBCDecrypt(key, iv, enc)
	require.NoError(t, err)
	require.Equal(t, plain, dec)
}

func TestCBCEncrypt_RejectsUnalignedData(t *testing.T) {
	key := testKey(0x01)
	var iv [sheconst.KeySize]byte
	_, err := bulkcrypto.CBCEncrypt(key, iv, make([]byte, 17))
	require.Equal(t, sheerr.BadArgs, sheerr.CodeOf(err))
}

func TestECBEncryptBlock_Deterministic(t *testing.T) {
	key := testKey(0x22)
	var block [sheconst.KeySize]byte
	block[0] = 0x01

	a, err := bulkcrypto.ECBEncryptBlock(key, block)
	require.NoError(t, err)
	b, err := bulkcrypto.ECBEncryptBlock(key, block)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, block, a)
}

func TestCMAC_StreamingMatchesOneShot(t *testing.T) {
	key := testKey(0x33)
	msg := []byte("the quick brown fox jumps over the lazy dog")

	oneShot, err := bulkcrypto.CMACSum(key, msg)
	require.NoError(t, err)

	mac, err := bulkcrypto.NewCMAC(key)
	require.NoError(t, err)
	_, _ = mac.Write(msg[:10])
	_, _ = mac.Write(msg[10:])
	var streamed [sheconst.KeySize]byte
	copy(streamed[:], mac.Sum(nil))

	require.Equal(t, oneShot, streamed)
}

func TestRun_TruncatesToBlockMultiple(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	client := "c1"
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.Slot(4)},
		Key: testKey(0x44),
	}))

	payload := make([]byte, 20) // not a multiple of 16
	out, err := bulkcrypto.Run(ctx, store, client, sheconst.Slot(4), bulkcrypto.OpEncECB, [sheconst.KeySize]byte{}, payload)
	require.NoError(t, err)
	require.Len(t, out, 16)
}

func TestRun_MissingKeyFails(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	_, err := bulkcrypto.Run(ctx, store, "c1", sheconst.Slot(4), bulkcrypto.OpEncECB, [sheconst.KeySize]byte{}, make([]byte, 16))
	require.Equal(t, sheerr.KeyNotAvailable, sheerr.CodeOf(err))
}

func TestGenMACThenVerifyMAC(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	client := "c1"
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.Slot(4)},
		Key: testKey(0x55),
	}))

	payload := []byte("gen-mac-payload")
	tag, err := bulkcrypto.GenMAC(ctx, store, client, sheconst.Slot(4), payload)
	require.NoError(t, err)

	ok, err := bulkcrypto.VerifyMAC(ctx, store, client, sheconst.Slot(4), payload, tag)
	require.NoError(t, err)
	require.True(t, ok)

	tag[0] ^= 0xFF
	ok, err = bulkcrypto.VerifyMAC(ctx, store, client, sheconst.Slot(4), payload, tag)
	require.NoError(t, err)
	require.False(t, ok)
}
