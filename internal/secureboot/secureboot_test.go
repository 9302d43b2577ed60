package secureboot_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/bulkcrypto"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/secureboot"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

func TestInit_NoBootKeyIsASkipNotAFailure(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	sc, err := shectx.New("c1")
	require.NoError(t, err)

	eng := &secureboot.Engine{Store: store, Client: "c1"}
	err = eng.Init(ctx, sc, 0)
	require.Equal(t, sheerr.NoSecureBoot, sheerr.CodeOf(err))
	require.Equal(t, shectx.BootSuccess, sc.BootState)

	reg := sc.SREG()
	require.NotZero(t, reg&sheconst.SREGBootFinished)
	require.Zero(t, reg&sheconst.SREGSecureBoot)
	require.Zero(t, reg&sheconst.SREGBootOK)
}

func TestSecureBoot_FullSuccess(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	client := "c1"

	var zeroKey [sheconst.KeySize]byte
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.BootMACKeyID},
		Key: zeroKey,
	}))

	image := []byte("bootloader-image-bytes-for-testing-secure-boot-cmac-coverage!!!")

	// Independently compute the expected digest the same way Init/Update do:
	// 12 zero bytes, the declared length in host/little-endian order, then
	// the image.
	prefix := make([]byte, 12, 12+4+len(image))
	var lenWord [4]byte
	binary.LittleEndian.PutUint32(lenWord[:], uint32(len(image)))
	prefix = append(prefix, lenWord[:]...)
	prefix = append(prefix, image...)
	expected, err := bulkcrypto.CMACSum(zeroKey, prefix)
	require.NoError(t, err)
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.BootMAC},
		Key: expected,
	}))

	sc, err := shectx.New(client)
	require.NoError(t, err)
	eng := &secureboot.Engine{Store: store, Client: client}

	require.NoError(t, eng.Init(ctx, sc, uint32(len(image))))
	require.Equal(t, shectx.BootUpdate, sc.BootState)

	require.NoError(t, eng.Update(sc, image[:10]))
	require.NoError(t, eng.Update(sc, image[10:]))
	require.Equal(t, shectx.BootFinish, sc.BootState)

	require.NoError(t, eng.Finish(ctx, sc))
	require.Equal(t, shectx.BootSuccess, sc.BootState)

	reg := sc.SREG()
	require.NotZero(t, reg&sheconst.SREGSecureBoot)
	require.NotZero(t, reg&sheconst.SREGBootFinished)
	require.NotZero(t, reg&sheconst.SREGBootOK)
}

func TestSecureBoot_MismatchSetsFailure(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	client := "c1"

	var zeroKey [sheconst.KeySize]byte
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.BootMACKeyID},
		Key: zeroKey,
	}))
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.BootMAC},
		Key: [sheconst.KeySize]byte{0xDE, 0xAD, 0xBE, 0xEF},
	}))

	sc, err := shectx.New(client)
	require.NoError(t, err)
	eng := &secureboot.Engine{Store: store, Client: client}

	image := []byte("some-image-bytes")
	require.NoError(t, eng.Init(ctx, sc, uint32(len(image))))
	require.NoError(t, eng.Update(sc, image))
	require.Equal(t, shectx.BootFinish, sc.BootState)

	err = eng.Finish(ctx, sc)
	require.Equal(t, sheerr.GeneralError, sheerr.CodeOf(err))
	require.Equal(t, shectx.BootFailure, sc.BootState)
}

func TestUpdate_OverflowFailsSequenceError(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	client := "c1"
	var zeroKey [sheconst.KeySize]byte
	require.NoError(t, store.AddObject(ctx, keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.BootMACKeyID},
		Key: zeroKey,
	}))

	sc, err := shectx.New(client)
	require.NoError(t, err)
	eng := &secureboot.Engine{Store: store, Client: client}

	require.NoError(t, eng.Init(ctx, sc, 4))
	err = eng.Update(sc, []byte("too many bytes"))
	require.Equal(t, sheerr.SequenceError, sheerr.CodeOf(err))
}
