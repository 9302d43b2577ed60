package dispatch_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/dispatch"
	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *shectx.Context) {
	t.Helper()
	sc, err := shectx.New("c1")
	require.NoError(t, err)
	return &dispatch.Dispatcher{Store: keystore.NewMemStore(), Client: "c1"}, sc
}

func TestSetUID_LatchesOnce(t *testing.T) {
	d, sc := newDispatcher(t)
	ctx := context.Background()

	uid := bytes.Repeat([]byte{0}, 14)
	uid = append(uid, 0x0E)
	_, code := d.Handle(ctx, sc, sheconst.SetUID, uid)
	require.Equal(t, sheerr.NoError, code)
	require.Equal(t, uid, sc.UID[:])

	other := bytes.Repeat([]byte{0xFF}, 15)
	_, code = d.Handle(ctx, sc, sheconst.SetUID, other)
	require.Equal(t, sheerr.SequenceError, code)
	require.Equal(t, uid, sc.UID[:])
}

func TestBeforeSetUID_EverythingElseFails(t *testing.T) {
	d, sc := newDispatcher(t)
	ctx := context.Background()

	_, code := d.Handle(ctx, sc, sheconst.GetStatus, nil)
	require.Equal(t, sheerr.SequenceError, code)

	_, code = d.Handle(ctx, sc, sheconst.RND, nil)
	require.Equal(t, sheerr.SequenceError, code)
}

func TestBeforeSecureBootSuccess_OnlyAllowlistedActionsPass(t *testing.T) {
	d, sc := newDispatcher(t)
	ctx := context.Background()

	_, code := d.Handle(ctx, sc, sheconst.SetUID, make([]byte, sheconst.UIDSize))
	require.Equal(t, sheerr.NoError, code)

	_, code = d.Handle(ctx, sc, sheconst.GetStatus, nil)
	require.Equal(t, sheerr.NoError, code)

	_, code = d.Handle(ctx, sc, sheconst.RND, nil)
	require.Equal(t, sheerr.SequenceError, code)

	_, code = d.Handle(ctx, sc, sheconst.SecureBootInit, []byte{0, 0, 0, 0})
	require.Equal(t, sheerr.NoSecureBoot, code)
	require.Equal(t, shectx.BootSuccess, sc.BootState)

	_, code = d.Handle(ctx, sc, sheconst.InitRND, nil)
	require.Equal(t, sheerr.KeyNotAvailable, code)
}

func TestSecureBootFailureResetsState(t *testing.T) {
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

	d := &dispatch.Dispatcher{Store: store, Client: client}
	sc, err := shectx.New(client)
	require.NoError(t, err)

	_, code := d.Handle(ctx, sc, sheconst.SetUID, make([]byte, sheconst.UIDSize))
	require.Equal(t, sheerr.NoError, code)

	_, code = d.Handle(ctx, sc, sheconst.SecureBootInit, []byte{0, 0, 0, 4})
	require.Equal(t, sheerr.NoError, code)
	_, code = d.Handle(ctx, sc, sheconst.SecureBootUpdate, []byte("boot"))
	require.Equal(t, sheerr.NoError, code)
	_, code = d.Handle(ctx, sc, sheconst.SecureBootFinish, nil)
	require.Equal(t, sheerr.GeneralError, code)

	require.Equal(t, shectx.BootInit, sc.BootState)
	require.False(t, sc.CMACKeyFound)
}
