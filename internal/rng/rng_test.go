package rng_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/rng"
	"github.com/barnettlynn/she-core/internal/sheconst"
	"github.com/barnettlynn/she-core/internal/sheerr"
	"github.com/barnettlynn/she-core/internal/shectx"
)

func seedStore(t *testing.T, client string) keystore.Store {
	t.Helper()
	store := keystore.NewMemStore()
	var secret, seed [sheconst.KeySize]byte
	for i := range secret {
		secret[i] = byte(i + 1)
		seed[i] = byte(0xF0 + i)
	}
	require.NoError(t, store.AddObject(context.Background(), keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.SecretKeyID},
		Key: secret,
	}))
	require.NoError(t, store.AddObject(context.Background(), keystore.Record{
		ID:  keystore.ID{Client: client, Slot: sheconst.PRNGSeedID},
		Key: seed,
	}))
	return store
}

func TestInitRND_RequiresSecretAndSeed(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemStore()
	sc, err := shectx.New("c1")
	require.NoError(t, err)

	eng := &rng.Engine{Store: store, Client: "c1"}
	err = eng.Init(ctx, sc)
	require.Equal(t, sheerr.KeyNotAvailable, sheerr.CodeOf(err))
	require.False(t, sc.RNDInited)
}

func TestInitRND_IsOneShot(t *testing.T) {
	ctx := context.Background()
	client := "c1"
	store := seedStore(t, client)
	sc, err := shectx.New(client)
	require.NoError(t, err)

	eng := &rng.Engine{Store: store, Client: client}
	require.NoError(t, eng.Init(ctx, sc))
	require.True(t, sc.RNDInited)

	err = eng.Init(ctx, sc)
	require.Equal(t, sheerr.SequenceError, sheerr.CodeOf(err))
}

func TestRND_TwoDrawsAreDistinctAndChangeState(t *testing.T) {
	ctx := context.Background()
	client := "c1"
	store := seedStore(t, client)
	sc, err := shectx.New(client)
	require.NoError(t, err)

	eng := &rng.Engine{Store: store, Client: client}
	require.NoError(t, eng.Init(ctx, sc))

	before := sc.PRNGState
	first, err := eng.Next(sc)
	require.NoError(t, err)
	require.NotEqual(t, before, first)

	second, err := eng.Next(sc)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestRND_BeforeInitFails(t *testing.T) {
	sc, err := shectx.New("c1")
	require.NoError(t, err)
	eng := &rng.Engine{Store: keystore.NewMemStore(), Client: "c1"}
	_, err = eng.Next(sc)
	require.Equal(t, sheerr.SequenceError, sheerr.CodeOf(err))
}

func TestExtendSeed_IsPureFunctionOfStateAndKey(t *testing.T) {
	ctx := context.Background()
	client := "c1"
	store := seedStore(t, client)
	sc, err := shectx.New(client)
	require.NoError(t, err)

	eng := &rng.Engine{Store: store, Client: client}
	require.NoError(t, eng.Init(ctx, sc))

	var entropy [sheconst.KeySize]byte
	entropy[0] = 0x42
	require.NoError(t, eng.ExtendSeed(ctx, sc, entropy))

	// Two contexts with the same resulting prng_state/prng_key must produce
	// identical next draws (spec.md §8 invariant 8).
	cloned := &shectx.Context{PRNGState: sc.PRNGState, PRNGKey: sc.PRNGKey, RNDInited: true}
	a, err := eng.Next(sc)
	require.NoError(t, err)
	b, err := eng.Next(cloned)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
