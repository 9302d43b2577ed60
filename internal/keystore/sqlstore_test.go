package keystore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/keystore"
	"github.com/barnettlynn/she-core/internal/sheconst"
)

func TestSQLStore_RoundTrip(t *testing.T) {
	store, err := keystore.OpenSQLStore(":memory:")
	require.NoError(t, err)

	rec := keystore.Record{
		ID:       keystore.ID{Client: "c1", Slot: sheconst.Slot(6)},
		Metadata: keystore.Metadata{Flags: sheconst.FlagWildcard, Count: 2},
	}
	rec.Key[0] = 0x42

	require.NoError(t, store.AddObject(context.Background(), rec))

	got, err := store.ReadKey(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	_, err = store.ReadKey(context.Background(), keystore.ID{Client: "c1", Slot: sheconst.Slot(7)})
	require.ErrorIs(t, err, keystore.ErrNotFound)
}
