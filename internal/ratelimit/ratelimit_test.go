package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barnettlynn/she-core/internal/ratelimit"
)

func TestGate_BurstThenDenied(t *testing.T) {
	g := ratelimit.New(1, 2)
	require.True(t, g.Allow("c1"))
	require.True(t, g.Allow("c1"))
	require.False(t, g.Allow("c1"))
}

func TestGate_ClientsAreIndependent(t *testing.T) {
	g := ratelimit.New(1, 1)
	require.True(t, g.Allow("c1"))
	require.True(t, g.Allow("c2"))
	require.False(t, g.Allow("c1"))
}
