package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllow_BurstThenDenies(t *testing.T) {
	l := New(60) // 1/sec, burst 60
	for i := 0; i < 60; i++ {
		require.True(t, l.Allow("client-a"))
	}
	require.False(t, l.Allow("client-a"))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(1)
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
}
