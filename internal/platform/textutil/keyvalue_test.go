package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairs(t *testing.T) {
	got := Pairs(" session-key = projects/a ,catalog-token=projects/b; broken, =orphan, blank= ")
	require.Equal(t, map[string]string{
		"session-key":   "projects/a",
		"catalog-token": "projects/b",
	}, got)
}

func TestPairsLaterDuplicateWins(t *testing.T) {
	require.Equal(t, map[string]string{"prod": "p2"}, Pairs("prod=p1,prod=p2"))
}

func TestPairsEmpty(t *testing.T) {
	require.Nil(t, Pairs(""))
	require.Nil(t, Pairs("no-pairs-here"))
	require.Nil(t, Pairs(" , ;"))
}
