package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, StatusCompleted, NormalizeStatus("delivered"))
	require.Equal(t, StatusCompleted, NormalizeStatus("Delivered"))
	require.Equal(t, StatusCompleted, NormalizeStatus("completed"))
	require.Equal(t, StatusPreparing, NormalizeStatus("PREPARING"))

	// Idempotent on already-canonical values.
	for _, s := range []string{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCanceled, StatusRejected} {
		require.Equal(t, s, NormalizeStatus(s))
		require.Equal(t, s, NormalizeStatus(NormalizeStatus(s)))
	}

	// Unknown statuses pass through lower-cased.
	require.Equal(t, "on_hold", NormalizeStatus("ON_HOLD"))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal("completed"))
	require.True(t, IsTerminal("Delivered"))
	require.True(t, IsTerminal("canceled"))
	require.True(t, IsTerminal("rejected"))

	require.False(t, IsTerminal("confirmed"))
	require.False(t, IsTerminal("preparing"))
	require.False(t, IsTerminal("ready"))
	require.False(t, IsTerminal("on_hold"))
}
