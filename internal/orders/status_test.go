package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusReady, false},
		{StatusConfirmed, StatusPreparing, true},
		{StatusConfirmed, StatusCompleted, false},
		{StatusPreparing, StatusReady, true},
		{StatusPreparing, StatusPending, false},
		{StatusReady, StatusCompleted, true},
		{StatusReady, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, s.Terminal())
		assert.Empty(t, NextStates(s))
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady} {
		assert.False(t, s.Terminal())
		assert.NotEmpty(t, NextStates(s))
	}
}

func TestEveryActiveStatusCanCancel(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady} {
		assert.True(t, CanTransition(s, StatusCancelled), "cancel from %s", s)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	// legacy alias
	s, err = ParseStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, s)

	_, err = ParseStatus("shipped")
	assert.Error(t, err)
}

func TestInvalidTransitionErrorListsNextStates(t *testing.T) {
	err := &InvalidTransitionError{From: StatusPending, To: StatusReady}
	assert.Contains(t, err.Error(), "confirmed")
	assert.Contains(t, err.Error(), "cancelled")
}
