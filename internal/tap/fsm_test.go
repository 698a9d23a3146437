package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSM(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		f := NewFSM()
		assert.Equal(t, StateCreated, f.Current())
		assert.False(t, f.Active())

		for _, s := range []State{StateFetching, StateLoading, StateEmitting} {
			require.NoError(t, f.Transition(s))
			assert.True(t, f.Active())
		}
		require.NoError(t, f.Transition(StateCompleted))
		assert.False(t, f.Active())
	})

	t.Run("error from any active phase", func(t *testing.T) {
		for _, s := range []State{StateFetching, StateLoading, StateEmitting} {
			f := NewFSM()
			f.current = s
			assert.NoError(t, f.Transition(StateError), s)
		}
	})

	testCases := []struct {
		from State
		to   State
	}{
		{StateCreated, StateEmitting},
		{StateCreated, StateError},
		{StateFetching, StateEmitting},
		{StateCompleted, StateFetching},
		{StateError, StateFetching},
		{StateCompleted, StateError},
	}
	for _, tc := range testCases {
		t.Run(string(tc.from)+" to "+string(tc.to), func(t *testing.T) {
			f := NewFSM()
			f.current = tc.from
			assert.ErrorIs(t, f.Transition(tc.to), ErrInvalidTransition)
			assert.Equal(t, tc.from, f.Current())
		})
	}
}
