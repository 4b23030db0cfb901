package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateMgrTransitions(t *testing.T) {
	require := require.New(t)

	sm := NewStateMgr(nil)
	require.Equal(NotStartedState, sm.State())

	require.ErrorIs(sm.ToStopping(), ErrInvalidTransition)
	require.ErrorIs(sm.ToStopped(), ErrInvalidTransition)

	require.NoError(sm.ToRunning())
	require.NoError(sm.ToRunning())
	require.True(sm.IsRunning())

	require.NoError(sm.ToStopping())
	require.ErrorIs(sm.ToRunning(), ErrInvalidTransition)

	require.NoError(sm.ToStopped())
	require.True(sm.IsStopped())
	require.ErrorIs(sm.ToRunning(), ErrInvalidTransition)
}

func TestStateMgrWaitState(t *testing.T) {
	require := require.New(t)

	sm := NewStateMgr(nil)
	require.NoError(sm.ToRunning())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = sm.ToStopped()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(sm.WaitState(ctx, StoppedState))

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(NewStateMgr(nil).WaitState(ctx, RunningState), context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	require := require.New(t)

	require.Equal("not-started", NotStartedState.String())
	require.Equal("running", RunningState.String())
	require.Equal("stopping", StoppingState.String())
	require.Equal("stopped", StoppedState.String())
	require.Equal("unknown", State(42).String())
}
