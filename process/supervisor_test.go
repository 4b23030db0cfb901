//go:build !windows

package process

import (
	"errors"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-saxs/protocol"
)

func requireReaped(t *testing.T, pid int) {
	t.Helper()

	err := syscall.Kill(pid, 0)
	require.ErrorIs(t, err, syscall.ESRCH, "process %d is still alive", pid)
}

func TestSupervisorStopEscalation(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		minTime time.Duration
		maxTime time.Duration
	}{
		{"exits on stdin close", helperExitOnEOF, 0, 150 * time.Millisecond},
		{"exits on terminate", helperExitOnTerm, 190 * time.Millisecond, 450 * time.Millisecond},
		{"needs kill", helperIgnoreTerm, 480 * time.Millisecond, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			sv := helperSupervisor(t, tt.mode)
			require.Equal(NotStartedState, sv.State())
			require.NoError(sv.Start())
			require.Equal(RunningState, sv.State())
			require.True(sv.IsRunning())
			pid := sv.Pid()
			require.NotZero(pid)

			// give the helper time to install its signal handlers
			time.Sleep(100 * time.Millisecond)

			begin := time.Now()
			require.NoError(sv.Stop())
			elapsed := time.Since(begin)

			require.Equal(StoppedState, sv.State())
			require.False(sv.IsRunning())
			require.GreaterOrEqual(elapsed, tt.minTime)
			require.Less(elapsed, tt.maxTime)

			select {
			case <-sv.Exited():
			default:
				t.Fatal("exited channel not closed after Stop")
			}
			requireReaped(t, pid)
		})
	}
}

func TestSupervisorStopIdempotent(t *testing.T) {
	require := require.New(t)

	sv := helperSupervisor(t, helperExitOnTerm)
	require.NoError(sv.Start())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(sv.Stop())
			require.Equal(StoppedState, sv.State())
		}()
	}
	wg.Wait()

	require.NoError(sv.Stop())
	require.ErrorIs(sv.Start(), ErrInvalidTransition)
}

func TestSupervisorStopNotStarted(t *testing.T) {
	require := require.New(t)

	sv := helperSupervisor(t, helperExitOnEOF)
	require.NoError(sv.Stop())
	require.Equal(NotStartedState, sv.State())
	require.Zero(sv.Pid())

	n, err := io.ReadFull(sv.Stdout(), make([]byte, 1))
	require.Zero(n)
	require.ErrorIs(err, io.EOF)

	_, err = sv.Stdin().Write([]byte("x"))
	require.ErrorIs(err, ErrNotRunning)
}

func TestSupervisorExecutableNotFound(t *testing.T) {
	require := require.New(t)

	sv := NewSupervisor("/nonexistent/saxs-producer")
	err := sv.Start()
	require.ErrorIs(err, protocol.ErrExecutableNotFound)
	require.True(protocol.IsConfigError(err))
	require.Equal(NotStartedState, sv.State())

	var cfgErr *protocol.ConfigError
	require.True(errors.As(err, &cfgErr))
}

func TestSupervisorPipes(t *testing.T) {
	require := require.New(t)

	sv := helperSupervisor(t, helperEcho)
	require.NoError(sv.Start())
	defer sv.Stop()

	_, err := sv.Stdin().Write([]byte("ping"))
	require.NoError(err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(sv.Stdout(), buf)
	require.NoError(err)
	require.Equal("ping", string(buf))

	require.NoError(sv.Stdin().Close())
	rest, err := io.ReadAll(sv.Stdout())
	require.NoError(err)
	require.Empty(rest)

	<-sv.Exited()
	require.NoError(sv.ExitErr())
	require.False(sv.IsRunning())
	require.NoError(sv.Stop())
}

func TestSupervisorStderrTail(t *testing.T) {
	require := require.New(t)

	sv := helperSupervisor(t, helperStderrThenEOF, WithStderrTail(3))
	require.NoError(sv.Start())
	require.NoError(sv.Stop())

	require.Equal([]string{"diagnostic line 2", "diagnostic line 3", "diagnostic line 4"}, sv.StderrTail())
}

func TestSupervisorStateHandlers(t *testing.T) {
	require := require.New(t)

	sv := helperSupervisor(t, helperExitOnEOF)

	var mu sync.Mutex
	var seen []State
	sv.StateMgr().AddHandler(func(_ State, newState State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, newState)
	})

	require.NoError(sv.Start())
	require.NoError(sv.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.Equal([]State{RunningState, StoppingState, StoppedState}, seen)
}
