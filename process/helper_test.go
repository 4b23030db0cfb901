//go:build !windows

package process

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

const helperEnv = "GO_SAXS_HELPER_PROCESS"

// Helper modes, selected through helperEnv when the test binary re-executes itself.
const (
	helperExitOnEOF     = "exit-on-eof"
	helperExitOnTerm    = "exit-on-term"
	helperIgnoreTerm    = "ignore-term"
	helperStderrThenEOF = "stderr"
	helperEcho          = "echo"
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}

	os.Exit(m.Run())
}

func runHelper(mode string) int {
	switch mode {
	case helperExitOnEOF:
		_, _ = io.Copy(io.Discard, os.Stdin)
		return 0

	case helperExitOnTerm:
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM)
		<-sigCh
		return 0

	case helperIgnoreTerm:
		signal.Ignore(syscall.SIGTERM)
		time.Sleep(time.Hour)
		return 0

	case helperStderrThenEOF:
		for i := range 5 {
			fmt.Fprintf(os.Stderr, "diagnostic line %d\n", i)
		}
		_, _ = io.Copy(io.Discard, os.Stdin)
		return 0

	case helperEcho:
		_, _ = io.Copy(os.Stdout, os.Stdin)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		return 2
	}
}

func helperSupervisor(t *testing.T, mode string, opts ...Option) *Supervisor {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test executable: %v", err)
	}

	base := []Option{
		WithEnv(helperEnv, mode),
		WithGracePeriod(200 * time.Millisecond),
		WithTerminateTimeout(300 * time.Millisecond),
	}

	return NewSupervisor(exe, append(base, opts...)...)
}
