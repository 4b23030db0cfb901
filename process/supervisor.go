package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/arloliu/go-saxs/internal/pool"
	"github.com/arloliu/go-saxs/internal/queue"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/protocol"
)

const maxStderrLine = 64 * 1024

// Supervisor spawns and stops one producer process.
type Supervisor struct {
	path   string
	opts   options
	logger logger.Logger
	state  *StateMgr

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   *os.File
	stdout  *os.File
	stderr  *os.File
	pid     int
	exitErr error

	stdinOnce  sync.Once
	exited     chan struct{}
	stderrDone chan struct{}
	tail       queue.Queue[string]

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSupervisor returns a supervisor for the executable at path. The executable is
// resolved when the supervisor starts.
func NewSupervisor(path string, opts ...Option) *Supervisor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger()
	}

	return &Supervisor{
		path:       path,
		opts:       o,
		logger:     o.logger,
		state:      NewStateMgr(o.logger),
		exited:     make(chan struct{}),
		stderrDone: make(chan struct{}),
		stopped:    make(chan struct{}),
		tail:       queue.NewTailQueue[string](o.stderrTail),
	}
}

// Start launches the child process.
//
// It returns a ConfigError wrapping protocol.ErrExecutableNotFound when the executable
// cannot be resolved, ErrStartFailed when it cannot be launched, and
// ErrInvalidTransition when the supervisor was already started.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.State() != NotStartedState {
		return fmt.Errorf("start in state %s: %w", s.state.State(), ErrInvalidTransition)
	}

	resolved, err := exec.LookPath(s.path)
	if err != nil {
		return protocol.NewConfigError(protocol.ErrExecutableNotFound, "%s: %v", s.path, err)
	}

	pipes, err := newPipes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	cmd := exec.Command(resolved, s.opts.args...)
	cmd.Env = append(os.Environ(), s.opts.env...)
	cmd.Dir = s.opts.dir
	cmd.Stdin = pipes.stdinR
	cmd.Stdout = pipes.stdoutW
	cmd.Stderr = pipes.stderrW

	if err := cmd.Start(); err != nil {
		pipes.closeAll()
		return fmt.Errorf("%w: %s: %v", ErrStartFailed, resolved, err)
	}

	// the child holds its own copies now
	pipes.closeChildEnds()

	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.stdin = pipes.stdinW
	s.stdout = pipes.stdoutR
	s.stderr = pipes.stderrR
	s.logger = s.logger.With("pid", s.pid)

	go s.waitTask()
	go s.stderrTask()

	if err := s.state.ToRunning(); err != nil {
		return err
	}
	s.logger.Info("producer process started", "method", "Start", "path", resolved, "args", s.opts.args)

	return nil
}

// Stop shuts the child down and releases every pipe.
//
// The child's stdin is closed first. If it has not exited within the grace period it is
// sent a terminate signal, and if it is still alive after the terminate timeout it is
// killed; Stop then blocks until it has exited. Stop is idempotent: concurrent and later
// callers block until the first stop completes. Stop on a supervisor that was never
// started is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	started := s.cmd != nil
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.stopOnce.Do(func() {
		defer close(s.stopped)
		s.stop()
	})
	<-s.stopped

	return nil
}

func (s *Supervisor) stop() {
	_ = s.state.ToStopping()
	s.logger.Debug("stopping producer process", "method", "Stop", "state", s.state.State())

	s.closeStdin()

	if !pool.WaitFor(s.exited, s.opts.gracePeriod) {
		s.logger.Warn("producer did not exit after stdin close, terminating",
			"method", "Stop", "grace_period", s.opts.gracePeriod)

		terminated := false
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err == nil {
			terminated = pool.WaitFor(s.exited, s.opts.terminateTimeout)
		} else if !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("terminate signal failed", "method", "Stop", "error", err)
		}

		if !terminated {
			s.logger.Warn("producer did not exit after terminate, killing",
				"method", "Stop", "terminate_timeout", s.opts.terminateTimeout)
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Error("kill failed", "method", "Stop", "error", err)
			}
		}
	}
	<-s.exited

	// stderr reaches EOF once the child is gone unless a grandchild inherited it
	if !pool.WaitFor(s.stderrDone, s.opts.gracePeriod) {
		s.logger.Warn("stderr still open after exit", "method", "Stop")
	}

	s.mu.Lock()
	_ = s.stdout.Close()
	_ = s.stderr.Close()
	s.mu.Unlock()
	<-s.stderrDone

	_ = s.state.ToStopped()
	s.logger.Info("producer process stopped", "method", "Stop", "exit", s.ExitErr())
}

func (s *Supervisor) closeStdin() {
	s.stdinOnce.Do(func() {
		if err := s.stdin.Close(); err != nil {
			s.logger.Debug("close stdin", "method", "closeStdin", "error", err)
		}
	})
}

// waitTask reaps the child. It never touches the parent's pipe ends.
func (s *Supervisor) waitTask() {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
	close(s.exited)

	if err != nil {
		s.logger.Debug("producer exited", "method", "waitTask", "error", err)
	} else {
		s.logger.Debug("producer exited", "method", "waitTask")
	}
}

// stderrTask forwards the child's stderr to the logger and the tail queue.
func (s *Supervisor) stderrTask() {
	defer close(s.stderrDone)

	scanner := bufio.NewScanner(s.stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLine)
	for scanner.Scan() {
		line := scanner.Text()
		s.tail.Enqueue(line)
		s.logger.Warn("producer stderr", "stderr", line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Debug("stderr scan ended", "method", "stderrTask", "error", err)
		_, _ = io.Copy(io.Discard, s.stderr)
	}
}

// Stdin returns the write end of the child's standard input.
// Closing it signals the child to stop producing.
func (s *Supervisor) Stdin() io.WriteCloser {
	return stdinWriter{s}
}

// Stdout returns the read end of the child's standard output.
// The returned reader supports SetReadDeadline on platforms with pollable pipes.
func (s *Supervisor) Stdout() io.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdout == nil {
		return eofReader{}
	}

	return s.stdout
}

// Pid returns the child's process id, or 0 before start.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pid
}

// State returns the lifecycle state.
func (s *Supervisor) State() State { return s.state.State() }

// StateMgr returns the state manager, e.g. to register change handlers.
func (s *Supervisor) StateMgr() *StateMgr { return s.state }

// IsRunning reports whether the supervisor is running and the child has not exited.
func (s *Supervisor) IsRunning() bool {
	if !s.state.IsRunning() {
		return false
	}

	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Exited returns a channel closed once the child has exited.
func (s *Supervisor) Exited() <-chan struct{} { return s.exited }

// ExitErr returns the child's exit error, nil while running or after a clean exit.
func (s *Supervisor) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exitErr
}

// StderrTail returns the most recent stderr lines of the child, oldest first.
func (s *Supervisor) StderrTail() []string { return s.tail.Items() }

type stdinWriter struct{ s *Supervisor }

func (w stdinWriter) Write(p []byte) (int, error) {
	if !w.s.IsRunning() {
		return 0, ErrNotRunning
	}

	w.s.mu.Lock()
	f := w.s.stdin
	w.s.mu.Unlock()

	return f.Write(p)
}

func (w stdinWriter) Close() error {
	if w.s.Pid() == 0 {
		return ErrNotRunning
	}
	w.s.closeStdin()

	return nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

type pipeSet struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newPipes() (*pipeSet, error) {
	p := &pipeSet{}

	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}

	return p, nil
}

func (p *pipeSet) closeChildEnds() {
	closeFiles(p.stdinR, p.stdoutW, p.stderrW)
}

func (p *pipeSet) closeAll() {
	closeFiles(p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
