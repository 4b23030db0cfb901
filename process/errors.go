package process

import "errors"

var (
	// ErrInvalidTransition indicates a lifecycle transition not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid process state transition")

	// ErrNotRunning indicates an operation that requires a running process.
	ErrNotRunning = errors.New("process is not running")

	// ErrStartFailed indicates the executable was found but could not be launched.
	ErrStartFailed = errors.New("process start failed")
)
