// Package process supervises the external producer process.
//
// A Supervisor owns the child's standard input and output as dedicated OS pipes and
// captures standard error separately, so diagnostics never interleave with protocol
// bytes. Its lifecycle is NotStarted -> Running -> Stopping -> Stopped, and stopping
// escalates from closing stdin, to a terminate signal, to a kill, each step bounded by a
// configurable timeout.
//
// A Supervisor is single-use: once stopped it cannot be started again.
package process
