package logger

import (
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"
)

// Entry is one record captured by a MockLogger.
type Entry struct {
	Level         Level
	Msg           string
	KeysAndValues []any
}

// MockLogger is a Logger for tests. It records every entry, and forwards calls to the
// embedded testify mock for the methods that have expectations.
//
// Expectations receive the message and the key-value slice as two arguments,
// e.g. m.On("Warn", "handshake attempt failed", mock.Anything). Methods without
// expectations never fail: Level reports DebugLevel and With returns the mock itself.
type MockLogger struct {
	mock.Mock

	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.record("Debug", DebugLevel, msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.record("Info", InfoLevel, msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.record("Warn", WarnLevel, msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.record("Error", ErrorLevel, msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.record("Fatal", FatalLevel, msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	if m.expects("SetLevel") {
		m.Called(level)
	}
}

func (m *MockLogger) Level() Level {
	if !m.expects("Level") {
		return DebugLevel
	}

	args := m.Called()

	return args.Get(0).(Level)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	if !m.expects("With") {
		return m
	}

	args := m.Called(keyValues)

	return args.Get(0).(Logger)
}

// Entries returns a copy of the recorded entries, oldest first.
func (m *MockLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.entries)
}

// Logged reports whether an entry with the given level and message was recorded.
func (m *MockLogger) Logged(level Level, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.ContainsFunc(m.entries, func(e Entry) bool {
		return e.Level == level && e.Msg == msg
	})
}

func (m *MockLogger) record(method string, level Level, msg string, keysAndValues []any) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Level: level, Msg: msg, KeysAndValues: slices.Clone(keysAndValues)})
	m.mu.Unlock()

	if m.expects(method) {
		m.Called(msg, keysAndValues)
	}
}

// expects reports whether an expectation was registered for method. Expectations must
// be registered before the logger is shared with other goroutines.
func (m *MockLogger) expects(method string) bool {
	for _, call := range m.ExpectedCalls {
		if call.Method == method {
			return true
		}
	}

	return false
}
