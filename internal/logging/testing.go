// internal/logging/testing.go
package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger captures every level down to Trace.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return
		}
	}
	tb.Errorf("no %v entry containing %q in %d entries", level, msg, t.observed.Len())
}

// AssertField fails tb unless an entry with message msg carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && got == want {
			return
		}
	}
	tb.Errorf("%q has no field %s=%v", msg, key, want)
}

// AssertCorrelated fails tb unless entry msg names the run and, when stage
// is not empty, the stage it was logged from.
func (t *TestLogger) AssertCorrelated(tb testing.TB, msg, runID, stage string) {
	tb.Helper()
	t.AssertField(tb, msg, "run.id", runID)
	if stage != "" {
		t.AssertField(tb, msg, "stage", stage)
	}
}

// AssertNotLeaked fails tb if secret appears in any message or string field.
func (t *TestLogger) AssertNotLeaked(tb testing.TB, secret string) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if strings.Contains(e.Message, secret) {
			tb.Errorf("%q leaks the secret in its message", e.Message)
		}
		for _, f := range e.Context {
			if f.Type == zapcore.StringType && strings.Contains(f.String, secret) {
				tb.Errorf("%q leaks the secret in field %s", e.Message, f.Key)
			}
		}
	}
}
