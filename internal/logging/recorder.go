package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Recorder captures every entry written through a logger built by
// NewRecorder, at all levels including trace.
type Recorder struct {
	logs *observer.ObservedLogs
}

// NewRecorder returns a logger wired to an in-memory Recorder. Other packages
// use it in tests to check what a component logged.
func NewRecorder() (*Logger, *Recorder) {
	core, logs := observer.New(TraceLevel)
	return &Logger{zap: zap.New(core), config: NewDefaultConfig()}, &Recorder{logs: logs}
}

// Entries returns the recorded entries in order.
func (r *Recorder) Entries() []observer.LoggedEntry { return r.logs.All() }

// Clear drops everything recorded so far.
func (r *Recorder) Clear() { r.logs.TakeAll() }

// Has reports whether an entry at lvl has a message containing substr.
func (r *Recorder) Has(lvl zapcore.Level, substr string) bool {
	return r.logs.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == lvl && strings.Contains(e.Message, substr)
	}).Len() > 0
}

// Leaks lists where value shows up verbatim: in messages ("msg") or in
// string fields (by key). An empty result means it was never written.
func (r *Recorder) Leaks(value string) []string {
	var where []string
	for _, e := range r.logs.All() {
		if strings.Contains(e.Message, value) {
			where = append(where, "msg")
		}
		for _, f := range e.Context {
			if f.Type == zapcore.StringType && strings.Contains(f.String, value) {
				where = append(where, f.Key)
			}
		}
	}
	return where
}
