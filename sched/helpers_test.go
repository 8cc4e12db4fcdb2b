package sched

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// newTestScheduler returns a scheduler with the quantum ticker off and a
// logger that records entries instead of printing them.
func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := New(append([]Option{WithQuantum(0), WithLogger(logger)}, opts...)...)
	t.Cleanup(s.Close)
	return s, hook
}

// hasMessage reports whether hook recorded an entry with msg.
func hasMessage(hook *logtest.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}
