//go:build unix

package sched

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// WatchSignals logs a deadlock report every time one of sigs is delivered,
// until ctx is done or the scheduler is closed. With no sigs it listens for
// SIGQUIT, which then no longer dumps goroutines and exits. It returns
// ErrClosed after Close.
func (s *Scheduler) WatchSignals(ctx context.Context, sigs ...os.Signal) error {
	if len(sigs) == 0 {
		sigs = []os.Signal{unix.SIGQUIT}
	}

	s.maskPreempt()
	if s.closed {
		s.unmaskPreempt()
		return ErrClosed
	}
	s.wg.Add(1)
	s.unmaskPreempt()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer s.wg.Done()
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case sig := <-ch:
				s.log.WithField("signal", signalName(sig)).Debug("deadlock report requested")
				s.ReportDeadlocks()
			}
		}
	}()
	return nil
}

// signalName returns the conventional name, e.g. "SIGQUIT", falling back
// to the description for signals x/sys does not know.
func signalName(sig os.Signal) string {
	if n, ok := sig.(unix.Signal); ok {
		if name := unix.SignalName(n); name != "" {
			return name
		}
	}
	return sig.String()
}
