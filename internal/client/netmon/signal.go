package netmon

import (
	"context"
	"os"
	"os/signal"
)

// SignalSource treats the given signals as "focus regained". On unix the
// defaults are SIGCONT (resumed from the background) and SIGUSR1.
type SignalSource struct {
	signals []os.Signal
}

func NewSignalSource(sigs ...os.Signal) *SignalSource {
	if len(sigs) == 0 {
		sigs = focusSignals
	}
	return &SignalSource{signals: sigs}
}

func (s *SignalSource) Watch(ctx context.Context, fn func()) {
	if len(s.signals) == 0 {
		<-ctx.Done()
		return
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.signals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
