package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

// Prober is a bounded reachability check. A nil error means online.
type Prober interface {
	Ping(ctx context.Context) error
}

// EventSource is a passive, possibly unreliable view of connectivity.
type EventSource interface {
	// State is the platform's current opinion.
	State() bool
	// Watch calls fn on every reported transition until ctx is done.
	Watch(ctx context.Context, fn func(online bool))
}

// FocusSource reports that the user came back to the app.
type FocusSource interface {
	Watch(ctx context.Context, fn func())
}

type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	events   EventSource
	focus    []FocusSource
	logger   logging.Logger

	mu        sync.RWMutex
	online    bool
	listeners []func(bool)

	recheck chan struct{}
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithTimeout bounds each probe. Probers that apply their own timeout are
// still cut off at d.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithEventSource seeds the flag from src and applies its transitions.
func WithEventSource(src EventSource) Option {
	return func(m *Monitor) { m.events = src }
}

func WithFocusSource(src FocusSource) Option {
	return func(m *Monitor) { m.focus = append(m.focus, src) }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithInitialState sets the flag before any event or probe has been seen.
func WithInitialState(online bool) Option {
	return func(m *Monitor) { m.online = online }
}

func New(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: common.ProbeInterval,
		timeout:  common.ProbeTimeout,
		logger:   logging.Nop(),
		recheck:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events != nil {
		m.online = m.events.State()
	}
	m.logger = m.logger.With("module", "netmon")
	return m
}

// Online is the current flag.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnChange registers fn to be called with the new state on every transition.
// Listeners run synchronously on the goroutine that observed the transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Recheck asks Run to probe now instead of waiting for the next tick.
// Requests made while one is already queued are merged.
func (m *Monitor) Recheck() {
	select {
	case m.recheck <- struct{}{}:
	default:
	}
}

// Check probes once and applies the result.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Ping(pctx)
	cancel()

	online := err == nil
	m.set(ctx, online, "probe")
	return online
}

func (m *Monitor) set(ctx context.Context, online bool, source string) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if online {
		m.logger.Info(ctx, "switched to online mode", "source", source)
	} else {
		m.logger.Warn(ctx, "switched to offline mode", "source", source)
	}

	for _, fn := range listeners {
		fn(online)
	}
}

// Run probes once right away, then on every tick and on every Recheck, and
// applies passive events, until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	if m.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.events.Watch(ctx, func(online bool) { m.set(ctx, online, "event") })
		}()
	}
	for _, f := range m.focus {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Watch(ctx, m.Recheck)
		}()
	}

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-m.recheck:
			m.Check(ctx)
			ticker.Reset(m.interval)
		case <-ctx.Done():
			return
		}
	}
}
