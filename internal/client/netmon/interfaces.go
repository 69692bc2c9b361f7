package netmon

import (
	"context"
	"net"
	"sync"
	"time"
)

// InterfaceWatcher is a passive EventSource that polls the host's network
// interfaces. It only says whether a routable interface is up, which is no
// proof that the endpoint is reachable.
type InterfaceWatcher struct {
	interval time.Duration
	up       func() bool

	mu   sync.Mutex
	last bool
}

func NewInterfaceWatcher(interval time.Duration) *InterfaceWatcher {
	w := &InterfaceWatcher{interval: interval, up: hasRoutableInterface}
	w.last = w.up()
	return w
}

func (w *InterfaceWatcher) State() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *InterfaceWatcher) Watch(ctx context.Context, fn func(online bool)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := w.up()
			w.mu.Lock()
			changed := now != w.last
			w.last = now
			w.mu.Unlock()
			if changed {
				fn(now)
			}
		case <-ctx.Done():
			return
		}
	}
}

func hasRoutableInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipn.IP
			if ip.IsGlobalUnicast() || ip.IsPrivate() {
				return true
			}
		}
	}
	return false
}
