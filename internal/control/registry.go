// Package control implements the netline daemon's admin HTTP+JSON API:
// a read-only inventory of the Lines the daemon currently manages, plus
// their basic liveness statistics.
package control

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lineproto/netline/line"
	"github.com/lineproto/netline/readiness"
)

// ErrLineNotFound is returned by Poll when no Line is registered under the
// requested name.
var ErrLineNotFound = errors.New("line not found")

// ErrNoHandle is returned by Poll when the registered Line has no waitable
// OS handle (e.g. it was never bound or connected).
var ErrNoHandle = errors.New("line has no waitable handle")

// LineStatus is the JSON-serializable snapshot of one registered Line.
type LineStatus struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Family       string `json:"family"`
	Active       bool   `json:"active"`
	PeerIP       string `json:"peer_ip"`
	LastSentUnix int64  `json:"last_sent_unix_nano,omitempty"`
	LastRecvUnix int64  `json:"last_received_unix_nano,omitempty"`
}

// Registry tracks the Lines started by the daemon under a stable name, so
// the admin API can list and inspect them without reaching into the
// goroutines that own each Line.
type Registry struct {
	mu    sync.RWMutex
	lines map[string]*line.Line
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lines: make(map[string]*line.Line)}
}

// Register adds or replaces the Line tracked under name.
func (r *Registry) Register(name string, l *line.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[name] = l
}

// Unregister removes the Line tracked under name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lines, name)
}

// Get returns the status of the Line registered under name.
func (r *Registry) Get(name string) (LineStatus, bool) {
	r.mu.RLock()
	l, ok := r.lines[name]
	r.mu.RUnlock()
	if !ok {
		return LineStatus{}, false
	}
	return statusOf(name, l), true
}

// List returns the status of every registered Line, sorted by name.
func (r *Registry) List() []LineStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LineStatus, 0, len(r.lines))
	for name, l := range r.lines {
		out = append(out, statusOf(name, l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Poll checks whether the named Line's handle is currently readable,
// blocking up to timeout for readiness.Readable to return. This is the
// admin-triggered diagnostic counterpart to the continuous polling each
// listener goroutine already does in its own serve loop.
func (r *Registry) Poll(name string, timeout time.Duration) (bool, error) {
	r.mu.RLock()
	l, ok := r.lines[name]
	r.mu.RUnlock()
	if !ok {
		return false, ErrLineNotFound
	}

	handle, ok := l.Handle()
	if !ok {
		return false, ErrNoHandle
	}

	ready, err := readiness.Readable([]readiness.Handle{readiness.Handle(handle)}, timeout)
	if err != nil {
		return false, err
	}
	return len(ready) > 0, nil
}

func statusOf(name string, l *line.Line) LineStatus {
	status := LineStatus{
		Name:   name,
		Kind:   l.Kind().String(),
		Family: l.Family().String(),
		Active: l.Active(),
		PeerIP: l.PeerIP(),
	}
	if t := l.LastSent(); !t.IsZero() {
		status.LastSentUnix = t.UnixNano()
	}
	if t := l.LastReceived(); !t.IsZero() {
		status.LastRecvUnix = t.UnixNano()
	}
	return status
}

// uptime is a small helper retained for control/server.go's health payload;
// it reports process-relative time rather than per-Line time.
func uptime(since time.Time) time.Duration {
	return time.Since(since)
}
