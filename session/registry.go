// Package session holds the table of open printer channels.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

// Session binds an id to one open channel
type Session struct {
	ID       string
	Kind     adapter.Kind
	Channel  adapter.Channel
	Target   string
	OpenedAt time.Time
}

// Info is a read-only view of a registered session
type Info struct {
	ID       string    `json:"sessionId"`
	Kind     string    `json:"transport"`
	Target   string    `json:"target,omitempty"`
	OpenedAt time.Time `json:"openedAt"`
}

// Registry owns channel lifetime. One lock covers lookup, insert and
// remove; channel I/O and release happen outside it.
type Registry struct {
	prefix   string
	mu       sync.Mutex
	sessions map[string]*Session
	next     uint64
}

// NewRegistry creates an empty registry minting ids "<prefix>-session-<n>"
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = "native"
	}
	return &Registry{
		prefix:   prefix,
		sessions: make(map[string]*Session),
		next:     1,
	}
}

// Insert registers ch under a fresh id. Ids are never reused.
func (r *Registry) Insert(ch adapter.Channel) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:       fmt.Sprintf("%s-session-%d", r.prefix, r.next),
		Kind:     ch.Kind(),
		Channel:  ch,
		Target:   adapter.Target(ch),
		OpenedAt: time.Now(),
	}
	r.next++
	r.sessions[s.ID] = s
	return s
}

// Lookup returns the session registered under id
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove detaches the session from the table and hands it to the caller,
// who must close its channel.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// Close removes the session and releases its channel. Unknown ids are a
// no-op returning a nil session; otherwise the removed session is returned
// along with the release error.
func (r *Registry) Close(id string) (*Session, error) {
	s, ok := r.Remove(id)
	if !ok {
		return nil, nil
	}
	return s, s.Channel.Close()
}

// CloseAll empties the table atomically, then closes every channel it held.
// It returns the number of sessions closed and the release errors by id.
func (r *Registry) CloseAll() (int, map[string]error) {
	r.mu.Lock()
	current := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs map[string]error
	for id, s := range current {
		if err := s.Channel.Close(); err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[id] = err
		}
	}
	return len(current), errs
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a snapshot of open sessions ordered by opening time.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Info{ID: s.ID, Kind: s.Kind.String(), Target: s.Target, OpenedAt: s.OpenedAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}
