package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stitchtalk/internal/app/dto"
	"stitchtalk/internal/domain/identity"
)

const (
	EventUserOnline  = "userOnline"
	EventUserOffline = "userOffline"
)

// Broadcaster delivers presence transitions to every connected session.
// Presence is global scope: any viewer of a user list needs live status.
type Broadcaster interface {
	BroadcastAll(event string, data any)
}

// Fanout delivers presence transitions to several broadcasters in
// order, e.g. the local hub plus an external event mirror.
type Fanout []Broadcaster

func (f Fanout) BroadcastAll(event string, data any) {
	for _, target := range f {
		target.BroadcastAll(event, data)
	}
}

// Registry tracks which users are reachable over at least one live
// connection. A user may hold several connections at once (tabs,
// devices); online/offline events fire only on the edges of the set.
type Registry struct {
	mu    sync.Mutex
	conns map[string]map[any]struct{}

	directory identity.Directory
	events    Broadcaster
	logger    *slog.Logger

	touchTimeout time.Duration
}

func NewRegistry(directory identity.Directory, events Broadcaster, logger *slog.Logger) *Registry {
	return &Registry{
		conns:        make(map[string]map[any]struct{}),
		directory:    directory,
		events:       events,
		logger:       logger,
		touchTimeout: 5 * time.Second,
	}
}

// Register adds a connection handle to the user's set, creating the
// entry if absent. Emits userOnline when this is the user's first
// connection. Adding the same handle twice is a no-op.
func (r *Registry) Register(ref identity.Ref, handle any) {
	r.mu.Lock()
	set, ok := r.conns[ref.ID]
	if !ok {
		set = make(map[any]struct{})
		r.conns[ref.ID] = set
	}
	set[handle] = struct{}{}
	first := len(set) == 1
	r.mu.Unlock()

	if first && r.events != nil {
		r.events.BroadcastAll(EventUserOnline, dto.PresenceEvent{UserID: ref.ID})
	}
}

// Unregister removes the handle. When the set drains it deletes the
// entry, emits userOffline and records last-seen against the identity
// record. The last-seen write is asynchronous and best-effort: in-memory
// presence is already correct whether or not it lands.
func (r *Registry) Unregister(ref identity.Ref, handle any) {
	r.mu.Lock()
	set, ok := r.conns[ref.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[handle]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, handle)
	last := len(set) == 0
	if last {
		delete(r.conns, ref.ID)
	}
	r.mu.Unlock()

	if !last {
		return
	}
	if r.events != nil {
		r.events.BroadcastAll(EventUserOffline, dto.PresenceEvent{UserID: ref.ID})
	}
	if r.directory != nil {
		go r.touchLastSeen(ref)
	}
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID]) > 0
}

// OnlineIDs snapshots the set of currently online users.
func (r *Registry) OnlineIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{}, len(r.conns))
	for id := range r.conns {
		ids[id] = struct{}{}
	}
	return ids
}

func (r *Registry) touchLastSeen(ref identity.Ref) {
	ctx, cancel := context.WithTimeout(context.Background(), r.touchTimeout)
	defer cancel()
	if err := r.directory.TouchLastSeen(ctx, ref, time.Now().UTC()); err != nil {
		if r.logger != nil {
			r.logger.Warn("last-seen update failed", "user_id", ref.ID, "error", err)
		}
	}
}
