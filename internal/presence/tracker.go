package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultStaleAfter is how long an entry survives without a heartbeat.
	DefaultStaleAfter = 45 * time.Second
	// DefaultSweepInterval is how often expired entries are purged.
	DefaultSweepInterval = 15 * time.Second
)

// Entry is one connected actor in a room.
type Entry struct {
	ActorID     string    `json:"actorId"`
	DisplayName string    `json:"displayName"`
	IsClient    bool      `json:"isClient"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Tracker keeps an in-memory roster of who is currently connected, keyed by
// room. Rooms are arbitrary strings; callers embed the tenant or conversation
// id in the key. Nothing here is persisted: the roster is rebuilt from
// scratch after a restart, and it never gates message delivery or read-state.
type Tracker struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]Entry
	staleAfter time.Duration
	now        func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		rooms:      make(map[string]map[string]Entry),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// NewTrackerWithClock is used by tests to control staleness.
func NewTrackerWithClock(staleAfter time.Duration, now func() time.Time) *Tracker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		rooms:      make(map[string]map[string]Entry),
		staleAfter: staleAfter,
		now:        now,
	}
}

// Join registers or refreshes an actor's presence in a room.
func (t *Tracker) Join(room, actorID, displayName string, isClient bool) {
	if room == "" || actorID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	actors, ok := t.rooms[room]
	if !ok {
		actors = make(map[string]Entry)
		t.rooms[room] = actors
	}
	actors[actorID] = Entry{
		ActorID:     actorID,
		DisplayName: displayName,
		IsClient:    isClient,
		LastSeen:    t.now(),
	}
	setEntryCount(t.countLocked())
}

// Heartbeat refreshes an existing entry. An unknown (room, actor) pair is a
// no-op; the session is expected to Join first.
func (t *Tracker) Heartbeat(room, actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	actors, ok := t.rooms[room]
	if !ok {
		return
	}
	entry, ok := actors[actorID]
	if !ok {
		return
	}
	entry.LastSeen = t.now()
	actors[actorID] = entry
}

// Leave removes the actor on clean disconnect.
func (t *Tracker) Leave(room, actorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	actors, ok := t.rooms[room]
	if !ok {
		return
	}
	delete(actors, actorID)
	if len(actors) == 0 {
		delete(t.rooms, room)
	}
	setEntryCount(t.countLocked())
}

// ListOnline returns the room's non-stale entries, newest heartbeat first.
func (t *Tracker) ListOnline(room string) []Entry {
	cutoff := t.now().Add(-t.staleAfter)

	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.rooms[room]))
	for _, entry := range t.rooms[room] {
		if entry.LastSeen.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].ActorID < entries[j].ActorID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// Sweep drops every stale entry. Expiry is silent: timing out is the normal
// end of an unclean disconnect, not an error.
func (t *Tracker) Sweep() {
	cutoff := t.now().Add(-t.staleAfter)

	t.mu.Lock()
	defer t.mu.Unlock()

	for room, actors := range t.rooms {
		for actorID, entry := range actors {
			if entry.LastSeen.Before(cutoff) {
				delete(actors, actorID)
			}
		}
		if len(actors) == 0 {
			delete(t.rooms, room)
		}
	}
	setEntryCount(t.countLocked())
}

// Run sweeps periodically until the context is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

func (t *Tracker) countLocked() int {
	count := 0
	for _, actors := range t.rooms {
		count += len(actors)
	}
	return count
}
