package roomcontrol

import (
	"maps"
	"slices"
	"sync"
	"time"
)

type RoomStatus string

const (
	RoomRunning   RoomStatus = "running"
	RoomFinished  RoomStatus = "finished"
	RoomFailed    RoomStatus = "failed"
	RoomCancelled RoomStatus = "cancelled"
)

// RoomEntry is what the control plane remembers about a debate room.
type RoomEntry struct {
	Topic           string     `json:"topic"`
	Personas        []string   `json:"personas"`
	TurnDurationMin int        `json:"turn_duration_min"`
	TotalRounds     int        `json:"total_rounds"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          RoomStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
}

// Registry maps room names to their debate parameters. A room is registered
// once and keeps its entry until it is deleted.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]RoomEntry
}

func NewRegistry() *Registry {
	return &Registry{rooms: map[string]RoomEntry{}}
}

// Register stores entry unless the room is already known. It reports whether
// the entry was stored.
func (r *Registry) Register(room string, entry RoomEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; ok {
		return false
	}
	entry.Personas = slices.Clone(entry.Personas)
	r.rooms[room] = entry
	return true
}

func (r *Registry) Get(room string) (RoomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[room]
	entry.Personas = slices.Clone(entry.Personas)
	return entry, ok
}

// SetStatus records how the room's debate ended. Unknown rooms are ignored.
func (r *Registry) SetStatus(room string, status RoomStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[room]
	if !ok {
		return
	}
	entry.Status = status
	entry.Error = ""
	if err != nil {
		entry.Error = err.Error()
	}
	r.rooms[room] = entry
}

func (r *Registry) Delete(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; !ok {
		return false
	}
	delete(r.rooms, room)
	return true
}

// Names returns the registered rooms in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.rooms))
}

func (r *Registry) Snapshot() map[string]RoomEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]RoomEntry, len(r.rooms))
	for name, entry := range r.rooms {
		entry.Personas = slices.Clone(entry.Personas)
		snapshot[name] = entry
	}
	return snapshot
}
