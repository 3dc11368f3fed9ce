// Package state is the replication boundary: durable persistence of the
// shared snapshot plus fire-and-forget fan-out to the other live
// replicas. Everything here is best effort: storage and bus failures
// are logged and swallowed, because divergence between replicas is
// preferable to taking the application down.
package state

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/HaseMalke174/NoFeds/internal/bus"
	"github.com/HaseMalke174/NoFeds/internal/models"
	"github.com/HaseMalke174/NoFeds/internal/store"
)

// Mode tracks the health of the replication boundary so callers and
// tests can observe degradation instead of inferring it from logs.
type Mode int

const (
	Uninitialized Mode = iota
	Ready
	Degraded
)

func (m Mode) String() string {
	switch m {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// ReplicatedStore combines the durable snapshot record with the local
// bus. Save persists then publishes; Subscribe delivers snapshots
// published by other replicas. There are no retries anywhere: every
// operation is attempted exactly once.
type ReplicatedStore struct {
	store store.SnapshotStore
	bus   bus.Bus

	mu     sync.Mutex
	mode   Mode
	closed bool
}

func NewReplicated(s store.SnapshotStore, b bus.Bus) *ReplicatedStore {
	return &ReplicatedStore{store: s, bus: b}
}

func (r *ReplicatedStore) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *ReplicatedStore) setMode(m Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

func (r *ReplicatedStore) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Save writes the snapshot durably and publishes it to the other
// replicas. Failures on either leg are logged, flip the store into
// degraded mode, and do not propagate.
func (r *ReplicatedStore) Save(snap *models.Snapshot) {
	if r.isClosed() {
		return
	}

	if err := r.store.SaveSnapshot(snap); err != nil {
		log.Printf("Error persisting snapshot: %v", err)
		r.setMode(Degraded)
	} else {
		r.setMode(Ready)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("Error encoding snapshot for the bus: %v", err)
		return
	}
	if err := r.bus.Publish(bus.Envelope{Type: bus.TypeDataUpdate, Data: data}); err != nil {
		log.Printf("Error publishing snapshot: %v", err)
		r.setMode(Degraded)
	}
}

// Load reads the durable snapshot. Absent data, corrupt data, and
// storage failure all yield nil; only genuine reads move the mode.
func (r *ReplicatedStore) Load() *models.Snapshot {
	snap, err := r.store.LoadSnapshot()
	if err != nil {
		log.Printf("Error loading snapshot: %v", err)
		r.setMode(Degraded)
		return nil
	}
	r.setMode(Ready)
	return snap
}

// Subscribe registers fn for snapshots saved by other replicas.
// Point updates (the reserved "update" tag) are ignored.
func (r *ReplicatedStore) Subscribe(fn func(*models.Snapshot)) {
	if r.isClosed() {
		return
	}
	r.bus.Subscribe(func(env bus.Envelope) {
		if env.Type != bus.TypeDataUpdate {
			return
		}
		var snap models.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			log.Printf("Dropping malformed bus snapshot: %v", err)
			return
		}
		if snap.Messages == nil {
			snap.Messages = make(map[string][]models.Message)
		}
		fn(&snap)
	})
}

// SaveKey publishes a point update for a single key. Reserved surface:
// nothing consumes these today.
func (r *ReplicatedStore) SaveKey(key string, value any) {
	if r.isClosed() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("Error encoding point update %q: %v", key, err)
		return
	}
	if err := r.bus.Publish(bus.Envelope{Type: bus.TypeKeyUpdate, Key: key, Data: data}); err != nil {
		log.Printf("Error publishing point update %q: %v", key, err)
		r.setMode(Degraded)
	}
}

// Close releases the bus attachment. Save and Subscribe after Close are
// no-ops, not errors. The durable store stays open; its owner closes it.
func (r *ReplicatedStore) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.bus.Close(); err != nil {
		log.Printf("Error closing bus attachment: %v", err)
	}
}
