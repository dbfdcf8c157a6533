package room

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/partydeck/game-server/internal/domain"
)

// entry pairs a room with its own update lock. The lock is created with
// the room and reclaimed with it, so unrelated rooms never contend.
// removed marks an entry whose room left the map while a mutator still
// held the pointer; such mutations must not commit.
type entry struct {
	mu      sync.Mutex
	room    *domain.Room
	removed bool
}

// Store is the single source of truth for live rooms while the process
// is alive. All mutation goes through Mutate, which serializes callers
// per room id; reads hand out deep-copied snapshots.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*entry
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*entry)}
}

func (s *Store) Create(id string, capacity int, payload json.RawMessage) (domain.Room, error) {
	now := time.Now()
	r := &domain.Room{
		ID:           id,
		Status:       domain.StatusOpen,
		Capacity:     capacity,
		Participants: make([]domain.Participant, 0, capacity),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; ok {
		return domain.Room{}, domain.ErrRoomAlreadyExists
	}
	s.rooms[id] = &entry{room: r}
	return r.Clone(), nil
}

func (s *Store) Get(id string) (domain.Room, error) {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// Mutate applies an atomic read-modify-write under the room's own lock.
// If fn returns an error the room is left untouched only insofar as fn
// did not modify it; lifecycle code mutates the struct last, after all
// checks passed. The returned snapshot reflects the post-mutation state.
func (s *Store) Mutate(id string, fn func(r *domain.Room) error) (domain.Room, error) {
	return s.MutateThen(id, fn, nil)
}

// MutateThen is Mutate with a commit hook: when fn succeeds, then runs
// with the committed snapshot before the room's lock is released, so
// side effects (broadcasts) are ordered exactly like the commits. then
// must not block or take a lock ordered before this room's. Returning
// true from then removes the room atomically with the mutation: any
// mutator already waiting on the lock observes RoomNotFound instead of
// committing to an orphaned room.
func (s *Store) MutateThen(id string, fn func(r *domain.Room) error, then func(snap domain.Room) (remove bool)) (domain.Room, error) {
	s.mu.RLock()
	e, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err := fn(e.room); err != nil {
		e.mu.Unlock()
		return domain.Room{}, err
	}
	e.room.UpdatedAt = time.Now()
	snap := e.room.Clone()

	remove := false
	if then != nil {
		remove = then(snap)
	}
	if remove {
		e.removed = true
	}
	e.mu.Unlock()

	if remove {
		s.mu.Lock()
		delete(s.rooms, id)
		s.mu.Unlock()
	}
	return snap, nil
}

// Remove deletes the room entry. Absent ids are a no-op so teardown and
// disconnect handling can race without error noise. The entry is
// tombstoned so a mutator holding the pointer cannot commit afterwards.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	e, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
}

// List returns snapshots of all live rooms, newest first.
func (s *Store) List() []domain.Room {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.room.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
