package registry

import (
	"sync"

	"github.com/partydeck/game-server/internal/domain"
)

// Sender is the transport-side half of a live connection. Send must not
// block: transports queue the event and report ErrSlowConsumer when the
// buffer is full.
type Sender interface {
	Send(ev domain.Event) error
	Close() error
}

type Subscriber struct {
	ConnID string
	Sender Sender
}

type conn struct {
	sender        Sender
	roomID        string
	participantID string
}

// Registry tracks live connections and which room/participant each one
// represents. One instance per process; the websocket layer registers on
// upgrade and unregisters on disconnect.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	byRoom map[string][]string // roomID -> conn ids, insertion order
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]*conn),
		byRoom: make(map[string][]string),
	}
}

func (r *Registry) Register(connID string, s Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return domain.ErrDuplicateConnection
	}
	r.conns[connID] = &conn{sender: s}
	return nil
}

// Attach records the room/participant a connection represents.
// Idempotent for identical arguments; attaching an already-attached
// connection to a different room fails.
func (r *Registry) Attach(connID, roomID, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return domain.ErrConnectionNotFound
	}
	if c.roomID != "" {
		if c.roomID == roomID && c.participantID == participantID {
			return nil
		}
		return domain.ErrConflictingAttachment
	}
	c.roomID = roomID
	c.participantID = participantID
	r.byRoom[roomID] = append(r.byRoom[roomID], connID)
	return nil
}

// Detach clears the attachment but keeps the connection registered, so a
// client can leave one room and join another over the same socket.
func (r *Registry) Detach(connID string) (participantID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conns[connID]
	if !exists || c.roomID == "" {
		return "", false
	}
	participantID = c.participantID
	r.removeFromRoom(c.roomID, connID)
	c.roomID, c.participantID = "", ""
	return participantID, true
}

// Unregister drops the connection entirely. The Sender is returned so
// the caller can close it; the attached participant id, if any, so the
// caller can run the leave path.
func (r *Registry) Unregister(connID string) (s Sender, participantID string, attached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil, "", false
	}
	s = c.sender
	if c.roomID != "" {
		participantID = c.participantID
		attached = true
		r.removeFromRoom(c.roomID, connID)
	}
	delete(r.conns, connID)
	return s, participantID, attached
}

// Subscribers returns the current subscribers of a room in insertion
// order. The slice is a copy and safe to iterate without the lock.
func (r *Registry) Subscribers(roomID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byRoom[roomID]
	out := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.conns[id]; ok {
			out = append(out, Subscriber{ConnID: id, Sender: c.sender})
		}
	}
	return out
}

// Attachment reports the room/participant a connection is attached to.
func (r *Registry) Attachment(connID string) (roomID, participantID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.conns[connID]
	if !exists || c.roomID == "" {
		return "", "", false
	}
	return c.roomID, c.participantID, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Drain closes every registered connection and empties the registry.
// Used on shutdown only.
func (r *Registry) Drain() {
	r.mu.Lock()
	conns := make([]Sender, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c.sender)
	}
	r.conns = make(map[string]*conn)
	r.byRoom = make(map[string][]string)
	r.mu.Unlock()

	for _, s := range conns {
		_ = s.Close()
	}
}

// removeFromRoom must be called with the write lock held.
func (r *Registry) removeFromRoom(roomID, connID string) {
	ids := r.byRoom[roomID]
	for i, id := range ids {
		if id == connID {
			r.byRoom[roomID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.byRoom[roomID]) == 0 {
		delete(r.byRoom, roomID)
	}
}
