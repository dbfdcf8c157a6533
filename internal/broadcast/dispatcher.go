package broadcast

import (
	"log/slog"
	"sync"

	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/registry"
)

// stream holds the per-room ordering state. Holding stream.mu across the
// fan-out is what guarantees subscribers observe events in publish
// order; sends are non-blocking enqueues so the lock is never held
// across transport I/O.
type stream struct {
	mu  sync.Mutex
	seq uint64
}

// Dispatcher fans out room events to every subscribed connection.
// Delivery is independent and best-effort per connection: a failed send
// is logged and the connection is handed to the drop callback (the
// lifecycle disconnect path) without affecting the rest of the room.
type Dispatcher struct {
	reg *registry.Registry
	log *slog.Logger

	mu      sync.Mutex
	streams map[string]*stream

	drop func(connID string)
}

func NewDispatcher(reg *registry.Registry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		log:     log,
		streams: make(map[string]*stream),
	}
}

// OnDrop installs the callback invoked for connections that fail a send.
// Set once during wiring, before any traffic.
func (d *Dispatcher) OnDrop(fn func(connID string)) { d.drop = fn }

// Publish assigns the next per-room sequence number and delivers the
// event to all current subscribers. Events for the same room reach every
// subscriber in publish order; nothing is promised across rooms.
func (d *Dispatcher) Publish(roomID string, ev domain.Event) {
	st := d.stream(roomID)

	var failed []string

	st.mu.Lock()
	st.seq++
	ev.RoomID = roomID
	ev.Seq = st.seq
	for _, sub := range d.reg.Subscribers(roomID) {
		if err := sub.Sender.Send(ev); err != nil {
			d.log.Warn("broadcast send failed, dropping connection",
				"room_id", roomID, "conn_id", sub.ConnID, "seq", ev.Seq, "err", err)
			failed = append(failed, sub.ConnID)
		}
	}
	st.mu.Unlock()

	// Drop on a separate goroutine: the disconnect path takes room and
	// stream locks that may be held by the publisher right now.
	if d.drop != nil {
		for _, id := range failed {
			go d.drop(id)
		}
	}
}

// Forget reclaims the sequence state of a removed room.
func (d *Dispatcher) Forget(roomID string) {
	d.mu.Lock()
	delete(d.streams, roomID)
	d.mu.Unlock()
}

// Seq reports the last sequence number published for a room.
func (d *Dispatcher) Seq(roomID string) uint64 {
	d.mu.Lock()
	st, ok := d.streams[roomID]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.seq
}

func (d *Dispatcher) stream(roomID string) *stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.streams[roomID]
	if !ok {
		st = &stream{}
		d.streams[roomID] = st
	}
	return st
}
