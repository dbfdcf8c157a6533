package room

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partydeck/game-server/internal/broadcast"
	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/registry"
)

// OutcomePersister receives finished-game outcomes. Implementations must
// not block: durability is secondary to live-session correctness, so the
// manager fires and forgets.
type OutcomePersister interface {
	Enqueue(o domain.Outcome)
}

// ActionApplier mutates a room's payload in response to a game action.
// It runs under the room's update lock, so implementations must not do
// I/O. Game rules plug in here; the manager itself treats the payload as
// opaque.
type ActionApplier func(r *domain.Room, participantID string, action json.RawMessage) error

// ReplacePayload is the default applier: the action payload becomes the
// new room payload wholesale.
func ReplacePayload(r *domain.Room, _ string, action json.RawMessage) error {
	r.Payload = action
	return nil
}

type ManagerConfig struct {
	CodeLength      int // generated room code length
	DefaultCapacity int
	MaxCapacity     int
	MinParticipants int // required before Start succeeds
}

func (c *ManagerConfig) setDefaults() {
	if c.CodeLength <= 0 {
		c.CodeLength = 6
	}
	if c.DefaultCapacity <= 0 {
		c.DefaultCapacity = 8
	}
	if c.MaxCapacity <= 0 {
		c.MaxCapacity = 16
	}
	if c.MinParticipants <= 0 {
		c.MinParticipants = 2
	}
}

// Manager drives the per-room state machine
// (open → in_progress → finished → removed, closed terminal on abort)
// and keeps the participant → room index. Per-room ordering comes from
// the store's update locks; broadcasts are enqueued under the same lock
// (sends never block) so sequence numbers match commit order, while
// persistence calls only ever happen after the lock is released.
type Manager struct {
	store   *Store
	reg     *registry.Registry
	disp    *broadcast.Dispatcher
	persist OutcomePersister
	apply   ActionApplier
	cfg     ManagerConfig
	log     *slog.Logger

	index *participantIndex
}

func NewManager(store *Store, reg *registry.Registry, disp *broadcast.Dispatcher, persist OutcomePersister, apply ActionApplier, cfg ManagerConfig, log *slog.Logger) *Manager {
	cfg.setDefaults()
	if apply == nil {
		apply = ReplacePayload
	}
	return &Manager{
		store:   store,
		reg:     reg,
		disp:    disp,
		persist: persist,
		apply:   apply,
		cfg:     cfg,
		log:     log,
		index:   newParticipantIndex(),
	}
}

// CreateRoom allocates a room with the given id, or a generated code
// when id is empty. Capacity is clamped to the configured maximum.
func (m *Manager) CreateRoom(id string, capacity int, payload json.RawMessage) (domain.Room, error) {
	if capacity <= 0 {
		capacity = m.cfg.DefaultCapacity
	}
	if capacity > m.cfg.MaxCapacity {
		capacity = m.cfg.MaxCapacity
	}

	if id != "" {
		snap, err := m.store.Create(strings.ToUpper(id), capacity, payload)
		if err != nil {
			return domain.Room{}, err
		}
		m.log.Info("room created", "room_id", snap.ID, "capacity", capacity)
		return snap, nil
	}

	// Generated codes can collide; retry a few times before giving up.
	for i := 0; i < 5; i++ {
		code := generateCode(m.cfg.CodeLength)
		snap, err := m.store.Create(code, capacity, payload)
		if err == nil {
			m.log.Info("room created", "room_id", snap.ID, "capacity", capacity)
			return snap, nil
		}
		if err != domain.ErrRoomAlreadyExists {
			return domain.Room{}, err
		}
	}
	return domain.Room{}, fmt.Errorf("allocate room code: %w", domain.ErrRoomAlreadyExists)
}

func (m *Manager) Room(id string) (domain.Room, error) {
	return m.store.Get(strings.ToUpper(id))
}

func (m *Manager) Rooms() []domain.Room {
	return m.store.List()
}

// Join appends a participant to an open room, attaches the connection
// and broadcasts the updated state. Competing joins for the last slot
// are serialized by the room lock: exactly one wins.
func (m *Manager) Join(connID, roomID, displayName string) (domain.Room, domain.Participant, error) {
	roomID = strings.ToUpper(roomID)

	// Reject before touching room state if the socket already represents
	// someone else.
	if attached, _, ok := m.reg.Attachment(connID); ok && attached != roomID {
		return domain.Room{}, domain.Participant{}, domain.ErrConflictingAttachment
	}

	p := domain.Participant{
		ID:          uuid.NewString(),
		DisplayName: strings.TrimSpace(displayName),
		JoinedAt:    time.Now(),
	}

	var attachErr error
	snap, err := m.store.MutateThen(roomID, func(r *domain.Room) error {
		if !r.Joinable() {
			return domain.ErrRoomNotJoinable
		}
		if r.Full() {
			return domain.ErrRoomFull
		}
		for i := range r.Participants {
			if strings.EqualFold(r.Participants[i].DisplayName, p.DisplayName) {
				return domain.ErrNameTaken
			}
		}
		p.JoinOrder = len(r.Participants)
		r.Participants = append(r.Participants, p)
		return nil
	}, func(snap domain.Room) bool {
		// Attach and broadcast under the room lock so the state everyone
		// observes at this seq is the state that admitted the join.
		if attachErr = m.reg.Attach(connID, roomID, p.ID); attachErr != nil {
			return false
		}
		m.index.put(p.ID, roomID)
		m.disp.Publish(roomID, domain.Event{Type: domain.EventRoomState, Payload: domain.RoomStatePayload{Room: snap}})
		return false
	})
	if err != nil {
		return domain.Room{}, domain.Participant{}, err
	}
	if attachErr != nil {
		// Undo the membership; nothing was broadcast, so this stays
		// invisible to other participants.
		m.rollbackJoin(roomID, p.ID)
		return domain.Room{}, domain.Participant{}, attachErr
	}

	m.log.Info("participant joined", "room_id", roomID, "participant_id", p.ID, "name", p.DisplayName)
	return snap, p, nil
}

// Leave removes the participant from whichever room it occupies. Absent
// participants are a no-op. Removing the last participant closes the
// room and tears it down.
func (m *Manager) Leave(participantID string) {
	roomID, ok := m.index.take(participantID)
	if !ok {
		return
	}

	_, err := m.store.MutateThen(roomID, func(r *domain.Room) error {
		if !r.RemoveParticipant(participantID) {
			return domain.ErrRoomNotFound // unreachable while index is consistent
		}
		if len(r.Participants) == 0 && r.Status != domain.StatusFinished {
			r.Status = domain.StatusClosed
		}
		return nil
	}, func(snap domain.Room) bool {
		if len(snap.Participants) == 0 {
			m.teardown(roomID, "empty")
			return true
		}
		m.disp.Publish(roomID, domain.Event{Type: domain.EventRoomState, Payload: domain.RoomStatePayload{Room: snap}})
		return false
	})
	if err != nil {
		// Room already gone; the index entry was stale.
		return
	}

	m.log.Info("participant left", "room_id", roomID, "participant_id", participantID)
}

// LeaveConn runs the leave path for the connection's participant and
// only then detaches the socket, so the final room_state or room_closed
// broadcast still reaches the leaver.
func (m *Manager) LeaveConn(connID string) {
	_, participantID, ok := m.reg.Attachment(connID)
	if !ok {
		return
	}
	m.Leave(participantID)
	m.reg.Detach(connID)
}

// Disconnect is the transport's unregister hook. Connection-level errors
// always route through here so no orphaned state accumulates; the sender
// is closed so a slow-but-alive client observes the disconnect instead
// of lingering silently unsubscribed.
func (m *Manager) Disconnect(connID string) {
	s, participantID, attached := m.reg.Unregister(connID)
	if s != nil {
		_ = s.Close()
	}
	if attached {
		m.Leave(participantID)
	}
}

// Start transitions open → in_progress once enough participants joined.
func (m *Manager) Start(roomID string) (domain.Room, error) {
	roomID = strings.ToUpper(roomID)
	snap, err := m.store.MutateThen(roomID, func(r *domain.Room) error {
		if r.Status != domain.StatusOpen {
			return domain.ErrInvalidTransition
		}
		if len(r.Participants) < m.cfg.MinParticipants {
			return fmt.Errorf("%w: need at least %d participants", domain.ErrInvalidTransition, m.cfg.MinParticipants)
		}
		r.Status = domain.StatusInProgress
		return nil
	}, m.publishState(roomID))
	if err != nil {
		return domain.Room{}, err
	}

	m.log.Info("room started", "room_id", roomID, "participants", len(snap.Participants))
	return snap, nil
}

// Finish transitions in_progress → finished and hands the outcome to the
// persistence layer. The room lock is released before Enqueue; a
// persistence failure can no longer affect the committed transition.
func (m *Manager) Finish(roomID string, result json.RawMessage) (domain.Room, error) {
	roomID = strings.ToUpper(roomID)
	snap, err := m.store.MutateThen(roomID, func(r *domain.Room) error {
		if r.Status != domain.StatusInProgress {
			return domain.ErrInvalidTransition
		}
		r.Status = domain.StatusFinished
		return nil
	}, m.publishState(roomID))
	if err != nil {
		return domain.Room{}, err
	}

	m.persist.Enqueue(domain.Outcome{
		RoomID:       roomID,
		Result:       result,
		Participants: snap.Participants,
		FinishedAt:   time.Now(),
	})

	m.log.Info("room finished", "room_id", roomID)
	return snap, nil
}

// Action applies a game action from the given connection to its room's
// payload via the configured applier and broadcasts the result.
func (m *Manager) Action(connID string, action json.RawMessage) (domain.Room, error) {
	roomID, participantID, ok := m.reg.Attachment(connID)
	if !ok {
		return domain.Room{}, domain.ErrConnectionNotFound
	}

	snap, err := m.store.MutateThen(roomID, func(r *domain.Room) error {
		return m.apply(r, participantID, action)
	}, m.publishState(roomID))
	if err != nil {
		return domain.Room{}, err
	}
	return snap, nil
}

// publishState is the commit hook shared by the plain transitions:
// broadcast the committed snapshot, keep the room.
func (m *Manager) publishState(roomID string) func(domain.Room) bool {
	return func(snap domain.Room) bool {
		m.disp.Publish(roomID, domain.Event{Type: domain.EventRoomState, Payload: domain.RoomStatePayload{Room: snap}})
		return false
	}
}

// teardown tells the room's subscribers it is gone and reclaims the
// broadcast stream. Runs inside the room's commit hook; the store
// removes the entry when the hook returns true.
func (m *Manager) teardown(roomID, reason string) {
	m.disp.Publish(roomID, domain.Event{Type: domain.EventRoomClosed, Payload: domain.RoomClosedPayload{RoomID: roomID, Reason: reason}})
	m.disp.Forget(roomID)
	m.log.Info("room removed", "room_id", roomID, "reason", reason)
}

func (m *Manager) rollbackJoin(roomID, participantID string) {
	_, _ = m.store.Mutate(roomID, func(r *domain.Room) error {
		r.RemoveParticipant(participantID)
		return nil
	})
}
