package room

import "sync"

// participantIndex maps participant id → room id, enforcing the
// at-most-one-room invariant and letting Leave work from a participant
// id alone.
type participantIndex struct {
	mu sync.Mutex
	m  map[string]string
}

func newParticipantIndex() *participantIndex {
	return &participantIndex{m: make(map[string]string)}
}

func (i *participantIndex) put(participantID, roomID string) {
	i.mu.Lock()
	i.m[participantID] = roomID
	i.mu.Unlock()
}

// take removes and returns the participant's room in one step, so
// concurrent Leave calls for the same participant run the removal once.
func (i *participantIndex) take(participantID string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	roomID, ok := i.m[participantID]
	if ok {
		delete(i.m, participantID)
	}
	return roomID, ok
}
