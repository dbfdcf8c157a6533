package room_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/room"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := room.NewStore()

	created, err := store.Create("ABC123", 4, json.RawMessage(`{"deck":"default"}`))
	require.NoError(t, err)
	assert.Equal(t, "ABC123", created.ID)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.Equal(t, 4, created.Capacity)
	assert.Empty(t, created.Participants)

	got, err := store.Get("ABC123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.JSONEq(t, `{"deck":"default"}`, string(got.Payload))

	_, err = store.Create("ABC123", 4, nil)
	assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)

	_, err = store.Get("NOPE")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, nil)
	require.NoError(t, err)

	snap, err := store.Mutate("R1", func(r *domain.Room) error {
		r.Participants = append(r.Participants, domain.Participant{ID: "p1", DisplayName: "ann"})
		return nil
	})
	require.NoError(t, err)

	// mutating the snapshot must not leak into the store
	snap.Participants[0].DisplayName = "mallory"

	got, err := store.Get("R1")
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Participants[0].DisplayName)
}

func TestStore_MutateErrorLeavesRoomUntouched(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, json.RawMessage(`{"n":1}`))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Mutate("R1", func(r *domain.Room) error { return boom })
	assert.ErrorIs(t, err, boom)

	got, err := store.Get("R1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload))

	_, err = store.Mutate("MISSING", func(r *domain.Room) error { return nil })
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, nil)
	require.NoError(t, err)

	store.Remove("R1")
	store.Remove("R1") // second removal must not panic or error

	_, err = store.Get("R1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, 0, store.Len())
}

// Concurrent mutators on the same room must serialize: the result has to
// equal some serial ordering of all mutations, i.e. no lost updates.
func TestStore_ConcurrentMutateNoLostUpdates(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, json.RawMessage(`{"count":0}`))
	require.NoError(t, err)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := store.Mutate("R1", func(r *domain.Room) error {
					var state struct {
						Count int `json:"count"`
					}
					if err := json.Unmarshal(r.Payload, &state); err != nil {
						return err
					}
					state.Count++
					b, err := json.Marshal(state)
					if err != nil {
						return err
					}
					r.Payload = b
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get("R1")
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"count":%d}`, workers*perWorker), string(got.Payload))
}

func TestStore_MutateThenRemovesAtomically(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, nil)
	require.NoError(t, err)

	var sawCommitted bool
	snap, err := store.MutateThen("R1", func(r *domain.Room) error {
		r.Status = domain.StatusClosed
		return nil
	}, func(snap domain.Room) bool {
		sawCommitted = snap.Status == domain.StatusClosed
		return true
	})
	require.NoError(t, err)
	assert.True(t, sawCommitted)
	assert.Equal(t, domain.StatusClosed, snap.Status)

	_, err = store.Get("R1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, 0, store.Len())
}

// A mutator that grabbed the room before it was removed must not commit
// to the orphaned entry afterwards.
func TestStore_InFlightMutateSeesRemoval(t *testing.T) {
	store := room.NewStore()
	_, err := store.Create("R1", 4, nil)
	require.NoError(t, err)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		_, _ = store.MutateThen("R1", func(r *domain.Room) error {
			close(entered)
			<-proceed
			return nil
		}, func(domain.Room) bool { return true })
	}()
	<-entered

	errCh := make(chan error, 1)
	go func() {
		_, err := store.Mutate("R1", func(*domain.Room) error { return nil })
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond) // let the second mutator park on the entry lock
	close(proceed)

	assert.ErrorIs(t, <-errCh, domain.ErrRoomNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := room.NewStore()
	for _, id := range []string{"R1", "R2", "R3"} {
		_, err := store.Create(id, 4, nil)
		require.NoError(t, err)
	}

	rooms := store.List()
	require.Len(t, rooms, 3)
	for i := 1; i < len(rooms); i++ {
		assert.False(t, rooms[i-1].CreatedAt.Before(rooms[i].CreatedAt))
	}
}
