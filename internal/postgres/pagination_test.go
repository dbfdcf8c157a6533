package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partydeck/game-server/internal/postgres"
)

func TestCursorRoundTrip(t *testing.T) {
	want := postgres.Cursor{
		FinishedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		ID:         "4f9c1a2e",
	}

	enc, err := postgres.EncodeCursor(want)
	require.NoError(t, err)
	assert.NotContains(t, enc, "=") // raw url encoding, safe in query strings

	got, err := postgres.DecodeCursor(enc)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestDecodeCursorEmptyMeansFirstPage(t *testing.T) {
	got, err := postgres.DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, s := range []string{"!!!", "bm90IGpzb24", "AAAA"} {
		_, err := postgres.DecodeCursor(s)
		assert.ErrorIs(t, err, postgres.ErrInvalidCursor, "cursor %q", s)
	}
}
