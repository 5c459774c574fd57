package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodul/campus-crossword/internal/crossword"
	"github.com/bodul/campus-crossword/internal/session"
)

func TestInMemoryRoundTrip(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNoSnapshot)

	require.NoError(t, s.Save(ctx, "a", []byte("one")))
	require.NoError(t, s.Save(ctx, "a", []byte("two")))
	require.NoError(t, s.Save(ctx, "b", []byte("three")))

	data, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Load(ctx, "a")
	assert.ErrorIs(t, err, session.ErrNoSnapshot)
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "daily", []byte(`{"seconds":3}`)))
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Load(ctx, "daily")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seconds":3}`, string(data))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, "k", []byte("x")), context.Canceled)
	_, err = s.Load(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionResumesFromBadger(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	puzzle := crossword.PuzzleInput{Clues: crossword.ClueSet[crossword.ClueSpec]{
		Across: []crossword.ClueSpec{{Num: "1", Row: 0, Col: 0, Answer: "CAT", Clue: "Feline"}},
	}}
	ctx := context.Background()
	cfg := session.Config{Key: "daily", Store: s, Ticks: make(chan time.Time)}

	h := session.Open(ctx, puzzle, cfg)
	_, err = h.Dispatch(ctx, crossword.KeyDown{Key: "C"})
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	h = session.Open(ctx, puzzle, cfg)
	defer h.Close(ctx)
	assert.True(t, h.Restored())
	assert.Equal(t, "C", h.View().State.Grid[0][0].Guess)
	assert.Equal(t, crossword.Position{Row: 0, Col: 1}, h.View().State.Position)
}
