package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bodul/campus-crossword/internal/content"
	"github.com/bodul/campus-crossword/internal/session"
)

var (
	errSessionNotFound = errors.New("session not found")
	errBadSessionID    = errors.New("session id must be a UUID")
	errPuzzleMismatch  = errors.New("session is playing another puzzle")
)

// PlaySession is an open session in the registry.
type PlaySession struct {
	ID       string `json:"id"`
	PuzzleID int64  `json:"puzzle_id"`
	Restored bool   `json:"restored"`

	host     *session.Host
	lastUsed atomic.Int64 // unix nanoseconds
}

func (ps *PlaySession) touch(now time.Time) {
	ps.lastUsed.Store(now.UnixNano())
}

// snapshotDeleter is implemented by snapshot stores that can discard a slot.
type snapshotDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Store keeps the puzzle archive and the open play sessions. Each session
// id doubles as its snapshot key, so opening a known id resumes play.
type Store struct {
	puzzles   *content.Store
	snapshots session.Store
	base      session.Config
	log       *zap.Logger

	// onChange receives every state change of every session.
	onChange func(id string, v session.View)

	now func() time.Time

	// opening collapses concurrent opens of one id into a single host.
	opening singleflight.Group

	mu       sync.Mutex
	sessions map[string]*PlaySession
}

type openResult struct {
	ps      *PlaySession
	created bool
}

// NewStore creates a registry. base carries the settings shared by every
// session host; its Key, Store and OnChange are set per session.
func NewStore(puzzles *content.Store, snapshots session.Store, base session.Config) *Store {
	if base.Logger == nil {
		base.Logger = zap.NewNop()
	}
	return &Store{
		puzzles:   puzzles,
		snapshots: snapshots,
		base:      base,
		log:       base.Logger,
		now:       time.Now,
		sessions:  make(map[string]*PlaySession),
	}
}

// OpenSession returns the session with the given id, opening it if needed.
// An empty id creates a new session; puzzleID 0 selects the latest puzzle.
// created is false when the id was already open.
func (s *Store) OpenSession(ctx context.Context, puzzleID int64, id string) (ps *PlaySession, created bool, err error) {
	if id == "" {
		id = uuid.NewString()
	} else if u, err := uuid.Parse(id); err != nil {
		return nil, false, errBadSessionID
	} else {
		id = u.String()
	}

	if ps := s.Get(id); ps != nil {
		if puzzleID != 0 && puzzleID != ps.PuzzleID {
			return nil, false, errPuzzleMismatch
		}
		return ps, false, nil
	}

	// The host is opened outside s.mu: restoring reads the snapshot store.
	ran := false
	v, err, _ := s.opening.Do(id, func() (any, error) {
		ran = true
		return s.open(context.WithoutCancel(ctx), puzzleID, id)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(openResult)
	if puzzleID != 0 && puzzleID != res.ps.PuzzleID {
		return nil, false, errPuzzleMismatch
	}
	return res.ps, res.created && ran, nil
}

func (s *Store) open(ctx context.Context, puzzleID int64, id string) (openResult, error) {
	if ps := s.Get(id); ps != nil {
		// Opened between the caller's lookup and this call.
		return openResult{ps: ps}, nil
	}

	var (
		p   *content.Puzzle
		err error
	)
	if puzzleID == 0 {
		p, err = s.puzzles.Latest(ctx)
	} else {
		p, err = s.puzzles.Get(ctx, puzzleID)
	}
	if err != nil {
		return openResult{}, err
	}

	cfg := s.base
	cfg.Key = id
	cfg.Store = s.snapshots
	if s.onChange != nil {
		cfg.OnChange = func(v session.View) { s.onChange(id, v) }
	}
	host := session.Open(ctx, p.Input, cfg)

	ps := &PlaySession{ID: id, PuzzleID: p.ID, Restored: host.Restored(), host: host}
	ps.touch(s.now())
	s.mu.Lock()
	s.sessions[id] = ps
	s.mu.Unlock()

	s.log.Info("session opened",
		zap.String("session", id),
		zap.Int64("puzzle", p.ID),
		zap.Bool("restored", ps.Restored))
	return openResult{ps: ps, created: true}, nil
}

// Get returns an open session, or nil, and marks it as used.
func (s *Store) Get(id string) *PlaySession {
	s.mu.Lock()
	ps := s.sessions[id]
	s.mu.Unlock()
	if ps != nil {
		ps.touch(s.now())
	}
	return ps
}

// Count returns the number of open sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseSession closes a session host, waiting for its last snapshot. With
// discard set the snapshot is deleted afterwards.
func (s *Store) CloseSession(ctx context.Context, id string, discard bool) error {
	s.mu.Lock()
	ps, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}

	if err := ps.host.Close(ctx); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	if discard {
		if d, ok := s.snapshots.(snapshotDeleter); ok {
			if err := d.Delete(ctx, id); err != nil {
				return fmt.Errorf("discard snapshot %s: %w", id, err)
			}
		}
	}
	s.log.Info("session closed", zap.String("session", id), zap.Bool("discarded", discard))
	return nil
}

// Reap closes sessions unused for longer than idle, keeping their
// snapshots, and returns their ids. Sessions for which keep reports true
// stay open.
func (s *Store) Reap(ctx context.Context, idle time.Duration, keep func(id string) bool) []string {
	cutoff := s.now().Add(-idle).UnixNano()

	s.mu.Lock()
	var stale []*PlaySession
	for id, ps := range s.sessions {
		if ps.lastUsed.Load() >= cutoff || (keep != nil && keep(id)) {
			continue
		}
		delete(s.sessions, id)
		stale = append(stale, ps)
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, ps := range stale {
		if err := ps.host.Close(ctx); err != nil {
			s.log.Warn("idle session close failed", zap.String("session", ps.ID), zap.Error(err))
		}
		ids = append(ids, ps.ID)
	}
	return ids
}

// Close closes every open session.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*PlaySession)
	s.mu.Unlock()

	var errs []error
	for id, ps := range open {
		if err := ps.host.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
