// Package session hosts one crossword play session: it serialises every
// input through a single event loop, drives the one-second timer, derives
// the win flag after each change and writes snapshots to a Store without
// ever blocking play on it.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bodul/campus-crossword/internal/crossword"
)

const (
	defaultTickInterval = time.Second
	defaultSaveTimeout  = 5 * time.Second
)

// ErrClosed is returned by Dispatch once the host has been closed.
var ErrClosed = errors.New("session closed")

// Config wires a Host to its collaborators. The zero value is a session
// without persistence ticking once per second.
type Config struct {
	// Key names the persistence slot.
	Key string

	// Store receives snapshots after every change and is read once on
	// Open. Nil disables persistence.
	Store Store

	Logger *zap.Logger

	TickInterval time.Duration

	// Ticks replaces the internal ticker when set. Tests drive the timer
	// through it.
	Ticks <-chan time.Time

	SaveTimeout time.Duration

	// OnChange runs on the event loop after every state change. It must
	// not call back into the Host.
	OnChange func(View)

	// OnPersistError is told about failed snapshot writes.
	OnPersistError func(error)
}

// View is the read-only presentation of a session.
type View struct {
	State        crossword.State  `json:"state"`
	SelectedClue *crossword.Clue  `json:"selected_clue,omitempty"`
	Bounds       crossword.Bounds `json:"bounds"`
	Elapsed      string           `json:"elapsed"`
	Phase        Phase            `json:"phase"`
}

type request struct {
	action crossword.Action
	reply  chan View
}

// Host owns a session state. All methods are safe for concurrent use;
// actions are applied one at a time in arrival order.
type Host struct {
	cfg    Config
	puzzle crossword.PuzzleInput
	log    *zap.Logger

	requests chan request
	saves    chan []byte
	quit     chan struct{}

	loopDone  chan struct{}
	saverDone chan struct{}
	closeOnce sync.Once

	// state is only touched by the event loop once Open returns.
	state    crossword.State
	restored bool
	view     atomic.Pointer[View]
}

// Open builds the initial state for puzzle, restores the snapshot found in
// cfg.Store if it fits the puzzle, and starts the event loop. A missing or
// unusable snapshot is logged and play starts fresh.
func Open(ctx context.Context, puzzle crossword.PuzzleInput, cfg Config) *Host {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}

	h := &Host{
		cfg:       cfg,
		puzzle:    puzzle,
		log:       cfg.Logger.With(zap.String("session", cfg.Key)),
		requests:  make(chan request),
		saves:     make(chan []byte, 1),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		saverDone: make(chan struct{}),
	}

	h.log.Debug("session phase", zap.Stringer("phase", PhaseLoading))
	h.state = crossword.BuildInitialState(puzzle)
	h.restore(ctx)
	if won := crossword.Solved(h.state.Grid); won != h.state.Won {
		h.state = crossword.Reduce(h.state, crossword.SetWon{To: won})
	}
	h.publish()

	ticks, stop := h.ticker()
	go h.run(ticks, stop)
	go h.persist()
	return h
}

func (h *Host) restore(ctx context.Context) {
	if h.cfg.Store == nil {
		return
	}
	data, err := h.cfg.Store.Load(ctx, h.cfg.Key)
	if errors.Is(err, ErrNoSnapshot) {
		h.log.Debug("no snapshot, starting fresh")
		return
	}
	if err != nil {
		h.log.Warn("snapshot read failed, starting fresh", zap.Error(err))
		return
	}

	snap, err := crossword.DecodeSnapshot(data)
	if err == nil {
		err = crossword.SameLayout(snap, h.state)
	}
	if err != nil {
		h.log.Warn("snapshot rejected, starting fresh", zap.Error(err))
		return
	}

	h.log.Debug("session phase", zap.Stringer("phase", PhaseRestoring))
	h.state = crossword.Reduce(h.state, crossword.LoadState{State: snap})
	h.restored = true
	h.log.Info("snapshot restored",
		zap.Int("seconds", snap.Seconds),
		zap.Stringer("phase", phaseOf(h.state)))
}

func (h *Host) ticker() (<-chan time.Time, func()) {
	if h.cfg.Ticks != nil {
		return h.cfg.Ticks, func() {}
	}
	t := time.NewTicker(h.cfg.TickInterval)
	return t.C, t.Stop
}

// Restored reports whether Open resumed from a snapshot.
func (h *Host) Restored() bool {
	return h.restored
}

// Puzzle returns the puzzle this session plays.
func (h *Host) Puzzle() crossword.PuzzleInput {
	return h.puzzle
}

// View returns the latest published view.
func (h *Host) View() View {
	return *h.view.Load()
}

// Dispatch applies a on the event loop and returns the resulting view.
func (h *Host) Dispatch(ctx context.Context, a crossword.Action) (View, error) {
	req := request{action: a, reply: make(chan View, 1)}
	select {
	case h.requests <- req:
	case <-h.quit:
		return h.View(), ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case v := <-req.reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close stops the timer and the event loop, then waits for the last
// pending snapshot write. Calling Close again is a no-op.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		close(h.quit)
		<-h.loopDone
		close(h.saves)
	})

	select {
	case <-h.saverDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) run(ticks <-chan time.Time, stop func()) {
	defer close(h.loopDone)
	defer stop()

	for {
		select {
		case <-h.quit:
			return
		case req := <-h.requests:
			req.reply <- h.apply(req.action)
		case <-ticks:
			if h.state.Won {
				continue
			}
			h.apply(crossword.Tick{})
		}
	}
}

// apply runs one action through the reducer, then re-derives the win flag
// from the grid and hands the new state to the persister.
func (h *Host) apply(a crossword.Action) View {
	a, ok := h.prepare(a)
	if !ok {
		return h.View()
	}

	next, changed := crossword.Step(h.state, a)
	if !changed {
		return h.View()
	}
	if won := crossword.Solved(next.Grid); won != next.Won {
		next = crossword.Reduce(next, crossword.SetWon{To: won})
	}
	if next.Equal(h.state) {
		return h.View()
	}
	h.state = next

	v := h.publish()
	h.enqueueSave(next)
	if h.cfg.OnChange != nil {
		h.cfg.OnChange(v)
	}
	return v
}

// prepare fills in or vets actions that carry data from outside the
// session.
func (h *Host) prepare(a crossword.Action) (crossword.Action, bool) {
	switch a := a.(type) {
	case crossword.ResetGrid:
		if a.Puzzle == nil {
			p := h.puzzle
			a.Puzzle = &p
		}
		return a, true
	case crossword.LoadState:
		err := crossword.ValidateSnapshot(a.State)
		if err == nil {
			err = crossword.SameLayout(a.State, h.state)
		}
		if err != nil {
			h.log.Warn("loadState rejected", zap.Error(err))
			return a, false
		}
		return a, true
	}
	return a, true
}

func (h *Host) publish() View {
	v := View{
		State:   h.state,
		Bounds:  crossword.GridBounds(h.state),
		Elapsed: crossword.FormatElapsed(h.state.Seconds),
		Phase:   phaseOf(h.state),
	}
	if clue, ok := crossword.SelectedClue(h.state); ok {
		v.SelectedClue = &clue
	}
	h.view.Store(&v)
	return v
}

// enqueueSave keeps at most one pending snapshot; a newer one replaces it.
// The event loop is the only sender, so the final send cannot block.
func (h *Host) enqueueSave(s crossword.State) {
	if h.cfg.Store == nil {
		return
	}
	data, err := crossword.EncodeSnapshot(s)
	if err != nil {
		h.log.Warn("snapshot encode failed", zap.Error(err))
		return
	}
	select {
	case h.saves <- data:
		return
	default:
	}
	select {
	case <-h.saves:
	default:
	}
	h.saves <- data
}

func (h *Host) persist() {
	defer close(h.saverDone)
	for data := range h.saves {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SaveTimeout)
		err := h.cfg.Store.Save(ctx, h.cfg.Key, data)
		cancel()
		if err != nil {
			h.log.Warn("snapshot write failed", zap.Error(err))
			if h.cfg.OnPersistError != nil {
				h.cfg.OnPersistError(err)
			}
		}
	}
}
