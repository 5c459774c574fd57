package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bodul/campus-crossword/internal/config"
	"github.com/bodul/campus-crossword/internal/content"
	"github.com/bodul/campus-crossword/internal/crossword"
	"github.com/bodul/campus-crossword/internal/session"
)

const (
	maxUploadSize = 10 << 20 // 10 Mo
	maxBodySize   = 1 << 20
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Server is the main HTTP server.
type Server struct {
	mux      *http.ServeMux
	puzzles  *content.Store
	sessions *Store
	gemini   *GeminiClient
	sse      *Broadcaster
	uploadRL *rateLimiter
	actionRL *rateLimiter
	openRL   *rateLimiter
	metrics  *metrics
	log      *zap.Logger
}

// NewServer creates a configured HTTP server. Session changes from the
// registry are pushed to SSE subscribers.
func NewServer(cfg config.ServerConfig, sessions *Store, gemini *GeminiClient, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		puzzles:  sessions.puzzles,
		sessions: sessions,
		gemini:   gemini,
		sse:      NewBroadcaster(),
		uploadRL: newRateLimiter(cfg.UploadsPerMinute, time.Minute),
		actionRL: newRateLimiter(cfg.ActionsPerSecond, time.Second),
		openRL:   newRateLimiter(cfg.SessionsPerMinute, time.Minute),
		metrics:  newMetrics(),
		log:      log,
	}
	sessions.onChange = s.publishView
	sessions.base.OnPersistError = func(error) { s.metrics.snapshotFailure.Inc() }
	s.routes()
	return s
}

func (s *Server) routes() {
	// Puzzle API
	s.mux.HandleFunc("POST /api/puzzles", s.handleCreatePuzzle)
	s.mux.HandleFunc("POST /api/puzzles/import", s.handleImportPuzzle)
	s.mux.HandleFunc("GET /api/puzzles", s.handleListPuzzles)
	s.mux.HandleFunc("GET /api/puzzles/latest", s.handleLatestPuzzle)
	s.mux.HandleFunc("GET /api/puzzles/{id}", s.handleGetPuzzle)

	// Session API
	s.mux.HandleFunc("POST /api/sessions", s.handleOpenSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/actions", s.handleAction)
	s.mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)

	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
	s.mux.ServeHTTP(w, r)
}

// --- Puzzle handlers ---

// POST /api/puzzles: store a puzzle definition.
func (s *Server) handleCreatePuzzle(w http.ResponseWriter, r *http.Request) {
	var in crossword.PuzzleInput
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "Requête invalide", http.StatusBadRequest)
		return
	}
	if len(in.Clues.Across)+len(in.Clues.Down) == 0 {
		jsonError(w, "Grille sans définition", http.StatusBadRequest)
		return
	}
	if !fitsGrid(in) {
		jsonError(w, "Définition hors de la grille", http.StatusBadRequest)
		return
	}

	p, err := s.savePuzzle(r, in)
	if err != nil {
		jsonError(w, "Erreur d'enregistrement de la grille", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// POST /api/puzzles/import: upload a photo, read it with Gemini, store the puzzle.
func (s *Server) handleImportPuzzle(w http.ResponseWriter, r *http.Request) {
	if !s.uploadRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	if s.gemini == nil {
		jsonError(w, "Analyse d'image non configurée", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, "Image trop volumineuse (max 10 Mo)", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "Champ 'image' requis", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIME[mimeType] {
		jsonError(w, "Format accepté : JPEG ou PNG", http.StatusBadRequest)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "Erreur de lecture de l'image", http.StatusInternalServerError)
		return
	}

	in, err := s.gemini.AnalyzeImage(r.Context(), imageData, mimeType)
	if err != nil {
		s.metrics.imports.WithLabelValues("failed").Inc()
		s.log.Warn("gemini analyze failed", zap.Error(err))
		jsonError(w, "Erreur lors de l'analyse de la grille", http.StatusInternalServerError)
		return
	}
	s.metrics.imports.WithLabelValues("ok").Inc()

	p, err := s.savePuzzle(r, *in)
	if err != nil {
		jsonError(w, "Erreur d'enregistrement de la grille", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// fitsGrid reports whether every clue of in lies inside the largest grid.
func fitsGrid(in crossword.PuzzleInput) bool {
	for _, c := range in.Clues.Across {
		if !c.Fits(crossword.Across) {
			return false
		}
	}
	for _, c := range in.Clues.Down {
		if !c.Fits(crossword.Down) {
			return false
		}
	}
	return true
}

func (s *Server) savePuzzle(r *http.Request, in crossword.PuzzleInput) (*content.Puzzle, error) {
	id, err := s.puzzles.Save(r.Context(), in)
	if err != nil {
		s.log.Error("puzzle save failed", zap.Error(err))
		return nil, err
	}
	s.log.Info("puzzle stored", zap.Int64("puzzle", id), zap.String("date", in.Date))
	return s.puzzles.Get(r.Context(), id)
}

// GET /api/puzzles: list stored puzzles, most recent first.
func (s *Server) handleListPuzzles(w http.ResponseWriter, r *http.Request) {
	list, err := s.puzzles.List(r.Context())
	if err != nil {
		s.log.Error("puzzle list failed", zap.Error(err))
		jsonError(w, "Erreur de lecture des grilles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/puzzles/latest: the most recent puzzle by date.
func (s *Server) handleLatestPuzzle(w http.ResponseWriter, r *http.Request) {
	p, err := s.puzzles.Latest(r.Context())
	s.writePuzzle(w, p, err)
}

// GET /api/puzzles/{id}: get a single puzzle.
func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "Identifiant de grille invalide", http.StatusBadRequest)
		return
	}
	p, err := s.puzzles.Get(r.Context(), id)
	s.writePuzzle(w, p, err)
}

func (s *Server) writePuzzle(w http.ResponseWriter, p *content.Puzzle, err error) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		jsonError(w, "Grille introuvable", http.StatusNotFound)
	case err != nil:
		s.log.Error("puzzle read failed", zap.Error(err))
		jsonError(w, "Erreur de lecture de la grille", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// --- Session handlers ---

type sessionResponse struct {
	*PlaySession
	View session.View `json:"view"`
}

// POST /api/sessions: open a session, or reattach to one by id.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if !s.openRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	var req struct {
		PuzzleID  int64  `json:"puzzle_id"`
		SessionID string `json:"session_id"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "Requête invalide", http.StatusBadRequest)
		return
	}

	ps, created, err := s.sessions.OpenSession(r.Context(), req.PuzzleID, req.SessionID)
	switch {
	case errors.Is(err, errBadSessionID):
		jsonError(w, "Identifiant de partie invalide", http.StatusBadRequest)
		return
	case errors.Is(err, errPuzzleMismatch):
		jsonError(w, "Cette partie joue une autre grille", http.StatusConflict)
		return
	case errors.Is(err, content.ErrNotFound):
		jsonError(w, "Grille introuvable", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("session open failed", zap.Error(err))
		jsonError(w, "Erreur lors de l'ouverture de la partie", http.StatusInternalServerError)
		return
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Count()))

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, sessionResponse{PlaySession: ps, View: ps.host.View()})
}

// GET /api/sessions/{id}: current view of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ps := s.sessions.Get(r.PathValue("id"))
	if ps == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{PlaySession: ps, View: ps.host.View()})
}

// POST /api/sessions/{id}/actions: apply one action.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if !s.actionRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	ps := s.sessions.Get(r.PathValue("id"))
	if ps == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		jsonError(w, "Requête trop volumineuse", http.StatusRequestEntityTooLarge)
		return
	}
	a, err := crossword.DecodeAction(body)
	if err != nil {
		jsonError(w, "Action invalide", http.StatusBadRequest)
		return
	}
	s.metrics.actions.WithLabelValues(actionLabel(a)).Inc()

	v, err := ps.host.Dispatch(r.Context(), a)
	switch {
	case errors.Is(err, session.ErrClosed):
		jsonError(w, "Partie terminée", http.StatusGone)
		return
	case err != nil:
		// Client went away.
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// actionLabel bounds the metric label set to the known action types.
func actionLabel(a crossword.Action) string {
	if _, ok := a.(crossword.Unknown); ok {
		return "unknown"
	}
	return a.Type()
}

// GET /api/sessions/{id}/events: SSE stream of views.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	ps := s.sessions.Get(r.PathValue("id"))
	if ps == nil {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}

	s.sse.ServeSSE(w, r, ps.ID, func(c *client) {
		// Send the current view on connect.
		if evt, err := viewEvent(ps.host.View()); err == nil {
			s.sse.Send(c, evt)
		}
	})
}

// DELETE /api/sessions/{id}: close a session. ?discard=true also drops its snapshot.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	discard, _ := strconv.ParseBool(r.URL.Query().Get("discard"))

	err := s.sessions.CloseSession(r.Context(), id, discard)
	if errors.Is(err, errSessionNotFound) {
		jsonError(w, "Partie introuvable", http.StatusNotFound)
		return
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Count()))
	if err != nil {
		s.log.Warn("session close failed", zap.String("session", id), zap.Error(err))
	}

	evt, _ := json.Marshal(map[string]string{"type": "session_closed"})
	s.sse.Broadcast(id, string(evt))
	s.sse.Disconnect(id)

	w.WriteHeader(http.StatusNoContent)
}

// reapIdle closes sessions left idle for longer than idle. A session
// with a connected event stream is kept.
func (s *Server) reapIdle(ctx context.Context, idle time.Duration) {
	ids := s.sessions.Reap(ctx, idle, func(id string) bool {
		return s.sse.ClientCount(id) > 0
	})
	if len(ids) == 0 {
		return
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Count()))
	s.log.Info("idle sessions closed", zap.Int("count", len(ids)), zap.Duration("idle", idle))
}

// publishView runs on a session's event loop after each change.
func (s *Server) publishView(id string, v session.View) {
	evt, err := viewEvent(v)
	if err != nil {
		s.log.Warn("view encode failed", zap.String("session", id), zap.Error(err))
		return
	}
	s.sse.Broadcast(id, evt)
}

func viewEvent(v session.View) (string, error) {
	evt, err := json.Marshal(map[string]any{
		"type": "view",
		"view": v,
	})
	return string(evt), err
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
