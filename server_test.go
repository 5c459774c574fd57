package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bodul/campus-crossword/internal/config"
	"github.com/bodul/campus-crossword/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	puzzles := newTestPuzzles(t)
	sessions := NewStore(puzzles, session.NewMemoryStore(), testSessionConfig())
	t.Cleanup(func() { sessions.Close(context.Background()) })
	return NewServer(config.Default().Server, sessions, nil, nil)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return v
}

const catJSON = `{"author":"Staff","date":"2024-03-01","clues":{"across":[{"num":"1","row":0,"col":0,"answer":"cat","clue":"Feline"}],"down":[]}}`

type sessionBody struct {
	ID       string       `json:"id"`
	PuzzleID int64        `json:"puzzle_id"`
	Restored bool         `json:"restored"`
	View     session.View `json:"view"`
}

func TestFullSessionFlow(t *testing.T) {
	srv := newTestServer(t)

	// Store a puzzle.
	w := do(t, srv, "POST", "/api/puzzles", catJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	puzzle := decode[struct {
		ID int64 `json:"id"`
	}](t, w)

	// Open a session on the latest puzzle.
	w = do(t, srv, "POST", "/api/sessions", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	sess := decode[sessionBody](t, w)
	if sess.PuzzleID != puzzle.ID {
		t.Fatalf("expected puzzle %d, got %d", puzzle.ID, sess.PuzzleID)
	}
	if sess.View.Phase != session.PhasePlaying {
		t.Fatalf("expected playing, got %s", sess.View.Phase)
	}
	if sess.View.SelectedClue == nil || sess.View.SelectedClue.Clue != "Feline" {
		t.Fatalf("expected selected clue Feline, got %+v", sess.View.SelectedClue)
	}

	// Type the answer.
	var view session.View
	for _, k := range []string{"c", "a", "t"} {
		w = do(t, srv, "POST", "/api/sessions/"+sess.ID+"/actions", `{"type":"keyDown","key":"`+k+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		view = decode[session.View](t, w)
	}
	if !view.State.Won || view.Phase != session.PhaseWon {
		t.Fatalf("expected a won session, got %+v", view)
	}

	// Get session state.
	w = do(t, srv, "GET", "/api/sessions/"+sess.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decode[sessionBody](t, w)
	if got.View.State.Grid[0][2].Guess != "T" {
		t.Fatal("expected guess T at (0,2)")
	}

	// Close it.
	w = do(t, srv, "DELETE", "/api/sessions/"+sess.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/sessions/"+sess.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", w.Code)
	}

	// Reopen by id: progress is restored.
	w = do(t, srv, "POST", "/api/sessions", `{"session_id":"`+sess.ID+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if resumed := decode[sessionBody](t, w); !resumed.Restored || !resumed.View.State.Won {
		t.Fatalf("expected the won session back, got %+v", resumed)
	}
}

func TestPuzzleRoutes(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "GET", "/api/puzzles/latest", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on empty archive, got %d", w.Code)
	}

	older := strings.Replace(catJSON, "2024-03-01", "2024-02-01", 1)
	for _, body := range []string{catJSON, older} {
		if w := do(t, srv, "POST", "/api/puzzles", body); w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
	}

	w = do(t, srv, "GET", "/api/puzzles", "")
	list := decode[[]struct {
		ID   int64  `json:"id"`
		Date string `json:"date"`
	}](t, w)
	if len(list) != 2 || list[0].Date != "2024-03-01" {
		t.Fatalf("expected 2 puzzles, newest first, got %+v", list)
	}

	w = do(t, srv, "GET", "/api/puzzles/latest", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "2024-03-01") {
		t.Fatalf("expected latest puzzle, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/puzzles/"+strconv.FormatInt(list[1].ID, 10), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "2024-02-01") {
		t.Fatalf("expected puzzle by id, got %d: %s", w.Code, w.Body.String())
	}

	for path, code := range map[string]int{
		"/api/puzzles/abc": http.StatusBadRequest,
		"/api/puzzles/0":   http.StatusBadRequest,
		"/api/puzzles/999": http.StatusNotFound,
	} {
		if w := do(t, srv, "GET", path, ""); w.Code != code {
			t.Errorf("GET %s: expected %d, got %d", path, code, w.Code)
		}
	}
}

func TestCreatePuzzleValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"author":`, http.StatusBadRequest},
		{"no clues", `{"author":"Staff","date":"2024-03-01","clues":{}}`, http.StatusBadRequest},
		{"row overflow", `{"clues":{"down":[{"num":"1","row":9223372036854775807,"col":0,"answer":"AB"}]}}`, http.StatusBadRequest},
		{"huge grid", `{"clues":{"across":[{"num":"1","row":100000,"col":100000,"answer":"AB"}]}}`, http.StatusBadRequest},
		{"past the edge", `{"clues":{"across":[{"num":"1","row":0,"col":255,"answer":"AB"}]}}`, http.StatusBadRequest},
		{"valid", catJSON, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, "POST", "/api/puzzles", tt.body); w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestOpenSessionValidation(t *testing.T) {
	srv := newTestServer(t)

	if w := do(t, srv, "POST", "/api/sessions", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without any puzzle, got %d", w.Code)
	}
	do(t, srv, "POST", "/api/puzzles", catJSON)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty body", "", http.StatusCreated},
		{"bad json", `{"puzzle_id":`, http.StatusBadRequest},
		{"bad session id", `{"session_id":"../../etc"}`, http.StatusBadRequest},
		{"unknown puzzle", `{"puzzle_id":42}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, "POST", "/api/sessions", tt.body); w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestActionValidation(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "POST", "/api/puzzles", catJSON)
	sess := decode[sessionBody](t, do(t, srv, "POST", "/api/sessions", ""))
	path := "/api/sessions/" + sess.ID + "/actions"

	if w := do(t, srv, "POST", "/api/sessions/nope/actions", `{"type":"tick"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", w.Code)
	}
	if w := do(t, srv, "POST", path, `[1,2]`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-object action, got %d", w.Code)
	}

	// Unknown action types are accepted and change nothing.
	w := do(t, srv, "POST", path, `{"type":"teleport","row":9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown action, got %d", w.Code)
	}
	if v := decode[session.View](t, w); v.State.Position.Col != 0 {
		t.Fatalf("expected cursor unchanged, got %+v", v.State.Position)
	}

	// A win cannot be claimed over the wire.
	w = do(t, srv, "POST", path, `{"type":"setWon","to":true}`)
	if v := decode[session.View](t, w); v.State.Won {
		t.Fatal("expected setWon to be corrected by the grid")
	}
}

func TestActionRateLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.actionRL = newRateLimiter(2, time.Hour)
	do(t, srv, "POST", "/api/puzzles", catJSON)
	sess := decode[sessionBody](t, do(t, srv, "POST", "/api/sessions", ""))
	path := "/api/sessions/" + sess.ID + "/actions"

	for i := range 2 {
		if w := do(t, srv, "POST", path, `{"type":"toggleAutocheck"}`); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := do(t, srv, "POST", path, `{"type":"toggleAutocheck"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "GET", "/api/puzzles", "")

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range headers {
		if got := w.Header().Get(k); got != v {
			t.Errorf("header %s: expected %q, got %q", k, v, got)
		}
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestImportWithoutGemini(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "grid.png")
	part.Write([]byte("\x89PNG"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/puzzles/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestImportRateLimit(t *testing.T) {
	srv := newTestServer(t)

	for range 5 {
		do(t, srv, "POST", "/api/puzzles/import", "")
	}
	if w := do(t, srv, "POST", "/api/puzzles/import", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "POST", "/api/puzzles", catJSON)
	sess := decode[sessionBody](t, do(t, srv, "POST", "/api/sessions", ""))
	do(t, srv, "POST", "/api/sessions/"+sess.ID+"/actions", `{"type":"keyDown","key":"C"}`)

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`crossword_actions_total{type="keyDown"} 1`,
		"crossword_active_sessions 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSessionEvents(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "POST", "/api/puzzles", catJSON)
	sess := decode[sessionBody](t, do(t, srv, "POST", "/api/sessions", ""))

	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/sessions/"+sess.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %s", ct)
	}

	events := bufio.NewScanner(resp.Body)
	next := func() map[string]any {
		t.Helper()
		for events.Scan() {
			line := events.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var evt map[string]any
				if err := json.Unmarshal([]byte(data), &evt); err != nil {
					t.Fatalf("bad event %q: %v", data, err)
				}
				return evt
			}
		}
		t.Fatalf("stream ended: %v", events.Err())
		return nil
	}

	if evt := next(); evt["type"] != "view" {
		t.Fatalf("expected initial view, got %v", evt)
	}

	// Wait for the subscription before acting so the change is not missed.
	deadline := time.Now().Add(2 * time.Second)
	for srv.sse.ClientCount(sess.ID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	do(t, srv, "POST", "/api/sessions/"+sess.ID+"/actions", `{"type":"keyDown","key":"C"}`)

	evt := next()
	view, _ := evt["view"].(map[string]any)
	state, _ := view["state"].(map[string]any)
	if pos, _ := state["position"].(map[string]any); pos["col"] != float64(1) {
		t.Fatalf("expected cursor at col 1 in pushed view, got %v", evt)
	}

	do(t, srv, "DELETE", "/api/sessions/"+sess.ID, "")
	if evt := next(); evt["type"] != "session_closed" {
		t.Fatalf("expected session_closed, got %v", evt)
	}
}

func TestOpenSessionRateLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.openRL = newRateLimiter(1, time.Hour)
	do(t, srv, "POST", "/api/puzzles", catJSON)

	if w := do(t, srv, "POST", "/api/sessions", ""); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/sessions", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestReapIdleSessions(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "POST", "/api/puzzles", catJSON)
	sess := decode[sessionBody](t, do(t, srv, "POST", "/api/sessions", ""))

	srv.reapIdle(context.Background(), time.Hour)
	if w := do(t, srv, "GET", "/api/sessions/"+sess.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("expected recent session kept, got %d", w.Code)
	}

	srv.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	srv.reapIdle(context.Background(), time.Hour)
	if w := do(t, srv, "GET", "/api/sessions/"+sess.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected idle session closed, got %d", w.Code)
	}
	if n := srv.sessions.Count(); n != 0 {
		t.Fatalf("expected no open sessions, got %d", n)
	}
}
