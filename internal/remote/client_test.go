package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hperssn/focussync/internal/wire"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientStart(t *testing.T) {
	var got wire.StartRequest
	var account string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wire.PathStart || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		account = r.Header.Get(wire.AccountHeader)
		_ = json.NewDecoder(r.Body).Decode(&got)
		respondJSON(w, http.StatusOK, wire.StartResponse{OK: true, SessionID: "s-1", TargetAt: "2026-03-01T10:25:00Z"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "alice", time.Second)
	resp, err := c.Start(context.Background(), wire.StartRequest{TaskID: "t1", DurationSeconds: 1500})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.SessionID != "s-1" || resp.TargetAt != "2026-03-01T10:25:00Z" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.TaskID != "t1" || got.DurationSeconds != 1500 || got.TargetEndAt != "" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if account != "alice" {
		t.Fatalf("account header = %q want alice", account)
	}
}

func TestClientPauseSendsRemaining(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		respondJSON(w, http.StatusOK, wire.Ack{OK: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if err := c.Pause(context.Background(), "s-1", 0); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if raw["sessionId"] != "s-1" {
		t.Fatalf("sessionId = %v", raw["sessionId"])
	}
	if v, ok := raw["remainingSeconds"]; !ok || v != float64(0) {
		t.Fatalf("remainingSeconds = %v (present=%v) want 0", v, ok)
	}
}

func TestClientRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusBadRequest, wire.ResumeResponse{OK: false, Error: "not_paused"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Resume(context.Background(), "s-1")

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if rerr.Kind != KindRejected || rerr.Status != http.StatusBadRequest {
		t.Fatalf("kind = %s status = %d", rerr.Kind, rerr.Status)
	}
	if IsNetwork(err) {
		t.Fatalf("rejection should not count as a network failure")
	}
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", time.Second)
	if err := c.Complete(context.Background(), "s-1"); !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, err := c.ListActive(context.Background()); !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestClientListActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != wire.PathActive {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		respondJSON(w, http.StatusOK, wire.ActiveResponse{OK: true, Sessions: []wire.ActiveSession{
			{SessionID: "s-1", TaskID: "t1", TargetAt: "2026-03-01T10:25:00Z", RemainingSeconds: 900},
			{SessionID: "s-2", TaskID: "t2", RemainingSeconds: 30, IsPaused: true},
		}})
	}))
	defer srv.Close()

	sessions, err := NewClient(srv.URL, "", time.Second).ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(sessions) != 2 || sessions[1].TaskID != "t2" || !sessions[1].IsPaused {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestClientPomodoros(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != wire.PathStats {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		respondJSON(w, http.StatusOK, wire.StatsResponse{OK: true, Pomodoros: map[string]int{"t1": 4}})
	}))
	defer srv.Close()

	counts, err := NewClient(srv.URL, "", time.Second).Pomodoros(context.Background())
	if err != nil {
		t.Fatalf("pomodoros: %v", err)
	}
	if len(counts) != 1 || counts["t1"] != 4 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestClientStartMissingSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, wire.StartResponse{OK: true})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Start(context.Background(), wire.StartRequest{TaskID: "t1"})
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClientWatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(wire.Event{Type: wire.EventPaused, SessionID: "s-1", TaskID: "t1"})
		_, _ = w.Write([]byte(": keep-alive\n\n"))
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := NewClient(srv.URL, "", time.Second).Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	ev, ok := <-events
	if !ok {
		t.Fatalf("expected an event before the stream closed")
	}
	if ev.Type != wire.EventPaused || ev.TaskID != "t1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, ok := <-events; ok {
		t.Fatalf("expected channel to close when the stream ends")
	}
}
