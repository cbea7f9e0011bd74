// Package httpapi exposes the session service over the pomodoro JSON
// contract.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/service"
	"github.com/hperssn/focussync/internal/wire"
)

func NewRouter(svc *service.SessionService, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ExtractAccount(logger))

	r.Post(wire.PathStart, startSession(svc))
	r.Post(wire.PathPause, pauseSession(svc))
	r.Post(wire.PathResume, resumeSession(svc))
	r.Post(wire.PathComplete, completeSession(svc))
	r.Post(wire.PathCancel, cancelSession(svc))
	r.Get(wire.PathActive, activeSessions(svc))
	r.Get(wire.PathStats, pomodoroStats(svc))
	r.Get(wire.PathEvents, StreamEvents(svc.Hub(), logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, wire.Ack{OK: true}, http.StatusOK)
	})

	return r
}

func startSession(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		resp, err := svc.Start(r.Context(), AccountFrom(r), req)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, resp, http.StatusOK)
	}
}

func pauseSession(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.PauseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := svc.Pause(r.Context(), AccountFrom(r), req.SessionID, req.RemainingSeconds); err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.Ack{OK: true}, http.StatusOK)
	}
}

func resumeSession(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		target, err := svc.Resume(r.Context(), AccountFrom(r), req.SessionID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.ResumeResponse{OK: true, TargetAt: clock.Format(target)}, http.StatusOK)
	}
}

func completeSession(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		count, err := svc.Complete(r.Context(), AccountFrom(r), req.SessionID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.CompleteResponse{OK: true, Pomodoros: count}, http.StatusOK)
	}
}

func cancelSession(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := svc.Cancel(r.Context(), AccountFrom(r), req.SessionID); err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.Ack{OK: true}, http.StatusOK)
	}
}

func pomodoroStats(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.Pomodoros(r.Context(), AccountFrom(r))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.StatsResponse{OK: true, Pomodoros: counts}, http.StatusOK)
	}
}

func activeSessions(svc *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ListActive(r.Context(), AccountFrom(r))
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, wire.ActiveResponse{OK: true, Sessions: sessions}, http.StatusOK)
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrTaskRequired):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidRemaining), errors.Is(err, service.ErrNotPaused):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("session store error: %v", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, wire.Ack{OK: false, Error: message}, status)
}
