// Package service implements the remote session store: the server side
// of the pomodoro wire contract.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/storage"
	"github.com/hperssn/focussync/internal/wire"
)

var (
	ErrTaskRequired     = errors.New("task id is required")
	ErrNotFound         = errors.New("session not found")
	ErrInvalidRemaining = errors.New("invalid_remaining")
	ErrNotPaused        = errors.New("not_paused")
)

type SessionService struct {
	repo            storage.Repository
	hub             *Hub
	clock           clock.Clock
	newID           func() string
	defaultDuration int
	logger          *log.Logger
}

type Option func(*SessionService)

func WithClock(c clock.Clock) Option {
	return func(s *SessionService) { s.clock = c }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *SessionService) { s.newID = fn }
}

func WithDefaultDuration(seconds int) Option {
	return func(s *SessionService) {
		if domain.ValidDuration(seconds) {
			s.defaultDuration = seconds
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *SessionService) { s.logger = l }
}

func NewSessionService(repo storage.Repository, hub *Hub, opts ...Option) *SessionService {
	s := &SessionService{
		repo:            repo,
		hub:             hub,
		clock:           clock.System,
		newID:           uuid.NewString,
		defaultDuration: domain.DefaultDurationSeconds,
		logger:          log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionService) Hub() *Hub { return s.hub }

// Start returns the running session for the task, resuming it when it is
// paused with time left, or creates one. A valid duration wins over
// req.TargetEndAt, which wins over the default duration.
func (s *SessionService) Start(ctx context.Context, accountID string, req wire.StartRequest) (wire.StartResponse, error) {
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return wire.StartResponse{}, ErrTaskRequired
	}
	now := s.clock.Now()

	existing, err := s.repo.FindRunning(ctx, accountID, taskID)
	switch {
	case err == nil:
		if existing.IsPaused && existing.RemainingSeconds > 0 {
			s.resumeRecord(existing, now)
			if err := s.repo.Update(ctx, existing); err != nil {
				return wire.StartResponse{}, err
			}
			s.publish(accountID, wire.EventResumed, existing, now)
		}
		target := existing.TargetEndAt
		if target.IsZero() {
			target = existing.StartedAt.Add(time.Duration(s.defaultDuration) * time.Second)
		}
		return s.startResponse(existing.ID, target, now), nil
	case !errors.Is(err, storage.ErrNotFound):
		return wire.StartResponse{}, err
	}

	target := s.startTarget(req, now)
	record := &storage.SessionRecord{
		ID:          s.newID(),
		AccountID:   accountID,
		TaskID:      taskID,
		Status:      storage.StatusRunning,
		StartedAt:   now,
		TargetEndAt: target,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return wire.StartResponse{}, err
	}
	s.publish(accountID, wire.EventStarted, record, now)
	return s.startResponse(record.ID, target, now), nil
}

func (s *SessionService) startTarget(req wire.StartRequest, now time.Time) time.Time {
	if domain.ValidDuration(req.DurationSeconds) {
		return now.Add(time.Duration(req.DurationSeconds) * time.Second)
	}
	if req.TargetEndAt != "" {
		target, err := clock.ParseTimestamp(req.TargetEndAt)
		if err == nil {
			return target
		}
		s.logger.Printf("service: ignoring targetEndAt %q: %v", req.TargetEndAt, err)
	}
	return now.Add(time.Duration(s.defaultDuration) * time.Second)
}

func (s *SessionService) startResponse(id string, target, now time.Time) wire.StartResponse {
	return wire.StartResponse{
		OK:        true,
		SessionID: id,
		TargetAt:  clock.Format(target),
		ServerNow: clock.Format(now),
		Seconds:   clock.SecondsUntil(target, now),
	}
}

// Pause freezes the session at remaining seconds. remaining is required.
func (s *SessionService) Pause(ctx context.Context, accountID, sessionID string, remaining *int) error {
	record, err := s.owned(ctx, accountID, sessionID)
	if err != nil {
		return err
	}
	if remaining == nil || *remaining < 0 || *remaining > domain.MaxDurationSeconds {
		return ErrInvalidRemaining
	}

	now := s.clock.Now()
	record.IsPaused = true
	record.PausedAt = now
	record.RemainingSeconds = *remaining
	if err := s.repo.Update(ctx, record); err != nil {
		return err
	}
	s.publish(accountID, wire.EventPaused, record, now)
	return nil
}

// Resume restarts a paused session and returns its new target.
func (s *SessionService) Resume(ctx context.Context, accountID, sessionID string) (time.Time, error) {
	record, err := s.owned(ctx, accountID, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if !record.IsPaused || record.RemainingSeconds <= 0 {
		return time.Time{}, ErrNotPaused
	}

	now := s.clock.Now()
	s.resumeRecord(record, now)
	if err := s.repo.Update(ctx, record); err != nil {
		return time.Time{}, err
	}
	s.publish(accountID, wire.EventResumed, record, now)
	return record.TargetEndAt, nil
}

// Complete marks the session completed and returns how many sessions of
// the task have now been completed. Completion before the target is
// accepted so a user may finish early.
func (s *SessionService) Complete(ctx context.Context, accountID, sessionID string) (int, error) {
	record, err := s.end(ctx, accountID, sessionID, storage.StatusCompleted, wire.EventCompleted)
	if err != nil {
		return 0, err
	}
	return s.repo.CountCompleted(ctx, accountID, record.TaskID)
}

func (s *SessionService) Cancel(ctx context.Context, accountID, sessionID string) error {
	_, err := s.end(ctx, accountID, sessionID, storage.StatusCanceled, wire.EventCanceled)
	return err
}

// Pomodoros returns the completed-session count per task.
func (s *SessionService) Pomodoros(ctx context.Context, accountID string) (map[string]int, error) {
	return s.repo.CompletedByTask(ctx, accountID)
}

// ListActive returns the account's running sessions. Paused sessions
// report their frozen counter and no target.
func (s *SessionService) ListActive(ctx context.Context, accountID string) ([]wire.ActiveSession, error) {
	records, err := s.repo.ListRunning(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sessions := make([]wire.ActiveSession, 0, len(records))
	for _, r := range records {
		active := wire.ActiveSession{
			SessionID:        r.ID,
			TaskID:           r.TaskID,
			RemainingSeconds: r.Remaining(now),
			IsPaused:         r.IsPaused,
		}
		if !r.IsPaused {
			active.TargetAt = clock.Format(r.TargetEndAt)
		}
		sessions = append(sessions, active)
	}
	return sessions, nil
}

func (s *SessionService) end(ctx context.Context, accountID, sessionID string, status storage.Status, evType wire.EventType) (*storage.SessionRecord, error) {
	record, err := s.owned(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record.Status = status
	record.EndedAt = now
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, err
	}
	s.publish(accountID, evType, record, now)
	return record, nil
}

// owned loads a running session that belongs to accountID.
func (s *SessionService) owned(ctx context.Context, accountID, sessionID string) (*storage.SessionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	record, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if record.AccountID != accountID || record.Status != storage.StatusRunning {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *SessionService) resumeRecord(record *storage.SessionRecord, now time.Time) {
	record.IsPaused = false
	record.StartedAt = now
	record.TargetEndAt = now.Add(time.Duration(record.RemainingSeconds) * time.Second)
	record.PausedAt = time.Time{}
}

func (s *SessionService) publish(accountID string, evType wire.EventType, record *storage.SessionRecord, now time.Time) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(accountID, wire.Event{
		Type:      evType,
		SessionID: record.ID,
		TaskID:    record.TaskID,
		At:        clock.Format(now),
	})
}
