package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// SessionRecord is one server-side focus session. A paused session stays
// in StatusRunning with IsPaused set; TargetEndAt is stale while paused.
type SessionRecord struct {
	ID               string
	AccountID        string
	TaskID           string
	Status           Status
	StartedAt        time.Time
	TargetEndAt      time.Time
	IsPaused         bool
	RemainingSeconds int
	PausedAt         time.Time
	EndedAt          time.Time
}

// Remaining reports the seconds left at now, never negative.
func (s *SessionRecord) Remaining(now time.Time) int {
	if s.IsPaused {
		return max(0, s.RemainingSeconds)
	}
	if s.TargetEndAt.IsZero() {
		return 0
	}
	return max(0, int(s.TargetEndAt.Sub(now)/time.Second))
}
