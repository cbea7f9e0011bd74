package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hperssn/focussync/internal/clock"
)

const (
	DefaultDurationSeconds = 25 * 60
	MaxDurationSeconds     = 300 * 60
)

var (
	ErrEmptyTaskID       = errors.New("task id is required")
	ErrNegativeRemaining = errors.New("remaining seconds must not be negative")
)

// Snapshot is the persisted view of one focus session. A running
// snapshot is defined by TargetAt; a paused one by its frozen
// RemainingSeconds.
type Snapshot struct {
	TaskID           string    `json:"taskId"`
	SessionID        string    `json:"sessionId,omitempty"`
	TargetAt         time.Time `json:"targetAt,omitzero"`
	DurationSeconds  int       `json:"durationSeconds"`
	RemainingSeconds int       `json:"remainingSeconds"`
	IsPaused         bool      `json:"isPaused"`
}

func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.TaskID) == "" {
		return ErrEmptyTaskID
	}
	if s.RemainingSeconds < 0 {
		return ErrNegativeRemaining
	}
	return nil
}

// Running reports whether the snapshot is anchored to an absolute end.
func (s Snapshot) Running() bool {
	return !s.IsPaused && !s.TargetAt.IsZero()
}

func ValidDuration(seconds int) bool {
	return seconds >= 1 && seconds <= MaxDurationSeconds
}

// StartInput carries what the caller knows when a session is started.
// TargetEndAt is a user-entered finish time and wins over
// DefaultTargetEndAt; either absolute finish wins over DurationSeconds.
type StartInput struct {
	DurationSeconds    int
	TargetEndAt        string
	DefaultTargetEndAt string
}

// StartPlan is the resolved shape of a new session.
type StartPlan struct {
	DurationSeconds  int
	RemainingSeconds int
	TargetAt         time.Time
	// TargetEndAt is set when the session is anchored to an absolute
	// finish time and is sent to the session store instead of the
	// duration.
	TargetEndAt string
}

// PlanStart resolves a StartInput. Unparsable finish times and
// out-of-range durations are ignored in favor of the next option, ending
// with fallback.
func PlanStart(in StartInput, fallback int, now time.Time) StartPlan {
	if !ValidDuration(fallback) {
		fallback = DefaultDurationSeconds
	}

	for _, raw := range []string{in.TargetEndAt, in.DefaultTargetEndAt} {
		end, err := clock.ParseTimestamp(raw)
		if err != nil {
			continue
		}
		remaining := max(1, clock.SecondsUntil(end, now))
		return StartPlan{
			DurationSeconds:  remaining,
			RemainingSeconds: remaining,
			TargetAt:         now.Add(time.Duration(remaining) * time.Second),
			TargetEndAt:      clock.Format(end),
		}
	}

	duration := fallback
	if ValidDuration(in.DurationSeconds) {
		duration = in.DurationSeconds
	}
	return StartPlan{
		DurationSeconds:  duration,
		RemainingSeconds: duration,
		TargetAt:         now.Add(time.Duration(duration) * time.Second),
	}
}

// FormatRemaining renders seconds as "MM:SS", "HH:MM:SS" or
// "Nd HH:MM:SS".
func FormatRemaining(seconds int) string {
	s := max(0, seconds)
	days := s / 86400
	hrs := s % 86400 / 3600
	mins := s % 3600 / 60
	secs := s % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hrs, mins, secs)
	case hrs > 0:
		return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
	default:
		return fmt.Sprintf("%02d:%02d", mins, secs)
	}
}

// Progress is the elapsed share of a session in percent, capped to
// [0, 100].
func Progress(duration, remaining int) float64 {
	if duration <= 0 {
		return 0
	}
	p := float64(duration-remaining) / float64(duration) * 100
	return min(max(p, 0), 100)
}
