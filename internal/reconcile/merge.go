// Package reconcile rebuilds the live sessions of a process from the
// local cache and the session store's list of active sessions.
package reconcile

import (
	"time"

	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/wire"
)

// Merge folds a session reported by the store into the cached snapshot
// for the same task. The store wins on session id, target, remaining
// time and paused flag; the duration is not tracked server-side, so the
// cached one is kept and the reported remaining time stands in when
// there is none.
func Merge(local *domain.Snapshot, remote wire.ActiveSession) domain.Snapshot {
	merged := domain.Snapshot{
		TaskID:           remote.TaskID,
		SessionID:        remote.SessionID,
		RemainingSeconds: max(0, remote.RemainingSeconds),
		IsPaused:         remote.IsPaused,
	}
	if !remote.IsPaused {
		if target, err := clock.ParseTimestamp(remote.TargetAt); err == nil {
			merged.TargetAt = target
		}
	}

	merged.DurationSeconds = merged.RemainingSeconds
	if local != nil && local.DurationSeconds >= 1 {
		merged.DurationSeconds = local.DurationSeconds
	}
	return merged
}

// Canonical is the remaining time of snap at now. Running snapshots are
// measured against their target so the result does not depend on how
// many ticks were delivered; paused ones keep their frozen counter.
func Canonical(snap domain.Snapshot, now time.Time) int {
	if snap.Running() {
		return clock.SecondsUntil(snap.TargetAt, now)
	}
	return max(0, snap.RemainingSeconds)
}
