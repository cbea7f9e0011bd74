package domain

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestPlanStart(t *testing.T) {
	tests := []struct {
		name          string
		in            StartInput
		wantDuration  int
		wantRemaining int
		wantEnd       string
	}{
		{name: "default duration", in: StartInput{}, wantDuration: 1500, wantRemaining: 1500},
		{name: "explicit duration", in: StartInput{DurationSeconds: 600}, wantDuration: 600, wantRemaining: 600},
		{name: "duration too large", in: StartInput{DurationSeconds: MaxDurationSeconds + 1}, wantDuration: 1500, wantRemaining: 1500},
		{name: "negative duration", in: StartInput{DurationSeconds: -5}, wantDuration: 1500, wantRemaining: 1500},
		{
			name:          "explicit finish wins over duration",
			in:            StartInput{DurationSeconds: 600, TargetEndAt: "2026-03-01T10:02:00Z"},
			wantDuration:  120,
			wantRemaining: 120,
			wantEnd:       "2026-03-01T10:02:00Z",
		},
		{
			name:          "explicit finish wins over default finish",
			in:            StartInput{TargetEndAt: "2026-03-01T10:02:00Z", DefaultTargetEndAt: "2026-03-02T10:00:00Z"},
			wantDuration:  120,
			wantRemaining: 120,
			wantEnd:       "2026-03-01T10:02:00Z",
		},
		{
			name:          "unparsable finish falls back to default finish",
			in:            StartInput{TargetEndAt: "soon", DefaultTargetEndAt: "2026-03-01T11:00"},
			wantDuration:  3600,
			wantRemaining: 3600,
			wantEnd:       "2026-03-01T11:00:00Z",
		},
		{
			name:          "finish in the past clamps to one second",
			in:            StartInput{TargetEndAt: "2026-03-01T09:00:00Z"},
			wantDuration:  1,
			wantRemaining: 1,
			wantEnd:       "2026-03-01T09:00:00Z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanStart(tt.in, DefaultDurationSeconds, testNow)

			if plan.DurationSeconds != tt.wantDuration {
				t.Fatalf("duration = %d want %d", plan.DurationSeconds, tt.wantDuration)
			}
			if plan.RemainingSeconds != tt.wantRemaining {
				t.Fatalf("remaining = %d want %d", plan.RemainingSeconds, tt.wantRemaining)
			}
			if plan.TargetEndAt != tt.wantEnd {
				t.Fatalf("target end = %q want %q", plan.TargetEndAt, tt.wantEnd)
			}
			wantTarget := testNow.Add(time.Duration(tt.wantRemaining) * time.Second)
			if !plan.TargetAt.Equal(wantTarget) {
				t.Fatalf("target = %v want %v", plan.TargetAt, wantTarget)
			}
		})
	}
}

func TestPlanStartInvalidFallback(t *testing.T) {
	plan := PlanStart(StartInput{}, 0, testNow)
	if plan.DurationSeconds != DefaultDurationSeconds {
		t.Fatalf("duration = %d want %d", plan.DurationSeconds, DefaultDurationSeconds)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{-3, "00:00"},
		{59, "00:59"},
		{1500, "25:00"},
		{3661, "01:01:01"},
		{90061, "1d 01:01:01"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.seconds); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(100, 25); got != 75 {
		t.Fatalf("Progress(100, 25) = %v want 75", got)
	}
	if got := Progress(100, 150); got != 0 {
		t.Fatalf("Progress(100, 150) = %v want 0", got)
	}
	if got := Progress(0, 10); got != 0 {
		t.Fatalf("Progress(0, 10) = %v want 0", got)
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := (Snapshot{TaskID: " "}).Validate(); err != ErrEmptyTaskID {
		t.Fatalf("Validate() = %v want ErrEmptyTaskID", err)
	}
	if err := (Snapshot{TaskID: "t1", RemainingSeconds: -1}).Validate(); err != ErrNegativeRemaining {
		t.Fatalf("Validate() = %v want ErrNegativeRemaining", err)
	}
	running := Snapshot{TaskID: "t1", TargetAt: testNow, RemainingSeconds: 10, DurationSeconds: 10}
	if err := running.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if !running.Running() {
		t.Fatalf("expected snapshot with target to be running")
	}
	running.IsPaused = true
	if running.Running() {
		t.Fatalf("paused snapshot should not be running")
	}
}
