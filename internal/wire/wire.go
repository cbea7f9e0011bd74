// Package wire holds the JSON payloads exchanged between the timer
// client and the remote session store.
package wire

const (
	PathStart    = "/pomodoro/start"
	PathPause    = "/pomodoro/pause"
	PathResume   = "/pomodoro/resume"
	PathComplete = "/pomodoro/complete"
	PathCancel   = "/pomodoro/cancel"
	PathActive   = "/pomodoro/active"
	PathEvents   = "/pomodoro/events"
	PathStats    = "/pomodoro/stats"
)

// AccountHeader identifies the account a request acts for.
const AccountHeader = "X-Auth-User"

// StartRequest carries either DurationSeconds or TargetEndAt.
type StartRequest struct {
	TaskID          string `json:"taskId"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	TargetEndAt     string `json:"targetEndAt,omitempty"`
}

type StartResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	TargetAt  string `json:"targetAt,omitempty"`
	ServerNow string `json:"serverNow,omitempty"`
	Seconds   int    `json:"seconds,omitempty"`
	Error     string `json:"error,omitempty"`
}

type PauseRequest struct {
	SessionID        string `json:"sessionId"`
	RemainingSeconds *int   `json:"remainingSeconds"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type ResumeResponse struct {
	OK       bool   `json:"ok"`
	TargetAt string `json:"targetAt,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CompleteResponse reports how many sessions of the task have been
// completed, the one just ended included.
type CompleteResponse struct {
	OK        bool   `json:"ok"`
	Pomodoros int    `json:"pomodoros"`
	Error     string `json:"error,omitempty"`
}

// StatsResponse maps task id to completed-session count.
type StatsResponse struct {
	OK        bool           `json:"ok"`
	Pomodoros map[string]int `json:"pomodoros"`
	Error     string         `json:"error,omitempty"`
}

// Ack is the response of pause and cancel.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type ActiveSession struct {
	SessionID        string `json:"sessionId"`
	TaskID           string `json:"taskId"`
	TargetAt         string `json:"targetAt,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds"`
	IsPaused         bool   `json:"isPaused"`
}

type ActiveResponse struct {
	OK       bool            `json:"ok"`
	Sessions []ActiveSession `json:"sessions"`
	Error    string          `json:"error,omitempty"`
}

type EventType string

const (
	EventStarted   EventType = "started"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventCompleted EventType = "completed"
	EventCanceled  EventType = "canceled"
)

// Event announces a change to one of an account's sessions.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	TaskID    string    `json:"taskId"`
	At        string    `json:"at"`
}
