// Package remote is the client side of the session store's HTTP
// contract. The client is stateless and never retries; callers decide
// how to fall back when a call fails.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hperssn/focussync/internal/wire"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

type Kind int

const (
	// KindNetwork covers transport failures and timeouts.
	KindNetwork Kind = iota + 1
	// KindRejected means the store answered but refused the request.
	KindRejected
	// KindDecode means the response body could not be read.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the failure half of every client call.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Kind == KindNetwork
}

type Client struct {
	baseURL string
	account string
	http    *http.Client
	stream  *http.Client
}

func NewClient(baseURL, account string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		account: account,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

func (c *Client) Start(ctx context.Context, req wire.StartRequest) (wire.StartResponse, error) {
	var resp wire.StartResponse
	if err := c.do(ctx, "start", http.MethodPost, wire.PathStart, req, &resp); err != nil {
		return wire.StartResponse{}, err
	}
	if resp.SessionID == "" {
		return wire.StartResponse{}, &Error{Op: "start", Kind: KindDecode, Err: errors.New("missing session id")}
	}
	return resp, nil
}

func (c *Client) Pause(ctx context.Context, sessionID string, remaining int) error {
	req := wire.PauseRequest{SessionID: sessionID, RemainingSeconds: &remaining}
	return c.do(ctx, "pause", http.MethodPost, wire.PathPause, req, &wire.Ack{})
}

func (c *Client) Resume(ctx context.Context, sessionID string) (wire.ResumeResponse, error) {
	var resp wire.ResumeResponse
	err := c.do(ctx, "resume", http.MethodPost, wire.PathResume, wire.SessionRequest{SessionID: sessionID}, &resp)
	if err != nil {
		return wire.ResumeResponse{}, err
	}
	return resp, nil
}

func (c *Client) Complete(ctx context.Context, sessionID string) error {
	return c.do(ctx, "complete", http.MethodPost, wire.PathComplete, wire.SessionRequest{SessionID: sessionID}, &wire.CompleteResponse{})
}

// Pomodoros returns the completed-session count of every task that has
// one.
func (c *Client) Pomodoros(ctx context.Context) (map[string]int, error) {
	var resp wire.StatsResponse
	if err := c.do(ctx, "stats", http.MethodGet, wire.PathStats, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Pomodoros == nil {
		resp.Pomodoros = map[string]int{}
	}
	return resp.Pomodoros, nil
}

func (c *Client) ListActive(ctx context.Context) ([]wire.ActiveSession, error) {
	var resp wire.ActiveResponse
	if err := c.do(ctx, "listActive", http.MethodGet, wire.PathActive, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Watch subscribes to the account's session events. The channel closes
// when ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context) (<-chan wire.Event, error) {
	req, err := c.newRequest(ctx, http.MethodGet, wire.PathEvents, nil)
	if err != nil {
		return nil, &Error{Op: "watch", Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &Error{Op: "watch", Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &Error{Op: "watch", Kind: KindRejected, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	events := make(chan wire.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var ev wire.Event
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.account != "" {
		req.Header.Set(wire.AccountHeader, c.account)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &Error{Op: op, Kind: KindRejected, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
		}
		return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: err}
	}
	if !envelope.OK || resp.StatusCode >= http.StatusBadRequest {
		msg := envelope.Error
		if msg == "" {
			msg = "request refused"
		}
		return &Error{Op: op, Kind: KindRejected, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: err}
	}
	return nil
}
