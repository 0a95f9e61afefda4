package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// AccessTokenHeader carries the shared secret between the console
	// and executors.
	AccessTokenHeader = "XXL-JOB-ACCESS-TOKEN"

	DefaultTriggerTimeout = 3 * time.Second
	MinTriggerTimeout     = 1 * time.Second
	MaxTriggerTimeout     = 10 * time.Second
)

// Attempt-level failures. Each is non-fatal per address; the engine records
// it and moves on to the next candidate.
var (
	ErrConnect = errors.New("executor connection failed")
	ErrTimeout = errors.New("executor request timed out")
	ErrDecode  = errors.New("executor response malformed")
)

// RemoteStatusError is returned when the executor answers with a non-2xx
// HTTP status.
type RemoteStatusError struct {
	Status int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("executor returned http status %d", e.Status)
}

// TriggerPayload is the wire body of a trigger request, POSTed to
// <address>/run.
type TriggerPayload struct {
	JobID                 int64  `json:"jobId"`
	ExecutorHandler       string `json:"executorHandler"`
	ExecutorParams        string `json:"executorParams"`
	ExecutorBlockStrategy string `json:"executorBlockStrategy"`
	ExecutorTimeout       int    `json:"executorTimeout"`
	LogID                 int64  `json:"logId"`
	LogDateTime           int64  `json:"logDateTime"`
	GlueType              string `json:"glueType"`
	GlueSource            string `json:"glueSource"`
	GlueUpdatetime        int64  `json:"glueUpdatetime"`
	BroadcastIndex        int    `json:"broadcastIndex"`
	BroadcastTotal        int    `json:"broadcastTotal"`
}

// TriggerOutcome is the executor's answer to a trigger request.
// Code 200 means the executor accepted the job.
type TriggerOutcome struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Content string `json:"content"`
}

func (o TriggerOutcome) IsSuccess() bool {
	return o.Code == http.StatusOK
}

// Sender delivers one trigger request to one executor address.
type Sender interface {
	Send(ctx context.Context, address, accessToken string, payload TriggerPayload) (TriggerOutcome, error)
}

// HTTPTriggerClient sends trigger requests over HTTP POST.
type HTTPTriggerClient struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTriggerClient builds a client with the given per-request timeout,
// clamped to [1s, 10s]. A zero timeout means the default of 3s.
func NewHTTPTriggerClient(timeout time.Duration) *HTTPTriggerClient {
	return &HTTPTriggerClient{
		client:  &http.Client{},
		timeout: ClampTriggerTimeout(timeout),
	}
}

// ClampTriggerTimeout normalizes a configured trigger timeout.
func ClampTriggerTimeout(timeout time.Duration) time.Duration {
	switch {
	case timeout == 0:
		return DefaultTriggerTimeout
	case timeout < MinTriggerTimeout:
		return MinTriggerTimeout
	case timeout > MaxTriggerTimeout:
		return MaxTriggerTimeout
	default:
		return timeout
	}
}

// Send posts the payload to <address>/run and decodes the executor's answer.
// Failures are classified into ErrConnect, ErrTimeout, ErrDecode, or a
// RemoteStatusError for non-2xx HTTP statuses.
func (c *HTTPTriggerClient) Send(ctx context.Context, address, accessToken string, payload TriggerPayload) (TriggerOutcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return TriggerOutcome{}, fmt.Errorf("marshal payload: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, runURL(address), bytes.NewReader(body))
	if err != nil {
		return TriggerOutcome{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set(AccessTokenHeader, accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return TriggerOutcome{}, classifySendError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TriggerOutcome{}, &RemoteStatusError{Status: resp.StatusCode}
	}

	var outcome TriggerOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return TriggerOutcome{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return outcome, nil
}

// runURL normalizes an executor address to its trigger endpoint.
func runURL(address string) string {
	address = strings.TrimSpace(address)
	if !strings.HasSuffix(address, "/") {
		address += "/"
	}
	return address + "run"
}

func classifySendError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnect, err)
}
