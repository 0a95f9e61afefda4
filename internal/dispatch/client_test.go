package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/djlord-it/jobadmin/internal/testutil"
)

func testPayload() TriggerPayload {
	return TriggerPayload{
		JobID:                 5,
		ExecutorHandler:       "demoHandler",
		ExecutorParams:        "p",
		ExecutorBlockStrategy: "SERIAL_EXECUTION",
		ExecutorTimeout:       30,
		LogID:                 42,
		LogDateTime:           1709294400000,
		BroadcastTotal:        1,
	}
}

func TestHTTPTriggerClient_Success(t *testing.T) {
	var (
		gotPath    string
		gotToken   string
		gotCType   string
		gotPayload TriggerPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get(AccessTokenHeader)
		gotCType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"msg":"accepted"}`))
	}))
	defer server.Close()

	client := NewHTTPTriggerClient(3 * time.Second)
	outcome, err := client.Send(testutil.TestContext(t), server.URL, "secret", testPayload())
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if gotPath != "/run" {
		t.Errorf("path = %q, want /run", gotPath)
	}
	if gotToken != "secret" {
		t.Errorf("access token header = %q, want secret", gotToken)
	}
	if gotCType != "application/json" {
		t.Errorf("content type = %q", gotCType)
	}
	if gotPayload.JobID != 5 || gotPayload.LogID != 42 || gotPayload.ExecutorHandler != "demoHandler" {
		t.Errorf("payload round-trip mismatch: %+v", gotPayload)
	}
	if outcome.Code != 200 || outcome.Msg != "accepted" {
		t.Errorf("outcome = %+v, want code 200 msg accepted", outcome)
	}
	if !outcome.IsSuccess() {
		t.Error("outcome.IsSuccess() should be true for code 200")
	}
}

func TestHTTPTriggerClient_NoTokenNoHeader(t *testing.T) {
	var headerPresent bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, headerPresent = r.Header[http.CanonicalHeaderKey(AccessTokenHeader)]
		w.Write([]byte(`{"code":200}`))
	}))
	defer server.Close()

	client := NewHTTPTriggerClient(0)
	if _, err := client.Send(testutil.TestContext(t), server.URL, "", testPayload()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if headerPresent {
		t.Error("access token header must be omitted when no token is configured")
	}
}

func TestHTTPTriggerClient_RemoteStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPTriggerClient(0)
	_, err := client.Send(testutil.TestContext(t), server.URL, "", testPayload())

	var statusErr *RemoteStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want RemoteStatusError", err)
	}
	if statusErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", statusErr.Status)
	}
}

func TestHTTPTriggerClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewHTTPTriggerClient(0)
	if _, err := client.Send(testutil.TestContext(t), server.URL, "", testPayload()); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestHTTPTriggerClient_ConnectError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewHTTPTriggerClient(0)
	if _, err := client.Send(testutil.TestContext(t), addr, "", testPayload()); !errors.Is(err, ErrConnect) {
		t.Errorf("error = %v, want ErrConnect", err)
	}
}

func TestHTTPTriggerClient_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow timeout test")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := NewHTTPTriggerClient(time.Second)
	if _, err := client.Send(testutil.TestContext(t), server.URL, "", testPayload()); !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestRunURL(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"http://10.0.0.1:9999", "http://10.0.0.1:9999/run"},
		{"http://10.0.0.1:9999/", "http://10.0.0.1:9999/run"},
		{" http://a:1 ", "http://a:1/run"},
	}
	for _, tt := range tests {
		if got := runURL(tt.address); got != tt.want {
			t.Errorf("runURL(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestClampTriggerTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultTriggerTimeout},
		{500 * time.Millisecond, MinTriggerTimeout},
		{time.Minute, MaxTriggerTimeout},
		{5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := ClampTriggerTimeout(tt.in); got != tt.want {
			t.Errorf("ClampTriggerTimeout(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
