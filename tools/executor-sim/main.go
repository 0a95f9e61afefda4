// executor-sim is a standalone fake executor for manual testing of the admin
// console. It heartbeats into the registry, accepts /run trigger requests,
// and reports completion back through /api/callback after a configurable
// delay.
//
// Usage:
//
//	ADMIN_URL=http://localhost:8080 APP_NAME=billing go run .
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type triggerRequest struct {
	JobID         int64  `json:"jobId"`
	Handler       string `json:"executorHandler"`
	Param         string `json:"executorParams"`
	BlockStrategy string `json:"executorBlockStrategy"`
	LogID         int64  `json:"logId"`
	LogDateTime   int64  `json:"logDateTime"`
}

type callbackReport struct {
	LogID       int64  `json:"logId"`
	LogDateTime int64  `json:"logDateTime"`
	HandleCode  int    `json:"handleCode"`
	HandleMsg   string `json:"handleMsg,omitempty"`
}

type registryBody struct {
	RegistryGroup string `json:"registryGroup"`
	RegistryKey   string `json:"registryKey"`
	RegistryValue string `json:"registryValue"`
}

var (
	adminURL    string
	appName     string
	selfURL     string
	accessToken string
	handleDelay time.Duration
	failEvery   int64

	runCount atomic.Int64
)

func main() {
	adminURL = envOr("ADMIN_URL", "http://localhost:8080")
	appName = envOr("APP_NAME", "demo")
	addr := envOr("ADDR", ":9999")
	selfURL = envOr("SELF_URL", "http://localhost"+addr)
	accessToken = os.Getenv("ACCESS_TOKEN")

	handleDelay = 2 * time.Second
	if v := os.Getenv("HANDLE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			handleDelay = d
		}
	}
	if v := os.Getenv("FAIL_EVERY"); v != "" {
		fmt.Sscanf(v, "%d", &failEvery)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", runHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("executor-sim listening on %s (app=%s, admin=%s)", addr, appName, adminURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("executor-sim: server error: %v", err)
		}
	}()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		heartbeatLoop(heartbeatCtx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("executor-sim: shutting down")
	cancelHeartbeat()
	wg.Wait()
	deregister()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

func runHandler(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"code":400,"msg":"invalid json"}`)
		return
	}

	n := runCount.Add(1)
	log.Printf("executor-sim: run #%d (job=%d, log=%d, handler=%s, param=%q)",
		n, req.JobID, req.LogID, req.Handler, req.Param)

	// Ack the trigger immediately; the handle result arrives later via
	// callback, like a real executor.
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"code":200}`)

	go func() {
		time.Sleep(handleDelay)

		report := callbackReport{
			LogID:       req.LogID,
			LogDateTime: req.LogDateTime,
			HandleCode:  200,
			HandleMsg:   fmt.Sprintf("run #%d completed", n),
		}
		if failEvery > 0 && n%failEvery == 0 {
			report.HandleCode = 500
			report.HandleMsg = fmt.Sprintf("run #%d failed (simulated)", n)
		}

		if err := postJSON("/api/callback", []callbackReport{report}); err != nil {
			log.Printf("executor-sim: callback failed for log=%d: %v", req.LogID, err)
			return
		}
		log.Printf("executor-sim: callback sent (log=%d, code=%d)", req.LogID, report.HandleCode)
	}()
}

func heartbeatLoop(ctx context.Context) {
	// First beat immediately so the admin sees us before the first tick.
	beat()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

func beat() {
	err := postJSON("/api/registry", registryBody{
		RegistryGroup: "EXECUTOR",
		RegistryKey:   appName,
		RegistryValue: selfURL,
	})
	if err != nil {
		log.Printf("executor-sim: heartbeat failed: %v", err)
	}
}

func deregister() {
	err := postJSON("/api/registry/remove", registryBody{
		RegistryGroup: "EXECUTOR",
		RegistryKey:   appName,
		RegistryValue: selfURL,
	})
	if err != nil {
		log.Printf("executor-sim: deregister failed: %v", err)
		return
	}
	log.Println("executor-sim: deregistered")
}

func postJSON(path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, adminURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("XXL-JOB-ACCESS-TOKEN", accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
