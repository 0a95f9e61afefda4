package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/jobadmin/internal/domain"
)

// ErrNotFound is returned when a job, group, or log row does not exist.
var ErrNotFound = errors.New("record not found")

// JobTriggerUpdate names the trigger-bookkeeping columns to change on a job.
// Nil fields are left untouched.
type JobTriggerUpdate struct {
	TriggerStatus   *domain.TriggerStatus
	TriggerLastTime *int64
	TriggerNextTime *int64
}

type Store interface {
	GetJob(ctx context.Context, jobID int64) (domain.Job, error)
	GetGroup(ctx context.Context, groupID int64) (domain.Group, error)
	// InsertTriggerLog persists a pending log row and returns its assigned id.
	InsertTriggerLog(ctx context.Context, entry domain.TriggerLog) (int64, error)
	UpdateTriggerResult(ctx context.Context, logID int64, address string, code int, msg string) error
	UpdateJobTrigger(ctx context.Context, jobID int64, update JobTriggerUpdate) error
}

// AddressResolver produces the ordered candidate address list for a group.
type AddressResolver interface {
	Resolve(ctx context.Context, group domain.Group, override string) ([]string, error)
}

// NextCalculator computes a job's next fire time.
type NextCalculator interface {
	Next(scheduleType domain.ScheduleType, expr string, after time.Time) (time.Time, bool, error)
}

// Breaker short-circuits attempts against addresses that keep failing.
type Breaker interface {
	Allow(address string) error
	RecordSuccess(address string)
	RecordFailure(address string)
}

// MetricsSink defines the interface for recording dispatch metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TriggerAttemptCompleted(statusClass string, duration time.Duration)
	TriggerOutcome(outcome string)
	TriggersInFlightIncr()
	TriggersInFlightDecr()
}

// AnalyticsSink records per-job trigger outcome counters.
type AnalyticsSink interface {
	Record(ctx context.Context, groupID, jobID int64, code int, at time.Time)
}

// TriggerOptions carries per-request overrides for a trigger call.
type TriggerOptions struct {
	// ExecutorParam replaces the job's stored parameter when non-blank.
	ExecutorParam string
	// AddressList bypasses group/registry resolution when non-blank.
	AddressList string
	// Operator is recorded in logs for audit purposes.
	Operator string
}

// Result summarizes a completed trigger workflow.
type Result struct {
	Code    int
	Message string
}

// Engine orchestrates the trigger workflow: load the job, resolve candidate
// addresses, persist a pending log row, attempt candidates in order, then
// finalize the log and the job's trigger bookkeeping.
type Engine struct {
	store       Store
	resolver    AddressResolver
	sender      Sender
	calc        NextCalculator
	breaker     Breaker       // optional, nil = disabled
	metrics     MetricsSink   // optional, nil = disabled
	analytics   AnalyticsSink // optional, nil = disabled
	accessToken string
	clock       func() time.Time
}

func NewEngine(store Store, resolver AddressResolver, sender Sender, calc NextCalculator) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		sender:   sender,
		calc:     calc,
		clock:    time.Now,
	}
}

// WithAccessToken sets the shared secret sent with every trigger request.
func (e *Engine) WithAccessToken(token string) *Engine {
	e.accessToken = token
	return e
}

// WithBreaker attaches a per-address circuit breaker to the engine.
func (e *Engine) WithBreaker(breaker Breaker) *Engine {
	e.breaker = breaker
	return e
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	return e
}

func (e *Engine) WithAnalytics(sink AnalyticsSink) *Engine {
	e.analytics = sink
	return e
}

// Trigger dispatches one job to its executor group. Precondition failures
// (missing job or group, no candidate addresses) abort before any log row is
// written; per-address attempt failures are recorded and the next candidate
// is tried. The first outcome with code 200 wins.
func (e *Engine) Trigger(ctx context.Context, jobID int64, opts TriggerOptions) (Result, error) {
	if e.metrics != nil {
		e.metrics.TriggersInFlightIncr()
		defer e.metrics.TriggersInFlightDecr()
	}

	trace := uuid.New().String()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("get job %d: %w", jobID, err)
	}
	group, err := e.store.GetGroup(ctx, job.GroupID)
	if err != nil {
		return Result{}, fmt.Errorf("get group %d: %w", job.GroupID, err)
	}

	candidates, err := e.resolver.Resolve(ctx, group, opts.AddressList)
	if err != nil {
		return Result{}, fmt.Errorf("resolve addresses for group %q: %w", group.Name, err)
	}

	param := job.Param
	if strings.TrimSpace(opts.ExecutorParam) != "" {
		param = opts.ExecutorParam
	}

	now := e.clock()
	logID, err := e.store.InsertTriggerLog(ctx, domain.TriggerLog{
		JobID:           job.ID,
		GroupID:         job.GroupID,
		Handler:         job.Handler,
		Param:           param,
		FailRetryCount:  job.FailRetryCount,
		TriggerTime:     now,
		TriggerCode:     domain.CodePending,
		ExecutorAddress: "",
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert trigger log: %w", err)
	}

	log.Printf("dispatch: trace=%s job=%d log=%d operator=%q candidates=%d",
		trace, job.ID, logID, opts.Operator, len(candidates))

	payload := e.buildPayload(job, param, logID, now)
	finalAddr, finalCode, lines := e.attempt(ctx, trace, candidates, payload)

	triggerMsg := strings.Join(lines, "\n")
	if err := e.store.UpdateTriggerResult(ctx, logID, finalAddr, finalCode, triggerMsg); err != nil {
		return Result{}, fmt.Errorf("update trigger log %d: %w", logID, err)
	}

	e.finalizeJob(ctx, job, now)
	e.recordOutcome(ctx, job, finalCode, now)

	if finalCode == domain.CodeSuccess {
		return Result{Code: finalCode, Message: "triggered successfully"}, nil
	}
	return Result{Code: finalCode, Message: "triggered failed: " + lastLine(lines)}, nil
}

// attempt walks the candidates in resolver order, one at a time, stopping at
// the first code-200 outcome. It returns the selected address, the final
// code (500 when every candidate failed), and one trace line per attempt.
func (e *Engine) attempt(ctx context.Context, trace string, candidates []string, payload TriggerPayload) (string, int, []string) {
	var (
		finalAddr string
		finalCode = domain.CodeFailure
		lines     = make([]string, 0, len(candidates))
	)

	for _, addr := range candidates {
		if e.breaker != nil {
			if err := e.breaker.Allow(addr); err != nil {
				lines = append(lines, fmt.Sprintf("address %s: skipped (%v)", addr, err))
				log.Printf("dispatch: trace=%s address=%s skipped by breaker", trace, addr)
				continue
			}
		}

		start := e.clock()
		outcome, err := e.sender.Send(ctx, addr, e.accessToken, payload)
		duration := e.clock().Sub(start)

		if e.metrics != nil {
			e.metrics.TriggerAttemptCompleted(classifyAttempt(outcome, err), duration)
		}

		if err != nil {
			if e.breaker != nil {
				e.breaker.RecordFailure(addr)
			}
			lines = append(lines, fmt.Sprintf("address %s: %v", addr, err))
			log.Printf("dispatch: trace=%s address=%s attempt failed: %v", trace, addr, err)
			continue
		}

		// A well-formed response counts as a reachable executor, whatever
		// its application code says.
		if e.breaker != nil {
			e.breaker.RecordSuccess(addr)
		}
		finalAddr = addr
		finalCode = outcome.Code

		line := fmt.Sprintf("address %s: code=%d", addr, outcome.Code)
		if outcome.Msg != "" {
			line += " msg=" + outcome.Msg
		}
		if outcome.Content != "" {
			line += " content=" + outcome.Content
		}
		lines = append(lines, line)
		log.Printf("dispatch: trace=%s address=%s code=%d", trace, addr, outcome.Code)

		if outcome.IsSuccess() {
			break
		}
	}

	return finalAddr, finalCode, lines
}

func (e *Engine) buildPayload(job domain.Job, param string, logID int64, triggerTime time.Time) TriggerPayload {
	blockStrategy := job.BlockStrategy
	if blockStrategy == "" {
		blockStrategy = domain.DefaultBlockStrategy
	}
	var glueUpdated int64
	if !job.GlueUpdatedAt.IsZero() {
		glueUpdated = job.GlueUpdatedAt.UnixMilli()
	}
	return TriggerPayload{
		JobID:                 job.ID,
		ExecutorHandler:       job.Handler,
		ExecutorParams:        param,
		ExecutorBlockStrategy: blockStrategy,
		ExecutorTimeout:       job.TimeoutSec,
		LogID:                 logID,
		LogDateTime:           triggerTime.UnixMilli(),
		GlueType:              job.GlueType,
		GlueSource:            job.GlueSource,
		GlueUpdatetime:        glueUpdated,
		BroadcastIndex:        0,
		BroadcastTotal:        1,
	}
}

// finalizeJob advances the job's trigger bookkeeping. A schedule error here
// is non-fatal: the log row already records the dispatch, and the next-fire
// time simply stays stale until the next successful computation.
func (e *Engine) finalizeJob(ctx context.Context, job domain.Job, now time.Time) {
	last := now.UnixMilli()
	update := JobTriggerUpdate{TriggerLastTime: &last}

	next, ok, err := e.calc.Next(job.ScheduleType, job.ScheduleConf, now)
	if err != nil {
		log.Printf("dispatch: job=%d next-fire computation failed: %v", job.ID, err)
	} else if ok {
		nextMs := next.UnixMilli()
		update.TriggerNextTime = &nextMs
	}

	if err := e.store.UpdateJobTrigger(ctx, job.ID, update); err != nil {
		log.Printf("dispatch: job=%d trigger bookkeeping update failed: %v", job.ID, err)
	}
}

// recordOutcome writes analytics and outcome metrics as best-effort
// side-effects. Neither affects dispatch correctness.
func (e *Engine) recordOutcome(ctx context.Context, job domain.Job, code int, at time.Time) {
	if e.metrics != nil {
		if code == domain.CodeSuccess {
			e.metrics.TriggerOutcome("success")
		} else {
			e.metrics.TriggerOutcome("failed")
		}
	}
	if e.analytics != nil {
		e.analytics.Record(ctx, job.GroupID, job.ID, code, at)
	}
}

// Start enables a job: computes its next fire time from now and flips the
// trigger status to running.
func (e *Engine) Start(ctx context.Context, jobID int64) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job %d: %w", jobID, err)
	}

	now := e.clock()
	next, ok, err := e.calc.Next(job.ScheduleType, job.ScheduleConf, now)
	if err != nil {
		return fmt.Errorf("job %d schedule: %w", jobID, err)
	}

	var nextMs int64
	if ok {
		nextMs = next.UnixMilli()
	}
	status := domain.TriggerStatusRunning
	lastMs := now.UnixMilli()

	if err := e.store.UpdateJobTrigger(ctx, jobID, JobTriggerUpdate{
		TriggerStatus:   &status,
		TriggerLastTime: &lastMs,
		TriggerNextTime: &nextMs,
	}); err != nil {
		return fmt.Errorf("start job %d: %w", jobID, err)
	}
	log.Printf("dispatch: job=%d started, next fire at %d", jobID, nextMs)
	return nil
}

// Stop disables a job and clears its next fire time.
func (e *Engine) Stop(ctx context.Context, jobID int64) error {
	if _, err := e.store.GetJob(ctx, jobID); err != nil {
		return fmt.Errorf("get job %d: %w", jobID, err)
	}

	status := domain.TriggerStatusStopped
	var nextMs int64

	if err := e.store.UpdateJobTrigger(ctx, jobID, JobTriggerUpdate{
		TriggerStatus:   &status,
		TriggerNextTime: &nextMs,
	}); err != nil {
		return fmt.Errorf("stop job %d: %w", jobID, err)
	}
	log.Printf("dispatch: job=%d stopped", jobID)
	return nil
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return "no executor attempted"
	}
	return lines[len(lines)-1]
}

// classifyAttempt maps an attempt result to a metrics status class.
// Bounded cardinality: 2xx, 4xx, 5xx, timeout, connection_error, other_error.
func classifyAttempt(outcome TriggerOutcome, err error) string {
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			return "timeout"
		case errors.Is(err, ErrConnect):
			return "connection_error"
		}
		var statusErr *RemoteStatusError
		if errors.As(err, &statusErr) {
			return classifyCode(statusErr.Status)
		}
		return "other_error"
	}
	return classifyCode(outcome.Code)
}

func classifyCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other_error"
	}
}
