// Package api exposes the console's HTTP surface: the administrative job,
// group, and log endpoints, plus the executor-facing registry heartbeat and
// callback endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/djlord-it/jobadmin/internal/callback"
	"github.com/djlord-it/jobadmin/internal/dispatch"
	"github.com/djlord-it/jobadmin/internal/domain"
	"github.com/djlord-it/jobadmin/internal/registry"
	"github.com/djlord-it/jobadmin/internal/schedule"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

type Store interface {
	GetJob(ctx context.Context, jobID int64) (domain.Job, error)
	CreateJob(ctx context.Context, job domain.Job, now time.Time) (int64, error)
	UpdateJob(ctx context.Context, job domain.Job, now time.Time) error
	DeleteJob(ctx context.Context, jobID int64) error
	ListJobs(ctx context.Context, groupID int64, status int, desc string, limit, offset int) ([]domain.Job, error)

	GetGroup(ctx context.Context, groupID int64) (domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	CreateGroup(ctx context.Context, group domain.Group, now time.Time) (int64, error)
	UpdateGroup(ctx context.Context, group domain.Group, now time.Time) error
	DeleteGroup(ctx context.Context, groupID int64) error

	GetLog(ctx context.Context, logID int64) (domain.TriggerLog, error)
	ListLogs(ctx context.Context, jobID, groupID int64, limit, offset int) ([]domain.TriggerLog, error)
	KillLog(ctx context.Context, logID int64, msg string, now time.Time) error

	UpsertRegistryEntry(ctx context.Context, registryGroup, registryKey, registryValue string, now time.Time) error
	RemoveRegistryEntry(ctx context.Context, registryGroup, registryKey, registryValue string) error
}

// Dispatcher runs the trigger workflow and the start/stop transitions.
type Dispatcher interface {
	Trigger(ctx context.Context, jobID int64, opts dispatch.TriggerOptions) (dispatch.Result, error)
	Start(ctx context.Context, jobID int64) error
	Stop(ctx context.Context, jobID int64) error
}

// Calculator previews and validates schedules.
type Calculator interface {
	Preview(scheduleType domain.ScheduleType, expr string, from time.Time, n int) ([]time.Time, error)
	Validate(scheduleType domain.ScheduleType, expr string) error
}

// ReportEmitter hands callback reports to the reconciler.
type ReportEmitter interface {
	Emit(ctx context.Context, report domain.CallbackReport) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store       Store
	engine      Dispatcher
	calc        Calculator
	reports     ReportEmitter
	db          HealthChecker
	accessToken string
	clock       func() time.Time
}

func NewHandler(store Store, engine Dispatcher, calc Calculator, reports ReportEmitter) *Handler {
	return &Handler{
		store:   store,
		engine:  engine,
		calc:    calc,
		reports: reports,
		clock:   time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithAccessToken guards the executor-facing endpoints with a shared secret.
func (h *Handler) WithAccessToken(token string) *Handler {
	h.accessToken = token
	return h
}

// Routes builds the HTTP router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.listJobs)
			r.Post("/", h.createJob)
			r.Get("/next-trigger-times", h.nextTriggerTimes)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getJob)
				r.Put("/", h.updateJob)
				r.Delete("/", h.deleteJob)
				r.Post("/trigger", h.triggerJob)
				r.Post("/start", h.startJob)
				r.Post("/stop", h.stopJob)
			})
		})

		r.Route("/job-groups", func(r chi.Router) {
			r.Get("/", h.listGroups)
			r.Post("/", h.createGroup)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getGroup)
				r.Put("/", h.updateGroup)
				r.Delete("/", h.deleteGroup)
			})
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.listLogs)
			r.Get("/{id}", h.getLog)
			r.Post("/{id}/kill", h.killLog)
		})

		// Executor-facing endpoints.
		r.Group(func(r chi.Router) {
			r.Use(h.requireAccessToken)
			r.Post("/callback", h.callbackBatch)
			r.Post("/registry", h.registryHeartbeat)
			r.Post("/registry/remove", h.registryRemove)
		})
	})

	return r
}

// requireAccessToken rejects executor requests whose token does not match.
// No token configured means the check is disabled.
func (h *Handler) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.accessToken != "" && r.Header.Get(dispatch.AccessTokenHeader) != h.accessToken {
			writeJSON(w, http.StatusUnauthorized, AckResponse{Code: http.StatusUnauthorized, Msg: "access token is wrong"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.validateJob(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.ensureGroupExists(w, r, req.GroupID) {
		return
	}

	job := jobFromRequest(req)
	now := h.clock().UTC()
	if job.GlueSource != "" {
		job.GlueUpdatedAt = now
	}

	id, err := h.store.CreateJob(r.Context(), job, now)
	if err != nil {
		log.Printf("api: create job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now
	writeJSON(w, http.StatusCreated, jobResponse(job))
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeDomainError(w, err, "get job")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}

	var req JobRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.validateJob(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.ensureGroupExists(w, r, req.GroupID) {
		return
	}

	existing, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeDomainError(w, err, "update job")
		return
	}

	job := jobFromRequest(req)
	job.ID = jobID
	job.GlueUpdatedAt = existing.GlueUpdatedAt
	now := h.clock().UTC()
	if job.GlueSource != existing.GlueSource {
		job.GlueUpdatedAt = now
	}

	if err := h.store.UpdateJob(r.Context(), job, now); err != nil {
		h.writeDomainError(w, err, "update job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteJob(r.Context(), jobID); err != nil {
		h.writeDomainError(w, err, "delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupID := int64(0)
	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group_id")
			return
		}
	}

	status := -1
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	jobs, err := h.store.ListJobs(r.Context(), groupID, status, r.URL.Query().Get("desc"), limit, offset)
	if err != nil {
		log.Printf("api: list jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = jobResponse(job)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) triggerJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}

	// Body is optional for a plain trigger.
	var req TriggerRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := h.engine.Trigger(r.Context(), jobID, dispatch.TriggerOptions{
		ExecutorParam: req.ExecutorParam,
		AddressList:   req.AddressList,
		Operator:      req.Operator,
	})
	if err != nil {
		h.writeDomainError(w, err, "trigger job")
		return
	}

	// Exhausted attempts still answer 200: the dispatch completed, the
	// remote execution did not.
	writeJSON(w, http.StatusOK, TriggerResponse{Code: result.Code, Message: result.Message})
}

func (h *Handler) startJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Start(r.Context(), jobID); err != nil {
		h.writeDomainError(w, err, "start job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Stop(r.Context(), jobID); err != nil {
		h.writeDomainError(w, err, "stop job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nextTriggerTimes previews up to 5 upcoming fire times for a schedule.
func (h *Handler) nextTriggerTimes(w http.ResponseWriter, r *http.Request) {
	scheduleType := domain.ScheduleType(r.URL.Query().Get("schedule_type"))
	scheduleConf := r.URL.Query().Get("schedule_conf")

	times, err := h.calc.Preview(scheduleType, scheduleConf, h.clock(), 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := NextTriggerTimesResponse{Times: make([]string, len(times))}
	for i, t := range times {
		resp.Times[i] = formatTime(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := validateGroup(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := groupFromRequest(req)
	now := h.clock().UTC()

	id, err := h.store.CreateGroup(r.Context(), group, now)
	if err != nil {
		log.Printf("api: create group error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	group.ID = id
	group.UpdatedAt = now
	writeJSON(w, http.StatusCreated, groupResponse(group))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, r)
	if !ok {
		return
	}

	group, err := h.store.GetGroup(r.Context(), groupID)
	if err != nil {
		h.writeDomainError(w, err, "get group")
		return
	}
	writeJSON(w, http.StatusOK, groupResponse(group))
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		log.Printf("api: list groups error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}

	resp := ListGroupsResponse{Groups: make([]GroupResponse, len(groups))}
	for i, group := range groups {
		resp.Groups[i] = groupResponse(group)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, r)
	if !ok {
		return
	}

	var req GroupRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := validateGroup(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := groupFromRequest(req)
	group.ID = groupID

	if err := h.store.UpdateGroup(r.Context(), group, h.clock().UTC()); err != nil {
		h.writeDomainError(w, err, "update group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteGroup(r.Context(), groupID); err != nil {
		h.writeDomainError(w, err, "delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	logID, ok := parseID(w, r)
	if !ok {
		return
	}

	entry, err := h.store.GetLog(r.Context(), logID)
	if err != nil {
		h.writeDomainError(w, err, "get log")
		return
	}
	writeJSON(w, http.StatusOK, logResponse(entry))
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := int64(0)
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		jobID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job_id")
			return
		}
	}

	groupID := int64(0)
	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group_id")
			return
		}
	}

	logs, err := h.store.ListLogs(r.Context(), jobID, groupID, limit, offset)
	if err != nil {
		log.Printf("api: list logs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	resp := ListLogsResponse{Logs: make([]LogResponse, len(logs))}
	for i, entry := range logs {
		resp.Logs[i] = logResponse(entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

// killLog force-fails a log entry that never reported back.
func (h *Handler) killLog(w http.ResponseWriter, r *http.Request) {
	logID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.KillLog(r.Context(), logID, "killed by operator", h.clock().UTC()); err != nil {
		h.writeDomainError(w, err, "kill log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// callbackBatch accepts a batch of executor completion reports. Each report
// is enqueued independently; the response acknowledges receipt regardless of
// per-item outcome.
func (h *Handler) callbackBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var reports []domain.CallbackReport
	if err := json.NewDecoder(r.Body).Decode(&reports); err != nil {
		writeJSON(w, http.StatusBadRequest, AckResponse{Code: http.StatusBadRequest, Msg: "invalid json"})
		return
	}

	for _, report := range reports {
		if err := h.reports.Emit(r.Context(), report); err != nil {
			log.Printf("api: callback enqueue failed for log=%d: %v", report.LogID, err)
		}
	}
	writeJSON(w, http.StatusOK, AckResponse{Code: http.StatusOK})
}

func (h *Handler) registryHeartbeat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRegistry(w, r)
	if !ok {
		return
	}

	address := registry.NormalizeAddress(req.RegistryValue)
	if err := h.store.UpsertRegistryEntry(r.Context(), req.RegistryGroup, req.RegistryKey, address, h.clock().UTC()); err != nil {
		log.Printf("api: registry upsert error: %v", err)
		writeJSON(w, http.StatusInternalServerError, AckResponse{Code: http.StatusInternalServerError, Msg: "registry update failed"})
		return
	}
	writeJSON(w, http.StatusOK, AckResponse{Code: http.StatusOK})
}

func (h *Handler) registryRemove(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRegistry(w, r)
	if !ok {
		return
	}

	address := registry.NormalizeAddress(req.RegistryValue)
	if err := h.store.RemoveRegistryEntry(r.Context(), req.RegistryGroup, req.RegistryKey, address); err != nil {
		log.Printf("api: registry remove error: %v", err)
		writeJSON(w, http.StatusInternalServerError, AckResponse{Code: http.StatusInternalServerError, Msg: "registry remove failed"})
		return
	}
	writeJSON(w, http.StatusOK, AckResponse{Code: http.StatusOK})
}

func (h *Handler) decodeRegistry(w http.ResponseWriter, r *http.Request) (RegistryRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req RegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AckResponse{Code: http.StatusBadRequest, Msg: "invalid json"})
		return RegistryRequest{}, false
	}
	if err := validateRegistry(req); err != nil {
		writeJSON(w, http.StatusBadRequest, AckResponse{Code: http.StatusBadRequest, Msg: err.Error()})
		return RegistryRequest{}, false
	}
	return req, true
}

// ensureGroupExists rejects job writes that reference a group that does not
// exist. On failure it writes the error response and returns false.
func (h *Handler) ensureGroupExists(w http.ResponseWriter, r *http.Request, groupID int64) bool {
	if _, err := h.store.GetGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "group does not exist")
			return false
		}
		log.Printf("api: group lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}

// decodeBody decodes a JSON request body with a size limit. On failure it
// writes the error response and returns false.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// writeDomainError maps component errors to HTTP statuses: missing records
// to 404, precondition failures to 400, anything else to 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound), errors.Is(err, callback.ErrLogNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, registry.ErrNoAvailableExecutor),
		errors.Is(err, schedule.ErrInvalidSchedule),
		errors.Is(err, schedule.ErrUnsupportedSchedule),
		errors.Is(err, ErrGroupInUse),
		errors.Is(err, ErrLastGroup),
		errors.Is(err, ErrKillDenied):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func jobFromRequest(req JobRequest) domain.Job {
	blockStrategy := req.BlockStrategy
	if blockStrategy == "" {
		blockStrategy = domain.DefaultBlockStrategy
	}
	glueType := req.GlueType
	if glueType == "" {
		glueType = "BEAN"
	}
	return domain.Job{
		GroupID:        req.GroupID,
		Description:    req.Description,
		Author:         req.Author,
		ScheduleType:   domain.ScheduleType(req.ScheduleType),
		ScheduleConf:   req.ScheduleConf,
		Handler:        req.Handler,
		Param:          req.Param,
		BlockStrategy:  blockStrategy,
		TimeoutSec:     req.TimeoutSec,
		FailRetryCount: req.FailRetryCount,
		GlueType:       glueType,
		GlueSource:     req.GlueSource,
	}
}

func groupFromRequest(req GroupRequest) domain.Group {
	return domain.Group{
		Name:        req.Name,
		Title:       req.Title,
		AddressMode: domain.AddressMode(req.AddressMode),
		AddressList: req.AddressList,
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
