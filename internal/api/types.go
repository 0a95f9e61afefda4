package api

import (
	"errors"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
)

// Errors surfaced by the store for admin invariants.
var (
	// ErrGroupInUse is returned when deleting a group that still has jobs.
	ErrGroupInUse = errors.New("group still has jobs attached")
	// ErrLastGroup is returned when deleting the only remaining group.
	ErrLastGroup = errors.New("at least one group must exist")
	// ErrKillDenied is returned when killing a log that already reported success.
	ErrKillDenied = errors.New("log already completed successfully")
)

type JobRequest struct {
	GroupID        int64  `json:"group_id"`
	Description    string `json:"description"`
	Author         string `json:"author,omitempty"`
	ScheduleType   string `json:"schedule_type"`
	ScheduleConf   string `json:"schedule_conf,omitempty"`
	Handler        string `json:"handler"`
	Param          string `json:"param,omitempty"`
	BlockStrategy  string `json:"block_strategy,omitempty"` // default SERIAL_EXECUTION
	TimeoutSec     int    `json:"timeout_seconds,omitempty"`
	FailRetryCount int    `json:"fail_retry_count,omitempty"`
	GlueType       string `json:"glue_type,omitempty"`
	GlueSource     string `json:"glue_source,omitempty"`
}

type JobResponse struct {
	ID              int64  `json:"id"`
	GroupID         int64  `json:"group_id"`
	Description     string `json:"description"`
	Author          string `json:"author,omitempty"`
	ScheduleType    string `json:"schedule_type"`
	ScheduleConf    string `json:"schedule_conf,omitempty"`
	Handler         string `json:"handler"`
	Param           string `json:"param,omitempty"`
	BlockStrategy   string `json:"block_strategy"`
	TimeoutSec      int    `json:"timeout_seconds"`
	FailRetryCount  int    `json:"fail_retry_count"`
	GlueType        string `json:"glue_type,omitempty"`
	TriggerStatus   int    `json:"trigger_status"`
	TriggerLastTime int64  `json:"trigger_last_time"`
	TriggerNextTime int64  `json:"trigger_next_time"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type GroupRequest struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	AddressMode int    `json:"address_mode"` // 0 = auto, 1 = manual
	AddressList string `json:"address_list,omitempty"`
}

type GroupResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	AddressMode int    `json:"address_mode"`
	AddressList string `json:"address_list,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

type ListGroupsResponse struct {
	Groups []GroupResponse `json:"groups"`
}

type TriggerRequest struct {
	ExecutorParam string `json:"executor_param,omitempty"`
	AddressList   string `json:"address_list,omitempty"`
	Operator      string `json:"operator,omitempty"`
}

type TriggerResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

type NextTriggerTimesResponse struct {
	Times []string `json:"times"`
}

type LogResponse struct {
	ID              int64  `json:"id"`
	JobID           int64  `json:"job_id"`
	GroupID         int64  `json:"group_id"`
	ExecutorAddress string `json:"executor_address,omitempty"`
	Handler         string `json:"handler"`
	Param           string `json:"param,omitempty"`
	TriggerTime     string `json:"trigger_time"`
	TriggerCode     int    `json:"trigger_code"`
	TriggerMsg      string `json:"trigger_msg,omitempty"`
	HandleTime      string `json:"handle_time,omitempty"`
	HandleCode      int    `json:"handle_code"`
	HandleMsg       string `json:"handle_msg,omitempty"`
}

type ListLogsResponse struct {
	Logs []LogResponse `json:"logs"`
}

// RegistryRequest is the executor-facing heartbeat body; field names follow
// the executor wire convention, like domain.CallbackReport.
type RegistryRequest struct {
	RegistryGroup string `json:"registryGroup"`
	RegistryKey   string `json:"registryKey"`
	RegistryValue string `json:"registryValue"`
}

// AckResponse is the executor-facing acknowledgment envelope.
type AckResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func jobResponse(job domain.Job) JobResponse {
	return JobResponse{
		ID:              job.ID,
		GroupID:         job.GroupID,
		Description:     job.Description,
		Author:          job.Author,
		ScheduleType:    string(job.ScheduleType),
		ScheduleConf:    job.ScheduleConf,
		Handler:         job.Handler,
		Param:           job.Param,
		BlockStrategy:   job.BlockStrategy,
		TimeoutSec:      job.TimeoutSec,
		FailRetryCount:  job.FailRetryCount,
		GlueType:        job.GlueType,
		TriggerStatus:   int(job.TriggerStatus),
		TriggerLastTime: job.TriggerLastTime,
		TriggerNextTime: job.TriggerNextTime,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
}

func groupResponse(group domain.Group) GroupResponse {
	return GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Title:       group.Title,
		AddressMode: int(group.AddressMode),
		AddressList: group.AddressList,
		UpdatedAt:   formatTime(group.UpdatedAt),
	}
}

func logResponse(entry domain.TriggerLog) LogResponse {
	return LogResponse{
		ID:              entry.ID,
		JobID:           entry.JobID,
		GroupID:         entry.GroupID,
		ExecutorAddress: entry.ExecutorAddress,
		Handler:         entry.Handler,
		Param:           entry.Param,
		TriggerTime:     formatTime(entry.TriggerTime),
		TriggerCode:     entry.TriggerCode,
		TriggerMsg:      entry.TriggerMsg,
		HandleTime:      formatTime(entry.HandleTime),
		HandleCode:      entry.HandleCode,
		HandleMsg:       entry.HandleMsg,
	}
}
