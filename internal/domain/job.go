package domain

import "time"

type ScheduleType string

const (
	ScheduleTypeNone       ScheduleType = "NONE"
	ScheduleTypeCron       ScheduleType = "CRON"
	ScheduleTypeFixedRate  ScheduleType = "FIXED_RATE"
	ScheduleTypeFixedDelay ScheduleType = "FIXED_DELAY"
)

type TriggerStatus int8

const (
	TriggerStatusStopped TriggerStatus = 0
	TriggerStatusRunning TriggerStatus = 1
)

// DefaultBlockStrategy is sent to executors when a job has none configured.
const DefaultBlockStrategy = "SERIAL_EXECUTION"

// Job is a schedulable unit bound to an executor group. TriggerLastTime and
// TriggerNextTime are epoch milliseconds and are mutated only by the dispatch
// engine and by start/stop.
type Job struct {
	ID      int64
	GroupID int64

	Description string
	Author      string

	ScheduleType ScheduleType
	ScheduleConf string

	Handler        string
	Param          string
	BlockStrategy  string
	TimeoutSec     int
	FailRetryCount int

	GlueType      string
	GlueSource    string
	GlueUpdatedAt time.Time // zero = never edited

	TriggerStatus   TriggerStatus
	TriggerLastTime int64
	TriggerNextTime int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
