package domain

import "time"

// Result codes shared by the trigger and handle phases of a TriggerLog.
const (
	CodePending = 0
	CodeSuccess = 200
	CodeFailure = 500
)

// TriggerLog records one dispatch of a job. Trigger fields are written by the
// dispatch engine; handle fields transition from unset to set exactly once,
// via the callback reconciler.
type TriggerLog struct {
	ID      int64
	JobID   int64
	GroupID int64

	ExecutorAddress string // empty until an attempt produced a response
	Handler         string
	Param           string
	ShardingParam   string
	FailRetryCount  int

	TriggerTime time.Time
	TriggerCode int
	TriggerMsg  string

	HandleTime time.Time // zero until the callback arrives
	HandleCode int
	HandleMsg  string
}

// CallbackReport is an executor's asynchronous completion report for one log.
type CallbackReport struct {
	LogID       int64  `json:"logId"`
	LogDateTime int64  `json:"logDateTime"`
	HandleCode  int    `json:"handleCode"`
	HandleMsg   string `json:"handleMsg,omitempty"`
}
