package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationProcessDue posts all depreciation rows due by a date.
	TaskDepreciationProcessDue = "depreciation:process_due"
	// TaskGLIntegrityCheck audits ledger invariants.
	TaskGLIntegrityCheck = "gl:integrity_check"
)

// DepreciationPayload parameterizes a depreciation batch run.
type DepreciationPayload struct {
	AsOf    string `json:"as_of"`
	ActorID int64  `json:"actor_id"`
}

// AsOfDate parses the payload's date, defaulting to today.
func (p DepreciationPayload) AsOfDate() time.Time {
	if t, err := time.Parse("2006-01-02", p.AsOf); err == nil {
		return t
	}
	return time.Now()
}

// NewDepreciationTask constructs the depreciation batch task.
func NewDepreciationTask(payload DepreciationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationProcessDue, data), nil
}

// NewGLIntegrityTask constructs the ledger integrity task.
func NewGLIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskGLIntegrityCheck, nil)
}
