// Package rerun flags companies for buyer-group regeneration and processes
// the resulting queue.
package rerun

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
)

// TaskRosterRerun regenerates one company's buyer group.
const TaskRosterRerun = "roster.rerun"

type RerunPayload struct {
	CompanyID string `json:"companyId"`
	Reason    string `json:"reason"`
}

func NewRosterRerunTask(payload RerunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "rerun: marshal payload")
	}
	return asynq.NewTask(TaskRosterRerun, data), nil
}

func ParseRosterRerunPayload(task *asynq.Task) (RerunPayload, error) {
	var payload RerunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RerunPayload{}, eris.Wrap(err, "rerun: unmarshal payload")
	}
	return payload, nil
}
