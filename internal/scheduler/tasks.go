package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskComparisonRun = "comparisons.run"

type ComparisonRunPayload struct {
	ComparisonID string `json:"comparisonId"`
	UserID       string `json:"userId"`
}

func NewComparisonRunTask(payload ComparisonRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskComparisonRun, data), nil
}

func ParseComparisonRunPayload(task *asynq.Task) (ComparisonRunPayload, error) {
	var payload ComparisonRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ComparisonRunPayload{}, err
	}
	return payload, nil
}
