package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskStopRetry = "governance.stop.retry"

const TaskClassifyRetry = "governance.classify.retry"

type StopRetryPayload struct {
	LeadID string `json:"leadId"`
	Reason string `json:"reason"`
}

type ClassifyRetryPayload struct {
	LeadID string `json:"leadId"`
}

func NewStopRetryTask(payload StopRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStopRetry, data), nil
}

func ParseStopRetryPayload(task *asynq.Task) (StopRetryPayload, error) {
	var payload StopRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StopRetryPayload{}, err
	}
	return payload, nil
}

func NewClassifyRetryTask(payload ClassifyRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClassifyRetry, data), nil
}

func ParseClassifyRetryPayload(task *asynq.Task) (ClassifyRetryPayload, error) {
	var payload ClassifyRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClassifyRetryPayload{}, err
	}
	return payload, nil
}
