package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"github.com/dunamismax/pixelmod/internal/domain"
)

const TypeModifyImage = "image:modify"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ModifyImagePayload struct {
	JobID       string               `json:"job_id"`
	Request     domain.ModifyRequest `json:"request"`
	RequestedAt time.Time            `json:"requested_at"`
}

func (p ModifyImagePayload) Validate() error {
	if strings.TrimSpace(p.JobID) == "" {
		return fmt.Errorf("job_id is required")
	}
	return p.Request.Validate()
}

func NewModifyImageTask(payload ModifyImagePayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal modify payload: %w", err)
	}
	return asynq.NewTask(TypeModifyImage, body), nil
}

func ParseModifyImagePayload(task *asynq.Task) (ModifyImagePayload, error) {
	var payload ModifyImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ModifyImagePayload{}, fmt.Errorf("unmarshal modify payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return ModifyImagePayload{}, err
	}
	return payload, nil
}
