package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits modify jobs to one asynq queue.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient opens an asynq client; callers must Close it.
func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueModifyImage submits a job. The task ID is the job ID, so
// submitting the same job twice is rejected by asynq.
func (c *Client) EnqueueModifyImage(ctx context.Context, payload ModifyImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewModifyImageTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(5),
		asynq.Timeout(3*time.Minute),
	)
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
