package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rivelya/models"

	"github.com/hibiken/asynq"
)

const TypePushSend = "push:send"

// PushSender delivers a payload to every device of the recipient.
type PushSender interface {
	Send(ctx context.Context, p models.PushPayload) error
}

func NewPushTask(payload models.PushPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePushSend, b, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// HandlePushTask decodes a push task and hands it to sender. A payload that cannot be
// decoded is never retried.
func HandlePushTask(sender PushSender) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.PushPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode push payload: %v: %w", err, asynq.SkipRetry)
		}
		if p.UserID == "" {
			return fmt.Errorf("push payload without recipient: %w", asynq.SkipRetry)
		}
		return sender.Send(ctx, p)
	}
}
