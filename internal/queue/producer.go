package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// TitleTask asks the title worker to derive a title for a conversation that
// does not have one yet, from the first question asked in it.
type TitleTask struct {
	ConversationID int64
	UserID         int64
	Question       string
	TraceID        *string
	Attempt        int
}

type Producer interface {
	Enqueue(ctx context.Context, task TitleTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task TitleTask) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"conversation_id": task.ConversationID,
		"user_id":         task.UserID,
		"question":        task.Question,
		"attempt":         attempt,
	}

	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue title task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued title task", "conversation_id", task.ConversationID, "user_id", task.UserID, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
