// Package titler derives conversation titles in the background. Titles come
// from the first question of a conversation; explicitly renamed conversations
// are never touched.
package titler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell.app/assistant/common/llm"
	"inkwell.app/assistant/common/logger"
	"inkwell.app/assistant/internal/pubsub"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/upstream"
)

const maxTitleLength = 40

// Consumer is the slice of the queue consumer the worker needs.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// RelevanceChecker mirrors the upstream relevance endpoint.
type RelevanceChecker interface {
	CheckRelevance(ctx context.Context, messages []upstream.Message) (bool, error)
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer      Consumer
	conversations store.ConversationStore
	relevance     RelevanceChecker
	llm           llm.Client
	bus           *pubsub.Bus
	cfg           Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, conversations store.ConversationStore, relevance RelevanceChecker, llmClient llm.Client, bus *pubsub.Bus, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		consumer:      consumer,
		conversations: conversations,
		relevance:     relevance,
		llm:           llmClient,
		bus:           bus,
		cfg:           cfg,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "title worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "title worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "title task failed",
				"error", err,
				"message_id", msg.ID,
				"conversation_id", msg.ConversationID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in title task",
				"panic", r,
				"message_id", msg.ID,
				"conversation_id", msg.ConversationID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs one title task end to end. A nil return means the
// message was handled and acked, including the skip cases.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(msg.ConversationID),
		UserID:         logger.Ptr(msg.UserID),
		Component:      "assistant.titler",
	})

	slog.InfoContext(ctx, "processing title task",
		"message_id", msg.ID,
		"attempt", msg.Attempt)

	conv, err := w.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "conversation gone, dropping title task")
			return w.consumer.Ack(ctx, msg)
		}
		return fmt.Errorf("loading conversation: %w", err)
	}

	// Explicit titles win. The SQL guard repeats this check, but skipping
	// here avoids a pointless generation call.
	if conv.TitleSet {
		slog.InfoContext(ctx, "title already set, skipping")
		return w.consumer.Ack(ctx, msg)
	}

	if related := w.checkRelevance(ctx, msg.Question); !related {
		slog.InfoContext(ctx, "question not title-worthy, skipping")
		return w.consumer.Ack(ctx, msg)
	}

	title, err := w.generateTitle(ctx, msg.Question)
	if err != nil {
		return fmt.Errorf("generating title: %w", err)
	}

	updated, err := w.conversations.SetTitleIfUnset(ctx, msg.ConversationID, title)
	if err != nil {
		return fmt.Errorf("saving title: %w", err)
	}

	if updated {
		w.bus.Publish(pubsub.TitleEvent{
			ConversationID: msg.ConversationID,
			UserID:         conv.UserID,
			Title:          title,
		})
		slog.InfoContext(ctx, "conversation titled", "title", title)
	} else {
		slog.InfoContext(ctx, "title was set concurrently, not publishing")
	}

	return w.consumer.Ack(ctx, msg)
}

// checkRelevance gates title generation on the upstream relevance endpoint.
// Relevance outages must not block titling, so errors count as relevant.
func (w *Worker) checkRelevance(ctx context.Context, question string) bool {
	related, err := w.relevance.CheckRelevance(ctx, []upstream.Message{
		{Role: "user", Content: question},
	})
	if err != nil {
		slog.WarnContext(ctx, "relevance check failed, assuming relevant", "error", err)
		return true
	}
	return related
}

type titleResult struct {
	Title string `json:"title" jsonschema_description:"Concise conversation title, at most 40 characters, no quotes"`
}

var titleSchema = llm.GenerateSchema[titleResult]()

func (w *Worker) generateTitle(ctx context.Context, question string) (string, error) {
	var result titleResult
	if _, err := w.llm.Chat(ctx, llm.Request{
		SystemPrompt: "You name conversations. Given the user's first question, produce a short descriptive title of at most 40 characters. Plain text, no quotes, no trailing punctuation.",
		UserPrompt:   question,
		SchemaName:   "conversation_title",
		Schema:       titleSchema,
		MaxTokens:    64,
		Temperature:  llm.Temp(0.2),
	}, &result); err != nil {
		return "", err
	}

	title := strings.TrimSpace(result.Title)
	if title == "" {
		return "", fmt.Errorf("model returned an empty title")
	}
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength])
	}
	return title, nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed title task",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
