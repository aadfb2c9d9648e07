package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"inkwell.app/assistant/common/id"
	"inkwell.app/assistant/common/logger"
	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/registry"
	"inkwell.app/assistant/internal/relay"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/upstream"
)

const pgUniqueViolation = "23505"

// Client-facing error frame codes, carried in the SSE error payload.
const (
	frameCodeInternal    = 500
	frameCodeUpstreamBad = 502
	frameCodeTimeout     = 504
)

type CreateConversationRequest struct {
	Title    string
	Kind     model.ConversationKind
	FileName string
	FileData []byte
}

// ChatService owns the conversation and round lifecycle: CRUD on
// conversations, the streaming round flow, and out-of-band stops.
type ChatService interface {
	CreateConversation(ctx context.Context, userID int64, req CreateConversationRequest) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID int64) (*model.Conversation, []model.Round, error)
	RenameConversation(ctx context.Context, userID, conversationID int64, title string) (*model.Conversation, error)

	// StartRound runs the pre-stream checks and creates the round. Errors
	// here surface as plain HTTP responses; once a RoundFlight exists the
	// connection switches to the event stream and all further failures are
	// reported as error frames.
	StartRound(ctx context.Context, userID, conversationID int64, question string) (*RoundFlight, error)

	// StopRound aborts an in-flight round. It reports whether anything was
	// actually aborted; stopping a finished or unknown round is a no-op.
	StopRound(ctx context.Context, userID, conversationID, roundID int64) (bool, error)
}

type chatService struct {
	conversations store.ConversationStore
	rounds        store.RoundStore
	txRunner      TxRunner
	dispatcher    upstream.Dispatcher
	engine        *relay.Engine
	registry      *registry.Registry
	producer      queue.Producer
}

func NewChatService(
	conversations store.ConversationStore,
	rounds store.RoundStore,
	txRunner TxRunner,
	dispatcher upstream.Dispatcher,
	engine *relay.Engine,
	reg *registry.Registry,
	producer queue.Producer,
) ChatService {
	return &chatService{
		conversations: conversations,
		rounds:        rounds,
		txRunner:      txRunner,
		dispatcher:    dispatcher,
		engine:        engine,
		registry:      reg,
		producer:      producer,
	}
}

func (s *chatService) CreateConversation(ctx context.Context, userID int64, req CreateConversationRequest) (*model.Conversation, error) {
	title := strings.TrimSpace(req.Title)

	conv := &model.Conversation{
		ID:       id.New(),
		UserID:   userID,
		Title:    title,
		Kind:     req.Kind,
		TitleSet: title != "",
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}

	if req.Kind == model.ConversationKindFileGrounded {
		if req.FileName == "" || len(req.FileData) == 0 {
			return nil, fmt.Errorf("file-grounded conversation requires a file")
		}
		conv.FileName = &req.FileName
		conv.FileData = req.FileData
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	slog.InfoContext(ctx, "conversation created",
		"conversation_id", conv.ID,
		"user_id", userID,
		"kind", conv.Kind,
	)
	return conv, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}

func (s *chatService) GetConversation(ctx context.Context, userID, conversationID int64) (*model.Conversation, []model.Round, error) {
	conv, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	rounds, err := s.rounds.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing rounds: %w", err)
	}
	return conv, rounds, nil
}

func (s *chatService) RenameConversation(ctx context.Context, userID, conversationID int64, title string) (*model.Conversation, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title must not be empty")
	}

	conv, err := s.conversations.SetTitle(ctx, conversationID, title)
	if err != nil {
		return nil, fmt.Errorf("renaming conversation: %w", err)
	}
	return conv, nil
}

// RoundFlight is one in-flight streaming round. It is created by StartRound
// and consumed exactly once by Stream.
type RoundFlight struct {
	Conversation *model.Conversation
	Round        *model.Round

	svc    *chatService
	cancel context.CancelFunc
	ctx    context.Context
}

func (s *chatService) StartRound(ctx context.Context, userID, conversationID int64, question string) (*RoundFlight, error) {
	conv, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	active, err := s.rounds.CountActive(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("counting active rounds: %w", err)
	}
	if active > 0 {
		return nil, ErrRoundInFlight
	}

	round := &model.Round{
		ID:             id.New(),
		ConversationID: conversationID,
		Question:       question,
		Status:         model.RoundStatusPending,
	}
	if err := s.rounds.Create(ctx, round); err != nil {
		// The partial unique index on active rounds closes the race the
		// count check leaves open.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrRoundInFlight
		}
		return nil, fmt.Errorf("creating round: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if err := s.registry.Register(round.ID, cancel); err != nil {
		cancel()
		return nil, fmt.Errorf("registering cancellation handle: %w", err)
	}

	return &RoundFlight{
		Conversation: conv,
		Round:        round,
		svc:          s,
		cancel:       cancel,
		ctx:          streamCtx,
	}, nil
}

// Stream dispatches the upstream call, relays the event stream to the sink,
// and commits the outcome. The sink always receives the terminal marker
// last, with an error frame before it when anything went wrong; the returned
// error is for the caller's log line only.
func (f *RoundFlight) Stream(ctx context.Context, sink relay.Sink) error {
	s := f.svc
	defer s.registry.Clear(f.Round.ID)
	defer f.cancel()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(f.Conversation.ID),
		RoundID:        logger.Ptr(f.Round.ID),
		Component:      "assistant.service.chat",
	})

	if _, err := s.rounds.UpdateStatus(ctx, f.Round.ID, model.RoundStatusProcessing); err != nil {
		return f.fail(ctx, sink, fmt.Errorf("marking round processing: %w", err))
	}

	resp, err := f.dispatch()
	if err != nil {
		return f.fail(ctx, sink, fmt.Errorf("dispatching upstream: %w", err))
	}
	defer resp.Body.Close()

	result := s.engine.Run(f.ctx, resp.Body, sink)
	if result.Err != nil {
		slog.WarnContext(ctx, "stream ended abnormally",
			"error", result.Err,
			"status", result.Status.String(),
			"answer_bytes", len(result.Answer))
	}

	// The commit must survive a cancelled stream context and a client that
	// already hung up.
	commitCtx := context.WithoutCancel(ctx)
	commitErr := s.commitResult(commitCtx, f.Round.ID, f.Conversation.ID, result.Answer, result.Status)
	if commitErr != nil {
		slog.ErrorContext(ctx, "failed to commit round result", "error", commitErr)
	}

	switch {
	case commitErr != nil:
		s.emitError(ctx, sink, frameCodeInternal, "failed to save the answer")
	case result.Err != nil:
		code, msg := frameFor(result.Err)
		s.emitError(ctx, sink, code, msg)
	}
	if err := sink.Done(); err != nil {
		slog.WarnContext(ctx, "failed to write terminal marker", "error", err)
	}

	if commitErr == nil && result.Status == model.RoundStatusCompleted && !f.Conversation.TitleSet {
		s.enqueueTitleTask(commitCtx, f.Conversation, f.Round.Question)
	}

	slog.InfoContext(ctx, "round finished",
		"status", result.Status.String(),
		"answer_bytes", len(result.Answer))

	if commitErr != nil {
		return commitErr
	}
	return result.Err
}

func (f *RoundFlight) dispatch() (*http.Response, error) {
	if f.Conversation.Kind == model.ConversationKindFileGrounded {
		fileName := ""
		if f.Conversation.FileName != nil {
			fileName = *f.Conversation.FileName
		}
		return f.svc.dispatcher.ReportCompletion(f.ctx, upstream.ReportRequest{
			Question: f.Round.Question,
			FileName: fileName,
			FileData: f.Conversation.FileData,
		})
	}

	return f.svc.dispatcher.Completion(f.ctx, upstream.CompletionRequest{
		ChatID:   f.Conversation.ID,
		RoundID:  f.Round.ID,
		RecordID: id.New(),
		Question: f.Round.Question,
	})
}

// fail records a round that never produced a stream, then seals the
// connection with an error frame and the terminal marker.
func (f *RoundFlight) fail(ctx context.Context, sink relay.Sink, cause error) error {
	s := f.svc

	commitCtx := context.WithoutCancel(ctx)
	if err := s.commitResult(commitCtx, f.Round.ID, f.Conversation.ID, nil, model.RoundStatusFailed); err != nil {
		slog.ErrorContext(ctx, "failed to record failed round", "error", err)
	}

	code, msg := frameFor(cause)
	s.emitError(ctx, sink, code, msg)
	if err := sink.Done(); err != nil {
		slog.WarnContext(ctx, "failed to write terminal marker", "error", err)
	}
	return cause
}

// commitResult writes the final answer and status and bumps the
// conversation in one transaction.
func (s *chatService) commitResult(ctx context.Context, roundID, conversationID int64, answer []byte, status model.RoundStatus) error {
	return s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := sp.Rounds().UpdateResult(ctx, roundID, answer, status); err != nil {
			return fmt.Errorf("updating round result: %w", err)
		}
		if err := sp.Conversations().Touch(ctx, conversationID); err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
		return nil
	})
}

func (s *chatService) StopRound(ctx context.Context, userID, conversationID, roundID int64) (bool, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return false, err
	}

	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		return false, err
	}
	if round.ConversationID != conversationID {
		return false, store.ErrNotFound
	}

	if round.Status.Terminal() {
		return false, nil
	}

	aborted := s.registry.Abort(roundID)
	slog.InfoContext(ctx, "stop requested",
		"conversation_id", conversationID,
		"round_id", roundID,
		"aborted", aborted)
	return aborted, nil
}

func (s *chatService) ownedConversation(ctx context.Context, userID, conversationID int64) (*model.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrForbidden
	}
	return conv, nil
}

// enqueueTitleTask is best effort: a lost task means an untitled
// conversation, not a lost answer.
func (s *chatService) enqueueTitleTask(ctx context.Context, conv *model.Conversation, question string) {
	task := queue.TitleTask{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Question:       question,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID := sc.TraceID().String()
		task.TraceID = &traceID
	}

	if err := s.producer.Enqueue(ctx, task); err != nil {
		slog.WarnContext(ctx, "failed to enqueue title task",
			"error", err,
			"conversation_id", conv.ID)
	}
}

func (s *chatService) emitError(ctx context.Context, sink relay.Sink, code int, message string) {
	if err := sink.Error(code, message); err != nil {
		slog.WarnContext(ctx, "failed to write error frame", "error", err)
	}
}

// frameFor maps an internal failure to the client-facing error frame.
func frameFor(err error) (int, string) {
	var timeoutErr *upstream.TimeoutError
	var statusErr *upstream.StatusError
	var parseErr *relay.ParseError

	switch {
	case errors.As(err, &timeoutErr):
		return frameCodeTimeout, "the assistant took too long to respond"
	case errors.As(err, &statusErr):
		return frameCodeUpstreamBad, "the assistant backend is unavailable"
	case errors.As(err, &parseErr):
		return frameCodeUpstreamBad, "the assistant returned an unreadable response"
	case errors.Is(err, relay.ErrNoResponseBody):
		return frameCodeUpstreamBad, "the assistant returned an empty response"
	default:
		return frameCodeInternal, "something went wrong while answering"
	}
}
