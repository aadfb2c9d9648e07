package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/registry"
	"inkwell.app/assistant/internal/relay"
	"inkwell.app/assistant/internal/service"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/upstream"
)

const (
	ownerID  = int64(7)
	otherID  = int64(8)
	convID   = int64(100)
	aRoundID = int64(200)
)

func sseBody(fragments ...string) io.ReadCloser {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + f + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String()))
}

var _ = Describe("ChatService", func() {
	var (
		ctx           context.Context
		conversations *mockConversationStore
		rounds        *mockRoundStore
		txRounds      *mockRoundStore
		txConvs       *mockConversationStore
		dispatcher    *mockDispatcher
		producer      *mockProducer
		reg           *registry.Registry
		txRunner      *mockTxRunner
		svc           service.ChatService
		sink          *recordingSink

		committedAnswer []byte
		committedStatus model.RoundStatus
	)

	BeforeEach(func() {
		ctx = context.Background()
		conversations = &mockConversationStore{}
		rounds = &mockRoundStore{}
		txRounds = &mockRoundStore{}
		txConvs = &mockConversationStore{}
		dispatcher = &mockDispatcher{}
		producer = &mockProducer{}
		reg = registry.New()
		sink = &recordingSink{}

		committedAnswer = nil
		committedStatus = model.RoundStatusPending
		txRounds.updateResultFn = func(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error) {
			committedAnswer = answer
			committedStatus = status
			return &model.Round{ID: id, Answer: answer, Status: status}, nil
		}

		txRunner = &mockTxRunner{provider: &mockStoreProvider{
			rounds:        txRounds,
			conversations: txConvs,
		}}

		svc = service.NewChatService(conversations, rounds, txRunner, dispatcher, relay.NewEngine(), reg, producer)
	})

	ownConversation := func(titleSet bool) {
		conversations.getByIDFn = func(ctx context.Context, id int64) (*model.Conversation, error) {
			return &model.Conversation{ID: id, UserID: ownerID, TitleSet: titleSet}, nil
		}
	}

	Describe("StartRound", func() {
		It("rejects a conversation owned by someone else", func() {
			ownConversation(false)

			_, err := svc.StartRound(ctx, otherID, convID, "q")
			Expect(err).To(MatchError(service.ErrForbidden))
		})

		It("rejects a second round while one is in flight", func() {
			ownConversation(false)
			rounds.countActiveFn = func(ctx context.Context, conversationID int64) (int64, error) {
				return 1, nil
			}

			_, err := svc.StartRound(ctx, ownerID, convID, "q")
			Expect(err).To(MatchError(service.ErrRoundInFlight))
		})

		It("creates a pending round and registers a cancellation handle", func() {
			ownConversation(false)

			var created *model.Round
			rounds.createFn = func(ctx context.Context, round *model.Round) error {
				created = round
				return nil
			}

			flight, err := svc.StartRound(ctx, ownerID, convID, "why?")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).NotTo(BeNil())
			Expect(created.Status).To(Equal(model.RoundStatusPending))
			Expect(created.Question).To(Equal("why?"))
			Expect(flight.Round.ID).To(Equal(created.ID))
			Expect(reg.Len()).To(Equal(1))
		})

		It("propagates missing conversations", func() {
			_, err := svc.StartRound(ctx, ownerID, convID, "q")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("Stream", func() {
		startFlight := func() *service.RoundFlight {
			flight, err := svc.StartRound(ctx, ownerID, convID, "why is the sky blue?")
			Expect(err).NotTo(HaveOccurred())
			return flight
		}

		It("relays fragments, commits the answer, and seals with the terminal marker", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				Expect(req.ChatID).To(Equal(convID))
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("Ray", "leigh")}, nil
			}

			flight := startFlight()
			Expect(flight.Stream(ctx, sink)).To(Succeed())

			Expect(string(committedAnswer)).To(Equal("Rayleigh"))
			Expect(committedStatus).To(Equal(model.RoundStatusCompleted))
			Expect(sink.calls).To(HaveLen(3))
			Expect(sink.calls[0]).To(Equal(sinkCall{kind: "data", payload: "Ray"}))
			Expect(sink.last().kind).To(Equal("done"))
			Expect(reg.Len()).To(BeZero())
		})

		It("enqueues a title task for an untitled conversation", func() {
			ownConversation(false)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("answer")}, nil
			}

			var enqueued *queue.TitleTask
			producer.enqueueFn = func(ctx context.Context, task queue.TitleTask) error {
				enqueued = &task
				return nil
			}

			Expect(startFlight().Stream(ctx, sink)).To(Succeed())

			Expect(enqueued).NotTo(BeNil())
			Expect(enqueued.ConversationID).To(Equal(convID))
			Expect(enqueued.UserID).To(Equal(ownerID))
			Expect(enqueued.Question).To(Equal("why is the sky blue?"))
		})

		It("does not enqueue a title task when the title is already set", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("answer")}, nil
			}

			enqueued := false
			producer.enqueueFn = func(ctx context.Context, task queue.TitleTask) error {
				enqueued = true
				return nil
			}

			Expect(startFlight().Stream(ctx, sink)).To(Succeed())
			Expect(enqueued).To(BeFalse())
		})

		It("uses the report endpoint for file-grounded conversations", func() {
			fileName := "notes.pdf"
			conversations.getByIDFn = func(ctx context.Context, id int64) (*model.Conversation, error) {
				return &model.Conversation{
					ID:       id,
					UserID:   ownerID,
					Kind:     model.ConversationKindFileGrounded,
					TitleSet: true,
					FileName: &fileName,
					FileData: []byte("pdf bytes"),
				}, nil
			}

			var reported *upstream.ReportRequest
			dispatcher.reportCompletionFn = func(ctx context.Context, req upstream.ReportRequest) (*http.Response, error) {
				reported = &req
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("grounded")}, nil
			}

			Expect(startFlight().Stream(ctx, sink)).To(Succeed())

			Expect(reported).NotTo(BeNil())
			Expect(reported.FileName).To(Equal("notes.pdf"))
			Expect(reported.FileData).To(Equal([]byte("pdf bytes")))
		})

		It("records a failed round and seals the stream when dispatch fails", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return nil, &upstream.StatusError{Endpoint: "/v1/stream/completion", Code: http.StatusInternalServerError}
			}

			err := startFlight().Stream(ctx, sink)
			Expect(err).To(HaveOccurred())

			Expect(committedStatus).To(Equal(model.RoundStatusFailed))
			Expect(sink.calls).To(HaveLen(2))
			Expect(sink.calls[0].kind).To(Equal("error"))
			Expect(sink.calls[0].code).To(Equal(502))
			Expect(sink.last().kind).To(Equal("done"))
		})

		It("reports timeouts with their own frame code", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return nil, &upstream.TimeoutError{Endpoint: "/v1/stream/completion"}
			}

			_ = startFlight().Stream(ctx, sink)
			Expect(sink.calls[0].code).To(Equal(504))
		})

		It("emits an error frame before the marker when the commit fails", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("lost answer")}, nil
			}
			txRunner.err = errors.New("connection refused")

			err := startFlight().Stream(ctx, sink)
			Expect(err).To(MatchError(ContainSubstring("connection refused")))

			last := sink.calls[len(sink.calls)-2]
			Expect(last.kind).To(Equal("error"))
			Expect(last.code).To(Equal(500))
			Expect(sink.last().kind).To(Equal("done"))
		})

		It("commits the partial answer as stopped when aborted mid-stream", func() {
			ownConversation(true)
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: sseBody("partial")}, nil
			}

			flight := startFlight()
			// Abort before the relay starts; the engine observes the
			// cancelled context on its first iteration.
			Expect(reg.Abort(flight.Round.ID)).To(BeTrue())

			Expect(flight.Stream(ctx, sink)).To(Succeed())
			Expect(committedStatus).To(Equal(model.RoundStatusStopped))
			Expect(sink.last().kind).To(Equal("done"))
		})
	})

	Describe("StopRound", func() {
		BeforeEach(func() {
			ownConversation(true)
		})

		It("aborts a processing round", func() {
			rounds.getByIDFn = func(ctx context.Context, id int64) (*model.Round, error) {
				return &model.Round{ID: id, ConversationID: convID, Status: model.RoundStatusProcessing}, nil
			}
			cancelled := false
			Expect(reg.Register(aRoundID, func() { cancelled = true })).To(Succeed())

			aborted, err := svc.StopRound(ctx, ownerID, convID, aRoundID)
			Expect(err).NotTo(HaveOccurred())
			Expect(aborted).To(BeTrue())
			Expect(cancelled).To(BeTrue())
		})

		It("is a no-op on a finished round", func() {
			rounds.getByIDFn = func(ctx context.Context, id int64) (*model.Round, error) {
				return &model.Round{ID: id, ConversationID: convID, Status: model.RoundStatusCompleted}, nil
			}

			aborted, err := svc.StopRound(ctx, ownerID, convID, aRoundID)
			Expect(err).NotTo(HaveOccurred())
			Expect(aborted).To(BeFalse())
		})

		It("rejects rounds of another user's conversation", func() {
			_, err := svc.StopRound(ctx, otherID, convID, aRoundID)
			Expect(err).To(MatchError(service.ErrForbidden))
		})

		It("hides rounds that belong to a different conversation", func() {
			rounds.getByIDFn = func(ctx context.Context, id int64) (*model.Round, error) {
				return &model.Round{ID: id, ConversationID: convID + 1, Status: model.RoundStatusProcessing}, nil
			}

			_, err := svc.StopRound(ctx, ownerID, convID, aRoundID)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("CreateConversation", func() {
		It("marks a provided title as explicitly set", func() {
			var created *model.Conversation
			conversations.createFn = func(ctx context.Context, conv *model.Conversation) error {
				created = conv
				return nil
			}

			_, err := svc.CreateConversation(ctx, ownerID, service.CreateConversationRequest{Title: "Tides"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.TitleSet).To(BeTrue())
			Expect(created.Title).To(Equal("Tides"))
		})

		It("defaults the title and leaves it open for auto-titling", func() {
			var created *model.Conversation
			conversations.createFn = func(ctx context.Context, conv *model.Conversation) error {
				created = conv
				return nil
			}

			_, err := svc.CreateConversation(ctx, ownerID, service.CreateConversationRequest{})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.TitleSet).To(BeFalse())
			Expect(created.Title).To(Equal("New conversation"))
		})

		It("requires a file for file-grounded conversations", func() {
			_, err := svc.CreateConversation(ctx, ownerID, service.CreateConversationRequest{
				Kind: model.ConversationKindFileGrounded,
			})
			Expect(err).To(MatchError(ContainSubstring("requires a file")))
		})
	})

	Describe("RenameConversation", func() {
		It("stores the trimmed title", func() {
			ownConversation(false)
			var renamed string
			conversations.setTitleFn = func(ctx context.Context, id int64, title string) (*model.Conversation, error) {
				renamed = title
				return &model.Conversation{ID: id, Title: title, TitleSet: true}, nil
			}

			conv, err := svc.RenameConversation(ctx, ownerID, convID, "  Ocean physics  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(renamed).To(Equal("Ocean physics"))
			Expect(conv.TitleSet).To(BeTrue())
		})

		It("rejects empty titles", func() {
			ownConversation(false)
			_, err := svc.RenameConversation(ctx, ownerID, convID, "   ")
			Expect(err).To(MatchError(ContainSubstring("empty")))
		})
	})
})
