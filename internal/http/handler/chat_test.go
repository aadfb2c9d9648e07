package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inkwell.app/assistant/internal/http/handler"
	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/registry"
	"inkwell.app/assistant/internal/relay"
	"inkwell.app/assistant/internal/service"
	"inkwell.app/assistant/internal/upstream"
)

const (
	sessionID = "5000"
	userID    = int64(7)
	chatID    = int64(100)
	roundID   = int64(200)
)

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: middleware.SessionCookieName, Value: sessionID}
}

func upstreamStream(fragments ...string) io.ReadCloser {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + f + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String()))
}

var _ = Describe("ChatHandler", func() {
	var (
		router        *gin.Engine
		auth          *mockAuthService
		conversations *mockConversationStore
		rounds        *mockRoundStore
		txRounds      *mockRoundStore
		dispatcher    *mockDispatcher
		producer      *mockProducer

		committedStatus model.RoundStatus
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		auth = &mockAuthService{}
		auth.validateSessionFn = func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: userID, Name: "Ada", Email: "ada@example.com"}, nil
		}

		conversations = &mockConversationStore{}
		rounds = &mockRoundStore{}
		txRounds = &mockRoundStore{}
		dispatcher = &mockDispatcher{}
		producer = &mockProducer{}

		committedStatus = model.RoundStatusPending
		txRounds.updateResultFn = func(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error) {
			committedStatus = status
			return &model.Round{ID: id, Answer: answer, Status: status}, nil
		}

		txRunner := &mockTxRunner{provider: &mockStoreProvider{
			conversations: &mockConversationStore{},
			rounds:        txRounds,
		}}

		chatService := service.NewChatService(
			conversations, rounds, txRunner, dispatcher,
			relay.NewEngine(), registry.New(), producer,
		)

		h := handler.NewChatHandler(chatService)
		group := router.Group("/api/v1/chats")
		group.Use(middleware.RequireAuth(auth))
		group.POST("", h.Create)
		group.GET("/:chat_id", h.Get)
		group.POST("/:chat_id/rounds", h.Ask)
		group.POST("/:chat_id/rounds/:round_id/stop", h.Stop)
	})

	ownChat := func() {
		conversations.getByIDFn = func(ctx context.Context, id int64) (*model.Conversation, error) {
			return &model.Conversation{ID: id, UserID: userID, Title: "T", TitleSet: true}, nil
		}
	}

	ask := func(withCookie bool) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"question": "why?"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/100/rounds", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		if withCookie {
			req.AddCookie(sessionCookie())
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("authentication", func() {
		It("rejects requests without a session cookie", func() {
			w := ask(false)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects expired sessions", func() {
			auth.validateSessionFn = func(ctx context.Context, id int64) (*model.User, error) {
				return nil, service.ErrSessionExpired
			}
			w := ask(true)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Ask", func() {
		It("streams fragments and ends with the terminal marker", func() {
			ownChat()
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: upstreamStream("Hello", " world")}, nil
			}

			w := ask(true)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))
			body := w.Body.String()
			Expect(body).To(ContainSubstring("data: Hello\n\n"))
			Expect(body).To(ContainSubstring("data:  world\n\n"))
			Expect(strings.TrimSpace(body)).To(HaveSuffix("data: [DONE]"))
			Expect(committedStatus).To(Equal(model.RoundStatusCompleted))
		})

		It("emits an error frame before the marker when the upstream fails", func() {
			ownChat()
			dispatcher.completionFn = func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
				return nil, &upstream.StatusError{Endpoint: "/v1/stream/completion", Code: http.StatusInternalServerError}
			}

			w := ask(true)

			Expect(w.Code).To(Equal(http.StatusOK))
			body := w.Body.String()
			errIdx := strings.Index(body, `"code":502`)
			doneIdx := strings.Index(body, "data: [DONE]")
			Expect(errIdx).To(BeNumerically(">", -1))
			Expect(doneIdx).To(BeNumerically(">", errIdx))
			Expect(committedStatus).To(Equal(model.RoundStatusFailed))
		})

		It("returns 404 for an unknown chat", func() {
			w := ask(true)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 403 for another user's chat", func() {
			conversations.getByIDFn = func(ctx context.Context, id int64) (*model.Conversation, error) {
				return &model.Conversation{ID: id, UserID: userID + 1}, nil
			}
			w := ask(true)
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 409 while a round is in flight", func() {
			ownChat()
			rounds.countActiveFn = func(ctx context.Context, conversationID int64) (int64, error) {
				return 1, nil
			}
			w := ask(true)
			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("returns 400 without a question", func() {
			ownChat()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/100/rounds", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Stop", func() {
		It("reports a no-op for a finished round", func() {
			ownChat()
			rounds.getByIDFn = func(ctx context.Context, id int64) (*model.Round, error) {
				return &model.Round{ID: id, ConversationID: chatID, Status: model.RoundStatusCompleted}, nil
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/100/rounds/200/stop", nil)
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["aborted"]).To(BeFalse())
		})

		It("returns 404 for an unknown round", func() {
			ownChat()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/100/rounds/200/stop", nil)
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Create", func() {
		It("creates a plain chat from a JSON body", func() {
			var created *model.Conversation
			conversations.createFn = func(ctx context.Context, conv *model.Conversation) error {
				created = conv
				return nil
			}

			body, _ := json.Marshal(map[string]string{"title": "Tides"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(created.Kind).To(Equal(model.ConversationKindPlain))
			Expect(created.UserID).To(Equal(userID))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["title"]).To(Equal("Tides"))
			Expect(resp["kind"]).To(Equal("plain"))
		})

		It("creates a file-grounded chat from a multipart body", func() {
			var created *model.Conversation
			conversations.createFn = func(ctx context.Context, conv *model.Conversation) error {
				created = conv
				return nil
			}

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("title", "Report")).To(Succeed())
			part, err := mw.CreateFormFile("file", "notes.pdf")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("pdf bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chats", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(created.Kind).To(Equal(model.ConversationKindFileGrounded))
			Expect(created.FileData).To(Equal([]byte("pdf bytes")))
		})
	})

	Describe("Get", func() {
		It("returns the chat with its rounds", func() {
			ownChat()
			rounds.listByConversationFn = func(ctx context.Context, conversationID int64) ([]model.Round, error) {
				return []model.Round{{
					ID:             roundID,
					ConversationID: conversationID,
					Question:       "why?",
					Answer:         []byte("because"),
					Status:         model.RoundStatusCompleted,
				}}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/100", nil)
			req.AddCookie(sessionCookie())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Rounds []struct {
					Answer string `json:"answer"`
					Status string `json:"status"`
				} `json:"rounds"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Rounds).To(HaveLen(1))
			Expect(resp.Rounds[0].Answer).To(Equal("because"))
			Expect(resp.Rounds[0].Status).To(Equal("completed"))
		})
	})
})
