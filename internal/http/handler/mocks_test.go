package handler_test

import (
	"context"
	"net/http"

	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/service"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/upstream"
)

type mockAuthService struct {
	getAuthorizationURLFn func(state string) (string, error)
	handleCallbackFn      func(ctx context.Context, code string) (*model.User, *model.Session, error)
	validateSessionFn     func(ctx context.Context, sessionID int64) (*model.User, error)
	logoutFn              func(ctx context.Context, sessionID int64) error
}

func (m *mockAuthService) GetAuthorizationURL(state string) (string, error) {
	if m.getAuthorizationURLFn != nil {
		return m.getAuthorizationURLFn(state)
	}
	return "https://auth.example.com/authorize", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil, service.ErrInvalidCode
}

func (m *mockAuthService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	if m.validateSessionFn != nil {
		return m.validateSessionFn(ctx, sessionID)
	}
	return nil, service.ErrSessionExpired
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID int64) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockConversationStore struct {
	getByIDFn    func(ctx context.Context, id int64) (*model.Conversation, error)
	createFn     func(ctx context.Context, conv *model.Conversation) error
	listByUserFn func(ctx context.Context, userID int64) ([]model.Conversation, error)
	setTitleFn   func(ctx context.Context, id int64, title string) (*model.Conversation, error)
	touchFn      func(ctx context.Context, id int64) error
}

func (m *mockConversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	if m.createFn != nil {
		return m.createFn(ctx, conv)
	}
	return nil
}

func (m *mockConversationStore) ListByUser(ctx context.Context, userID int64) ([]model.Conversation, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockConversationStore) SetTitle(ctx context.Context, id int64, title string) (*model.Conversation, error) {
	if m.setTitleFn != nil {
		return m.setTitleFn(ctx, id, title)
	}
	return &model.Conversation{ID: id, Title: title, TitleSet: true}, nil
}

func (m *mockConversationStore) SetTitleIfUnset(ctx context.Context, id int64, title string) (bool, error) {
	return true, nil
}

func (m *mockConversationStore) Touch(ctx context.Context, id int64) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, id)
	}
	return nil
}

type mockRoundStore struct {
	getByIDFn            func(ctx context.Context, id int64) (*model.Round, error)
	createFn             func(ctx context.Context, round *model.Round) error
	listByConversationFn func(ctx context.Context, conversationID int64) ([]model.Round, error)
	countActiveFn        func(ctx context.Context, conversationID int64) (int64, error)
	updateResultFn       func(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error)
}

func (m *mockRoundStore) GetByID(ctx context.Context, id int64) (*model.Round, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockRoundStore) Create(ctx context.Context, round *model.Round) error {
	if m.createFn != nil {
		return m.createFn(ctx, round)
	}
	return nil
}

func (m *mockRoundStore) ListByConversation(ctx context.Context, conversationID int64) ([]model.Round, error) {
	if m.listByConversationFn != nil {
		return m.listByConversationFn(ctx, conversationID)
	}
	return nil, nil
}

func (m *mockRoundStore) CountActive(ctx context.Context, conversationID int64) (int64, error) {
	if m.countActiveFn != nil {
		return m.countActiveFn(ctx, conversationID)
	}
	return 0, nil
}

func (m *mockRoundStore) UpdateStatus(ctx context.Context, id int64, status model.RoundStatus) (*model.Round, error) {
	return &model.Round{ID: id, Status: status}, nil
}

func (m *mockRoundStore) UpdateResult(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error) {
	if m.updateResultFn != nil {
		return m.updateResultFn(ctx, id, answer, status)
	}
	return &model.Round{ID: id, Answer: answer, Status: status}, nil
}

type mockDispatcher struct {
	completionFn       func(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error)
	reportCompletionFn func(ctx context.Context, req upstream.ReportRequest) (*http.Response, error)
}

func (m *mockDispatcher) Completion(ctx context.Context, req upstream.CompletionRequest) (*http.Response, error) {
	if m.completionFn != nil {
		return m.completionFn(ctx, req)
	}
	return nil, &upstream.StatusError{Endpoint: "/v1/stream/completion", Code: http.StatusBadGateway}
}

func (m *mockDispatcher) ReportCompletion(ctx context.Context, req upstream.ReportRequest) (*http.Response, error) {
	if m.reportCompletionFn != nil {
		return m.reportCompletionFn(ctx, req)
	}
	return nil, &upstream.StatusError{Endpoint: "/v1/stream/report", Code: http.StatusBadGateway}
}

func (m *mockDispatcher) CheckRelevance(ctx context.Context, messages []upstream.Message) (bool, error) {
	return true, nil
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.TitleTask) error
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.TitleTask) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockStoreProvider struct {
	conversations *mockConversationStore
	rounds        *mockRoundStore
}

func (m *mockStoreProvider) Users() store.UserStore                 { return nil }
func (m *mockStoreProvider) Sessions() store.SessionStore           { return nil }
func (m *mockStoreProvider) Conversations() store.ConversationStore { return m.conversations }
func (m *mockStoreProvider) Rounds() store.RoundStore               { return m.rounds }

type mockTxRunner struct {
	provider service.StoreProvider
	err      error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(m.provider)
}
