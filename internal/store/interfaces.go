package store

import (
	"context"
	"errors"

	"inkwell.app/assistant/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByWorkOSID(ctx context.Context, workosID string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
}

type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) error
}

type ConversationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	Create(ctx context.Context, conv *model.Conversation) error
	ListByUser(ctx context.Context, userID int64) ([]model.Conversation, error)
	// SetTitle renames a conversation explicitly and marks the title as set.
	SetTitle(ctx context.Context, id int64, title string) (*model.Conversation, error)
	// SetTitleIfUnset applies an auto-generated title. It returns false
	// without modifying anything when the title was already set explicitly.
	SetTitleIfUnset(ctx context.Context, id int64, title string) (bool, error)
	Touch(ctx context.Context, id int64) error
}

type RoundStore interface {
	GetByID(ctx context.Context, id int64) (*model.Round, error)
	Create(ctx context.Context, round *model.Round) error
	ListByConversation(ctx context.Context, conversationID int64) ([]model.Round, error)
	// CountActive counts rounds of the conversation in a non-terminal status.
	CountActive(ctx context.Context, conversationID int64) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status model.RoundStatus) (*model.Round, error)
	// UpdateResult writes the final answer and terminal status in one statement.
	UpdateResult(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error)
}
