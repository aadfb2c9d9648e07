package model

import "time"

// ConversationKind selects the upstream completion endpoint for a conversation.
type ConversationKind int16

const (
	// ConversationKindPlain is a free-form question/answer chat.
	ConversationKindPlain ConversationKind = 0
	// ConversationKindFileGrounded answers against an uploaded file.
	ConversationKindFileGrounded ConversationKind = 1
)

type Conversation struct {
	ID     int64            `json:"id"`
	UserID int64            `json:"user_id"`
	Title  string           `json:"title"`
	Kind   ConversationKind `json:"kind"`

	// TitleSet records that the user named the conversation explicitly.
	// Auto-titling must never overwrite such a title.
	TitleSet bool `json:"title_set"`

	FileName *string `json:"file_name,omitempty"`
	FileData []byte  `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
