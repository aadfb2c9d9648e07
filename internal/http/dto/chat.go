package dto

import (
	"strconv"
	"time"

	"inkwell.app/assistant/internal/model"
)

type CreateChatRequest struct {
	Title string `json:"title"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type RenameChatRequest struct {
	Title string `json:"title" binding:"required"`
}

// IDs cross the wire as strings: snowflakes overflow JavaScript numbers.
type ChatResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	TitleSet  bool    `json:"title_set"`
	Kind      string  `json:"kind"`
	FileName  *string `json:"file_name,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type RoundResponse struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ChatDetailResponse struct {
	Chat   ChatResponse    `json:"chat"`
	Rounds []RoundResponse `json:"rounds"`
}

type StopResponse struct {
	Aborted bool `json:"aborted"`
}

func ToChatResponse(conv *model.Conversation) ChatResponse {
	kind := "plain"
	if conv.Kind == model.ConversationKindFileGrounded {
		kind = "file_grounded"
	}
	return ChatResponse{
		ID:        strconv.FormatInt(conv.ID, 10),
		Title:     conv.Title,
		TitleSet:  conv.TitleSet,
		Kind:      kind,
		FileName:  conv.FileName,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

func ToChatResponses(convs []model.Conversation) []ChatResponse {
	out := make([]ChatResponse, len(convs))
	for i := range convs {
		out[i] = ToChatResponse(&convs[i])
	}
	return out
}

func ToRoundResponse(round *model.Round) RoundResponse {
	return RoundResponse{
		ID:        strconv.FormatInt(round.ID, 10),
		Question:  round.Question,
		Answer:    string(round.Answer),
		Status:    round.Status.String(),
		CreatedAt: round.CreatedAt.Format(time.RFC3339),
	}
}

func ToRoundResponses(rounds []model.Round) []RoundResponse {
	out := make([]RoundResponse, len(rounds))
	for i := range rounds {
		out[i] = ToRoundResponse(&rounds[i])
	}
	return out
}
