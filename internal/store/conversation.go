package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"inkwell.app/assistant/core/db/sqlc"
	"inkwell.app/assistant/internal/model"
)

type conversationStore struct {
	queries *sqlc.Queries
}

func newConversationStore(queries *sqlc.Queries) ConversationStore {
	return &conversationStore{queries: queries}
}

func (s *conversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	row, err := s.queries.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toConversationModel(row), nil
}

func (s *conversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	row, err := s.queries.CreateConversation(ctx, sqlc.CreateConversationParams{
		ID:       conv.ID,
		UserID:   conv.UserID,
		Title:    conv.Title,
		TitleSet: conv.TitleSet,
		Kind:     int16(conv.Kind),
		FileName: conv.FileName,
		FileData: conv.FileData,
	})
	if err != nil {
		return err
	}
	*conv = *toConversationModel(row)
	return nil
}

func (s *conversationStore) ListByUser(ctx context.Context, userID int64) ([]model.Conversation, error) {
	rows, err := s.queries.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toConversationModels(rows), nil
}

func (s *conversationStore) SetTitle(ctx context.Context, id int64, title string) (*model.Conversation, error) {
	row, err := s.queries.SetConversationTitle(ctx, sqlc.SetConversationTitleParams{
		ID:    id,
		Title: title,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toConversationModel(row), nil
}

func (s *conversationStore) SetTitleIfUnset(ctx context.Context, id int64, title string) (bool, error) {
	affected, err := s.queries.SetConversationTitleIfUnset(ctx, sqlc.SetConversationTitleIfUnsetParams{
		ID:    id,
		Title: title,
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *conversationStore) Touch(ctx context.Context, id int64) error {
	return s.queries.TouchConversation(ctx, id)
}

// toConversationModel converts sqlc.Conversation to model.Conversation
func toConversationModel(row sqlc.Conversation) *model.Conversation {
	return &model.Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		TitleSet:  row.TitleSet,
		Kind:      model.ConversationKind(row.Kind),
		FileName:  row.FileName,
		FileData:  row.FileData,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func toConversationModels(rows []sqlc.Conversation) []model.Conversation {
	result := make([]model.Conversation, len(rows))
	for i, row := range rows {
		result[i] = *toConversationModel(row)
	}
	return result
}
