package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"inkwell.app/assistant/core/db/sqlc"
	"inkwell.app/assistant/internal/model"
)

type roundStore struct {
	queries *sqlc.Queries
}

func newRoundStore(queries *sqlc.Queries) RoundStore {
	return &roundStore{queries: queries}
}

func (s *roundStore) GetByID(ctx context.Context, id int64) (*model.Round, error) {
	row, err := s.queries.GetRound(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toRoundModel(row), nil
}

func (s *roundStore) Create(ctx context.Context, round *model.Round) error {
	row, err := s.queries.CreateRound(ctx, sqlc.CreateRoundParams{
		ID:             round.ID,
		ConversationID: round.ConversationID,
		Question:       round.Question,
		Status:         int16(round.Status),
	})
	if err != nil {
		return err
	}
	*round = *toRoundModel(row)
	return nil
}

func (s *roundStore) ListByConversation(ctx context.Context, conversationID int64) ([]model.Round, error) {
	rows, err := s.queries.ListRoundsByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return toRoundModels(rows), nil
}

func (s *roundStore) CountActive(ctx context.Context, conversationID int64) (int64, error) {
	return s.queries.CountActiveRounds(ctx, conversationID)
}

func (s *roundStore) UpdateStatus(ctx context.Context, id int64, status model.RoundStatus) (*model.Round, error) {
	row, err := s.queries.UpdateRoundStatus(ctx, sqlc.UpdateRoundStatusParams{
		ID:     id,
		Status: int16(status),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toRoundModel(row), nil
}

func (s *roundStore) UpdateResult(ctx context.Context, id int64, answer []byte, status model.RoundStatus) (*model.Round, error) {
	// A nil slice would be encoded as SQL NULL and violate the NOT NULL
	// answer column; failed and stopped rounds legitimately have no answer.
	if answer == nil {
		answer = []byte{}
	}
	row, err := s.queries.UpdateRoundResult(ctx, sqlc.UpdateRoundResultParams{
		ID:     id,
		Answer: answer,
		Status: int16(status),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toRoundModel(row), nil
}

// toRoundModel converts sqlc.Round to model.Round
func toRoundModel(row sqlc.Round) *model.Round {
	return &model.Round{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Question:       row.Question,
		Answer:         row.Answer,
		Status:         model.RoundStatus(row.Status),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func toRoundModels(rows []sqlc.Round) []model.Round {
	result := make([]model.Round, len(rows))
	for i, row := range rows {
		result[i] = *toRoundModel(row)
	}
	return result
}
