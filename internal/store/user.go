package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"inkwell.app/assistant/core/db/sqlc"
	"inkwell.app/assistant/internal/model"
)

type userStore struct {
	queries *sqlc.Queries
}

func newUserStore(queries *sqlc.Queries) UserStore {
	return &userStore{queries: queries}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toUserModel(row), nil
}

func (s *userStore) GetByWorkOSID(ctx context.Context, workosID string) (*model.User, error) {
	row, err := s.queries.GetUserByWorkOSID(ctx, &workosID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toUserModel(row), nil
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	row, err := s.queries.CreateUser(ctx, sqlc.CreateUserParams{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarUrl: user.AvatarURL,
		WorkosID:  user.WorkOSID,
	})
	if err != nil {
		return err
	}
	// Update the model with DB-generated fields
	*user = *toUserModel(row)
	return nil
}

func (s *userStore) Update(ctx context.Context, user *model.User) error {
	row, err := s.queries.UpdateUser(ctx, sqlc.UpdateUserParams{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarUrl: user.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	*user = *toUserModel(row)
	return nil
}

// toUserModel converts sqlc.User to model.User
func toUserModel(row sqlc.User) *model.User {
	return &model.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		AvatarURL: row.AvatarUrl,
		WorkOSID:  row.WorkosID,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}
