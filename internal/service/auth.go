package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workos/workos-go/v6/pkg/usermanagement"

	"inkwell.app/assistant/common/id"
	"inkwell.app/assistant/core/config"
	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/store"
)

const sessionTTL = 7 * 24 * time.Hour

type AuthService interface {
	GetAuthorizationURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error)
	ValidateSession(ctx context.Context, sessionID int64) (*model.User, error)
	Logout(ctx context.Context, sessionID int64) error
}

type authService struct {
	userStore    store.UserStore
	sessionStore store.SessionStore
	cfg          config.WorkOSConfig
}

func NewAuthService(userStore store.UserStore, sessionStore store.SessionStore, cfg config.WorkOSConfig) AuthService {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &authService{
		userStore:    userStore,
		sessionStore: sessionStore,
		cfg:          cfg,
	}
}

func (s *authService) GetAuthorizationURL(state string) (string, error) {
	url, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    s.cfg.ClientID,
		RedirectURI: s.cfg.RedirectURI,
		State:       state,
		Provider:    "authkit",
	})
	if err != nil {
		return "", fmt.Errorf("generating authorization URL: %w", err)
	}
	return url.String(), nil
}

func (s *authService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	authResponse, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: s.cfg.ClientID,
		Code:     code,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to authenticate with code", "error", err)
		return nil, nil, ErrInvalidCode
	}

	user, err := s.syncUser(ctx, authResponse.User)
	if err != nil {
		return nil, nil, err
	}

	session := &model.Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	if err := s.sessionStore.Create(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session",
			"error", err,
			"user_id", user.ID,
		)
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"email", user.Email,
		"session_id", session.ID,
	)

	return user, session, nil
}

// syncUser creates the local user on first login and refreshes the profile
// on subsequent ones.
func (s *authService) syncUser(ctx context.Context, workosUser usermanagement.User) (*model.User, error) {
	var avatarURL *string
	if workosUser.ProfilePictureURL != "" {
		avatarURL = &workosUser.ProfilePictureURL
	}

	user, err := s.userStore.GetByWorkOSID(ctx, workosUser.ID)
	if errors.Is(err, store.ErrNotFound) {
		user = &model.User{
			ID:        id.New(),
			Name:      buildUserName(workosUser),
			Email:     workosUser.Email,
			AvatarURL: avatarURL,
			WorkOSID:  &workosUser.ID,
		}
		if createErr := s.userStore.Create(ctx, user); createErr != nil {
			return nil, fmt.Errorf("creating user: %w", createErr)
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	user.Name = buildUserName(workosUser)
	user.Email = workosUser.Email
	user.AvatarURL = avatarURL
	if updateErr := s.userStore.Update(ctx, user); updateErr != nil {
		return nil, fmt.Errorf("updating user: %w", updateErr)
	}
	return user, nil
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, error) {
	session, err := s.sessionStore.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessionStore.Delete(ctx, session.ID)
		return nil, ErrSessionExpired
	}

	user, err := s.userStore.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessionStore.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func buildUserName(user usermanagement.User) string {
	if user.FirstName != "" && user.LastName != "" {
		return user.FirstName + " " + user.LastName
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	if user.LastName != "" {
		return user.LastName
	}
	return user.Email
}
