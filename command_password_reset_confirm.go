package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConfirmPasswordResetMessage struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"password_confirm"`
	OnResponse      func(user *User)
}

func (e ConfirmPasswordResetMessage) Type() string { return "user.password_reset.confirm" }

func (e ConfirmPasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, validation.Required),
		validation.Field(
			&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

type ConfirmPasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenManager
	sessions *SessionTracker
	flowConfig
}

func NewConfirmPasswordResetHandler(repo RepositoryManager, tokens *TokenManager, sessions *SessionTracker, opts ...FlowOption) *ConfirmPasswordResetHandler {
	return &ConfirmPasswordResetHandler{
		repo:       repo,
		tokens:     tokens,
		sessions:   sessions,
		flowConfig: newFlowConfig(opts...),
	}
}

func (h *ConfirmPasswordResetHandler) Execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPasswordResetHandler) execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload").
			WithTextCode(TextCodeInvalidPassword)
	}

	if err := h.passwordRule(event.Password); err != nil {
		h.logger.Debug("rejected reset password: %v", err)
		return ErrInvalidPassword
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return StorageError(err, "failed to hash password")
	}

	closed := 0
	user, err := h.tokens.Consume(ctx, event.Token, TokenPasswordReset,
		func(ctx context.Context, tx bun.IDB, user *User) error {
			if !user.IsActive {
				return ErrInactiveAccount
			}
			if user.AuthProvider != ProviderEmail {
				return ErrUnsupportedForProvider
			}
			if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
				return StorageError(err, "failed to reset password")
			}
			var err error
			closed, err = h.sessions.CloseAllTx(ctx, tx, user.ID)
			return err
		},
	)
	if err != nil {
		return err
	}
	h.sessions.ObserveClosed("password_reset", closed)

	user.PasswordHash = hash
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil

	h.notify(ctx, NotifyPasswordChanged, user, map[string]any{"sessions_closed": closed})
	h.record(ctx, ActivityEventPasswordReset, user, map[string]any{"sessions_closed": closed})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
