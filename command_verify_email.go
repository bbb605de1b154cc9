package auth

import (
	"context"

	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(user *User)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailHandler struct {
	repo   RepositoryManager
	tokens *TokenManager
	flowConfig
}

func NewVerifyEmailHandler(repo RepositoryManager, tokens *TokenManager, opts ...FlowOption) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:       repo,
		tokens:     tokens,
		flowConfig: newFlowConfig(opts...),
	}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	user, err := h.tokens.Consume(ctx, event.Token, TokenEmailVerification,
		func(ctx context.Context, tx bun.IDB, user *User) error {
			if !user.IsActive {
				return ErrInactiveAccount
			}
			if err := h.repo.Users().MarkVerifiedTx(ctx, tx, user.ID); err != nil {
				return StorageError(err, "failed to mark user verified")
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	user.IsVerified = true

	h.notify(ctx, NotifyWelcome, user, nil)
	h.record(ctx, ActivityEventEmailVerified, user, nil)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
