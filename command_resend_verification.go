package auth

import (
	"context"
)

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "user.resend_verification" }

// ResendVerificationResponse never tells the caller whether the email is
// registered. Token is only set when a token was issued.
type ResendVerificationResponse struct {
	Token *IssuedToken
}

type ResendVerificationHandler struct {
	repo   RepositoryManager
	tokens *TokenManager
	flowConfig
}

func NewResendVerificationHandler(repo RepositoryManager, tokens *TokenManager, opts ...FlowOption) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:       repo,
		tokens:     tokens,
		flowConfig: newFlowConfig(opts...),
	}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "verification resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	resp := &ResendVerificationResponse{}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if IsRecordNotFound(err) {
			h.logger.Debug("verification resend for unknown email")
			return nil
		}
		return StorageError(err, "failed to retrieve user for verification resend")
	}

	// social identities arrive verified by their provider
	if user.IsVerified || !user.IsActive || user.AuthProvider != ProviderEmail {
		h.logger.Debug("verification resend skipped for user %s", user.ID)
		return nil
	}

	issued, err := h.tokens.Issue(ctx, user, TokenEmailVerification)
	if err != nil {
		return err
	}
	resp.Token = issued

	h.notify(ctx, NotifyEmailVerification, user, tokenData(issued))
	return nil
}
