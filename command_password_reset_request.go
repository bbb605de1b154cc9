package auth

import (
	"context"
)

type RequestPasswordResetMessage struct {
	Email       string `json:"email"`
	RequesterIP string `json:"-"`
	OnResponse  func(resp *RequestPasswordResetResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "user.password_reset" }

// RequestPasswordResetResponse looks the same for every email. Token is only
// set when a reset token was issued.
type RequestPasswordResetResponse struct {
	Token *IssuedToken
}

type RequestPasswordResetHandler struct {
	repo   RepositoryManager
	tokens *TokenManager
	flowConfig
}

func NewRequestPasswordResetHandler(repo RepositoryManager, tokens *TokenManager, opts ...FlowOption) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{
		repo:       repo,
		tokens:     tokens,
		flowConfig: newFlowConfig(opts...),
	}
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	resp := &RequestPasswordResetResponse{}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if IsRecordNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return StorageError(err, "failed to retrieve user for password reset")
	}

	// unknown, inactive and social identities all get the same silent answer
	if !user.IsActive || user.AuthProvider != ProviderEmail || !user.HasUsablePassword() {
		h.logger.Debug("password reset skipped for user %s", user.ID)
		return nil
	}

	issued, err := h.tokens.Issue(ctx, user, TokenPasswordReset, WithRequesterIP(event.RequesterIP))
	if err != nil {
		return err
	}
	resp.Token = issued

	data := tokenData(issued)
	data["ip_address"] = event.RequesterIP
	h.notify(ctx, NotifyPasswordReset, user, data)
	return nil
}
