package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone_number"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"password_confirm"`
	UserType        UserType   `json:"user_type"`
	ClientType      ClientType `json:"client_type"`
	// UseHashid derives the user id from the email
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the payload shape. Password strength is checked by the
// handler's PasswordRule.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 150)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 150)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 254), is.Email),
		validation.Field(&e.Phone, validation.Length(0, 20)),
		validation.Field(&e.Password, validation.Required),
		validation.Field(
			&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
		validation.Field(
			&e.UserType,
			validation.In(UserTypeClient, UserTypeStaff, UserTypeAdmin),
		),
		validation.Field(
			&e.ClientType,
			validation.In(ClientTypeGeneral, ClientTypeNDIS),
		),
	)
}

type RegisterUserResponse struct {
	User *User
	// Token is the verification token sent to the new identity
	Token *IssuedToken
}

type RegisterUserHandler struct {
	repo   RepositoryManager
	tokens *TokenManager
	flowConfig
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *TokenManager, opts ...FlowOption) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:       repo,
		tokens:     tokens,
		flowConfig: newFlowConfig(opts...),
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	event.Email = NormalizeEmail(event.Email)
	event.FirstName = strings.TrimSpace(event.FirstName)
	event.LastName = strings.TrimSpace(event.LastName)

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithTextCode(TextCodeInvalidRegistration)
	}

	if err := h.passwordRule(event.Password); err != nil {
		h.logger.Debug("rejected registration password for %s: %v", event.Email, err)
		return ErrInvalidPassword
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return StorageError(err, "failed to hash password")
	}

	user := &User{
		Email:        event.Email,
		PasswordHash: hash,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Phone:        NormalizePhone(event.Phone, h.phoneRegion),
		UserType:     event.UserType,
		ClientType:   event.ClientType,
		AuthProvider: ProviderEmail,
		IsActive:     true,
		IsVerified:   false,
	}
	if user.UserType == "" {
		user.UserType = UserTypeClient
	}
	if user.ClientType == "" || user.UserType != UserTypeClient {
		user.ClientType = ClientTypeGeneral
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	var issued *IssuedToken
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := h.repo.Users().EmailExistsTx(ctx, tx, user.Email)
		if err != nil {
			return StorageError(err, "failed to check email")
		}
		if exists {
			return ErrEmailAlreadyExists
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return StorageError(err, "could not create user")
		}

		issued, err = h.tokens.IssueTx(ctx, tx, user, TokenEmailVerification)
		return err
	})
	if err != nil {
		return passThrough(err, "user registration transaction failed")
	}
	h.tokens.ObserveIssued(issued)

	h.notify(ctx, NotifyEmailVerification, user, tokenData(issued))
	h.record(ctx, ActivityEventUserRegistered, user, map[string]any{
		"user_type":   string(user.UserType),
		"client_type": string(user.ClientType),
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Token: issued})
	}

	return nil
}
