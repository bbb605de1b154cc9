package social

import (
	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeEmailMismatch          = "SOCIAL_EMAIL_MISMATCH"
	TextCodeAlreadyLinked          = "SOCIAL_ALREADY_LINKED"
	TextCodeAlreadyLinkedElsewhere = "SOCIAL_ALREADY_LINKED_ELSEWHERE"
	TextCodeNoActiveLink           = "SOCIAL_NO_ACTIVE_LINK"
	TextCodePasswordRequired       = "SOCIAL_PASSWORD_REQUIRED"
	TextCodeProviderUnsupported    = "SOCIAL_PROVIDER_UNSUPPORTED"
	TextCodeNoRefreshToken         = "SOCIAL_NO_REFRESH_TOKEN"
	TextCodeNotFound               = "SOCIAL_IDENTITY_NOT_FOUND"
	TextCodeEmailNotVerified       = "SOCIAL_EMAIL_NOT_VERIFIED"
	TextCodeInvalidProfile         = "SOCIAL_INVALID_PROFILE"
	TextCodeTokenExchangeFail      = "SOCIAL_TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail           = "SOCIAL_USER_INFO_FAILED"
	TextCodeTokenRefreshFail       = "SOCIAL_TOKEN_REFRESH_FAILED"
)

// ErrEmailMismatch is returned when the provider email differs from the
// identity email.
var ErrEmailMismatch = errors.New("provider email does not match account email", errors.CategoryValidation).
	WithTextCode(TextCodeEmailMismatch).
	WithCode(errors.CodeBadRequest)

// ErrAlreadyLinked is returned when the identity already has an active link
// for the provider.
var ErrAlreadyLinked = errors.New("account already linked to this provider", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyLinked).
	WithCode(errors.CodeConflict)

// ErrAlreadyLinkedElsewhere is returned when the provider account is actively
// linked to a different identity.
var ErrAlreadyLinkedElsewhere = errors.New("provider account is linked to another user", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyLinkedElsewhere).
	WithCode(errors.CodeConflict)

var ErrNoActiveLink = errors.New("no active link for this provider", errors.CategoryNotFound).
	WithTextCode(TextCodeNoActiveLink).
	WithCode(errors.CodeNotFound)

// ErrPasswordRequired is returned when unlinking would remove the last way
// to sign in.
var ErrPasswordRequired = errors.New("set a password before unlinking the last provider", errors.CategoryValidation).
	WithTextCode(TextCodePasswordRequired).
	WithCode(errors.CodeBadRequest)

var ErrProviderUnsupported = errors.New("provider does not support this operation", errors.CategoryBadInput).
	WithTextCode(TextCodeProviderUnsupported).
	WithCode(errors.CodeBadRequest)

var ErrNoRefreshToken = errors.New("no refresh token stored for this link", errors.CategoryBadInput).
	WithTextCode(TextCodeNoRefreshToken).
	WithCode(errors.CodeBadRequest)

// ErrNotFound is returned when no identity matches the provider account
var ErrNotFound = errors.New("no account found for this provider identity", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrEmailNotVerified is returned when a provider email is not verified.
var ErrEmailNotVerified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrInvalidProfile is returned when provider user info lacks an id or email
var ErrInvalidProfile = errors.New("provider user info is incomplete", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidProfile).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRefreshFailed is returned when the provider rejects a refresh
var ErrTokenRefreshFailed = errors.New("failed to refresh provider token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRefreshFail).
	WithCode(errors.CodeUnauthorized)

// Errors shared with the account core.
var (
	ErrInactiveAccount    = auth.ErrInactiveAccount
	ErrEmailAlreadyExists = auth.ErrEmailAlreadyExists
)
