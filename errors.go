package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeInactiveAccount      = "INACTIVE_ACCOUNT"
	TextCodeTooManyAttempts      = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenNotFound        = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed     = "TOKEN_ALREADY_USED"
	TextCodeEmailAlreadyExists   = "EMAIL_ALREADY_EXISTS"
	TextCodeWrongOldPassword     = "WRONG_OLD_PASSWORD"
	TextCodeUnsupportedProvider  = "UNSUPPORTED_FOR_PROVIDER"
	TextCodeInvalidPassword      = "INVALID_PASSWORD"
	TextCodeInvalidRegistration  = "INVALID_REGISTRATION"
	TextCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
	TextCodeStorage              = "STORAGE_ERROR"
	TextCodeUnknownTokenKind     = "UNKNOWN_TOKEN_KIND"
	TextCodeSessionKeyRequired   = "SESSION_KEY_REQUIRED"
	TextCodeAccountAlreadyActive = "ACCOUNT_ALREADY_ACTIVE"
)

// ErrInvalidCredentials is returned for any failed email+password check. It
// never tells the caller which half was wrong.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInactiveAccount is returned when the identity has been deactivated.
var ErrInactiveAccount = goerrors.New("account is inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeInactiveAccount).
	WithCode(goerrors.CodeForbidden)

// ErrTooManyLoginAttempts is returned while an identity is cooling down.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(goerrors.CodeForbidden)

var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenAlreadyUsed = goerrors.New("token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(goerrors.CodeConflict)

var ErrEmailAlreadyExists = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailAlreadyExists).
	WithCode(goerrors.CodeConflict)

var ErrWrongOldPassword = goerrors.New("current password is incorrect", goerrors.CategoryValidation).
	WithTextCode(TextCodeWrongOldPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrUnsupportedForProvider is returned by password operations on identities
// that authenticate through an external provider.
var ErrUnsupportedForProvider = goerrors.New("operation not supported for this auth provider", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedProvider).
	WithCode(goerrors.CodeBadRequest)

var ErrInvalidPassword = goerrors.New("password does not meet requirements", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeBadRequest)

var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrUnknownTokenKind = goerrors.New("unknown token kind", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnknownTokenKind).
	WithCode(goerrors.CodeBadRequest)

var ErrSessionKeyRequired = goerrors.New("session key is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeSessionKeyRequired).
	WithCode(goerrors.CodeBadRequest)

var ErrAccountAlreadyActive = goerrors.New("account is already active", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountAlreadyActive).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is the low level bcrypt mismatch. Callers
// outside the package see ErrInvalidCredentials or ErrWrongOldPassword.
var ErrMismatchedHashAndPassword = goerrors.New("password mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeBadRequest)

// StorageError wraps an internal persistence failure. The enclosing
// transaction has been rolled back when a caller sees it.
func StorageError(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStorage)
}

// IsStorageError reports whether err came from the persistence layer.
func IsStorageError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeStorage
}

// IsRichError reports whether err carries a go-errors classification
func IsRichError(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr)
}

// passThrough keeps rich domain errors intact and turns anything else into a
// storage error.
func passThrough(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsRichError(err) {
		return err
	}
	return StorageError(err, message)
}
