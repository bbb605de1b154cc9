package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserType is the identity's role in the business
type UserType string

const (
	// UserTypeClient books and pays for cleaning services
	UserTypeClient UserType = "client"
	// UserTypeStaff performs services
	UserTypeStaff UserType = "staff"
	// UserTypeAdmin manages the business
	UserTypeAdmin UserType = "admin"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeClient, UserTypeStaff, UserTypeAdmin:
		return true
	}
	return false
}

// ClientType only carries meaning for client identities
type ClientType string

const (
	ClientTypeGeneral ClientType = "general"
	// ClientTypeNDIS is a National Disability Insurance Scheme participant
	ClientTypeNDIS ClientType = "ndis"
)

func (t ClientType) Valid() bool {
	return t == ClientTypeGeneral || t == ClientTypeNDIS
}

// AuthProvider is the identity's primary means of authentication
type AuthProvider string

const (
	ProviderEmail    AuthProvider = "email"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
	ProviderApple    AuthProvider = "apple"
)

func (p AuthProvider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderFacebook, ProviderApple:
		return true
	}
	return false
}

// IsSocial reports whether p is an external provider
func (p AuthProvider) IsSocial() bool {
	return p.Valid() && p != ProviderEmail
}

// TokenKind discriminates the single use token families
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

func (k TokenKind) Valid() bool {
	return k == TokenEmailVerification || k == TokenPasswordReset
}

// User is the identity model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string       `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string       `bun:"password_hash,nullzero" json:"-"`
	FirstName      string       `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string       `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone          string       `bun:"phone_number" json:"phone_number,omitempty"`
	UserType       UserType     `bun:"user_type,notnull" json:"user_type,omitempty"`
	ClientType     ClientType   `bun:"client_type,notnull" json:"client_type,omitempty"`
	IsVerified     bool         `bun:"is_verified,notnull" json:"is_verified"`
	IsActive       bool         `bun:"is_active,notnull" json:"is_active"`
	AuthProvider   AuthProvider `bun:"auth_provider,notnull" json:"auth_provider,omitempty"`
	ProviderID     *string      `bun:"provider_id" json:"provider_id,omitempty"`
	LoginAttempts  int          `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time   `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LastLoginAt    *time.Time   `bun:"last_login_at" json:"last_login_at,omitempty"`
	DeactivatedAt  *time.Time   `bun:"deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt      *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasUsablePassword is false for social only identities and for records that
// never set a password.
func (u *User) HasUsablePassword() bool {
	if u == nil {
		return false
	}
	return u.PasswordHash != "" && !IsUnusablePassword(u.PasswordHash)
}

// IsNDIS reports whether the identity is an NDIS client
func (u *User) IsNDIS() bool {
	return u != nil && u.UserType == UserTypeClient && u.ClientType == ClientTypeNDIS
}

// Can checks the authorization table for the identity's type. Inactive
// identities are denied everything.
func (u *User) Can(action Action) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if action == ActionNDISView && u.UserType == UserTypeClient {
		return u.IsNDIS()
	}
	return Can(u.UserType, action)
}

// Token is a single use opaque token. Only the hash of the value is stored.
type Token struct {
	bun.BaseModel `bun:"table:account_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Kind          TokenKind  `bun:"kind,notnull" json:"kind,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	IsUsed        bool       `bun:"is_used,notnull" json:"is_used"`
	UsedAt        *time.Time `bun:"used_at" json:"used_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired treats the expiry instant itself as expired
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserSession records one authenticated client session
type UserSession struct {
	bun.BaseModel `bun:"table:user_sessions,alias:uss"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	SessionKey    string     `bun:"session_key,notnull,unique" json:"session_key,omitempty"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	LastActivity  time.Time  `bun:"last_activity,notnull" json:"last_activity"`
	EndedAt       *time.Time `bun:"ended_at" json:"ended_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// NormalizeEmail trims and lower cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
