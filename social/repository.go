package social

import (
	"context"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialLink associates an identity with an external provider account.
type SocialLink struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Provider       auth.AuthProvider `json:"provider"`
	ProviderID     string            `json:"provider_id"`
	ProviderEmail  string            `json:"provider_email,omitempty"`
	Name           string            `json:"name,omitempty"`
	AvatarURL      string            `json:"avatar_url,omitempty"`
	AccessToken    string            `json:"-"`
	RefreshToken   string            `json:"-"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	ProfileData    map[string]any    `json:"profile_data,omitempty"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// LinkRepository persists social links. Lookups that find nothing return an
// error satisfying auth.IsRecordNotFound.
type LinkRepository interface {
	// FindByProviderIDTx returns the row for the pair, active or not
	FindByProviderIDTx(ctx context.Context, tx bun.IDB, provider auth.AuthProvider, providerID string) (*SocialLink, error)
	FindActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, provider auth.AuthProvider) (*SocialLink, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*SocialLink, error)
	CountActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	CreateTx(ctx context.Context, tx bun.IDB, link *SocialLink) error
	UpdateTx(ctx context.Context, tx bun.IDB, link *SocialLink) error
	UpdateTokens(ctx context.Context, id uuid.UUID, token *Token) error
	DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeactivateAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
}

// applyProfile copies provider data onto link
func applyProfile(link *SocialLink, info ProviderUserInfo) {
	if p := info.Profile; p != nil {
		link.ProviderID = p.ProviderUserID
		link.ProviderEmail = auth.NormalizeEmail(p.Email)
		link.Name = p.Name
		link.AvatarURL = p.AvatarURL
		if p.Raw != nil {
			link.ProfileData = p.Raw
		}
	}
	applyToken(link, info.Token)
}

func applyToken(link *SocialLink, token *Token) {
	if token == nil {
		return
	}
	if token.AccessToken != "" {
		link.AccessToken = token.AccessToken
	}
	if token.RefreshToken != "" {
		link.RefreshToken = token.RefreshToken
	}
	if !token.ExpiresAt.IsZero() {
		at := token.ExpiresAt.UTC()
		link.TokenExpiresAt = &at
	}
}
