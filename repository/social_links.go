package repository

import (
	"context"
	"database/sql"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialLinkModel is the Bun model for social links.
type SocialLinkModel struct {
	bun.BaseModel `bun:"table:social_links,alias:sl"`

	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	UserID         uuid.UUID      `bun:"user_id,notnull,type:uuid"`
	Provider       string         `bun:"provider,notnull,unique:social_links_provider_pair"`
	ProviderID     string         `bun:"provider_id,notnull,unique:social_links_provider_pair"`
	ProviderEmail  string         `bun:"provider_email"`
	Name           string         `bun:"name"`
	AvatarURL      string         `bun:"avatar_url"`
	AccessToken    string         `bun:"access_token"`
	RefreshToken   string         `bun:"refresh_token"`
	TokenExpiresAt *time.Time     `bun:"token_expires_at"`
	ProfileData    map[string]any `bun:"profile_data,type:jsonb"`
	IsActive       bool           `bun:"is_active,notnull"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull"`
}

// Models lists the bun models owned by this package, for auth.CreateTables
func Models() []any {
	return []any{(*SocialLinkModel)(nil)}
}

// SocialLinkRepository implements social.LinkRepository using Bun. It also
// satisfies auth.LinkDeactivator so account deactivation can cascade.
type SocialLinkRepository struct {
	db    *bun.DB
	clock func() time.Time
}

var (
	_ social.LinkRepository = (*SocialLinkRepository)(nil)
	_ auth.LinkDeactivator  = (*SocialLinkRepository)(nil)
)

type SocialLinkOption func(*SocialLinkRepository)

// WithSocialLinkClock sets the clock used for updated_at
func WithSocialLinkClock(c func() time.Time) SocialLinkOption {
	return func(r *SocialLinkRepository) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewSocialLinkRepository creates a new repository.
func NewSocialLinkRepository(db *bun.DB, opts ...SocialLinkOption) *SocialLinkRepository {
	r := &SocialLinkRepository{
		db: db,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *SocialLinkRepository) FindByProviderIDTx(ctx context.Context, tx bun.IDB, provider auth.AuthProvider, providerID string) (*social.SocialLink, error) {
	var model SocialLinkModel
	err := tx.NewSelect().
		Model(&model).
		Where("?TableAlias.provider = ?", string(provider)).
		Where("?TableAlias.provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, linkNotFound(err, map[string]any{
			"provider":    string(provider),
			"provider_id": providerID,
		})
	}
	return toSocialLink(&model), nil
}

func (r *SocialLinkRepository) FindActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, provider auth.AuthProvider) (*social.SocialLink, error) {
	var model SocialLinkModel
	err := tx.NewSelect().
		Model(&model).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.provider = ?", string(provider)).
		Where("?TableAlias.is_active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, linkNotFound(err, map[string]any{
			"user_id":  userID.String(),
			"provider": string(provider),
		})
	}
	return toSocialLink(&model), nil
}

func (r *SocialLinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*social.SocialLink, error) {
	var models []SocialLinkModel
	err := r.db.NewSelect().
		Model(&models).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	links := make([]*social.SocialLink, len(models))
	for i := range models {
		links[i] = toSocialLink(&models[i])
	}
	return links, nil
}

func (r *SocialLinkRepository) CountActiveByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	return tx.NewSelect().
		Model((*SocialLinkModel)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_active = ?", true).
		Count(ctx)
}

func (r *SocialLinkRepository) CreateTx(ctx context.Context, tx bun.IDB, link *social.SocialLink) error {
	model := fromSocialLink(link)
	now := r.clock()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = now
	}
	if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
		return err
	}
	link.ID = model.ID
	link.CreatedAt = model.CreatedAt
	link.UpdatedAt = model.UpdatedAt
	return nil
}

// UpdateTx writes every mutable column of link
func (r *SocialLinkRepository) UpdateTx(ctx context.Context, tx bun.IDB, link *social.SocialLink) error {
	model := fromSocialLink(link)
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = r.clock()
	}
	res, err := tx.NewUpdate().
		Model(model).
		Column(
			"user_id",
			"provider_email",
			"name",
			"avatar_url",
			"access_token",
			"refresh_token",
			"token_expires_at",
			"profile_data",
			"is_active",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, link.ID)
}

func (r *SocialLinkRepository) UpdateTokens(ctx context.Context, id uuid.UUID, token *social.Token) error {
	if token == nil {
		return nil
	}

	q := r.db.NewUpdate().
		Model((*SocialLinkModel)(nil)).
		Set("updated_at = ?", r.clock()).
		Where("id = ?", id)
	if token.AccessToken != "" {
		q = q.Set("access_token = ?", token.AccessToken)
	}
	if token.RefreshToken != "" {
		q = q.Set("refresh_token = ?", token.RefreshToken)
	}
	if !token.ExpiresAt.IsZero() {
		q = q.Set("token_expires_at = ?", token.ExpiresAt.UTC())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

func (r *SocialLinkRepository) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*SocialLinkModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", r.clock()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

// DeactivateAllForUserTx turns off every active link of userID and returns
// how many changed
func (r *SocialLinkRepository) DeactivateAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewUpdate().
		Model((*SocialLinkModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", r.clock()).
		Where("user_id = ?", userID).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func linkNotFound(err error, metadata map[string]any) error {
	if auth.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return err
}

func expectRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			"id": id.String(),
		})
	}
	return nil
}

func toSocialLink(m *SocialLinkModel) *social.SocialLink {
	return &social.SocialLink{
		ID:             m.ID,
		UserID:         m.UserID,
		Provider:       auth.AuthProvider(m.Provider),
		ProviderID:     m.ProviderID,
		ProviderEmail:  m.ProviderEmail,
		Name:           m.Name,
		AvatarURL:      m.AvatarURL,
		AccessToken:    m.AccessToken,
		RefreshToken:   m.RefreshToken,
		TokenExpiresAt: m.TokenExpiresAt,
		ProfileData:    m.ProfileData,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fromSocialLink(l *social.SocialLink) *SocialLinkModel {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	profileData := map[string]any{}
	if l.ProfileData != nil {
		profileData = l.ProfileData
	}

	return &SocialLinkModel{
		ID:             id,
		UserID:         l.UserID,
		Provider:       string(l.Provider),
		ProviderID:     l.ProviderID,
		ProviderEmail:  l.ProviderEmail,
		Name:           l.Name,
		AvatarURL:      l.AvatarURL,
		AccessToken:    l.AccessToken,
		RefreshToken:   l.RefreshToken,
		TokenExpiresAt: l.TokenExpiresAt,
		ProfileData:    profileData,
		IsActive:       l.IsActive,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}
