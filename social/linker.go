package social

import (
	"context"
	"strings"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultProviderTimeout bounds calls to external providers
const DefaultProviderTimeout = 10 * time.Second

// Linker bridges external provider accounts and local identities
type Linker struct {
	repo      auth.RepositoryManager
	links     LinkRepository
	providers map[auth.AuthProvider]SocialProvider
	notifier  auth.Notifier
	activity  auth.ActivitySink
	logger    auth.Logger
	clock     auth.Clock
	timeout   time.Duration
}

type LinkerOption func(*Linker)

// WithProvider registers a provider under its Name
func WithProvider(p SocialProvider) LinkerOption {
	return func(l *Linker) {
		if p != nil {
			l.providers[auth.AuthProvider(p.Name())] = p
		}
	}
}

func WithNotifier(n auth.Notifier) LinkerOption {
	return func(l *Linker) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithActivitySink(s auth.ActivitySink) LinkerOption {
	return func(l *Linker) {
		if s != nil {
			l.activity = s
		}
	}
}

func WithLogger(logger auth.Logger) LinkerOption {
	return func(l *Linker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithClock(c auth.Clock) LinkerOption {
	return func(l *Linker) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithProviderTimeout bounds each external provider call
func WithProviderTimeout(d time.Duration) LinkerOption {
	return func(l *Linker) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLinker(repo auth.RepositoryManager, links LinkRepository, opts ...LinkerOption) *Linker {
	l := &Linker{
		repo:      repo,
		links:     links,
		providers: map[auth.AuthProvider]SocialProvider{},
		notifier:  auth.NotifierFunc(nil),
		activity:  auth.ActivitySinkFunc(nil),
		logger:    auth.DefaultLogger(),
		clock:     func() time.Time { return time.Now().UTC() },
		timeout:   DefaultProviderTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Provider returns the registered provider for name
func (l *Linker) Provider(name auth.AuthProvider) (SocialProvider, bool) {
	p, ok := l.providers[name]
	return p, ok
}

// ResolveCode exchanges an authorization code and fetches the profile.
// Provider failures surface as ErrTokenExchangeFailed or ErrUserInfoFailed.
func (l *Linker) ResolveCode(ctx context.Context, provider auth.AuthProvider, code string, opts ...ExchangeOption) (ProviderUserInfo, error) {
	p, ok := l.providers[provider]
	if !ok {
		return ProviderUserInfo{}, ErrProviderUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	token, err := p.Exchange(ctx, code, opts...)
	if err != nil {
		return ProviderUserInfo{}, wrapProviderError(ErrTokenExchangeFailed, string(provider), "exchange", err)
	}

	profile, err := p.UserInfo(ctx, token)
	if err != nil {
		return ProviderUserInfo{}, wrapProviderError(ErrUserInfoFailed, string(provider), "user_info", err)
	}
	if profile.Provider == "" {
		profile.Provider = string(provider)
	}

	return ProviderUserInfo{Profile: profile, Token: token}, nil
}

// AuthenticateByProvider finds the identity for a provider account, first by
// active link and then by email for identities whose primary provider is
// provider.
func (l *Linker) AuthenticateByProvider(ctx context.Context, provider auth.AuthProvider, info ProviderUserInfo) (*auth.User, error) {
	if err := l.checkInfo(provider, info); err != nil {
		return nil, err
	}
	if !info.Profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	email := auth.NormalizeEmail(info.Profile.Email)
	db := l.repo.DB()

	var user *auth.User
	link, err := l.links.FindByProviderIDTx(ctx, db, provider, info.Profile.ProviderUserID)
	switch {
	case err == nil && link.IsActive:
		user, err = l.repo.Users().GetByID(ctx, link.UserID)
		if err != nil {
			if auth.IsRecordNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, auth.StorageError(err, "failed to load linked user")
		}
		if user.Email != email {
			return nil, ErrEmailMismatch
		}
	case err != nil && !auth.IsRecordNotFound(err):
		return nil, auth.StorageError(err, "failed to look up social link")
	default:
		link = nil
		user, err = l.repo.Users().GetByEmail(ctx, email)
		if err != nil {
			if auth.IsRecordNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, auth.StorageError(err, "failed to look up user by email")
		}
		if user.AuthProvider != provider {
			return nil, ErrNotFound
		}
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	if link != nil && info.Token != nil {
		if err := l.links.UpdateTokens(ctx, link.ID, info.Token); err != nil {
			l.logger.Warn("failed to refresh stored %s tokens for user %s: %v", provider, user.ID, err)
		}
	}

	l.record(ctx, auth.ActivityEventSocialLogin, user, provider)
	return user, nil
}

// RegisterByProvider creates a verified identity with an unusable password
// and its first social link in one transaction.
func (l *Linker) RegisterByProvider(ctx context.Context, provider auth.AuthProvider, info ProviderUserInfo, userType auth.UserType, clientType auth.ClientType) (*auth.User, error) {
	if err := l.checkInfo(provider, info); err != nil {
		return nil, err
	}
	if !info.Profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if userType == "" {
		userType = auth.UserTypeClient
	}
	if clientType == "" || userType != auth.UserTypeClient {
		clientType = auth.ClientTypeGeneral
	}

	profile := info.Profile
	providerID := profile.ProviderUserID
	user := &auth.User{
		Email:        auth.NormalizeEmail(profile.Email),
		PasswordHash: auth.UnusablePassword(),
		FirstName:    firstNonEmpty(profile.FirstName, firstWord(profile.Name)),
		LastName:     profile.LastName,
		UserType:     userType,
		ClientType:   clientType,
		IsVerified:   true,
		IsActive:     true,
		AuthProvider: provider,
		ProviderID:   &providerID,
	}

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := l.repo.Users().EmailExistsTx(ctx, tx, user.Email)
		if err != nil {
			return auth.StorageError(err, "failed to check email")
		}
		if exists {
			return ErrEmailAlreadyExists
		}

		existing, err := l.findPairTx(ctx, tx, provider, providerID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsActive {
			return ErrAlreadyLinkedElsewhere
		}

		if user, err = l.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return auth.StorageError(err, "could not create user")
		}

		return l.upsertLinkTx(ctx, tx, existing, user, provider, info)
	})
	if err != nil {
		return nil, passThrough(err, "social registration transaction failed")
	}

	l.notify(ctx, auth.NotifyWelcome, user, map[string]any{"provider": string(provider)})
	l.record(ctx, auth.ActivityEventSocialRegistered, user, provider)
	return user, nil
}

// Link attaches a provider account to user. A deactivated row for the same
// provider account is reactivated instead of inserting a new one.
func (l *Linker) Link(ctx context.Context, user *auth.User, provider auth.AuthProvider, info ProviderUserInfo) (*SocialLink, error) {
	if user == nil {
		return nil, auth.ErrIdentityNotFound
	}
	if err := l.checkInfo(provider, info); err != nil {
		return nil, err
	}
	if auth.NormalizeEmail(info.Profile.Email) != auth.NormalizeEmail(user.Email) {
		return nil, ErrEmailMismatch
	}

	providerID := info.Profile.ProviderUserID
	var link *SocialLink
	var current *auth.User
	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		current, err = l.repo.Users().GetByIDTx(ctx, tx, user.ID)
		if err != nil {
			if auth.IsRecordNotFound(err) {
				return auth.ErrIdentityNotFound
			}
			return auth.StorageError(err, "failed to load user")
		}

		existing, err := l.findPairTx(ctx, tx, provider, providerID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsActive {
			if existing.UserID != user.ID {
				return ErrAlreadyLinkedElsewhere
			}
			return ErrAlreadyLinked
		}

		if _, err := l.links.FindActiveByUserTx(ctx, tx, user.ID, provider); err == nil {
			return ErrAlreadyLinked
		} else if !auth.IsRecordNotFound(err) {
			return auth.StorageError(err, "failed to look up user links")
		}

		if err := l.upsertLinkTx(ctx, tx, existing, user, provider, info); err != nil {
			return err
		}

		// primary provider is decided from the row read in this transaction
		if current.AuthProvider == provider {
			current.ProviderID = &providerID
			if err := l.repo.Users().UpdateColumnsTx(ctx, tx, current, "provider_id"); err != nil {
				return auth.StorageError(err, "failed to update provider id")
			}
		}

		link, err = l.links.FindActiveByUserTx(ctx, tx, user.ID, provider)
		if err != nil {
			return auth.StorageError(err, "failed to reload social link")
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "link transaction failed")
	}

	user.AuthProvider = current.AuthProvider
	user.ProviderID = current.ProviderID

	l.record(ctx, auth.ActivityEventSocialLinked, user, provider)
	return link, nil
}

// Unlink deactivates the active link for provider. An identity without a
// usable password keeps its last active link.
func (l *Linker) Unlink(ctx context.Context, user *auth.User, provider auth.AuthProvider) error {
	if user == nil {
		return auth.ErrIdentityNotFound
	}

	var current *auth.User
	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		link, err := l.links.FindActiveByUserTx(ctx, tx, user.ID, provider)
		if err != nil {
			if auth.IsRecordNotFound(err) {
				return ErrNoActiveLink
			}
			return auth.StorageError(err, "failed to look up social link")
		}

		current, err = l.repo.Users().GetByIDTx(ctx, tx, user.ID)
		if err != nil {
			if auth.IsRecordNotFound(err) {
				return auth.ErrIdentityNotFound
			}
			return auth.StorageError(err, "failed to load user")
		}

		if !current.HasUsablePassword() {
			active, err := l.links.CountActiveByUserTx(ctx, tx, user.ID)
			if err != nil {
				return auth.StorageError(err, "failed to count social links")
			}
			if active <= 1 {
				return ErrPasswordRequired
			}
		}

		if err := l.links.DeactivateTx(ctx, tx, link.ID); err != nil {
			return auth.StorageError(err, "failed to deactivate social link")
		}

		if current.AuthProvider == provider {
			current.AuthProvider = auth.ProviderEmail
			current.ProviderID = nil
			if err := l.repo.Users().UpdateColumnsTx(ctx, tx, current, "auth_provider", "provider_id"); err != nil {
				return auth.StorageError(err, "failed to reset auth provider")
			}
		}
		return nil
	})
	if err != nil {
		return passThrough(err, "unlink transaction failed")
	}

	user.AuthProvider = current.AuthProvider
	user.ProviderID = current.ProviderID

	l.record(ctx, auth.ActivityEventSocialUnlinked, user, provider)
	return nil
}

// RefreshToken asks the link's provider for a new access token and stores it
func (l *Linker) RefreshToken(ctx context.Context, link *SocialLink) (*SocialLink, error) {
	if link == nil {
		return nil, ErrNoActiveLink
	}
	if link.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	p, ok := l.providers[link.Provider]
	if !ok {
		return nil, ErrProviderUnsupported
	}
	refresher, ok := p.(TokenRefresher)
	if !ok {
		return nil, ErrProviderUnsupported
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	token, err := refresher.RefreshToken(callCtx, link.RefreshToken)
	if err != nil {
		return nil, wrapProviderError(ErrTokenRefreshFailed, string(link.Provider), "refresh", err)
	}

	if err := l.links.UpdateTokens(ctx, link.ID, token); err != nil {
		return nil, auth.StorageError(err, "failed to store refreshed token")
	}

	updated := *link
	applyToken(&updated, token)
	updated.UpdatedAt = l.clock()
	return &updated, nil
}

// Links returns every link of userID, active or not
func (l *Linker) Links(ctx context.Context, userID uuid.UUID) ([]*SocialLink, error) {
	links, err := l.links.ListByUser(ctx, userID)
	if err != nil {
		return nil, auth.StorageError(err, "failed to list social links")
	}
	return links, nil
}

func (l *Linker) checkInfo(provider auth.AuthProvider, info ProviderUserInfo) error {
	if !provider.IsSocial() {
		return ErrProviderUnsupported
	}
	if info.Profile == nil ||
		strings.TrimSpace(info.Profile.ProviderUserID) == "" ||
		strings.TrimSpace(info.Profile.Email) == "" {
		return ErrInvalidProfile
	}
	return nil
}

func (l *Linker) findPairTx(ctx context.Context, tx bun.IDB, provider auth.AuthProvider, providerID string) (*SocialLink, error) {
	link, err := l.links.FindByProviderIDTx(ctx, tx, provider, providerID)
	if err != nil {
		if auth.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, auth.StorageError(err, "failed to look up social link")
	}
	return link, nil
}

// upsertLinkTx reactivates existing for user or inserts a new link
func (l *Linker) upsertLinkTx(ctx context.Context, tx bun.IDB, existing *SocialLink, user *auth.User, provider auth.AuthProvider, info ProviderUserInfo) error {
	now := l.clock()
	if existing != nil {
		existing.UserID = user.ID
		existing.IsActive = true
		existing.UpdatedAt = now
		applyProfile(existing, info)
		if err := l.links.UpdateTx(ctx, tx, existing); err != nil {
			return auth.StorageError(err, "failed to reactivate social link")
		}
		return nil
	}

	link := &SocialLink{
		UserID:    user.ID,
		Provider:  provider,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProfile(link, info)
	if err := l.links.CreateTx(ctx, tx, link); err != nil {
		return auth.StorageError(err, "failed to create social link")
	}
	return nil
}

func (l *Linker) notify(ctx context.Context, kind auth.NotificationKind, user *auth.User, data map[string]any) {
	if err := l.notifier.Send(ctx, kind, user, data); err != nil {
		l.logger.Error("failed to send %s notification to %s: %v", kind, user.Email, err)
	}
}

func (l *Linker) record(ctx context.Context, eventType auth.ActivityEventType, user *auth.User, provider auth.AuthProvider) {
	err := l.activity.Record(ctx, auth.ActivityEvent{
		EventType:  eventType,
		UserID:     user.ID.String(),
		Metadata:   map[string]any{"provider": string(provider)},
		OccurredAt: l.clock(),
	})
	if err != nil {
		l.logger.Warn("activity sink failed for %s: %v", eventType, err)
	}
}

func passThrough(err error, message string) error {
	if err == nil {
		return nil
	}
	if auth.IsRichError(err) {
		return err
	}
	return auth.StorageError(err, message)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
