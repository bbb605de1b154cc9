package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
	"golang.org/x/oauth2"
	facebookoauth "golang.org/x/oauth2/facebook"
)

const (
	providerName       = "facebook"
	defaultUserInfoURL = "https://graph.facebook.com/v19.0/me"
	profileFields      = "id,name,email,first_name,last_name,picture.type(large)"
)

// Config holds Facebook OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Facebook scopes.
func DefaultScopes() []string {
	return []string{"email", "public_profile"}
}

// Provider implements social.SocialProvider for Facebook. Facebook issues
// long lived tokens without a refresh grant, so it is not a
// social.TokenRefresher.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

var _ social.SocialProvider = (*Provider)(nil)

// New creates a new Facebook provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}

	endpoint := facebookoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  client,
	}
}

func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL implements social.SocialProvider. Facebook expects scopes
// separated by commas.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	oauthCfg := *p.oauth
	oauthCfg.Scopes = []string{strings.Join(cfg.Scopes, ",")}

	var params []oauth2.AuthCodeOption
	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", cfg.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", method),
		)
	}
	if cfg.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("auth_type", cfg.Prompt))
	}

	return oauthCfg.AuthCodeURL(state, params...)
}

func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)

	var params []oauth2.AuthCodeOption
	if cfg.CodeVerifier != "" {
		params = append(params, oauth2.VerifierOption(cfg.CodeVerifier))
	}

	tok, err := p.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), code, params...)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			code, message := rerr.ErrorCode, rerr.ErrorDescription
			if code == "" && message == "" {
				code, message = parseGraphError(rerr.Body)
			}
			return nil, providerError("exchange", status, code, message, err)
		}
		return nil, providerError("exchange", 0, "", "", err)
	}

	return &social.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.Expiry,
	}, nil
}

func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("user_info", 0, "missing_access_token", "missing access token", nil)
	}

	endpoint, err := url.Parse(p.userInfoURL)
	if err != nil {
		return nil, providerError("user_info", 0, "", "", err)
	}
	query := endpoint.Query()
	query.Set("fields", profileFields)
	endpoint.RawQuery = query.Encode()

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, p.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.AccessToken, TokenType: token.TokenType}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, providerError("user_info", 0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("user_info", resp.StatusCode, "", "", err)
	}

	if resp.StatusCode != http.StatusOK {
		code, message := parseGraphError(body)
		return nil, providerError("user_info", resp.StatusCode, code, message, nil)
	}

	var user graphUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode profile response", err)
	}

	return mapProfile(&user), nil
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func parseGraphError(body []byte) (string, string) {
	var gerr graphError
	if err := json.Unmarshal(body, &gerr); err == nil && gerr.Error.Message != "" {
		return gerr.Error.Type, gerr.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "facebook request failed"
	}
	return "", msg
}

func providerError(operation string, status int, code, message string, err error) *social.ProviderError {
	return &social.ProviderError{
		Provider:  providerName,
		Operation: operation,
		Status:    status,
		Code:      code,
		Message:   message,
		Err:       err,
	}
}
