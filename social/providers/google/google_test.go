package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/callback",
	})

	authURL := provider.AuthCodeURL("state-token", social.WithPKCE("challenge", ""), social.WithPrompt("consent"))

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://example.com/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-token", query.Get("state"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "consent", query.Get("prompt"))
	assert.Equal(t, "challenge", query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, "openid email profile", query.Get("scope"))
}

func TestProviderAuthCodeURLExtraScopes(t *testing.T) {
	provider := New(Config{ClientID: "client-id"})

	parsed, err := url.Parse(provider.AuthCodeURL("s", social.WithScopes("calendar")))
	require.NoError(t, err)
	assert.Equal(t, "openid email profile calendar", parsed.Query().Get("scope"))
}

func TestProviderExchangeUserInfoAndRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			assert.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")

			switch r.PostForm.Get("grant_type") {
			case "authorization_code":
				assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
				assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
				assert.Equal(t, "auth-code", r.PostForm.Get("code"))
				assert.Equal(t, "verifier", r.PostForm.Get("code_verifier"))
				_ = json.NewEncoder(w).Encode(map[string]any{
					"access_token":  "token",
					"token_type":    "Bearer",
					"expires_in":    3600,
					"refresh_token": "refresh-token",
					"scope":         "openid email profile",
					"id_token":      "id-token",
				})
			case "refresh_token":
				assert.Equal(t, "refresh-token", r.PostForm.Get("refresh_token"))
				_ = json.NewEncoder(w).Encode(map[string]any{
					"access_token": "refreshed",
					"token_type":   "Bearer",
					"expires_in":   7200,
				})
			default:
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "unsupported_grant_type"})
			}
		case "/userinfo":
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub":            "P123",
				"email":          "Jane@Example.com",
				"email_verified": true,
				"given_name":     "Jane",
				"family_name":    "Citizen",
				"picture":        "https://example.com/avatar.png",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://example.com/callback",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
	})

	ctx := context.Background()

	token, err := provider.Exchange(ctx, "auth-code", social.WithCodeVerifier("verifier"))
	require.NoError(t, err)
	assert.Equal(t, "token", token.AccessToken)
	assert.Equal(t, "refresh-token", token.RefreshToken)
	assert.Equal(t, []string{"openid", "email", "profile"}, token.Scopes)
	assert.Equal(t, "id-token", token.Raw["id_token"])
	assert.True(t, token.ExpiresAt.After(time.Now()))

	profile, err := provider.UserInfo(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "P123", profile.ProviderUserID)
	assert.Equal(t, "google", profile.Provider)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Jane Citizen", profile.Name)
	assert.Equal(t, "Jane", profile.FirstName)

	refreshed, err := provider.RefreshToken(ctx, "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", refreshed.AccessToken)
	assert.Equal(t, "refresh-token", refreshed.RefreshToken)
	assert.True(t, refreshed.ExpiresAt.After(time.Now()))
}

func TestProviderExchangeErrorNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Bad Request",
		})
	}))
	defer server.Close()

	provider := New(Config{ClientID: "client-id", TokenURL: server.URL})

	_, err := provider.Exchange(context.Background(), "expired-code")
	require.Error(t, err)

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "google", perr.Provider)
	assert.Equal(t, "exchange", perr.Operation)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "invalid_grant", perr.Code)
}

func TestProviderUserInfoErrorNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    401,
				"message": "Invalid Credentials",
				"status":  "UNAUTHENTICATED",
			},
		})
	}))
	defer server.Close()

	provider := New(Config{ClientID: "client-id", UserInfoURL: server.URL})

	_, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "bad"})
	require.Error(t, err)

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "user_info", perr.Operation)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "UNAUTHENTICATED", perr.Code)
	assert.Equal(t, "Invalid Credentials", perr.Message)
}

func TestProviderUserInfoRequiresAccessToken(t *testing.T) {
	provider := New(Config{ClientID: "client-id"})

	_, err := provider.UserInfo(context.Background(), nil)
	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "missing_access_token", perr.Code)
}
