package google

import (
	"strings"

	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
)

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	HostedDomain  string `json:"hd"`
}

func mapProfile(info *googleUserInfo) *social.SocialProfile {
	if info == nil {
		return nil
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}

	raw := map[string]any{
		"sub":            info.Sub,
		"email_verified": info.EmailVerified,
		"picture":        info.Picture,
	}
	if info.Locale != "" {
		raw["locale"] = info.Locale
	}
	if info.HostedDomain != "" {
		raw["hd"] = info.HostedDomain
	}

	return &social.SocialProfile{
		ProviderUserID: info.Sub,
		Provider:       providerName,
		Email:          strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified:  info.EmailVerified,
		Name:           name,
		FirstName:      info.GivenName,
		LastName:       info.FamilyName,
		AvatarURL:      info.Picture,
		Raw:            raw,
	}
}
