package facebook

import (
	"strings"

	"github.com/FlameGreat-1/nswcleaningcompany-sub001/social"
)

type graphUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// mapProfile treats a returned email as verified, Graph only exposes
// confirmed addresses.
func mapProfile(user *graphUser) *social.SocialProfile {
	if user == nil {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(user.Email))

	return &social.SocialProfile{
		ProviderUserID: user.ID,
		Provider:       providerName,
		Email:          email,
		EmailVerified:  email != "",
		Name:           user.Name,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		AvatarURL:      user.Picture.Data.URL,
		Raw: map[string]any{
			"id":   user.ID,
			"name": user.Name,
		},
	}
}
