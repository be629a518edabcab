package clouddrive

import (
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// RefreshWindow is how far ahead of expiry a token is proactively
// refreshed (spec §4.12: "if the access token expires within 5 minutes,
// exchange the refresh token").
const RefreshWindow = 5 * time.Minute

// OAuthScopes are the Drive scopes requested during the consent flow
// (spec §6: "drive.readonly, userinfo.email, openid").
var OAuthScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// NewOAuthConfig builds the OAuth2 config for the Drive consent flow.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       OAuthScopes,
		Endpoint:     google.Endpoint,
	}
}

// NeedsRefresh reports whether a token expiring at expiry should be
// refreshed now.
func NeedsRefresh(expiry time.Time, now time.Time) bool {
	return !expiry.IsZero() && now.Add(RefreshWindow).After(expiry)
}
