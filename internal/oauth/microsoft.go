package oauth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/DrumilPatell/edumanage-sms/internal/config"
)

const (
	microsoftMeURL = "https://graph.microsoft.com/v1.0/me"
	guestMarker    = "#EXT#@"
)

type Microsoft struct {
	adapter
	meURL string
}

func NewMicrosoft(creds config.OAuthClient, tenant string, client *http.Client) *Microsoft {
	if tenant == "" {
		tenant = "common"
	}
	return &Microsoft{
		adapter: adapter{
			name: "microsoft",
			conf: &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				RedirectURL:  creds.RedirectURI,
				Endpoint:     endpoints.AzureAD(tenant),
				Scopes:       []string{"openid", "email", "profile", "User.Read"},
			},
			client: client,
			authParams: []oauth2.AuthCodeOption{
				oauth2.SetAuthURLParam("response_mode", "query"),
			},
		},
		meURL: microsoftMeURL,
	}
}

type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	Mail              string `json:"mail"`
}

func (m *Microsoft) Resolve(ctx context.Context, accessToken string) (Profile, bool) {
	var user graphUser
	if err := m.getJSON(ctx, m.meURL, bearer(accessToken), &user); err != nil {
		log.Printf("microsoft graph me failed: %v", err)
		return Profile{}, false
	}
	email := user.UserPrincipalName
	if email == "" {
		email = user.Mail
	}
	return Profile{
		OAuthID:  user.ID,
		Email:    NormalizeGuestEmail(email),
		FullName: user.DisplayName,
		Provider: m.name,
	}, true
}

// NormalizeGuestEmail recovers the home address of an Azure AD guest
// principal such as "jdoe_example.com#EXT#@tenant.onmicrosoft.com".
func NormalizeGuestEmail(email string) string {
	idx := strings.Index(email, guestMarker)
	if idx < 0 {
		return email
	}
	return strings.Replace(email[:idx], "_", "@", 1)
}
