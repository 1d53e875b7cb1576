package oauth

import (
	"context"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/DrumilPatell/edumanage-sms/internal/config"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Google struct {
	adapter
	userinfoURL string
}

func NewGoogle(creds config.OAuthClient, client *http.Client) *Google {
	return &Google{
		adapter: adapter{
			name: "google",
			conf: &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				RedirectURL:  creds.RedirectURI,
				Endpoint:     endpoints.Google,
				Scopes:       []string{"openid", "email", "profile"},
			},
			client: client,
			authParams: []oauth2.AuthCodeOption{
				oauth2.AccessTypeOffline,
				oauth2.SetAuthURLParam("prompt", "select_account"),
			},
		},
		userinfoURL: googleUserinfoURL,
	}
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *Google) Resolve(ctx context.Context, accessToken string) (Profile, bool) {
	var user googleUser
	if err := g.getJSON(ctx, g.userinfoURL, bearer(accessToken), &user); err != nil {
		log.Printf("google userinfo failed: %v", err)
		return Profile{}, false
	}
	return Profile{
		OAuthID:  user.ID,
		Email:    user.Email,
		FullName: user.Name,
		Picture:  user.Picture,
		Provider: g.name,
	}, true
}
