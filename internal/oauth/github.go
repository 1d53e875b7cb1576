package oauth

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/DrumilPatell/edumanage-sms/internal/config"
)

const githubAPIBase = "https://api.github.com"

type GitHub struct {
	adapter
	apiBase string
}

func NewGitHub(creds config.OAuthClient, client *http.Client) *GitHub {
	return &GitHub{
		adapter: adapter{
			name: "github",
			conf: &oauth2.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				RedirectURL:  creds.RedirectURI,
				Endpoint:     endpoints.GitHub,
				Scopes:       []string{"read:user", "user:email"},
			},
			client: client,
		},
		apiBase: githubAPIBase,
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func githubHeader(token string) http.Header {
	return http.Header{
		"Authorization": {"token " + token},
		"Accept":        {"application/vnd.github.v3+json"},
	}
}

func (g *GitHub) Resolve(ctx context.Context, accessToken string) (Profile, bool) {
	var user githubUser
	if err := g.getJSON(ctx, g.apiBase+"/user", githubHeader(accessToken), &user); err != nil {
		log.Printf("github user failed: %v", err)
		return Profile{}, false
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		// A failed lookup leaves the email empty; the caller rejects that.
		if err := g.getJSON(ctx, g.apiBase+"/user/emails", githubHeader(accessToken), &emails); err != nil {
			log.Printf("github user emails failed: %v", err)
		} else {
			email = pickGitHubEmail(emails)
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return Profile{
		OAuthID:  strconv.FormatInt(user.ID, 10),
		Email:    email,
		FullName: name,
		Picture:  user.AvatarURL,
		Provider: g.name,
	}, true
}

func pickGitHubEmail(emails []githubEmail) string {
	for _, entry := range emails {
		if entry.Primary {
			return entry.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
