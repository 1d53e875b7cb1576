package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/identity"
	"github.com/DrumilPatell/edumanage-sms/internal/oauth"
)

func (s *Server) provider(w http.ResponseWriter, r *http.Request) (oauth.Provider, bool) {
	name := chi.URLParam(r, "provider")
	provider, ok := s.svc.Providers.Get(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_provider", fmt.Sprintf("Invalid OAuth provider: %s", name))
		return nil, false
	}
	return provider, true
}

func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}
	state, err := crypto.NewState()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": provider.AuthCodeURL(state)})
}

// handleOAuthCallback exchanges the code, resolves the profile, upserts the
// user and hands a token to the frontend through a redirect.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}
	method := "oauth_" + provider.Name()

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing_code", "Authorization code is required")
		return
	}

	accessToken, err := provider.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("oauth exchange failed provider=%s: %v", provider.Name(), err)
		countAuth(method, "exchange_failed")
		writeError(w, http.StatusUnauthorized, "oauth_exchange_failed", "Failed to obtain access token")
		return
	}

	profile, ok := provider.Resolve(r.Context(), accessToken)
	if !ok {
		countAuth(method, "resolve_failed")
		writeError(w, http.StatusUnauthorized, "oauth_profile_failed", "Failed to get user information")
		return
	}
	if profile.Email == "" {
		countAuth(method, "missing_email")
		writeError(w, http.StatusBadRequest, "oauth_missing_email", "Email not provided by OAuth provider")
		return
	}

	user, err := s.svc.Identity.CreateOrUpdate(r.Context(), profile)
	if err != nil {
		if errors.Is(err, identity.ErrMissingEmail) {
			writeError(w, http.StatusBadRequest, "oauth_missing_email", "Email not provided by OAuth provider")
			return
		}
		serverError(w, r, err)
		return
	}
	if !user.IsActive {
		countAuth(method, "inactive")
		writeError(w, http.StatusForbidden, "inactive_user", "Account is inactive")
		return
	}

	token, err := s.svc.Tokens.Issue(user.ID, user.Email, string(user.Role), 0)
	if err != nil {
		serverError(w, r, err)
		return
	}
	countAuth(method, "ok")

	target := s.cfg.FrontendURL + "/auth/callback?" + url.Values{
		"token": {token},
		"user":  {user.Email},
	}.Encode()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
