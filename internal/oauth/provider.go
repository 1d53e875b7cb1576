package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/DrumilPatell/edumanage-sms/internal/config"
)

// Profile is the provider-independent view of an OAuth identity.
type Profile struct {
	OAuthID  string
	Email    string
	FullName string
	Picture  string
	Provider string
}

// Provider is one OAuth identity provider. Resolve reports false on any
// upstream failure instead of returning an error.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	Resolve(ctx context.Context, accessToken string) (Profile, bool)
}

var providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "edumanage_oauth_provider_calls_total",
	Help: "Outbound OAuth provider calls by stage and result.",
}, []string{"provider", "stage", "result"})

var tracer = otel.Tracer("github.com/DrumilPatell/edumanage-sms/internal/oauth")

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// NewDefaultRegistry wires the Google, Microsoft and GitHub adapters from cfg.
func NewDefaultRegistry(cfg config.Config) *Registry {
	client := &http.Client{Timeout: cfg.OAuthHTTPTimeout}
	if cfg.OAuthHTTPTimeout <= 0 {
		client.Timeout = 10 * time.Second
	}
	return NewRegistry(
		NewGoogle(cfg.Google, client),
		NewMicrosoft(cfg.Microsoft, cfg.MicrosoftTenant, client),
		NewGitHub(cfg.GitHub, client),
	)
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// adapter carries the parts shared by every provider: the code exchange and
// authenticated JSON fetches against the provider API.
type adapter struct {
	name       string
	conf       *oauth2.Config
	client     *http.Client
	authParams []oauth2.AuthCodeOption
}

func (a *adapter) Name() string {
	return a.name
}

func (a *adapter) AuthCodeURL(state string) string {
	return a.conf.AuthCodeURL(state, a.authParams...)
}

func (a *adapter) Exchange(ctx context.Context, code string) (string, error) {
	ctx, span := tracer.Start(ctx, "oauth.exchange", trace.WithAttributes(attribute.String("oauth.provider", a.name)))
	defer span.End()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	token, err := a.conf.Exchange(ctx, code)
	if err == nil && token.AccessToken == "" {
		err = errors.New("access token missing from response")
	}
	if err != nil {
		providerCalls.WithLabelValues(a.name, "exchange", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		return "", fmt.Errorf("%s token exchange: %w", a.name, err)
	}
	providerCalls.WithLabelValues(a.name, "exchange", "ok").Inc()
	return token.AccessToken, nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}, "Accept": {"application/json"}}
}

func (a *adapter) getJSON(ctx context.Context, url string, header http.Header, out interface{}) error {
	ctx, span := tracer.Start(ctx, "oauth.fetch", trace.WithAttributes(
		attribute.String("oauth.provider", a.name),
		attribute.String("http.url", url),
	))
	defer span.End()

	err := a.doGet(ctx, url, header, out)
	if err != nil {
		providerCalls.WithLabelValues(a.name, "resolve", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}
	providerCalls.WithLabelValues(a.name, "resolve", "ok").Inc()
	return nil
}

func (a *adapter) doGet(ctx context.Context, url string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}
