// Package strava is a typed client for the Strava V3 API. It wraps athlete,
// activity, gear, and upload endpoints and manages the OAuth2 token
// lifecycle: three-legged authorization through a local callback listener,
// per-athlete credential caching with a pluggable store, and transparent
// refresh before dependent calls.
package strava

import (
	"context"
	"net/http"

	"github.com/strautils/strava/common"
	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/activity"
	"github.com/strautils/strava/modules/api"
	"github.com/strautils/strava/modules/athlete"
	"github.com/strautils/strava/modules/auth"
	"github.com/strautils/strava/modules/gear"
	"github.com/strautils/strava/modules/upload"
)

const (
	// DefaultBaseURL hosts both the OAuth endpoints and, under /api/v3, the
	// resource endpoints.
	DefaultBaseURL = "https://www.strava.com"

	defaultUserAgent = "strautils-strava-go"
)

// Config holds everything needed to construct a Client. ClientID and
// ClientSecret come from the Strava API application settings.
type Config struct {
	ClientID     string
	ClientSecret string

	// Store persists credentials across runs. Nil means cache-only: only
	// credentials obtained through the authorization flow (or seeded with
	// SaveCredential) in this process are usable.
	Store auth.CredentialStore

	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPClient overrides the underlying *http.Client.
	HTTPClient *http.Client

	// Cache overrides the in-process response cache.
	Cache common.CacheRepository
}

// Client is the top-level Strava API client. All state (token cache, HTTP
// clients, response cache) is owned by the instance; there are no package
// level singletons. Callers should Close it when done.
type Client struct {
	Auth       *auth.Flow
	Resolver   *auth.Resolver
	Athletes   athlete.Service
	Activities activity.Service
	Gear       gear.Service
	Uploads    upload.Service

	httpClient common.HttpClient
}

// New wires up a Client from the Config.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	cache := cfg.Cache
	if cache == nil {
		cache = common.NewCacheStore()
	}

	httpClient := common.NewStravaHttpClient(userAgent, base)

	exchanger := auth.NewTokenClient(baseURL, cfg.ClientID, cfg.ClientSecret, httpClient)
	resolver := auth.NewResolver(exchanger, cfg.Store)
	flow := auth.NewFlow(baseURL, cfg.ClientID, exchanger, resolver)

	apiClient := api.NewClient(baseURL+"/api/v3/", httpClient, cache, resolver)

	athletes := athlete.NewService(apiClient)
	activities := activity.NewService(apiClient)

	return &Client{
		Auth:       flow,
		Resolver:   resolver,
		Athletes:   athletes,
		Activities: activities,
		Gear:       gear.NewService(apiClient, athletes),
		Uploads:    upload.NewService(apiClient, activities),
		httpClient: httpClient,
	}
}

// SaveCredential seeds or replaces an athlete's credential, writing it
// through to the token cache and the configured store. Use it to install a
// credential obtained out of band, e.g. from an earlier run without a store.
func (c *Client) SaveCredential(ctx context.Context, info model.AthleteAuthInfo) error {
	return c.Resolver.Save(ctx, info)
}

// Close releases idle connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
