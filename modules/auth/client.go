package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strautils/strava/common"
	"github.com/strautils/strava/common/model"
)

const tokenPath = "oauth/token"

// TokenExchanger performs exchanges against Strava's token endpoint.
//
// Refresh and ExchangeCode hit the same endpoint with different grant types;
// only the authorization_code grant returns the athlete's identity, so the
// two exchanges have distinct result shapes rather than one response type
// with an optional identity.
type TokenExchanger interface {
	// Refresh trades a refresh token for new token info. The old refresh
	// token must not be reused afterwards; Strava may rotate it.
	Refresh(ctx context.Context, refreshToken string) (model.TokenInfo, error)

	// ExchangeCode trades an initial authorization code for token info plus
	// the identity of the athlete who authorized.
	ExchangeCode(ctx context.Context, code string) (model.TokenInfo, model.MetaAthlete, error)
}

type tokenClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   common.HttpClient
}

// NewTokenClient returns a TokenExchanger for the token endpoint under
// baseURL (typically "https://www.strava.com").
func NewTokenClient(baseURL, clientID, clientSecret string, httpClient common.HttpClient) TokenExchanger {
	return &tokenClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

// tokenResponse is the token endpoint's JSON body. Strava sends both
// expires_at (epoch seconds) and expires_in (seconds); the athlete object is
// present only on the authorization_code grant.
type tokenResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	ExpiresAt    int64              `json:"expires_at"`
	ExpiresIn    int64              `json:"expires_in"`
	Athlete      *model.MetaAthlete `json:"athlete"`
}

func (c *tokenClient) Refresh(ctx context.Context, refreshToken string) (model.TokenInfo, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.TokenInfo{}, &Error{Op: "refresh token", Err: fmt.Errorf("%w: refresh token is empty", ErrInvalidArgument)}
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	resp, err := c.exchange(ctx, "refresh token", form)
	if err != nil {
		return model.TokenInfo{}, err
	}

	info, err := c.tokenInfoFromResponse("refresh token", resp)
	if err != nil {
		return model.TokenInfo{}, err
	}
	return info, nil
}

func (c *tokenClient) ExchangeCode(ctx context.Context, code string) (model.TokenInfo, model.MetaAthlete, error) {
	if strings.TrimSpace(code) == "" {
		return model.TokenInfo{}, model.MetaAthlete{}, &Error{Op: "exchange authorization code", Err: fmt.Errorf("%w: authorization code is empty", ErrInvalidArgument)}
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	}

	resp, err := c.exchange(ctx, "exchange authorization code", form)
	if err != nil {
		return model.TokenInfo{}, model.MetaAthlete{}, err
	}

	info, err := c.tokenInfoFromResponse("exchange authorization code", resp)
	if err != nil {
		return model.TokenInfo{}, model.MetaAthlete{}, err
	}
	if resp.body.Athlete == nil {
		return model.TokenInfo{}, model.MetaAthlete{}, &Error{Op: "exchange authorization code", Err: fmt.Errorf("%w: response has no athlete", ErrMalformedResponse)}
	}
	if resp.body.Athlete.ID < 0 {
		return model.TokenInfo{}, model.MetaAthlete{}, &Error{Op: "exchange authorization code", Err: fmt.Errorf("%w: athlete id %d is negative", ErrMalformedResponse, resp.body.Athlete.ID)}
	}
	return info, *resp.body.Athlete, nil
}

// exchangeResult pairs the decoded body with the timestamp captured just
// before the request went out, so expires_in is anchored to the send time and
// slow requests do not overstate the token's remaining life.
type exchangeResult struct {
	body  tokenResponse
	start time.Time
}

func (c *tokenClient) exchange(ctx context.Context, op string, form url.Values) (exchangeResult, error) {
	endpoint := c.baseURL + "/" + tokenPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return exchangeResult{}, &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exchangeResult{}, &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return exchangeResult{}, &Error{Op: op, Err: fmt.Errorf("%w: reading response: %v", ErrNetwork, err)}
	}

	if resp.StatusCode != http.StatusOK {
		return exchangeResult{}, &Error{Op: op, Err: fmt.Errorf("%w: status %d", ErrRemoteRejected, resp.StatusCode)}
	}

	var body tokenResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return exchangeResult{}, &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return exchangeResult{body: body, start: start}, nil
}

// tokenInfoFromResponse validates the fields every grant must return. A
// missing field here is a protocol violation, not a transient fault, so it is
// never retried.
func (c *tokenClient) tokenInfoFromResponse(op string, resp exchangeResult) (model.TokenInfo, error) {
	body := resp.body
	if body.AccessToken == "" {
		return model.TokenInfo{}, &Error{Op: op, Err: fmt.Errorf("%w: response access_token is empty", ErrMalformedResponse)}
	}
	if body.RefreshToken == "" {
		return model.TokenInfo{}, &Error{Op: op, Err: fmt.Errorf("%w: response refresh_token is empty", ErrMalformedResponse)}
	}

	var expiry time.Time
	switch {
	case body.ExpiresAt > 0:
		expiry = time.Unix(body.ExpiresAt, 0)
	case body.ExpiresIn > 0:
		expiry = resp.start.Add(time.Duration(body.ExpiresIn) * time.Second)
	default:
		return model.TokenInfo{}, &Error{Op: op, Err: fmt.Errorf("%w: response has no positive expiry", ErrMalformedResponse)}
	}

	return model.TokenInfo{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Expiry:       &expiry,
	}, nil
}
