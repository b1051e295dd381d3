package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Scope is a Strava permission scope in its wire form (e.g. "activity:read_all").
type Scope string

const (
	ScopeRead            Scope = "read"
	ScopeReadAll         Scope = "read_all"
	ScopeProfileReadAll  Scope = "profile:read_all"
	ScopeProfileWrite    Scope = "profile:write"
	ScopeActivityRead    Scope = "activity:read"
	ScopeActivityReadAll Scope = "activity:read_all"
	ScopeActivityWrite   Scope = "activity:write"
)

var knownScopes = map[Scope]bool{
	ScopeRead:            true,
	ScopeReadAll:         true,
	ScopeProfileReadAll:  true,
	ScopeProfileWrite:    true,
	ScopeActivityRead:    true,
	ScopeActivityReadAll: true,
	ScopeActivityWrite:   true,
}

// ParseScope maps a scope token from Strava to a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(strings.TrimSpace(s))
	if !knownScopes[scope] {
		return "", fmt.Errorf("unknown scope %q", s)
	}
	return scope, nil
}

// JoinScopes renders scopes the way Strava expects them in the authorize URL
// and the redirect: comma-delimited, no spaces.
func JoinScopes(scopes []Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// SplitScopes parses the comma-delimited scope list from the authorization redirect.
func SplitScopes(s string) ([]Scope, error) {
	parts := strings.Split(s, ",")
	scopes := make([]Scope, 0, len(parts))
	for _, p := range parts {
		scope, err := ParseScope(p)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

// ExpiryMargin is how close to expiry a token may be and still be used.
// A token expiring within the margin is treated as already expired, so a
// token validated now cannot expire before the request it authorizes is sent.
const ExpiryMargin = time.Minute

// TokenInfo is the access/refresh token pair for one athlete.
type TokenInfo struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Expiry       *time.Time `json:"expiry"`
}

// Expired reports whether the token must not be used at the given time.
// A nil Expiry is indeterminate and always counts as expired.
func (t TokenInfo) Expired(now time.Time) bool {
	return t.Expiry == nil || !t.Expiry.After(now.Add(ExpiryMargin))
}

// Equal reports whether two TokenInfos carry the same tokens and expiry.
// Strava may return the identical token from a refresh when the current one
// is still good for a while; callers use this to skip redundant writes.
func (t TokenInfo) Equal(other TokenInfo) bool {
	if t.AccessToken != other.AccessToken || t.RefreshToken != other.RefreshToken {
		return false
	}
	if (t.Expiry == nil) != (other.Expiry == nil) {
		return false
	}
	return t.Expiry == nil || t.Expiry.Equal(*other.Expiry)
}

// OAuth2Token converts to the x/oauth2 representation.
func (t TokenInfo) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.Expiry != nil {
		tok.Expiry = *t.Expiry
	}
	return tok
}

// TokenInfoFromOAuth2 converts from the x/oauth2 representation.
func TokenInfoFromOAuth2(tok *oauth2.Token) TokenInfo {
	info := TokenInfo{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		info.Expiry = &expiry
	}
	return info
}

// AthleteAuthInfo is everything the client holds about one athlete's
// authorization: identity, granted scopes, and the current token pair.
// It is replaced wholesale on refresh, never patched field by field.
type AthleteAuthInfo struct {
	AthleteID int64     `json:"athlete_id"`
	Scopes    []Scope   `json:"scopes"`
	Token     TokenInfo `json:"token"`
}
