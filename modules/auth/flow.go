package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/browser"

	"github.com/strautils/strava/common/model"
)

const (
	authorizePath = "oauth/authorize"

	// DefaultRedirectURL is where Strava sends the user's browser after
	// approval when the caller does not supply a redirect of their own.
	DefaultRedirectURL = "http://localhost:8080/exchange_token/"

	// DefaultAuthorizeTimeout bounds the wait for the user to approve.
	DefaultAuthorizeTimeout = time.Minute
)

// Flow drives the three-legged authorization: build the authorize URL, open
// it in the user's browser, catch the redirect on a local listener, and
// exchange the code for the athlete's first credential.
type Flow struct {
	baseURL   string
	clientID  string
	exchanger TokenExchanger
	resolver  *Resolver
	timeout   time.Duration
	openURL   func(url string) error
}

// NewFlow builds a Flow. The resolver receives the credential produced by a
// completed authorization (write-through to its cache and store).
func NewFlow(baseURL, clientID string, exchanger TokenExchanger, resolver *Resolver) *Flow {
	return &Flow{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		clientID:  clientID,
		exchanger: exchanger,
		resolver:  resolver,
		timeout:   DefaultAuthorizeTimeout,
		openURL:   browser.OpenURL,
	}
}

// AuthorizationURL builds the Strava authorize URL for the scopes and
// redirect, without opening anything. Useful in non-interactive environments
// where the caller presents the URL itself.
func (f *Flow) AuthorizationURL(scopes []model.Scope, redirectURL string) (string, error) {
	if len(scopes) == 0 {
		return "", &Error{Op: "build authorization url", Err: fmt.Errorf("%w: must request at least one scope", ErrInvalidArgument)}
	}
	u, err := url.Parse(redirectURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", &Error{Op: "build authorization url", Err: fmt.Errorf("%w: redirect url %q is not an absolute url", ErrInvalidArgument, redirectURL)}
	}

	query := url.Values{
		"client_id":       {f.clientID},
		"response_type":   {"code"},
		"redirect_uri":    {redirectURL},
		"approval_prompt": {"force"},
		"scope":           {model.JoinScopes(scopes)},
	}
	return f.baseURL + "/" + authorizePath + "?" + query.Encode(), nil
}

// BeginAuthorization builds the authorize URL and opens it in the user's
// default browser. The user lands on redirectURL after approving; the
// embedded code can then be exchanged with the token endpoint.
func (f *Flow) BeginAuthorization(scopes []model.Scope, redirectURL string) error {
	authURL, err := f.AuthorizationURL(scopes, redirectURL)
	if err != nil {
		return err
	}
	if err := f.openURL(authURL); err != nil {
		return &Error{Op: "open authorization url", Err: err}
	}
	return nil
}

// CompleteAuthorization runs the whole flow: it stands up a local listener on
// DefaultRedirectURL, prompts the user in their browser, waits up to a minute
// for the redirect, exchanges the code, and writes the new credential
// through to the resolver's cache and store.
func (f *Flow) CompleteAuthorization(ctx context.Context, scopes []model.Scope) (model.AthleteAuthInfo, error) {
	return f.CompleteAuthorizationWithRedirect(ctx, scopes, DefaultRedirectURL)
}

// CompleteAuthorizationWithRedirect is CompleteAuthorization with a caller
// supplied redirect URL, for apps that cannot use port 8080.
func (f *Flow) CompleteAuthorizationWithRedirect(ctx context.Context, scopes []model.Scope, redirectURL string) (model.AthleteAuthInfo, error) {
	const op = "complete authorization"

	// Bind before opening the browser so the redirect cannot outrun us.
	listener, err := NewCallbackListener(redirectURL)
	if err != nil {
		return model.AthleteAuthInfo{}, err
	}
	defer listener.Close()

	if err := f.BeginAuthorization(scopes, redirectURL); err != nil {
		return model.AthleteAuthInfo{}, err
	}

	params, err := listener.WaitForRedirect(ctx, f.timeout)
	if err != nil {
		return model.AthleteAuthInfo{}, err
	}

	code, ok := params["code"]
	if !ok || strings.TrimSpace(code) == "" {
		return model.AthleteAuthInfo{}, &Error{Op: op, Err: ErrMissingCode}
	}
	scopeParam, ok := params["scope"]
	if !ok || strings.TrimSpace(scopeParam) == "" {
		return model.AthleteAuthInfo{}, &Error{Op: op, Err: ErrMissingScope}
	}
	granted, err := model.SplitScopes(scopeParam)
	if err != nil {
		return model.AthleteAuthInfo{}, &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrUnknownScope, err)}
	}

	token, athlete, err := f.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return model.AthleteAuthInfo{}, err
	}

	info := model.AthleteAuthInfo{
		AthleteID: athlete.ID,
		Scopes:    granted,
		Token:     token,
	}
	if err := f.resolver.Save(ctx, info); err != nil {
		return model.AthleteAuthInfo{}, err
	}
	return info, nil
}

// SetTimeoutForTest shortens the redirect wait.
func (f *Flow) SetTimeoutForTest(timeout time.Duration) {
	f.timeout = timeout
}

// SetOpenURLForTest replaces the browser launcher.
func (f *Flow) SetOpenURLForTest(open func(url string) error) {
	f.openURL = open
}
