package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/strautils/strava/common"
	"github.com/strautils/strava/common/model"
)

// CredentialResolver supplies valid auth info for an athlete before a
// request goes out. Satisfied by *auth.Resolver.
type CredentialResolver interface {
	Resolve(ctx context.Context, athleteID int64) (model.AthleteAuthInfo, error)
	ForceRefresh(ctx context.Context, athleteID int64) (model.AthleteAuthInfo, error)
}

// Client defines the lower-level HTTP operations against the Strava API:
// resolving credentials, attaching the bearer token, caching GET responses,
// and mapping unexpected statuses to HTTPError.
type Client interface {
	GetJSON(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error
	GetBytes(ctx context.Context, endpoint string, athleteID int64, params map[string]string) ([]byte, error)
	PutForm(ctx context.Context, endpoint string, athleteID int64, form url.Values) ([]byte, error)
	PostMultipart(ctx context.Context, endpoint string, athleteID int64, fields map[string]string, fileName string, file []byte, expectedStatus ...int) ([]byte, error)
	Delete(ctx context.Context, endpoint string, athleteID int64, expectedStatus ...int) ([]byte, error)
	RemoveCacheEntry(athleteID int64, endpoint string, params map[string]string)
	DoRequest(ctx context.Context, method, urlStr string, token *oauth2.Token, contentType string, body io.Reader, expectedStatus ...int) ([]byte, error)
}

type apiClient struct {
	baseURL    string
	httpClient common.HttpClient
	cache      common.CacheRepository
	resolver   CredentialResolver
}

// How long GET responses stay cached. Activity data changes, so this is
// deliberately short.
const defaultCacheExpiration = 5 * time.Minute

// NewClient creates a Client for the Strava API rooted at baseURL
// (typically "https://www.strava.com/api/v3/").
func NewClient(baseURL string, httpClient common.HttpClient, cache common.CacheRepository, resolver CredentialResolver) Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &apiClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		cache:      cache,
		resolver:   resolver,
	}
}

// GetJSON retrieves JSON from an endpoint and unmarshals into entity.
func (c *apiClient) GetJSON(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
	data, err := c.GetBytes(ctx, endpoint, athleteID, params)
	if err != nil {
		return err
	}
	return model.JSONUnmarshal(data, entity)
}

// GetBytes retrieves raw bytes from an endpoint, consulting the response
// cache first.
func (c *apiClient) GetBytes(ctx context.Context, endpoint string, athleteID int64, params map[string]string) ([]byte, error) {
	cacheKey := c.buildCacheKey(athleteID, endpoint, params)
	if cached, found := c.cache.Get(cacheKey); found {
		return cached, nil
	}

	urlStr, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	token, err := c.resolveToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	operation := func() (interface{}, error) {
		data, err := c.doWithAuthRetry(ctx, http.MethodGet, urlStr, athleteID, token, "", nil, http.StatusOK)
		if err != nil {
			return nil, err
		}
		c.cache.Set(cacheKey, data, defaultCacheExpiration)
		return data, nil
	}

	result, err := c.httpClient.RetryWithExponentialBackoff(operation)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// PutForm sends a form-encoded PUT, used by activity updates.
func (c *apiClient) PutForm(ctx context.Context, endpoint string, athleteID int64, form url.Values) ([]byte, error) {
	urlStr, err := c.buildURL(endpoint, nil)
	if err != nil {
		return nil, err
	}
	token, err := c.resolveToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return c.doWithAuthRetry(ctx, http.MethodPut, urlStr, athleteID, token,
		"application/x-www-form-urlencoded", []byte(form.Encode()), http.StatusOK)
}

// PostMultipart sends a multipart POST with one file part plus string
// fields, used by activity uploads.
func (c *apiClient) PostMultipart(ctx context.Context, endpoint string, athleteID int64, fields map[string]string, fileName string, file []byte, expectedStatus ...int) ([]byte, error) {
	urlStr, err := c.buildURL(endpoint, nil)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	token, err := c.resolveToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusCreated, http.StatusOK}
	}
	return c.doWithAuthRetry(ctx, http.MethodPost, urlStr, athleteID, token, writer.FormDataContentType(), buf.Bytes(), expectedStatus...)
}

// Delete sends a DELETE with optional expected status codes.
func (c *apiClient) Delete(ctx context.Context, endpoint string, athleteID int64, expectedStatus ...int) ([]byte, error) {
	urlStr, err := c.buildURL(endpoint, nil)
	if err != nil {
		return nil, err
	}
	token, err := c.resolveToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusNoContent, http.StatusOK}
	}
	return c.doWithAuthRetry(ctx, http.MethodDelete, urlStr, athleteID, token, "", nil, expectedStatus...)
}

// RemoveCacheEntry drops a cached GET response, e.g. after the underlying
// resource was updated or deleted.
func (c *apiClient) RemoveCacheEntry(athleteID int64, endpoint string, params map[string]string) {
	c.cache.Delete(c.buildCacheKey(athleteID, endpoint, params))
}

func (c *apiClient) resolveToken(ctx context.Context, athleteID int64) (*oauth2.Token, error) {
	info, err := c.resolver.Resolve(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return info.Token.OAuth2Token(), nil
}

// doWithAuthRetry performs the request and, if Strava answers 401/403 with a
// token the client thought was valid, forces one refresh and retries once.
func (c *apiClient) doWithAuthRetry(ctx context.Context, method, urlStr string, athleteID int64, token *oauth2.Token, contentType string, body []byte, expectedStatus ...int) ([]byte, error) {
	data, status, err := c.executeRequest(ctx, method, urlStr, token, contentType, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		info, refreshErr := c.resolver.ForceRefresh(ctx, athleteID)
		if refreshErr != nil {
			return nil, fmt.Errorf("token refresh after %d failed: %w", status, refreshErr)
		}
		data, status, err = c.executeRequest(ctx, method, urlStr, info.Token.OAuth2Token(), contentType, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
	}

	if !statusMatches(status, expectedStatus) {
		return nil, &common.HTTPError{
			StatusCode: status,
			Body:       data,
		}
	}
	return data, nil
}

// DoRequest performs a single request with an explicit token, no resolver
// involvement. The higher-level helpers funnel through the same execution
// path; this is exported for callers with unusual needs.
func (c *apiClient) DoRequest(ctx context.Context, method, urlStr string, token *oauth2.Token, contentType string, body io.Reader, expectedStatus ...int) ([]byte, error) {
	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusOK}
	}
	data, status, err := c.executeRequest(ctx, method, urlStr, token, contentType, body)
	if err != nil {
		return nil, err
	}
	if !statusMatches(status, expectedStatus) {
		return nil, &common.HTTPError{
			StatusCode: status,
			Body:       data,
		}
	}
	return data, nil
}

// executeRequest actually does the low-level HTTP.
func (c *apiClient) executeRequest(ctx context.Context, method, urlStr string, token *oauth2.Token, contentType string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != nil && token.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %v", readErr)
	}
	return data, resp.StatusCode, nil
}

// buildURL merges baseURL + endpoint + params.
func (c *apiClient) buildURL(endpoint string, params map[string]string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	path, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	fullURL := base.ResolveReference(path)
	q := fullURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	fullURL.RawQuery = q.Encode()
	return fullURL.String(), nil
}

// Responses differ per athlete (GET athlete, activity lists), so the
// athlete id is part of every cache key.
func (c *apiClient) buildCacheKey(athleteID int64, endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	queryParams := ""
	for _, k := range keys {
		queryParams += fmt.Sprintf("&%s=%s", k, params[k])
	}
	return fmt.Sprintf("strava:%d:%s:%s", athleteID, endpoint, queryParams)
}

func statusMatches(statusCode int, expected []int) bool {
	for _, s := range expected {
		if statusCode == s {
			return true
		}
	}
	return false
}
