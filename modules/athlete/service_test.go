package athlete_test

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/oauth2"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/athlete"
)

type mockClient struct {
	getJSONFunc func(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error
}

func (m *mockClient) GetJSON(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
	return m.getJSONFunc(ctx, endpoint, athleteID, entity, params)
}
func (m *mockClient) GetBytes(ctx context.Context, endpoint string, athleteID int64, params map[string]string) ([]byte, error) {
	panic("GetBytes not implemented in mock")
}
func (m *mockClient) PutForm(ctx context.Context, endpoint string, athleteID int64, form url.Values) ([]byte, error) {
	panic("PutForm not implemented in mock")
}
func (m *mockClient) PostMultipart(ctx context.Context, endpoint string, athleteID int64, fields map[string]string, fileName string, file []byte, expectedStatus ...int) ([]byte, error) {
	panic("PostMultipart not implemented in mock")
}
func (m *mockClient) Delete(ctx context.Context, endpoint string, athleteID int64, expectedStatus ...int) ([]byte, error) {
	panic("Delete not implemented in mock")
}
func (m *mockClient) RemoveCacheEntry(athleteID int64, endpoint string, params map[string]string) {}
func (m *mockClient) DoRequest(ctx context.Context, method, urlStr string, token *oauth2.Token, contentType string, body io.Reader, expectedStatus ...int) ([]byte, error) {
	panic("DoRequest not implemented in mock")
}

func TestGetAuthenticatedAthlete(t *testing.T) {
	client := &mockClient{
		getJSONFunc: func(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
			assert.Equal(t, "athlete", endpoint)
			assert.Equal(t, int64(42), athleteID)
			return model.JSONUnmarshal([]byte(`{"id":42,"firstname":"Jo","shoes":[{"id":"g1","name":"Pegasus"}]}`), entity)
		},
	}
	svc := athlete.NewService(client)

	got, err := svc.GetAuthenticatedAthlete(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "Jo", got.FirstName)
	require.Len(t, got.Shoes, 1)
	assert.Equal(t, "g1", got.Shoes[0].ID)
}

func TestGetAuthenticatedAthlete_Error(t *testing.T) {
	client := &mockClient{
		getJSONFunc: func(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
			return errors.New("boom")
		},
	}
	svc := athlete.NewService(client)

	_, err := svc.GetAuthenticatedAthlete(context.Background(), 42)
	assert.Error(t, err)
}

func TestGetAuthenticatedAthlete_EmptyResult(t *testing.T) {
	client := &mockClient{
		getJSONFunc: func(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
			return model.JSONUnmarshal([]byte(`{}`), entity)
		},
	}
	svc := athlete.NewService(client)

	_, err := svc.GetAuthenticatedAthlete(context.Background(), 42)
	assert.Error(t, err, "an athlete without an id is not a usable result")
}
