package gear_test

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/oauth2"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/gear"
)

type mockClient struct {
	responses map[string]string
}

func (m *mockClient) GetJSON(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
	body, ok := m.responses[endpoint]
	if !ok {
		return fmt.Errorf("no mock response for %s", endpoint)
	}
	return model.JSONUnmarshal([]byte(body), entity)
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

type mockAthletes struct {
	athlete model.Athlete
}

func (m *mockAthletes) GetAuthenticatedAthlete(ctx context.Context, athleteID int64) (*model.Athlete, error) {
	return &m.athlete, nil
}

func TestGetGear(t *testing.T) {
	client := &mockClient{responses: map[string]string{
		"gear/b12": `{"id":"b12","name":"Allez","resource_state":3}`,
	}}
	svc := gear.NewService(client, &mockAthletes{})

	g, err := svc.GetGear(context.Background(), 42, "b12")
	require.NoError(t, err)
	assert.Equal(t, "Allez", g.Name)
}

func TestGetGear_RequiresID(t *testing.T) {
	svc := gear.NewService(&mockClient{}, &mockAthletes{})

	_, err := svc.GetGear(context.Background(), 42, "")
	assert.Error(t, err)
}

func TestGetBikes_SortedByName(t *testing.T) {
	client := &mockClient{responses: map[string]string{
		"gear/b2": `{"id":"b2","name":"Zundapp"}`,
		"gear/b1": `{"id":"b1","name":"Allez"}`,
	}}
	athletes := &mockAthletes{athlete: model.Athlete{
		ID:    42,
		Bikes: []model.Gear{{ID: "b2"}, {ID: "b1"}},
	}}
	svc := gear.NewService(client, athletes)

	bikes, err := svc.GetBikes(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, bikes, 2)
	assert.Equal(t, "Allez", bikes[0].Name)
	assert.Equal(t, "Zundapp", bikes[1].Name)
}

func TestGetShoes(t *testing.T) {
	client := &mockClient{responses: map[string]string{
		"gear/g1": `{"id":"g1","name":"Pegasus","distance":423000}`,
	}}
	athletes := &mockAthletes{athlete: model.Athlete{
		ID:    42,
		Shoes: []model.Gear{{ID: "g1"}},
	}}
	svc := gear.NewService(client, athletes)

	shoes, err := svc.GetShoes(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, shoes, 1)
	assert.Equal(t, "Pegasus", shoes[0].Name)
	assert.Equal(t, float64(423000), shoes[0].DistanceMeters)
}
