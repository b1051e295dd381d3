package upload_test

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/oauth2"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/activity"
	"github.com/strautils/strava/modules/upload"
)

type mockClient struct {
	postFunc  func(fields map[string]string, fileName string, file []byte) ([]byte, error)
	getQueue  [][]byte
	putCalled bool
	putForm   url.Values
}

func (m *mockClient) GetJSON(ctx context.Context, endpoint string, athleteID int64, entity interface{}, params map[string]string) error {
	panic("GetJSON not implemented in mock")
}
func (m *mockClient) GetBytes(ctx context.Context, endpoint string, athleteID int64, params map[string]string) ([]byte, error) {
	if len(m.getQueue) == 0 {
		panic("GetBytes called with empty queue")
	}
	next := m.getQueue[0]
	m.getQueue = m.getQueue[1:]
	return next, nil
}
func (m *mockClient) PutForm(ctx context.Context, endpoint string, athleteID int64, form url.Values) ([]byte, error) {
	m.putCalled = true
	m.putForm = form
	return []byte(`{"id":555}`), nil
}
func (m *mockClient) PostMultipart(ctx context.Context, endpoint string, athleteID int64, fields map[string]string, fileName string, file []byte, expectedStatus ...int) ([]byte, error) {
	return m.postFunc(fields, fileName, file)
}
func (m *mockClient) Delete(ctx context.Context, endpoint string, athleteID int64, expectedStatus ...int) ([]byte, error) {
	panic("Delete not implemented in mock")
}
func (m *mockClient) RemoveCacheEntry(athleteID int64, endpoint string, params map[string]string) {}
func (m *mockClient) DoRequest(ctx context.Context, method, urlStr string, token *oauth2.Token, contentType string, body io.Reader, expectedStatus ...int) ([]byte, error) {
	panic("DoRequest not implemented in mock")
}

func writeTempFit(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ride.fit")
	require.NoError(t, os.WriteFile(path, []byte("fitdata"), 0o600))
	return path
}

func TestUploadActivity(t *testing.T) {
	var gotFields map[string]string
	client := &mockClient{
		postFunc: func(fields map[string]string, fileName string, file []byte) ([]byte, error) {
			gotFields = fields
			assert.Equal(t, "ride.fit", fileName)
			assert.Equal(t, "fitdata", string(file))
			return []byte(`{"id":99,"status":"Your activity is still being processed."}`), nil
		},
	}
	svc := upload.NewService(client, activity.NewService(client))

	info := model.UploadInfo{
		SourceFilePath: writeTempFit(t),
		Format:         model.DataFormatFit,
		Name:           "Evening Ride",
		ExternalID:     "ext-1",
		Trainer:        true,
	}
	status, err := svc.UploadActivity(context.Background(), 42, info)
	require.NoError(t, err)
	assert.Equal(t, int64(99), status.ID)
	assert.Equal(t, model.UploadStateProcessing, status.State())

	assert.Equal(t, "fit", gotFields["data_type"])
	assert.Equal(t, "Evening Ride", gotFields["name"])
	assert.Equal(t, "ext-1", gotFields["external_id"])
	assert.Equal(t, "true", gotFields["trainer"])
}

func TestUploadActivity_GeneratesExternalID(t *testing.T) {
	var gotFields map[string]string
	client := &mockClient{
		postFunc: func(fields map[string]string, fileName string, file []byte) ([]byte, error) {
			gotFields = fields
			return []byte(`{"id":99,"status":""}`), nil
		},
	}
	svc := upload.NewService(client, activity.NewService(client))

	info := model.UploadInfo{SourceFilePath: writeTempFit(t), Format: model.DataFormatFit}
	_, err := svc.UploadActivity(context.Background(), 42, info)
	require.NoError(t, err)
	assert.NotEmpty(t, gotFields["external_id"])
}

func TestUploadActivity_RejectsUnknownFormat(t *testing.T) {
	svc := upload.NewService(&mockClient{}, activity.NewService(&mockClient{}))

	info := model.UploadInfo{SourceFilePath: writeTempFit(t), Format: "csv"}
	_, err := svc.UploadActivity(context.Background(), 42, info)
	assert.Error(t, err)
}

func TestUploadAndWait_PollsUntilReadyThenUpdates(t *testing.T) {
	client := &mockClient{
		postFunc: func(fields map[string]string, fileName string, file []byte) ([]byte, error) {
			return []byte(`{"id":99,"status":"Your activity is still being processed."}`), nil
		},
		getQueue: [][]byte{
			[]byte(`{"id":99,"status":"Your activity is still being processed."}`),
			[]byte(`{"id":99,"status":"Your activity is ready.","activity_id":555}`),
		},
	}
	svc := upload.NewService(client, activity.NewService(client))
	svc.SetSleepForTest(func(ctx context.Context, d time.Duration) error { return nil })

	info := model.UploadInfo{
		SourceFilePath:   writeTempFit(t),
		Format:           model.DataFormatFit,
		GearID:           "b12",
		SuppressFromFeed: true,
	}
	status, err := svc.UploadAndWait(context.Background(), 42, info, 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, status.ActivityID)
	assert.Equal(t, int64(555), *status.ActivityID)

	// the post-upload update carried the fields the upload itself can't
	require.True(t, client.putCalled)
	assert.Equal(t, "b12", client.putForm.Get("gear_id"))
	assert.Equal(t, "true", client.putForm.Get("hide_from_home"))
}

func TestUploadAndWait_UploadError(t *testing.T) {
	client := &mockClient{
		postFunc: func(fields map[string]string, fileName string, file []byte) ([]byte, error) {
			return []byte(`{"id":99,"status":"There was an error processing your activity.","error":"malformed file"}`), nil
		},
	}
	svc := upload.NewService(client, activity.NewService(client))
	svc.SetSleepForTest(func(ctx context.Context, d time.Duration) error { return nil })

	info := model.UploadInfo{SourceFilePath: writeTempFit(t), Format: model.DataFormatFit}
	_, err := svc.UploadAndWait(context.Background(), 42, info, 10*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed file")
}

func TestUploadAndWait_ReadyWithoutActivityID(t *testing.T) {
	client := &mockClient{
		postFunc: func(fields map[string]string, fileName string, file []byte) ([]byte, error) {
			return []byte(`{"id":99,"status":"done"}`), nil
		},
	}
	svc := upload.NewService(client, activity.NewService(client))
	svc.SetSleepForTest(func(ctx context.Context, d time.Duration) error { return nil })

	info := model.UploadInfo{SourceFilePath: writeTempFit(t), Format: model.DataFormatFit}
	_, err := svc.UploadAndWait(context.Background(), 42, info, 10*time.Second)
	assert.Error(t, err)
}
