package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/activity"
	"github.com/strautils/strava/modules/api"
)

// Service uploads activity files and tracks their processing.
type Service interface {
	// UploadActivity posts the file and returns Strava's initial upload
	// status; processing continues server-side.
	UploadActivity(ctx context.Context, athleteID int64, info model.UploadInfo) (*model.UploadStatus, error)
	// CheckUpload polls the status of an earlier upload.
	CheckUpload(ctx context.Context, athleteID, uploadID int64) (*model.UploadStatus, error)
	// UploadAndWait uploads, polls once per second until the upload is ready
	// or maxWait elapses, then applies the fields that cannot be set at
	// upload time (gear, trainer flag, feed suppression) as an update.
	UploadAndWait(ctx context.Context, athleteID int64, info model.UploadInfo, maxWait time.Duration) (*model.UploadStatus, error)
	SetSleepForTest(sleep func(ctx context.Context, d time.Duration) error)
}

type service struct {
	client     api.Client
	activities activity.Service
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewService constructs a Service. The activity service applies the
// post-upload update in UploadAndWait.
func NewService(client api.Client, activities activity.Service) Service {
	return &service{
		client:     client,
		activities: activities,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) UploadActivity(ctx context.Context, athleteID int64, info model.UploadInfo) (*model.UploadStatus, error) {
	switch info.Format {
	case model.DataFormatFit, model.DataFormatFitGZipped,
		model.DataFormatGpx, model.DataFormatGpxGZipped,
		model.DataFormatTcx, model.DataFormatTcxGZipped:
	default:
		return nil, fmt.Errorf("unsupported source data format %q", info.Format)
	}

	file, err := os.ReadFile(info.SourceFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity file: %w", err)
	}

	externalID := info.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	fields := map[string]string{
		"data_type":   string(info.Format),
		"name":        info.Name,
		"description": info.Description,
		"external_id": externalID,
		"private":     strconv.FormatBool(info.Private),
		"trainer":     strconv.FormatBool(info.Trainer),
		"commute":     strconv.FormatBool(info.Commute),
	}
	if info.SportType != "" {
		fields["sport_type"] = string(info.SportType)
	}
	if info.DeviceName != "" {
		fields["device_name"] = info.DeviceName
	}
	if info.WorkoutType != nil {
		fields["workout_type"] = strconv.Itoa(int(*info.WorkoutType))
	}

	fileName := filepath.Base(info.SourceFilePath)

	data, err := s.client.PostMultipart(ctx, "uploads", athleteID, fields, fileName, file)
	if err != nil {
		return nil, fmt.Errorf("activity upload failed: %w", err)
	}

	var status model.UploadStatus
	if err := model.JSONUnmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode upload status: %w", err)
	}
	return &status, nil
}

func (s *service) CheckUpload(ctx context.Context, athleteID, uploadID int64) (*model.UploadStatus, error) {
	endpoint := fmt.Sprintf("uploads/%d", uploadID)
	data, err := s.client.GetBytes(ctx, endpoint, athleteID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check upload %d: %w", uploadID, err)
	}
	// Upload status changes as Strava processes; never serve it stale.
	s.client.RemoveCacheEntry(athleteID, endpoint, nil)

	var status model.UploadStatus
	if err := model.JSONUnmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode upload status: %w", err)
	}
	return &status, nil
}

func (s *service) UploadAndWait(ctx context.Context, athleteID int64, info model.UploadInfo, maxWait time.Duration) (*model.UploadStatus, error) {
	status, err := s.UploadActivity(ctx, athleteID, info)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(maxWait)
	for status.State() == model.UploadStateProcessing && status.Error == "" && time.Now().Before(deadline) {
		if err := s.sleep(ctx, time.Second); err != nil {
			return nil, err
		}
		status, err = s.CheckUpload(ctx, athleteID, status.ID)
		if err != nil {
			return nil, err
		}
	}

	switch status.State() {
	case model.UploadStateDeleted:
		return nil, fmt.Errorf("upload indicates the activity is deleted: %s", status.Error)
	case model.UploadStateError:
		return nil, fmt.Errorf("upload errored: %s", status.Error)
	case model.UploadStateProcessing:
		return nil, fmt.Errorf("upload still processing after %s", maxWait)
	}

	if status.ActivityID == nil {
		return nil, fmt.Errorf("upload status is ready but no activity id was returned")
	}

	// Some fields can't be provided in the initial upload; send them as an
	// update against the created activity.
	update := model.ActivityUpdate{
		ActivityID:        *status.ActivityID,
		GearID:            info.GearID,
		DeviceName:        info.DeviceName,
		WorkoutType:       info.WorkoutType,
		PerceivedExertion: info.PerceivedExertion,
		SuppressFromFeed:  info.SuppressFromFeed,
	}
	if info.Trainer {
		trainer := true
		update.Trainer = &trainer
	}
	if info.Private {
		private := true
		update.Private = &private
	}
	if _, err := s.activities.UpdateActivity(ctx, athleteID, update); err != nil {
		return nil, fmt.Errorf("upload succeeded but post-upload update failed: %w", err)
	}

	return status, nil
}

// SetSleepForTest replaces the poll delay.
func (s *service) SetSleepForTest(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}
