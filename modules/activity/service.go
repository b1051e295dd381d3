package activity

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/api"
)

const (
	// MaxPageSize is Strava's cap on activities per page.
	MaxPageSize = 200
)

// Service retrieves and manipulates activities.
type Service interface {
	GetActivity(ctx context.Context, athleteID, activityID int64) (*model.Activity, error)
	// ListActivities pages through the athlete's activities. perPage is
	// 1..200; the first page is 1.
	ListActivities(ctx context.Context, athleteID int64, perPage, page int) ([]model.Activity, error)
	UpdateActivity(ctx context.Context, athleteID int64, update model.ActivityUpdate) (*model.Activity, error)
	DeleteActivity(ctx context.Context, athleteID, activityID int64) error
}

type service struct {
	client api.Client
}

// NewService constructs a Service.
func NewService(client api.Client) Service {
	return &service{client: client}
}

func (s *service) GetActivity(ctx context.Context, athleteID, activityID int64) (*model.Activity, error) {
	endpoint := fmt.Sprintf("activities/%d", activityID)
	var act model.Activity
	if err := s.client.GetJSON(ctx, endpoint, athleteID, &act, nil); err != nil {
		return nil, fmt.Errorf("failed to get activity %d: %w", activityID, err)
	}
	return &act, nil
}

func (s *service) ListActivities(ctx context.Context, athleteID int64, perPage, page int) ([]model.Activity, error) {
	if perPage < 1 || perPage > MaxPageSize {
		return nil, fmt.Errorf("perPage must be between 1 and %d, got %d", MaxPageSize, perPage)
	}
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}

	params := map[string]string{
		"per_page": strconv.Itoa(perPage),
		"page":     strconv.Itoa(page),
	}
	var activities []model.Activity
	if err := s.client.GetJSON(ctx, "activities", athleteID, &activities, params); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *service) UpdateActivity(ctx context.Context, athleteID int64, update model.ActivityUpdate) (*model.Activity, error) {
	if update.ActivityID == 0 {
		return nil, fmt.Errorf("activity id is required for update")
	}

	form := buildUpdateForm(update)
	endpoint := fmt.Sprintf("activities/%d", update.ActivityID)

	data, err := s.client.PutForm(ctx, endpoint, athleteID, form)
	if err != nil {
		return nil, fmt.Errorf("failed to update activity %d: %w", update.ActivityID, err)
	}

	var act model.Activity
	if err := model.JSONUnmarshal(data, &act); err != nil {
		return nil, fmt.Errorf("failed to decode updated activity: %w", err)
	}

	// The cached GET is stale now.
	s.client.RemoveCacheEntry(athleteID, endpoint, nil)

	return &act, nil
}

func (s *service) DeleteActivity(ctx context.Context, athleteID, activityID int64) error {
	endpoint := fmt.Sprintf("activities/%d", activityID)
	if _, err := s.client.Delete(ctx, endpoint, athleteID); err != nil {
		return fmt.Errorf("failed to delete activity %d: %w", activityID, err)
	}
	s.client.RemoveCacheEntry(athleteID, endpoint, nil)
	return nil
}

// buildUpdateForm includes only the fields the caller set. hide_from_home is
// special: Strava suppresses the activity whenever the field appears in the
// request, whatever its value, so it is sent only when suppressing.
func buildUpdateForm(update model.ActivityUpdate) url.Values {
	form := url.Values{}
	if update.Name != "" {
		form.Set("name", update.Name)
	}
	if update.Description != "" {
		form.Set("description", update.Description)
	}
	if update.SportType != nil {
		form.Set("sport_type", string(*update.SportType))
	}
	if update.GearID != "" {
		form.Set("gear_id", update.GearID)
	}
	if update.DeviceName != "" {
		form.Set("device_name", update.DeviceName)
	}
	if update.Trainer != nil {
		form.Set("trainer", strconv.FormatBool(*update.Trainer))
	}
	if update.Commute != nil {
		form.Set("commute", strconv.FormatBool(*update.Commute))
	}
	if update.WorkoutType != nil {
		form.Set("workout_type", strconv.Itoa(int(*update.WorkoutType)))
	}
	if update.PerceivedExertion != nil {
		form.Set("perceived_exertion", strconv.Itoa(*update.PerceivedExertion))
	}
	if update.SuppressFromFeed {
		form.Set("hide_from_home", "true")
	}
	if update.Private != nil {
		form.Set("private", strconv.FormatBool(*update.Private))
	}
	return form
}
