package gear

import (
	"context"
	"fmt"
	"sort"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/api"
	"github.com/strautils/strava/modules/athlete"
)

// Service retrieves gear (bikes and shoes).
type Service interface {
	GetGear(ctx context.Context, athleteID int64, gearID string) (*model.Gear, error)
	// GetBikes fetches the detailed records for all bikes on the athlete's
	// profile, sorted by name.
	GetBikes(ctx context.Context, athleteID int64) ([]model.Gear, error)
	// GetShoes fetches the detailed records for all shoes on the athlete's
	// profile, sorted by name.
	GetShoes(ctx context.Context, athleteID int64) ([]model.Gear, error)
}

type service struct {
	client   api.Client
	athletes athlete.Service
}

// NewService constructs a Service. The athlete service supplies the gear ids
// on the profile; details come from the gear endpoint.
func NewService(client api.Client, athletes athlete.Service) Service {
	return &service{client: client, athletes: athletes}
}

func (s *service) GetGear(ctx context.Context, athleteID int64, gearID string) (*model.Gear, error) {
	if gearID == "" {
		return nil, fmt.Errorf("gear id is required")
	}
	var g model.Gear
	if err := s.client.GetJSON(ctx, "gear/"+gearID, athleteID, &g, nil); err != nil {
		return nil, fmt.Errorf("failed to get gear %s: %w", gearID, err)
	}
	return &g, nil
}

func (s *service) GetBikes(ctx context.Context, athleteID int64) ([]model.Gear, error) {
	profile, err := s.athletes.GetAuthenticatedAthlete(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return s.getDetailedGears(ctx, athleteID, profile.Bikes)
}

func (s *service) GetShoes(ctx context.Context, athleteID int64) ([]model.Gear, error) {
	profile, err := s.athletes.GetAuthenticatedAthlete(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return s.getDetailedGears(ctx, athleteID, profile.Shoes)
}

func (s *service) getDetailedGears(ctx context.Context, athleteID int64, summaries []model.Gear) ([]model.Gear, error) {
	gears := make([]model.Gear, 0, len(summaries))
	for _, summary := range summaries {
		detailed, err := s.GetGear(ctx, athleteID, summary.ID)
		if err != nil {
			return nil, err
		}
		gears = append(gears, *detailed)
	}
	sort.Slice(gears, func(i, j int) bool { return gears[i].Name < gears[j].Name })
	return gears, nil
}
