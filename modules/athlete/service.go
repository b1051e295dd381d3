package athlete

import (
	"context"
	"fmt"

	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/api"
)

// Service retrieves athlete profile data.
type Service interface {
	// GetAuthenticatedAthlete fetches the detailed profile of the athlete
	// the credential belongs to.
	GetAuthenticatedAthlete(ctx context.Context, athleteID int64) (*model.Athlete, error)
}

type service struct {
	client api.Client
}

// NewService constructs a Service.
func NewService(client api.Client) Service {
	return &service{client: client}
}

func (s *service) GetAuthenticatedAthlete(ctx context.Context, athleteID int64) (*model.Athlete, error) {
	var athlete model.Athlete
	if err := s.client.GetJSON(ctx, "athlete", athleteID, &athlete, nil); err != nil {
		return nil, fmt.Errorf("failed to get authenticated athlete: %w", err)
	}
	if athlete.ID == 0 {
		return nil, fmt.Errorf("athlete call succeeded but result has no id")
	}
	return &athlete, nil
}
