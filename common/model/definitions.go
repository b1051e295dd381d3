package model

import (
	"encoding/json"
	"time"
)

// JSONUnmarshal is a helper so callers don't import encoding/json everywhere.
func JSONUnmarshal(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

// ----------------------------------------------------------------------
// Athlete
// ----------------------------------------------------------------------

// MetaAthlete is the minimal athlete reference Strava embeds in other objects.
type MetaAthlete struct {
	ID int64 `json:"id"`
}

// Athlete is the detailed athlete profile from GET /athlete.
type Athlete struct {
	ID                       int64   `json:"id"`
	ResourceState            int     `json:"resource_state"`
	FirstName                string  `json:"firstname"`
	LastName                 string  `json:"lastname"`
	Sex                      string  `json:"sex"`
	City                     string  `json:"city"`
	State                    string  `json:"state"`
	Country                  string  `json:"country"`
	Weight                   float64 `json:"weight"`
	FollowerCount            int     `json:"follower_count"`
	FriendCount              int     `json:"friend_count"`
	DatePreference           string  `json:"date_preference"`
	MeasurementPreference    string  `json:"measurement_preference"`
	FunctionalThresholdPower *int    `json:"ftp"`
	ProfilePictureURL        string  `json:"profile"`
	Bikes                    []Gear  `json:"bikes"`
	Shoes                    []Gear  `json:"shoes"`
}

// ----------------------------------------------------------------------
// Activity
// ----------------------------------------------------------------------

// SportType is Strava's sport_type token, e.g. "Run", "Ride", "GravelRide".
type SportType string

const (
	SportTypeRide           SportType = "Ride"
	SportTypeRun            SportType = "Run"
	SportTypeSwim           SportType = "Swim"
	SportTypeWalk           SportType = "Walk"
	SportTypeHike           SportType = "Hike"
	SportTypeGravelRide     SportType = "GravelRide"
	SportTypeVirtualRide    SportType = "VirtualRide"
	SportTypeVirtualRun     SportType = "VirtualRun"
	SportTypeTrailRun       SportType = "TrailRun"
	SportTypeWorkout        SportType = "Workout"
	SportTypeWeightTraining SportType = "WeightTraining"
	SportTypeYoga           SportType = "Yoga"
)

// WorkoutType is Strava's numeric workout_type. 3 is the only documented value
// observed in the wild (run workout).
type WorkoutType int

const WorkoutTypeRunWorkout WorkoutType = 3

// Activity is a Strava activity, summary or detail depending on resource_state.
type Activity struct {
	ID                 int64       `json:"id"`
	ResourceState      int         `json:"resource_state"`
	ExternalID         string      `json:"external_id"`
	UploadID           *int64      `json:"upload_id"`
	Athlete            MetaAthlete `json:"athlete"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Distance           float64     `json:"distance"`
	MovingTimeSeconds  int         `json:"moving_time"`
	ElapsedSeconds     int         `json:"elapsed_time"`
	TotalElevationGain float64     `json:"total_elevation_gain"`
	ElevationHigh      float64     `json:"elev_high"`
	ElevationLow       float64     `json:"elev_low"`
	SportType          SportType   `json:"sport_type"`
	StartDate          time.Time   `json:"start_date"`
	StartDateLocal     time.Time   `json:"start_date_local"`
	Timezone           string      `json:"timezone"`
	StartLatLng        []float64   `json:"start_latlng"`
	EndLatLng          []float64   `json:"end_latlng"`
	AchievementCount   int         `json:"achievement_count"`
	KudosCount         int         `json:"kudos_count"`
	CommentCount       int         `json:"comment_count"`
	AthleteCount       int         `json:"athlete_count"`
	PhotoCount         int         `json:"photo_count"`
	TotalPhotoCount    int         `json:"total_photo_count"`
	Trainer            bool        `json:"trainer"`
	Commute            bool        `json:"commute"`
	Manual             bool        `json:"manual"`
	Private            bool        `json:"private"`
	Flagged            bool        `json:"flagged"`
	Muted              bool        `json:"hide_from_home"`
	GearID             string      `json:"gear_id"`
	Gear               *Gear       `json:"gear"`
	AverageSpeed       float64     `json:"average_speed"`
	MaxSpeed           float64     `json:"max_speed"`
	AverageWatts       float64     `json:"average_watts"`
	MaxWatts           int         `json:"max_watts"`
	WeightedAvgWatts   int         `json:"weighted_average_watts"`
	Kilojoules         float64     `json:"kilojoules"`
	DeviceWatts        bool        `json:"device_watts"`
	Calories           float64     `json:"calories"`
	DeviceName         string      `json:"device_name"`
	HasKudoed          bool        `json:"has_kudoed"`
}

// ActivityUpdate carries the fields to change on an activity. Nil/empty
// fields are omitted from the request entirely.
type ActivityUpdate struct {
	ActivityID  int64
	Name        string
	Description string
	SportType   *SportType
	GearID      string
	DeviceName  string
	Trainer     *bool
	Commute     *bool
	WorkoutType *WorkoutType
	// PerceivedExertion maps to perceived_exertion. Strava has been observed
	// to ignore it on updates.
	PerceivedExertion *int
	// SuppressFromFeed hides the activity from followers' feeds. Sending the
	// underlying hide_from_home field at all suppresses the activity no
	// matter its value, so it is only sent when true; an activity cannot be
	// un-suppressed through this client.
	SuppressFromFeed bool
	Private          *bool
}

// ----------------------------------------------------------------------
// Gear
// ----------------------------------------------------------------------

// Gear is a bike or pair of shoes. ResourceState 2 is summary, 3 is detail.
type Gear struct {
	ID             string  `json:"id"`
	ResourceState  int     `json:"resource_state"`
	Name           string  `json:"name"`
	NickName       string  `json:"nickname"`
	Brand          string  `json:"brand_name"`
	Model          string  `json:"model_name"`
	Description    string  `json:"description"`
	DistanceMeters float64 `json:"distance"`
	Retired        bool    `json:"retired"`
	Primary        bool    `json:"primary"`
}

// ----------------------------------------------------------------------
// Uploads
// ----------------------------------------------------------------------

// DataFormat is the file format of an activity upload.
type DataFormat string

const (
	DataFormatFit        DataFormat = "fit"
	DataFormatFitGZipped DataFormat = "fit.gz"
	DataFormatGpx        DataFormat = "gpx"
	DataFormatGpxGZipped DataFormat = "gpx.gz"
	DataFormatTcx        DataFormat = "tcx"
	DataFormatTcxGZipped DataFormat = "tcx.gz"
)

// UploadState is the interpreted state of an in-flight upload.
type UploadState int

const (
	UploadStateProcessing UploadState = iota
	UploadStateDeleted
	UploadStateError
	UploadStateReady
)

// UploadStatus is Strava's response to an upload or upload-status check.
type UploadStatus struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
	Status     string `json:"status"`
	ActivityID *int64 `json:"activity_id"`
}

// State interprets the status string. Strava sends back fixed sentences
// rather than an enum, so anything unrecognized counts as ready.
func (u UploadStatus) State() UploadState {
	switch u.Status {
	case "Your activity is still being processed.":
		return UploadStateProcessing
	case "The created activity has been deleted.":
		return UploadStateDeleted
	case "There was an error processing your activity.":
		return UploadStateError
	default:
		return UploadStateReady
	}
}

// UploadInfo describes an activity file upload.
type UploadInfo struct {
	SourceFilePath string
	Format         DataFormat
	Name           string
	Description    string
	// ExternalID identifies the upload to Strava. Left empty, the client
	// generates one.
	ExternalID        string
	SportType         SportType
	Private           bool
	Trainer           bool
	Commute           bool
	WorkoutType       *WorkoutType
	PerceivedExertion *int
	GearID            string
	DeviceName        string
	SuppressFromFeed  bool
}
