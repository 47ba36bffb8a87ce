package strava

// Split is one metric split of an activity.
type Split struct {
	Split               int     `json:"split"`
	Distance            float64 `json:"distance"`     // meters
	ElapsedTime         int     `json:"elapsed_time"` // sec
	MovingTime          int64   `json:"moving_time"`  // sec
	AverageSpeed        float64 `json:"average_speed"`
	ElevationDifference float64 `json:"elevation_difference"`
	PaceZone            int     `json:"pace_zone"`
}

type Lap struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	LapIndex         int     `json:"lap_index"` // 1-based
	ElapsedTime      int     `json:"elapsed_time"`
	MovingTime       int64   `json:"moving_time"`
	Distance         float64 `json:"distance"`
	AverageSpeed     float64 `json:"average_speed"`
	MaxSpeed         float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"` // 0 when not recorded
	MaxHeartrate     float64 `json:"max_heartrate"`
	ElevationGain    float64 `json:"total_elevation_gain"`
	StartIndex       int     `json:"start_index"`
	EndIndex         int     `json:"end_index"`
}

type Activity struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	SportType          string  `json:"sport_type"`
	MovingTime         int64   `json:"moving_time"`
	Distance           float64 `json:"distance"`
	AverageSpeed       float64 `json:"average_speed"`
	AverageHeartRate   float64 `json:"average_heartrate"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	StartDateLocal     string  `json:"start_date_local"`

	SplitsMetric []Split `json:"splits_metric"`
}

// IsRun reports whether the activity is a road or trail run.
func (a *Activity) IsRun() bool {
	return a.SportType == "Run" || a.SportType == "TrailRun"
}

type Stream struct {
	Data []float64 `json:"data"`
}

// Streams holds the per-second series of one activity.
type Streams struct {
	Time           Stream `json:"time"`
	Heartrate      Stream `json:"heartrate"`
	VelocitySmooth Stream `json:"velocity_smooth"`
	Distance       Stream `json:"distance"`
	Altitude       Stream `json:"altitude"`
}
