package strava

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
)

// ListParams pages through the athlete's activities.
type ListParams struct {
	PerPage int `json:"per_page"`
	Page    int `json:"page,omitempty"`
}

// ActivityParams addresses one activity. ID goes into the path.
type ActivityParams struct {
	ID                int64 `json:"id"`
	IncludeAllEfforts bool  `json:"include_all_efforts,omitempty"`
}

// api carries what every Strava descriptor shares.
type api struct {
	base   *url.URL
	policy request.CachePolicy
}

func (a *api) Method() request.Method           { return request.GET }
func (a *api) Host() string                     { return a.base.Hostname() }
func (a *api) Scheme() string                   { return a.base.Scheme }
func (a *api) CachePolicy() request.CachePolicy { return a.policy }
func (a *api) Queue() queue.Policy              { return queue.Named("strava") }

func (a *api) Port() int {
	p, _ := strconv.Atoi(a.base.Port())
	return p
}

func (a *api) path(rel string) string { return a.base.Path + rel }

// Activities describes GET /athlete/activities.
type Activities struct {
	*api
	request.JSONDecoder[[]Activity]
}

func (d *Activities) Path(ListParams) string { return d.path("/athlete/activities") }

// ActivityByID describes GET /activities/{id}.
type ActivityByID struct {
	*api
	request.JSONDecoder[Activity]
}

func (d *ActivityByID) Path(p ActivityParams) string {
	return d.path("/activities/" + strconv.FormatInt(p.ID, 10))
}

func (d *ActivityByID) PathParams() []string { return []string{"id"} }

// Laps describes GET /activities/{id}/laps.
type Laps struct {
	*api
	request.JSONDecoder[[]Lap]
}

func (d *Laps) Path(p ActivityParams) string {
	return d.path("/activities/" + strconv.FormatInt(p.ID, 10) + "/laps")
}

func (d *Laps) PathParams() []string { return []string{"id"} }

// StreamParams selects the series to fetch, keyed by type.
type StreamParams struct {
	ID        int64  `json:"id"`
	Keys      string `json:"keys"`
	KeyByType bool   `json:"key_by_type"`
}

// StreamsByID describes GET /activities/{id}/streams with key_by_type.
type StreamsByID struct {
	*api
}

func (d *StreamsByID) Path(p StreamParams) string {
	return d.path("/activities/" + strconv.FormatInt(p.ID, 10) + "/streams")
}

func (d *StreamsByID) PathParams() []string { return []string{"id"} }

func (d *StreamsByID) Decode(data []byte) (Streams, error) {
	var raw map[string]Stream
	if err := json.Unmarshal(data, &raw); err != nil {
		return Streams{}, err
	}
	return Streams{
		Time:           raw["time"],
		Heartrate:      raw["heartrate"],
		VelocitySmooth: raw["velocity_smooth"],
		Distance:       raw["distance"],
		Altitude:       raw["altitude"],
	}, nil
}
