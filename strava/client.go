package strava

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/briangreenhill/requestkit/dispatch"
	"github.com/briangreenhill/requestkit/request"
)

const APIBase = "https://www.strava.com/api/v3"

// ErrNoRun is returned by LatestRun when no recent activity is a run.
var ErrNoRun = errors.New("no recent run activity found")

// Client fetches Strava resources through a coordinator. The coordinator's
// engine is expected to authorize requests, e.g. with
// transport.WithTokenSource.
type Client struct {
	coord *dispatch.Coordinator

	activities *Activities
	activity   *ActivityByID
	laps       *Laps
	streams    *StreamsByID
}

type Option func(*api)

func WithBaseURL(raw string) Option {
	return func(a *api) {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			u.Path = strings.TrimSuffix(u.Path, "/")
			a.base = u
		}
	}
}

// WithCachePolicy overrides the default of one day.
func WithCachePolicy(p request.CachePolicy) Option {
	return func(a *api) { a.policy = p }
}

func New(coord *dispatch.Coordinator, opts ...Option) (*Client, error) {
	if coord == nil {
		return nil, errors.New("coordinator required")
	}
	u, _ := url.Parse(APIBase)
	a := &api{base: u, policy: request.Timed(1, 0, 0)}
	for _, o := range opts {
		o(a)
	}
	c := &Client{
		coord:      coord,
		activities: &Activities{api: a},
		activity:   &ActivityByID{api: a},
		laps:       &Laps{api: a},
		streams:    &StreamsByID{api: a},
	}
	if err := request.Validate(c.activity); err != nil {
		return nil, err
	}
	return c, nil
}

// ListActivities returns the most recent activities, newest first.
func (c *Client) ListActivities(ctx context.Context, perPage int, opts ...dispatch.Option) ([]Activity, error) {
	if perPage <= 0 {
		perPage = 10
	}
	return dispatch.Get(ctx, c.coord, c.activities, ListParams{PerPage: perPage}, opts...)
}

// LatestRun returns the newest run among the last ten activities.
func (c *Client) LatestRun(ctx context.Context, opts ...dispatch.Option) (*Activity, error) {
	acts, err := c.ListActivities(ctx, 10, opts...)
	if err != nil {
		return nil, err
	}
	for i := range acts {
		if acts[i].IsRun() {
			return &acts[i], nil
		}
	}
	return nil, ErrNoRun
}

func (c *Client) GetActivity(ctx context.Context, id int64, opts ...dispatch.Option) (*Activity, error) {
	a, err := dispatch.Get(ctx, c.coord, c.activity, ActivityParams{ID: id, IncludeAllEfforts: true}, opts...)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) GetLaps(ctx context.Context, id int64, opts ...dispatch.Option) ([]Lap, error) {
	return dispatch.Get(ctx, c.coord, c.laps, ActivityParams{ID: id}, opts...)
}

func (c *Client) GetStreams(ctx context.Context, id int64, opts ...dispatch.Option) (*Streams, error) {
	s, err := dispatch.Get(ctx, c.coord, c.streams, StreamParams{
		ID:        id,
		Keys:      "time,heartrate,velocity_smooth,distance,altitude",
		KeyByType: true,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ObserveActivity registers cb for the activity. A cached copy is delivered
// at once when fresh; the live result follows if a fetch was needed.
func ObserveActivity[S any](ctx context.Context, c *Client, id int64, sub *S, cb func(*S, dispatch.Update[Activity])) (dispatch.Token, error) {
	return dispatch.Observe(ctx, c.coord, c.activity, ActivityParams{ID: id, IncludeAllEfforts: true}, sub, cb)
}
