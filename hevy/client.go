package hevy

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/briangreenhill/requestkit/dispatch"
	"github.com/briangreenhill/requestkit/request"
)

const DefaultBaseURL = "https://api.hevyapp.com"

// ErrNoWorkouts is returned by LatestWorkout when the account has none.
var ErrNoWorkouts = errors.New("no workouts")

type Client struct {
	coord    *dispatch.Coordinator
	workouts *Workouts
}

type Option func(*Workouts)

func WithBaseURL(raw string) Option {
	return func(d *Workouts) {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			u.Path = strings.TrimSuffix(u.Path, "/")
			d.base = u
		}
	}
}

func WithCachePolicy(p request.CachePolicy) Option {
	return func(d *Workouts) { d.policy = p }
}

func New(coord *dispatch.Coordinator, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("apiKey required")
	}
	if coord == nil {
		return nil, errors.New("coordinator required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	d := &Workouts{base: u, apiKey: apiKey, policy: request.Timed(0, 1, 0)}
	for _, o := range opts {
		o(d)
	}
	if err := request.Validate(d); err != nil {
		return nil, err
	}
	return &Client{coord: coord, workouts: d}, nil
}

// Descriptor exposes the workouts descriptor for callers that observe it.
func (c *Client) Descriptor() *Workouts { return c.workouts }

// GetWorkouts returns a page of workouts (page starts at 1).
func (c *Client) GetWorkouts(ctx context.Context, page int, opts ...dispatch.Option) (Page, error) {
	if page <= 0 {
		page = 1
	}
	return dispatch.Get(ctx, c.coord, c.workouts, PageParams{Page: page}, opts...)
}

// LatestWorkout returns the first workout from page 1.
func (c *Client) LatestWorkout(ctx context.Context, opts ...dispatch.Option) (*Workout, error) {
	b, err := c.GetWorkouts(ctx, 1, opts...)
	if err != nil {
		return nil, err
	}
	if len(b.Workouts) == 0 {
		return nil, ErrNoWorkouts
	}
	return &b.Workouts[0], nil
}
