package hevy

import (
	"net/url"
	"strconv"

	"github.com/briangreenhill/requestkit/queue"
	"github.com/briangreenhill/requestkit/request"
)

// PageParams selects a page of workouts. Pages start at 1.
type PageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize,omitempty"`
}

// Workouts describes GET /v1/workouts. Responses are kept for an hour.
type Workouts struct {
	request.JSONDecoder[Page]

	base   *url.URL
	apiKey string
	policy request.CachePolicy
}

func (d *Workouts) Method() request.Method { return request.GET }
func (d *Workouts) Host() string           { return d.base.Hostname() }
func (d *Workouts) Scheme() string         { return d.base.Scheme }

func (d *Workouts) Port() int {
	p, _ := strconv.Atoi(d.base.Port())
	return p
}

func (d *Workouts) Path(PageParams) string { return d.base.Path + "/v1/workouts" }

func (d *Workouts) Headers(PageParams) map[string]string {
	return map[string]string{
		"api-key": d.apiKey,
		"Accept":  "application/json",
	}
}

func (d *Workouts) CachePolicy() request.CachePolicy { return d.policy }
func (d *Workouts) Queue() queue.Policy              { return queue.Named("hevy") }
