package strava

import (
	"context"
	"fmt"
	"strconv"

	"github.com/briangreenhill/requestkit/plugins"
)

// Plugin renders Strava runs for the CLI.
type Plugin struct {
	client *Client
}

func NewPlugin(client *Client) *Plugin {
	return &Plugin{client: client}
}

func (p *Plugin) Name() string { return "strava" }

func (p *Plugin) GetLatest(ctx context.Context) (string, error) {
	a, err := p.client.LatestRun(ctx)
	if err != nil {
		return "", fmt.Errorf("latest strava run: %w", err)
	}
	return p.render(ctx, a.ID)
}

func (p *Plugin) Get(ctx context.Context, id string) (string, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid activity id %q", id)
	}
	return p.render(ctx, n)
}

func (p *Plugin) render(ctx context.Context, id int64) (string, error) {
	a, err := p.client.GetActivity(ctx, id)
	if err != nil {
		return "", err
	}
	laps, err := p.client.GetLaps(ctx, id)
	if err != nil {
		return "", err
	}
	return FormatActivity(a, laps), nil
}

var _ plugins.Plugin = (*Plugin)(nil)
