package hevy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briangreenhill/requestkit/plugins"
)

// Plugin renders Hevy workouts for the CLI.
type Plugin struct {
	client *Client
}

func NewPlugin(client *Client) *Plugin {
	return &Plugin{client: client}
}

func (p *Plugin) Name() string { return "hevy" }

func (p *Plugin) GetLatest(ctx context.Context) (string, error) {
	w, err := p.client.LatestWorkout(ctx)
	if err != nil {
		return "", fmt.Errorf("latest hevy workout: %w", err)
	}
	return FormatWorkout(w), nil
}

// Get looks the workout up on the first page; the API has no by-ID call.
func (p *Plugin) Get(ctx context.Context, id string) (string, error) {
	page, err := p.client.GetWorkouts(ctx, 1)
	if err != nil {
		return "", err
	}
	for i := range page.Workouts {
		if page.Workouts[i].ID == id {
			return FormatWorkout(&page.Workouts[i]), nil
		}
	}
	return "", fmt.Errorf("workout %s: %w", id, plugins.ErrUnsupported)
}

func FormatWorkout(w *Workout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", w.Title)

	start, _ := time.Parse(time.RFC3339, w.StartTime)
	end, _ := time.Parse(time.RFC3339, w.EndTime)
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(end.Sub(start)))

	b.WriteString("Exercises:\n")
	for _, ex := range w.Exercises {
		fmt.Fprintf(&b, "- %s\n", ex.Title)
		for _, s := range ex.Sets {
			switch {
			case s.Reps != nil && s.WeightKG != nil:
				fmt.Fprintf(&b, "  set %d: %d reps @ %.1f kg\n", s.Index+1, *s.Reps, *s.WeightKG)
			case s.DurationSeconds != nil:
				fmt.Fprintf(&b, "  set %d: %ds\n", s.Index+1, *s.DurationSeconds)
			default:
				fmt.Fprintf(&b, "  set %d: (%s)\n", s.Index+1, s.Type)
			}
		}
	}

	kg, reps := w.Volume()
	fmt.Fprintf(&b, "Total Volume: %.1f kg\n", kg)
	fmt.Fprintf(&b, "Total Reps: %d\n", reps)
	return b.String()
}

// formatDuration renders d as H:MM.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d.Minutes())
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

var _ plugins.Plugin = (*Plugin)(nil)
