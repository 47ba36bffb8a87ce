package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct{ name string }

func (s *stubPlugin) Name() string { return s.name }

func (s *stubPlugin) GetLatest(context.Context) (string, error) {
	return "latest from " + s.name, nil
}

func (s *stubPlugin) Get(_ context.Context, id string) (string, error) {
	return id + " from " + s.name, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.List())

	r.Register(&stubPlugin{name: "strava"})
	r.Register(&stubPlugin{name: "hevy"})
	assert.Equal(t, []string{"hevy", "strava"}, r.List())

	p, err := r.Lookup("hevy")
	require.NoError(t, err)
	out, err := p.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42 from hevy", out)

	_, err = r.Lookup("garmin")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPlugin{name: "hevy"})
	r.Register(&stubPlugin{name: "hevy"})
	assert.Len(t, r.List(), 1)
}
