package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type activity struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance,omitempty"`
	Start    time.Time `json:"start_date"`
	Tags     []string  `json:"tags"`
}

func TestDecodeSnapshot(t *testing.T) {
	m, err := SnapshotOf(&Entry{Body: []byte(`{
		"id": 42,
		"name": "Morning Run",
		"distance": 5000.5,
		"start_date": "2024-06-01T07:00:00Z",
		"tags": ["easy"],
		"extra": true
	}`)})
	require.NoError(t, err)

	a, err := DecodeSnapshot[activity](m)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, "Morning Run", a.Name)
	assert.Equal(t, 5000.5, a.Distance)
	assert.True(t, a.Start.Equal(time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"easy"}, a.Tags)
}

func TestDecodeSnapshotMismatch(t *testing.T) {
	_, err := DecodeSnapshot[activity](map[string]any{"id": []any{"not", "a", "number"}})
	assert.Error(t, err)
}

func TestSnapshotOf(t *testing.T) {
	_, err := SnapshotOf(&Entry{Body: []byte(`[1,2,3]`)})
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = SnapshotOf(&Entry{})
	assert.ErrorIs(t, err, ErrNoSnapshot)

	m, err := SnapshotOf(&Entry{Value: map[string]int{"n": 1}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, m["n"])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "https___api.example.com_users_7___abc.json", FileName("https://api.example.com/users/7 | abc"))
	assert.Regexp(t, `^hash_[0-9a-f]{32}\.json$`, FileName(string(make([]byte, 201))))
}
