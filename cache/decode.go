package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// SnapshotOf converts an entry into a key/value mapping. It prefers the body
// and falls back to the in-process value.
func SnapshotOf(e *Entry) (map[string]any, error) {
	data := e.Body
	if len(data) == 0 && e.Value != nil {
		b, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
		}
		data = b
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, ErrNoSnapshot
	}
	return m, nil
}

// DecodeSnapshot decodes a generic mapping into T using json field tags.
func DecodeSnapshot[T any](m map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(m); err != nil {
		return out, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}
