package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// NoParams is the parameter type of descriptors that take none.
type NoParams struct{}

// None is the only NoParams value.
var None = NoParams{}

// Encode serializes parameters canonically: the same logical value always
// yields the same bytes. Object keys are sorted at every depth and numbers
// are kept exactly as the value encoded them.
func Encode(params any) ([]byte, error) {
	v, err := canonical(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func canonical(params any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize parameters: %w", err)
	}
	return v, nil
}

// QueryValues flattens parameters into a query string for methods without a
// body. Parameters must encode to a JSON object (or null); nested values are
// sent as their canonical JSON text.
func QueryValues(params any) (url.Values, error) {
	v, err := canonical(params)
	if err != nil {
		return nil, err
	}
	vals := url.Values{}
	switch m := v.(type) {
	case nil:
		return vals, nil
	case map[string]any:
		for k, x := range m {
			if arr, ok := x.([]any); ok {
				for _, item := range arr {
					s, err := scalarString(item)
					if err != nil {
						return nil, err
					}
					vals.Add(k, s)
				}
				continue
			}
			if x == nil {
				continue
			}
			s, err := scalarString(x)
			if err != nil {
				return nil, err
			}
			vals.Set(k, s)
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("query parameters must encode to an object, got %T", v)
	}
}

func scalarString(x any) (string, error) {
	switch x := x.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
