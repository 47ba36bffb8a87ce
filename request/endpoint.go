package request

import (
	"encoding/json"
	"strings"

	"github.com/briangreenhill/requestkit/queue"
)

// Endpoint is a descriptor assembled at runtime, typically from a Catalog.
// Its parameters are a plain JSON object and its result is the raw response.
// Path and header values may reference parameters as {name}.
type Endpoint struct {
	Name        string            `yaml:"-"`
	HTTPMethod  Method            `yaml:"method"`
	HTTPScheme  string            `yaml:"scheme,omitempty"`
	HostName    string            `yaml:"host"`
	HTTPPort    int               `yaml:"port,omitempty"`
	PathPattern string            `yaml:"path,omitempty"`
	Header      map[string]string `yaml:"headers,omitempty"`
	Cache       *PolicySpec       `yaml:"cache,omitempty"`
	QueueName   string            `yaml:"queue,omitempty"`

	RawDecoder `yaml:"-"`
}

// Params are the parameters of an Endpoint.
type Params = map[string]any

var (
	_ Descriptor[Params, json.RawMessage] = (*Endpoint)(nil)
	_ PathDescriber[Params]               = (*Endpoint)(nil)
	_ HeaderDescriber[Params]             = (*Endpoint)(nil)
	_ CacheDescriber                      = (*Endpoint)(nil)
)

func (e *Endpoint) Method() Method { return e.HTTPMethod }
func (e *Endpoint) Host() string   { return e.HostName }
func (e *Endpoint) Scheme() string { return e.HTTPScheme }
func (e *Endpoint) Port() int      { return e.HTTPPort }

func (e *Endpoint) Path(params Params) string {
	return expand(e.PathPattern, params)
}

func (e *Endpoint) Headers(params Params) map[string]string {
	out := make(map[string]string, len(e.Header))
	for k, v := range e.Header {
		out[k] = expand(v, params)
	}
	return out
}

// CachePolicy returns Never when the endpoint declares no cache block.
func (e *Endpoint) CachePolicy() CachePolicy {
	if e.Cache == nil {
		return Never()
	}
	return e.Cache.Policy()
}

func (e *Endpoint) Queue() queue.Policy {
	return queue.Parse(e.QueueName)
}

// PathParams returns the parameter names referenced by the path pattern.
// Callers use it to keep those names out of the query string.
func (e *Endpoint) PathParams() []string {
	var names []string
	s := e.PathPattern
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return names
		}
		names = append(names, s[i+1:i+j])
		s = s[i+j+1:]
	}
}

func expand(pattern string, params Params) string {
	if !strings.Contains(pattern, "{") {
		return pattern
	}
	pairs := make([]string, 0, 2*len(params))
	for k, v := range params {
		s, err := scalarString(v)
		if err != nil {
			continue
		}
		pairs = append(pairs, "{"+k+"}", s)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}

// PolicySpec is the YAML form of a CachePolicy:
//
//	cache: {kind: timed, days: 1}
type PolicySpec struct {
	Kind    string `yaml:"kind"`
	Days    int    `yaml:"days,omitempty"`
	Hours   int    `yaml:"hours,omitempty"`
	Minutes int    `yaml:"minutes,omitempty"`
}

// Policy converts the spec. Unknown kinds map to an invalid policy so that
// Resolve reports them.
func (s *PolicySpec) Policy() CachePolicy {
	switch strings.ToLower(s.Kind) {
	case "", "never":
		return Never()
	case "forever":
		return Forever()
	case "timed":
		return Timed(s.Days, s.Hours, s.Minutes)
	}
	return CachePolicy{kind: policyKind(-1)}
}
