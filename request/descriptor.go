package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/briangreenhill/requestkit/queue"
)

// Descriptor is the static contract of one kind of request with parameters P
// and a decoded result T. Only the method, host and decoder are required;
// the rest is declared by implementing the optional describer interfaces
// below, and read through the free functions of this package.
type Descriptor[P, T any] interface {
	Method() Method
	Host() string
	Decode(data []byte) (T, error)
}

// SchemeDescriber overrides the default "https" scheme.
type SchemeDescriber interface {
	Scheme() string
}

// PortDescriber sets an explicit port. Zero means none.
type PortDescriber interface {
	Port() int
}

// PathDescriber builds the URL path from parameters.
type PathDescriber[P any] interface {
	Path(params P) string
}

// HeaderDescriber builds request headers from parameters.
type HeaderDescriber[P any] interface {
	Headers(params P) map[string]string
}

// CacheDescriber opts a descriptor into caching.
type CacheDescriber interface {
	CachePolicy() CachePolicy
}

// QueueDescriber assigns the descriptor's transport tasks to a queue.
type QueueDescriber interface {
	Queue() queue.Policy
}

// DefaultScheme is used when a descriptor does not declare one.
const DefaultScheme = "https"

// Scheme returns the descriptor's scheme or DefaultScheme.
func Scheme(d any) string {
	if s, ok := d.(SchemeDescriber); ok && s.Scheme() != "" {
		return s.Scheme()
	}
	return DefaultScheme
}

// Port returns the declared port, or 0.
func Port(d any) int {
	if p, ok := d.(PortDescriber); ok {
		return p.Port()
	}
	return 0
}

// Path returns the declared path for params, or "".
func Path[P any](d any, params P) string {
	if p, ok := d.(PathDescriber[P]); ok {
		return p.Path(params)
	}
	return ""
}

// Headers returns the declared headers for params. It never returns nil.
func Headers[P any](d any, params P) map[string]string {
	if h, ok := d.(HeaderDescriber[P]); ok {
		if m := h.Headers(params); m != nil {
			return m
		}
	}
	return map[string]string{}
}

// Policy returns the declared cache policy and whether one was declared.
func Policy(d any) (CachePolicy, bool) {
	if c, ok := d.(CacheDescriber); ok {
		return c.CachePolicy(), true
	}
	return CachePolicy{}, false
}

// ExpiryOf resolves the declared policy. Descriptors without a policy get
// NoExpiryTracking.
func ExpiryOf(d any) (Expiry, error) {
	p, ok := Policy(d)
	if !ok {
		return NoExpiryTracking, nil
	}
	return Resolve(p)
}

// QueueOf returns the declared queue, or queue.Default.
func QueueOf(d any) queue.Policy {
	if q, ok := d.(QueueDescriber); ok {
		return q.Queue()
	}
	return queue.Default
}

// URL assembles scheme, host, port and path. The query string is left to
// the transport, which derives it from parameters.
func URL[P any](d any, params P) (*url.URL, error) {
	var host string
	if h, ok := d.(interface{ Host() string }); ok {
		host = h.Host()
	}
	if host == "" {
		return nil, errors.New("descriptor has no host")
	}
	if port := Port(d); port > 0 {
		host = host + ":" + strconv.Itoa(port)
	}
	p := Path(d, params)
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := &url.URL{Scheme: Scheme(d), Host: host, Path: p}
	if _, err := url.Parse(u.String()); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	return u, nil
}

// Validate checks the static parts of a descriptor: a supported method, a
// host and a resolvable cache policy.
func Validate(d any) error {
	type methodHost interface {
		Method() Method
		Host() string
	}
	mh, ok := d.(methodHost)
	if !ok {
		return fmt.Errorf("%T is not a request descriptor", d)
	}
	if !mh.Method().Valid() {
		return fmt.Errorf("unsupported method %q", mh.Method())
	}
	if mh.Host() == "" {
		return errors.New("descriptor has no host")
	}
	_, err := ExpiryOf(d)
	return err
}

// JSONDecoder decodes JSON responses into T. Embed it in a descriptor to
// satisfy Decode.
type JSONDecoder[T any] struct{}

func (JSONDecoder[T]) Decode(data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}

// RawDecoder keeps the response body as raw JSON.
type RawDecoder struct{}

func (RawDecoder) Decode(data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, errors.New("response is not valid JSON")
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out, nil
}
