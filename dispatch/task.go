package dispatch

import (
	"fmt"
	"net/url"

	"github.com/briangreenhill/requestkit/request"
	"github.com/briangreenhill/requestkit/transport"
)

// pathParamer is implemented by descriptors whose path consumes some
// parameters; those are left out of the query string.
type pathParamer interface {
	PathParams() []string
}

// NewTask turns a descriptor and its parameters into a transport task.
// The task's identity is computed with g. An invalid cache policy is
// returned as a *request.PolicyError.
func NewTask[P, T any](g *request.Generator, d request.Descriptor[P, T], params P) (transport.Task, error) {
	expiry, err := request.ExpiryOf(d)
	if err != nil {
		return transport.Task{}, err
	}
	if !d.Method().Valid() {
		return transport.Task{}, fmt.Errorf("unsupported method %q", d.Method())
	}
	u, err := request.URL(d, params)
	if err != nil {
		return transport.Task{}, err
	}
	resolved := u.String()

	task := transport.Task{
		Identity: g.Generate(d.Method(), resolved, params),
		Method:   d.Method(),
		URL:      resolved,
		Header:   request.Headers(d, params),
		Expiry:   expiry,
		Decode: func(b []byte) (any, error) {
			return d.Decode(b)
		},
	}

	if d.Method().HasBody() {
		// Unencodable parameters already degraded the identity; send no body.
		if body, err := request.Encode(params); err == nil && string(body) != "null" {
			task.Body = body
		}
		return task, nil
	}

	if q, err := request.QueryValues(params); err == nil {
		if pp, ok := d.(pathParamer); ok {
			for _, name := range pp.PathParams() {
				q.Del(name)
			}
		}
		if len(q) > 0 {
			task.URL = withQuery(u, q)
		}
	}
	return task, nil
}

func withQuery(u *url.URL, q url.Values) string {
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}
