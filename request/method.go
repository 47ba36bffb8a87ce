// Package request describes network requests declaratively: what a request is
// (method, URL components, parameters, response shape, cache policy) rather than
// how it is executed. It also derives the stable identity used to deduplicate
// requests and key their cached responses.
package request

import (
	"fmt"
	"strings"
)

// Method is an HTTP request method.
type Method string

const (
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	TRACE   Method = "TRACE"
	OPTIONS Method = "OPTIONS"
	CONNECT Method = "CONNECT"
	PATCH   Method = "PATCH"
)

var methods = []Method{GET, HEAD, POST, PUT, DELETE, TRACE, OPTIONS, CONNECT, PATCH}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	for _, v := range methods {
		if v == m {
			return true
		}
	}
	return false
}

// HasBody reports whether parameters travel in the request body
// rather than the query string.
func (m Method) HasBody() bool {
	switch m {
	case POST, PUT, PATCH:
		return true
	}
	return false
}

func (m Method) String() string { return string(m) }

// ParseMethod accepts any letter case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported method %q", s)
	}
	return m, nil
}
