package request

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is a named set of endpoints loaded from YAML:
//
//	endpoints:
//	  user:
//	    method: GET
//	    host: api.example.com
//	    path: /users/{id}
//	    cache: {kind: timed, hours: 1}
type Catalog struct {
	Endpoints map[string]*Endpoint `yaml:"endpoints"`
}

// ErrUnknownEndpoint is returned by Catalog.Lookup.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ParseCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates a catalog. A misconfigured endpoint,
// including a zero-length timed cache policy, fails the whole catalog.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for name, e := range c.Endpoints {
		if e == nil {
			return nil, fmt.Errorf("endpoint %q: empty definition", name)
		}
		e.Name = name
		if m, err := ParseMethod(string(e.HTTPMethod)); err == nil {
			e.HTTPMethod = m
		}
		if err := Validate(e); err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
	}
	return &c, nil
}

// Lookup returns the endpoint with the given name.
func (c *Catalog) Lookup(name string) (*Endpoint, error) {
	e, ok := c.Endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return e, nil
}

// Names lists endpoint names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Endpoints))
	for n := range c.Endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
