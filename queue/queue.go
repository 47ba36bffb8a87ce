// Package queue assigns transport work to queues and runs it.
//
// A Policy is only a label. The Executor maps labels to concurrency: the
// unbounded policy gets a goroutine per task, every named queue gets a fixed
// pool of workers (one by default, which makes the queue serial).
package queue

import "strings"

// Policy selects the queue a task runs on.
type Policy struct {
	name      string
	unbounded bool
}

const (
	defaultName   = "default"
	unboundedName = "unbounded"
)

var (
	// Unbounded runs every task immediately on its own goroutine.
	Unbounded = Policy{name: unboundedName, unbounded: true}
	// Default is the shared named queue.
	Default = Policy{name: defaultName}
)

// Named returns the policy for a named queue. An empty name is Default.
func Named(name string) Policy {
	if name == "" {
		return Default
	}
	return Policy{name: name}
}

// Parse maps a configuration string to a policy.
func Parse(s string) Policy {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, unboundedName) {
		return Unbounded
	}
	return Named(s)
}

func (p Policy) Name() string {
	if p.name == "" {
		return defaultName
	}
	return p.name
}

func (p Policy) IsUnbounded() bool { return p.unbounded }

func (p Policy) String() string { return p.Name() }
