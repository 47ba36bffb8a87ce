package request

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPolicy marks a cache policy that cannot be resolved to an expiry.
var ErrInvalidPolicy = errors.New("invalid cache policy")

// maxSeconds is the longest expiry a time.Duration can carry.
const maxSeconds = math.MaxInt64 / int64(time.Second)

type policyKind int

const (
	policyNever policyKind = iota
	policyTimed
	policyForever
)

// CachePolicy declares how long a response stays fresh.
// Build one with Never, Timed or Forever.
type CachePolicy struct {
	kind    policyKind
	days    int
	hours   int
	minutes int
}

// Never disables caching: every dispatch fetches and nothing is stored.
func Never() CachePolicy { return CachePolicy{kind: policyNever} }

// Timed keeps responses fresh for the given span. Timed(0, 0, 0) is rejected
// by Resolve.
func Timed(days, hours, minutes int) CachePolicy {
	return CachePolicy{kind: policyTimed, days: days, hours: hours, minutes: minutes}
}

// Forever keeps a stored response fresh until it is replaced.
func Forever() CachePolicy { return CachePolicy{kind: policyForever} }

func (p CachePolicy) String() string {
	switch p.kind {
	case policyTimed:
		return fmt.Sprintf("timed(%dd%dh%dm)", p.days, p.hours, p.minutes)
	case policyForever:
		return "forever"
	default:
		return "never"
	}
}

// PolicyError is returned when a policy is misconfigured. It is a programmer
// error and should surface at startup, not be coerced.
type PolicyError struct {
	Policy CachePolicy
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%v %s: %s", ErrInvalidPolicy, e.Policy, e.Reason)
}

func (e *PolicyError) Unwrap() error { return ErrInvalidPolicy }

type expiryKind int

const (
	expiryUntracked expiryKind = iota
	expirySeconds
	expiryUnbounded
)

// Expiry is the freshness horizon derived from a CachePolicy.
type Expiry struct {
	kind    expiryKind
	seconds int64
}

// NoExpiryTracking is the expiry of the Never policy.
var NoExpiryTracking = Expiry{kind: expiryUntracked}

// Unbounded is the expiry of the Forever policy.
var Unbounded = Expiry{kind: expiryUnbounded}

// SecondsFromNow is the expiry of a Timed policy.
func SecondsFromNow(n int64) Expiry { return Expiry{kind: expirySeconds, seconds: n} }

// Tracked reports whether responses under this expiry are stored and may be
// served from cache.
func (e Expiry) Tracked() bool { return e.kind != expiryUntracked }

// IsUnbounded reports whether stored responses never go stale.
func (e Expiry) IsUnbounded() bool { return e.kind == expiryUnbounded }

// Seconds is the freshness window; zero unless the expiry is timed.
func (e Expiry) Seconds() int64 { return e.seconds }

// Deadline returns the instant a response stored at now goes stale.
// The zero time means it never does.
func (e Expiry) Deadline(now time.Time) time.Time {
	if e.kind != expirySeconds {
		return time.Time{}
	}
	return now.Add(time.Duration(e.seconds) * time.Second)
}

func (e Expiry) String() string {
	switch e.kind {
	case expirySeconds:
		return fmt.Sprintf("%ds", e.seconds)
	case expiryUnbounded:
		return "unbounded"
	default:
		return "untracked"
	}
}

// ParseExpiry is the inverse of Expiry.String.
func ParseExpiry(s string) (Expiry, error) {
	switch s {
	case "untracked", "":
		return NoExpiryTracking, nil
	case "unbounded":
		return Unbounded, nil
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(s, "s"), 10, 64)
	if err != nil || n <= 0 || n > maxSeconds || !strings.HasSuffix(s, "s") {
		return Expiry{}, fmt.Errorf("invalid expiry %q", s)
	}
	return SecondsFromNow(n), nil
}

// Resolve maps a policy to its expiry.
func Resolve(p CachePolicy) (Expiry, error) {
	switch p.kind {
	case policyNever:
		return NoExpiryTracking, nil
	case policyForever:
		return Unbounded, nil
	case policyTimed:
		if p.days < 0 || p.hours < 0 || p.minutes < 0 {
			return Expiry{}, &PolicyError{Policy: p, Reason: "negative duration"}
		}
		if int64(p.days) > maxSeconds/86400 || int64(p.hours) > maxSeconds/3600 || int64(p.minutes) > maxSeconds/60 {
			return Expiry{}, &PolicyError{Policy: p, Reason: "duration too long"}
		}
		total := int64(p.days)*86400 + int64(p.hours)*3600 + int64(p.minutes)*60
		if total > maxSeconds {
			return Expiry{}, &PolicyError{Policy: p, Reason: "duration too long"}
		}
		if total == 0 {
			return Expiry{}, &PolicyError{Policy: p, Reason: "zero duration; use Never or Forever"}
		}
		return SecondsFromNow(total), nil
	}
	return Expiry{}, &PolicyError{Policy: p, Reason: "unknown kind"}
}

// MustResolve is Resolve for package-level descriptor setup; it panics on a
// misconfigured policy.
func MustResolve(p CachePolicy) Expiry {
	e, err := Resolve(p)
	if err != nil {
		panic(err)
	}
	return e
}
