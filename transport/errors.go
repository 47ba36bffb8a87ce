package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Status int
	Text   string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Text, string(e.Body))
}

// Retryable reports whether a failed task is worth running again later.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests ||
			se.Status == http.StatusRequestTimeout ||
			se.Status >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	// Network/connectivity issues - should retry
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "network")
}
