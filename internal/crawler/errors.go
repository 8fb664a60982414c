package crawler

import (
	"fmt"
	"time"
)

// NavigationError indicates the target page could not be reached or answered
// with an error status. It aborts the whole crawl; no partial assets are
// returned.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("navigation to %s failed with status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the navigation budget was exceeded. Exploratory
// waits time out silently and never produce this error.
type TimeoutError struct {
	URL    string
	Budget time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("navigation to %s exceeded %s budget", e.URL, e.Budget)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
