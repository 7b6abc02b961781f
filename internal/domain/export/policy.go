package export

import (
	"errors"
	"time"
)

const (
	// DefaultPollInterval is the period between two status queries.
	DefaultPollInterval = 2000 * time.Millisecond
	// DefaultGenericErrorThreshold is the number of consecutive generic errors tolerated.
	DefaultGenericErrorThreshold = 3
	// DefaultBackendUnavailableThreshold is the number of consecutive "not alive" polls tolerated.
	DefaultBackendUnavailableThreshold = 10
)

var (
	// ErrInvalidPollInterval indicates the configured poll interval is not positive.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")
	// ErrInvalidThreshold indicates a negative error threshold.
	ErrInvalidThreshold = errors.New("error thresholds must be >= 0")
)

// RetryPolicy holds the tick period and the tolerance for each failure kind.
// A run fails once a counter exceeds its threshold, so a threshold of 3
// fails on the fourth consecutive error.
type RetryPolicy struct {
	interval         time.Duration
	genericThreshold int
	backendThreshold int
}

// NewRetryPolicy validates and constructs a RetryPolicy.
func NewRetryPolicy(interval time.Duration, genericThreshold, backendThreshold int) (*RetryPolicy, error) {
	if interval <= 0 {
		return nil, ErrInvalidPollInterval
	}
	if genericThreshold < 0 || backendThreshold < 0 {
		return nil, ErrInvalidThreshold
	}
	return &RetryPolicy{
		interval:         interval,
		genericThreshold: genericThreshold,
		backendThreshold: backendThreshold,
	}, nil
}

// DefaultRetryPolicy returns the 2s / 3 / 10 policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		interval:         DefaultPollInterval,
		genericThreshold: DefaultGenericErrorThreshold,
		backendThreshold: DefaultBackendUnavailableThreshold,
	}
}

// Interval returns the tick period.
func (p *RetryPolicy) Interval() time.Duration {
	if p == nil {
		return DefaultPollInterval
	}
	return p.interval
}

// GenericThreshold returns the tolerated number of consecutive generic errors.
func (p *RetryPolicy) GenericThreshold() int {
	if p == nil {
		return DefaultGenericErrorThreshold
	}
	return p.genericThreshold
}

// BackendThreshold returns the tolerated number of consecutive backend-unavailable polls.
func (p *RetryPolicy) BackendThreshold() int {
	if p == nil {
		return DefaultBackendUnavailableThreshold
	}
	return p.backendThreshold
}

// GenericExceeded reports whether count consecutive generic errors end the run.
func (p *RetryPolicy) GenericExceeded(count int) bool {
	return count > p.GenericThreshold()
}

// BackendExceeded reports whether count consecutive backend-unavailable polls end the run.
func (p *RetryPolicy) BackendExceeded(count int) bool {
	return count > p.BackendThreshold()
}
