package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

type failure int

const (
	failNone failure = iota
	failThrottled
	failTransport
)

// schedule is a backoff.BackOff whose next wait depends on how the previous
// attempt failed:
//
//	429:       2^(n-1) * base, or Retry-After if longer (capped)
//	transport: n * base
//
// where n is the number of attempts made so far.
type schedule struct {
	base       time.Duration
	max        int
	attempt    int
	last       failure
	retryAfter time.Duration
}

func (s *schedule) NextBackOff() time.Duration {
	if s.attempt >= s.max {
		return backoff.Stop
	}
	switch s.last {
	case failThrottled:
		wait := s.base << (s.attempt - 1)
		if ra := min(s.retryAfter, maxRetryAfter); ra > wait {
			wait = ra
		}
		return wait
	case failTransport:
		return time.Duration(s.attempt) * s.base
	default:
		return backoff.Stop
	}
}

func (s *schedule) Reset() {
	s.attempt = 0
	s.last = failNone
	s.retryAfter = 0
}
