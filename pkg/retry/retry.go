// Package retry decides whether a failed scenario attempt runs again.
package retry

// Policy bounds how many times a failed scenario is re-run.
type Policy struct {
	Limit int // extra attempts after the first, 0 disables retrying
}

// New returns a policy with the given limit; negative limits are treated as 0.
func New(limit int) Policy {
	if limit < 0 {
		limit = 0
	}
	return Policy{Limit: limit}
}

// FromFlag maps the boolean retry switch of the configuration onto a policy.
func FromFlag(enabled bool) Policy {
	if enabled {
		return Policy{Limit: 1}
	}
	return Policy{}
}

// State tracks retries granted to one scenario invocation.
// It is created per descriptor and never reset while that descriptor runs.
type State struct {
	Attempts int // retries granted so far
	Limit    int
}

// NewState starts a fresh counter for one scenario invocation.
func (p Policy) NewState() *State {
	return &State{Limit: p.Limit}
}

// ShouldRetry grants a retry iff s.Attempts < s.Limit, incrementing the counter.
// Once exhausted it returns false and leaves s untouched.
func (p Policy) ShouldRetry(s *State) bool {
	if s == nil || s.Attempts >= s.Limit {
		return false
	}
	s.Attempts++
	return true
}

// Remaining returns how many retries are still available.
func (s *State) Remaining() int {
	if s == nil || s.Attempts >= s.Limit {
		return 0
	}
	return s.Limit - s.Attempts
}
