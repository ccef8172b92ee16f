package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetryGrantsExactlyLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 5} {
		p := New(limit)
		s := p.NewState()

		granted := 0
		for i := 0; i < limit+3; i++ {
			if p.ShouldRetry(s) {
				granted++
			}
		}
		assert.Equal(t, limit, granted, "limit %d", limit)
		assert.Equal(t, limit, s.Attempts)
		assert.Equal(t, 0, s.Remaining())
	}
}

func TestShouldRetryZeroLimitNeverRetries(t *testing.T) {
	p := New(0)
	s := p.NewState()

	require.False(t, p.ShouldRetry(s))
	assert.Equal(t, 0, s.Attempts, "denied retry must not mutate state")
}

func TestShouldRetryNilState(t *testing.T) {
	assert.False(t, New(3).ShouldRetry(nil))
	var s *State
	assert.Equal(t, 0, s.Remaining())
}

func TestNewClampsNegative(t *testing.T) {
	assert.Equal(t, 0, New(-2).Limit)
}

func TestFromFlag(t *testing.T) {
	assert.Equal(t, 1, FromFlag(true).Limit)
	assert.Equal(t, 0, FromFlag(false).Limit)
}

func TestStatesAreIndependent(t *testing.T) {
	p := New(1)
	a, b := p.NewState(), p.NewState()

	require.True(t, p.ShouldRetry(a))
	require.False(t, p.ShouldRetry(a))
	assert.True(t, p.ShouldRetry(b), "a fresh state has its own budget")
}
