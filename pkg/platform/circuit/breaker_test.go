package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) fail(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func (s *BreakerSuite) succeed(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordSuccess()
	}
}

// =============================================================================
// Opening
// =============================================================================

func (s *BreakerSuite) TestOpening() {
	s.Run("new breaker is closed with defaults", func() {
		b := New("comparables-cache")
		s.Equal("comparables-cache", b.Name())
		s.Equal(StateClosed, b.State())
		s.Equal("closed", b.State().String())

		s.fail(b, defaultFailureThreshold-1)
		s.False(b.IsOpen())
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.True(change.Opened)
		s.Equal("open", b.State().String())
	})

	s.Run("opens only on the threshold failure", func() {
		b := New("cache", WithFailureThreshold(2))

		fallback, change := b.RecordFailure()
		s.False(fallback)
		s.False(change.Opened)

		fallback, change = b.RecordFailure()
		s.True(fallback)
		s.True(change.Opened)
	})

	s.Run("failures while open report no transition", func() {
		b := New("cache", WithFailureThreshold(1))
		b.RecordFailure()

		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.Equal(StateChange{}, change)
	})

	s.Run("a success while closed clears the failure streak", func() {
		b := New("cache", WithFailureThreshold(3))
		s.fail(b, 2)
		primary, change := b.RecordSuccess()
		s.True(primary)
		s.Equal(StateChange{}, change)

		s.fail(b, 2)
		s.False(b.IsOpen())
		b.RecordFailure()
		s.True(b.IsOpen())
	})

	s.Run("non-positive thresholds keep the defaults", func() {
		b := New("cache", WithFailureThreshold(0), WithSuccessThreshold(-1))
		s.Equal(defaultFailureThreshold, b.failureThreshold)
		s.Equal(defaultSuccessThreshold, b.successThreshold)
	})
}

// =============================================================================
// Closing
// =============================================================================

func (s *BreakerSuite) TestClosing() {
	s.Run("closes after the success threshold", func() {
		b := New("cache", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		primary, change := b.RecordSuccess()
		s.False(primary)
		s.False(change.Closed)

		primary, change = b.RecordSuccess()
		s.True(primary)
		s.True(change.Closed)
		s.False(b.IsOpen())
	})

	s.Run("a failure while open restarts the success streak", func() {
		b := New("cache", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		s.succeed(b, 2)
		b.RecordFailure()

		s.succeed(b, 2)
		s.True(b.IsOpen())
		b.RecordSuccess()
		s.False(b.IsOpen())
	})

	s.Run("reset closes immediately", func() {
		b := New("cache", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		s.Equal(StateClosed, b.State())

		// counters were cleared too
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.True(change.Opened)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
}
