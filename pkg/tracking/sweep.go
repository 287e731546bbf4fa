package tracking

import "time"

// Sweeper alternates the camera sweep direction on a timer while the
// tracker is searching.
type Sweeper struct {
	period time.Duration
	start  time.Time
	active bool
	first  int
}

// NewSweeper returns a sweeper that starts rotating left.
func NewSweeper(period time.Duration) *Sweeper {
	return &Sweeper{period: period, first: -1}
}

// SetPeriod changes the sweep period.
func (s *Sweeper) SetPeriod(period time.Duration) {
	s.period = period
}

// Direction returns -1 (left) or +1 (right) for now. The first call after
// a Reset starts a new sweep.
func (s *Sweeper) Direction(now time.Time) int {
	if !s.active {
		s.active = true
		s.start = now
	}
	if s.period <= 0 {
		return s.first
	}
	legs := int(now.Sub(s.start) / s.period)
	if legs%2 == 0 {
		return s.first
	}
	return -s.first
}

// Reset ends the current sweep. The next sweep starts toward the side
// the target was last seen on when dir is non-zero.
func (s *Sweeper) Reset(dir int) {
	s.active = false
	switch {
	case dir < 0:
		s.first = -1
	case dir > 0:
		s.first = 1
	}
}
