package loop

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-hunter/pkg/notify"
)

// Session counts what happened during one run of the loop.
type Session struct {
	ID           uuid.UUID
	Started      time.Time
	Ticks        int64
	Detections   int64
	Acquisitions int64
	Cycles       int64
}

func newSession(now time.Time) *Session {
	return &Session{ID: uuid.New(), Started: now}
}

// Summary reports the session as of now.
func (s *Session) Summary(now time.Time, reason string) notify.Summary {
	return notify.Summary{
		Started:      s.Started,
		Runtime:      now.Sub(s.Started),
		Ticks:        s.Ticks,
		Detections:   s.Detections,
		Acquisitions: s.Acquisitions,
		Cycles:       s.Cycles,
		Reason:       reason,
	}
}
