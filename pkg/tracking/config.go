package tracking

import (
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
)

// Config holds the tunable parameters for target tracking
type Config struct {
	Threshold      float64       // Minimum detection confidence to count as a sighting
	GraceTicks     int           // Missed ticks tolerated before the lock is dropped
	LeadTicks      float64       // Prediction horizon in ticks
	VelocityWindow int           // Centers used for the velocity fit
	SweepPeriod    time.Duration // Camera sweep time per direction while searching
}

// DefaultConfig returns the recommended tracking configuration
func DefaultConfig() Config {
	return Config{
		Threshold:      0.5,
		GraceTicks:     30,
		LeadTicks:      2,
		VelocityWindow: 5,
		SweepPeriod:    3 * time.Second,
	}
}

// ConfigFrom extracts tracking settings from the runtime config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Threshold:      c.Detection.Threshold,
		GraceTicks:     c.Tracking.GraceTicks,
		LeadTicks:      c.Tracking.LeadTicks,
		VelocityWindow: c.Tracking.VelocityWindow,
		SweepPeriod:    c.SweepPeriod(),
	}
}
