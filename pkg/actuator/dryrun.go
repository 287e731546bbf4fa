package actuator

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-hunter/internal/log"
)

// DryRunBackend logs input instead of emitting it. The cursor position is
// simulated so smoothing still converges.
type DryRunBackend struct {
	mu   sync.Mutex
	x, y int
	lg   *slog.Logger
}

// Ensure DryRunBackend implements Backend
var _ Backend = (*DryRunBackend)(nil)

// NewDryRun returns a DryRunBackend with the cursor at (x, y).
func NewDryRun(x, y int) *DryRunBackend {
	return &DryRunBackend{x: x, y: y, lg: log.With("component", "dryrun")}
}

func (d *DryRunBackend) Move(x, y int) error {
	d.mu.Lock()
	d.x, d.y = x, y
	d.mu.Unlock()
	d.lg.Debug("move", "x", x, "y", y)
	return nil
}

func (d *DryRunBackend) Location() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.x, d.y
}

func (d *DryRunBackend) ToggleKey(key string, down bool) error {
	d.lg.Debug("key", "key", key, "down", down)
	return nil
}

func (d *DryRunBackend) ToggleButton(button string, down bool) error {
	d.lg.Debug("button", "button", button, "down", down)
	return nil
}
