// Package config defines the hunter configuration, its defaults and its
// validation rules. A *Config is treated as an immutable snapshot once
// published through a Store.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Capture   CaptureConfig   `koanf:"capture" json:"capture"`
	Detection DetectionConfig `koanf:"detection" json:"detection"`
	Tracking  TrackingConfig  `koanf:"tracking" json:"tracking"`
	Aiming    AimingConfig    `koanf:"aiming" json:"aiming"`
	Attack    AttackConfig    `koanf:"attack" json:"attack"`
	Camera    CameraConfig    `koanf:"camera" json:"camera"`
	Loop      LoopConfig      `koanf:"loop" json:"loop"`
	Safety    SafetyConfig    `koanf:"safety" json:"safety"`
	Hotkeys   HotkeyConfig    `koanf:"hotkeys" json:"hotkeys"`
	Notify    NotifyConfig    `koanf:"notify" json:"notify"`
	Log       LogConfig       `koanf:"log" json:"log"`
	Dashboard DashboardConfig `koanf:"dashboard" json:"dashboard"`
	History   HistoryConfig   `koanf:"history" json:"history"`
}

// Fraction is a rectangle expressed as fractions of the display.
type Fraction struct {
	Top    float64 `koanf:"top" json:"top"`
	Left   float64 `koanf:"left" json:"left"`
	Width  float64 `koanf:"width" json:"width"`
	Height float64 `koanf:"height" json:"height"`
}

// CaptureConfig selects the display and the region of interest.
type CaptureConfig struct {
	Display     int      `koanf:"display" json:"display"`
	ROIFraction Fraction `koanf:"roi_fraction" json:"roi_fraction"`
}

// DetectionConfig configures the model and the plausibility filter.
type DetectionConfig struct {
	ModelPath    string  `koanf:"model_path" json:"model_path"`
	Threshold    float64 `koanf:"threshold" json:"threshold"`
	NMSThreshold float64 `koanf:"nms_threshold" json:"nms_threshold"`
	InputSize    int     `koanf:"input_size" json:"input_size"`
	ClassID      int     `koanf:"class_id" json:"class_id"`
	Async        bool    `koanf:"async" json:"async"`
	MinWidth     float64 `koanf:"min_width" json:"min_width"`
	MinHeight    float64 `koanf:"min_height" json:"min_height"`
	MaxHeight    float64 `koanf:"max_height" json:"max_height"`
	MaxAspect    float64 `koanf:"max_aspect" json:"max_aspect"`
}

// TrackingConfig configures lock retention and prediction.
type TrackingConfig struct {
	GraceTicks     int     `koanf:"grace_ticks" json:"grace_ticks"`
	LeadTicks      float64 `koanf:"lead_ticks" json:"lead_ticks"`
	VelocityWindow int     `koanf:"velocity_window" json:"velocity_window"`
	SweepPeriodMS  int     `koanf:"sweep_period_ms" json:"sweep_period_ms"`
	EdgeFraction   float64 `koanf:"edge_fraction" json:"edge_fraction"`
}

// AimingConfig configures cursor smoothing and the hold safety cap.
type AimingConfig struct {
	MouseSmoothFactor  float64 `koanf:"mouse_smooth_factor" json:"mouse_smooth_factor"`
	MaxMouseSpeedPx    float64 `koanf:"max_mouse_speed_px" json:"max_mouse_speed_px"`
	MaxClickDurationMS int     `koanf:"max_click_duration_ms" json:"max_click_duration_ms"`
	AimOffsetX         float64 `koanf:"aim_offset_x" json:"aim_offset_x"`
}

// AttackConfig configures the attack cycle.
type AttackConfig struct {
	LoadMS                int    `koanf:"load_ms" json:"load_ms"`
	FireMS                int    `koanf:"fire_ms" json:"fire_ms"`
	CooldownMS            int    `koanf:"cooldown_ms" json:"cooldown_ms"`
	LootIntervalMS        int    `koanf:"loot_interval_ms" json:"loot_interval_ms"`
	PrimaryButton         string `koanf:"primary_button" json:"primary_button"`
	SecondaryKey          string `koanf:"secondary_key" json:"secondary_key"`
	CustomSequenceEnabled bool   `koanf:"custom_sequence_enabled" json:"custom_sequence_enabled"`
	SequencePath          string `koanf:"sequence_path" json:"sequence_path"`
}

// CameraConfig names the keys that rotate the in-game camera.
type CameraConfig struct {
	LeftKey  string `koanf:"left_key" json:"left_key"`
	RightKey string `koanf:"right_key" json:"right_key"`
}

// LoopConfig configures the control loop cadence.
type LoopConfig struct {
	TickHz        int `koanf:"tick_hz" json:"tick_hz"`
	IdleBackoffMS int `koanf:"idle_backoff_ms" json:"idle_backoff_ms"`
}

// SafetyConfig configures the fail-safe corner. Zero disables it.
type SafetyConfig struct {
	FailsafeCornerPx int `koanf:"failsafe_corner_px" json:"failsafe_corner_px"`
}

// HotkeyConfig binds global hotkeys.
type HotkeyConfig struct {
	Toggle     string `koanf:"toggle" json:"toggle"`
	Record     string `koanf:"record" json:"record"`
	Exit       string `koanf:"exit" json:"exit"`
	DebounceMS int    `koanf:"debounce_ms" json:"debounce_ms"`
}

// NotifyConfig configures outbound event notifications.
type NotifyConfig struct {
	Enabled     bool            `koanf:"enabled" json:"enabled"`
	WebhookURL  string          `koanf:"webhook_url" json:"-"`
	Events      map[string]bool `koanf:"events" json:"events"`
	RateLimitMS int             `koanf:"rate_limit_ms" json:"rate_limit_ms"`
	MaxAttempts int             `koanf:"max_attempts" json:"max_attempts"`
	QueueSize   int             `koanf:"queue_size" json:"queue_size"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	File   string `koanf:"file" json:"file"`
}

// DashboardConfig configures the local web dashboard.
type DashboardConfig struct {
	Enabled    bool   `koanf:"enabled" json:"enabled"`
	Addr       string `koanf:"addr" json:"addr"`
	FrameEvery int    `koanf:"frame_every" json:"frame_every"`
}

// HistoryConfig configures the session history database.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Path    string `koanf:"path" json:"path"`
}

// Event names accepted under notify.events.
var EventNames = []string{
	"target_acquired",
	"target_lost",
	"phase_entered",
	"cycle_completed",
	"loop_started",
	"loop_stopped",
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	events := make(map[string]bool, len(EventNames))
	for _, n := range EventNames {
		events[n] = true
	}
	return &Config{
		Capture: CaptureConfig{
			ROIFraction: Fraction{Top: 0, Left: 0, Width: 1, Height: 1},
		},
		Detection: DetectionConfig{
			ModelPath:    "models/target.onnx",
			Threshold:    0.5,
			NMSThreshold: 0.45,
			InputSize:    640,
			MinWidth:     40,
			MinHeight:    25,
			MaxHeight:    200,
			MaxAspect:    2.5,
		},
		Tracking: TrackingConfig{
			GraceTicks:     30,
			LeadTicks:      2,
			VelocityWindow: 5,
			SweepPeriodMS:  3000,
			EdgeFraction:   0.10,
		},
		Aiming: AimingConfig{
			MouseSmoothFactor:  0.35,
			MaxMouseSpeedPx:    1200,
			MaxClickDurationMS: 6500,
			AimOffsetX:         0.25,
		},
		Attack: AttackConfig{
			LoadMS:         1000,
			FireMS:         5000,
			CooldownMS:     5200,
			LootIntervalMS: 200,
			PrimaryButton:  "left",
			SecondaryKey:   "e",
			SequencePath:   "sequence.json",
		},
		Camera: CameraConfig{LeftKey: "left", RightKey: "right"},
		Loop:   LoopConfig{TickHz: 25, IdleBackoffMS: 25},
		Safety: SafetyConfig{FailsafeCornerPx: 5},
		Hotkeys: HotkeyConfig{
			Toggle:     "f1",
			Record:     "f3",
			Exit:       "f12",
			DebounceMS: 300,
		},
		Notify: NotifyConfig{
			Events:      events,
			RateLimitMS: 5000,
			MaxAttempts: 3,
			QueueSize:   64,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Dashboard: DashboardConfig{Addr: "127.0.0.1:8089", FrameEvery: 5},
		History:   HistoryConfig{Path: "hunter.db"},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Notify.Events = make(map[string]bool, len(c.Notify.Events))
	for k, v := range c.Notify.Events {
		cp.Notify.Events[k] = v
	}
	return &cp
}

// Validate rejects out-of-range values. The returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}

	r := c.Capture.ROIFraction
	for name, v := range map[string]float64{"top": r.Top, "left": r.Left, "width": r.Width, "height": r.Height} {
		if v < 0 || v > 1 {
			return invalid("capture.roi_fraction.%s %.3f outside [0,1]", name, v)
		}
	}
	if r.Width == 0 || r.Height == 0 {
		return invalid("capture.roi_fraction must have non-zero size")
	}
	if r.Left+r.Width > 1 || r.Top+r.Height > 1 {
		return invalid("capture.roi_fraction extends past the display")
	}

	d := c.Detection
	if d.Threshold <= 0 || d.Threshold > 1 {
		return invalid("detection.threshold %.3f outside (0,1]", d.Threshold)
	}
	if d.NMSThreshold <= 0 || d.NMSThreshold > 1 {
		return invalid("detection.nms_threshold %.3f outside (0,1]", d.NMSThreshold)
	}
	if d.InputSize < 32 || d.InputSize%32 != 0 {
		return invalid("detection.input_size %d must be a positive multiple of 32", d.InputSize)
	}
	if d.MinWidth < 0 || d.MinHeight < 0 || d.MaxHeight < 0 || d.MaxAspect < 0 {
		return invalid("detection filter bounds must not be negative")
	}

	t := c.Tracking
	if t.GraceTicks < 1 {
		return invalid("tracking.grace_ticks %d must be >= 1", t.GraceTicks)
	}
	if t.VelocityWindow < 2 {
		return invalid("tracking.velocity_window %d must be >= 2", t.VelocityWindow)
	}
	if t.LeadTicks < 0 {
		return invalid("tracking.lead_ticks must not be negative")
	}
	if t.SweepPeriodMS <= 0 {
		return invalid("tracking.sweep_period_ms must be > 0")
	}
	if t.EdgeFraction < 0 || t.EdgeFraction >= 0.5 {
		return invalid("tracking.edge_fraction %.3f outside [0,0.5)", t.EdgeFraction)
	}

	a := c.Aiming
	if a.MouseSmoothFactor <= 0 || a.MouseSmoothFactor > 1 {
		return invalid("aiming.mouse_smooth_factor %.3f outside (0,1]", a.MouseSmoothFactor)
	}
	if a.MaxMouseSpeedPx <= 0 {
		return invalid("aiming.max_mouse_speed_px must be > 0")
	}
	if a.MaxClickDurationMS <= 0 {
		return invalid("aiming.max_click_duration_ms must be > 0")
	}
	if a.AimOffsetX < 0 || a.AimOffsetX > 1 {
		return invalid("aiming.aim_offset_x %.3f outside [0,1]", a.AimOffsetX)
	}

	at := c.Attack
	if at.LoadMS <= 0 || at.FireMS <= 0 || at.CooldownMS <= 0 || at.LootIntervalMS <= 0 {
		return invalid("attack durations must be > 0")
	}
	if at.PrimaryButton == "" || at.SecondaryKey == "" {
		return invalid("attack.primary_button and attack.secondary_key are required")
	}

	if c.Camera.LeftKey == "" || c.Camera.RightKey == "" {
		return invalid("camera keys are required")
	}

	if c.Loop.TickHz < 1 || c.Loop.TickHz > 120 {
		return invalid("loop.tick_hz %d outside [1,120]", c.Loop.TickHz)
	}
	if c.Loop.IdleBackoffMS < 0 {
		return invalid("loop.idle_backoff_ms must not be negative")
	}
	if c.Safety.FailsafeCornerPx < 0 {
		return invalid("safety.failsafe_corner_px must not be negative")
	}

	h := c.Hotkeys
	if h.Toggle == "" || h.Record == "" || h.Exit == "" {
		return invalid("hotkeys.toggle, hotkeys.record and hotkeys.exit are required")
	}
	// Key names are matched case-insensitively. Keys the loop itself taps or
	// holds would reach the hotkey listener through the global hook.
	emitted := map[string]string{
		strings.ToLower(at.SecondaryKey):   "attack.secondary_key",
		strings.ToLower(c.Camera.LeftKey):  "camera.left_key",
		strings.ToLower(c.Camera.RightKey): "camera.right_key",
	}
	seen := make(map[string]string, 3)
	for _, hk := range []struct{ name, key string }{
		{"toggle", h.Toggle}, {"record", h.Record}, {"exit", h.Exit},
	} {
		key := strings.ToLower(hk.key)
		if prev, ok := seen[key]; ok {
			return invalid("hotkeys.%s and hotkeys.%s are both %q", prev, hk.name, key)
		}
		seen[key] = hk.name
		if owner, ok := emitted[key]; ok {
			return invalid("hotkeys.%s %q collides with %s", hk.name, key, owner)
		}
	}

	n := c.Notify
	if n.Enabled && n.WebhookURL == "" {
		return invalid("notify.webhook_url is required when notify.enabled")
	}
	if n.MaxAttempts < 1 {
		return invalid("notify.max_attempts must be >= 1")
	}
	if n.QueueSize < 1 {
		return invalid("notify.queue_size must be >= 1")
	}
	if n.RateLimitMS < 0 {
		return invalid("notify.rate_limit_ms must not be negative")
	}

	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		return invalid("dashboard.addr is required when dashboard.enabled")
	}
	if c.Dashboard.FrameEvery < 0 {
		return invalid("dashboard.frame_every must not be negative")
	}
	if c.History.Enabled && c.History.Path == "" {
		return invalid("history.path is required when history.enabled")
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// TickInterval is the control loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Loop.TickHz)
}

// IdleBackoff is how long a stopped loop sleeps between command polls.
func (c *Config) IdleBackoff() time.Duration { return ms(c.Loop.IdleBackoffMS) }

// MaxClickDuration is the hard cap on a sustained button hold.
func (c *Config) MaxClickDuration() time.Duration { return ms(c.Aiming.MaxClickDurationMS) }

// SweepPeriod is how long the camera sweeps in one direction.
func (c *Config) SweepPeriod() time.Duration { return ms(c.Tracking.SweepPeriodMS) }

// LoadDuration, FireDuration and CooldownDuration are the attack phase lengths.
func (c *Config) LoadDuration() time.Duration { return ms(c.Attack.LoadMS) }

func (c *Config) FireDuration() time.Duration { return ms(c.Attack.FireMS) }

func (c *Config) CooldownDuration() time.Duration { return ms(c.Attack.CooldownMS) }

// LootInterval is the secondary-key tap period during COOLDOWN.
func (c *Config) LootInterval() time.Duration { return ms(c.Attack.LootIntervalMS) }

// NotifyRateLimit is the minimum spacing between two events of one type.
func (c *Config) NotifyRateLimit() time.Duration { return ms(c.Notify.RateLimitMS) }

// HotkeyDebounce is the minimum spacing between two presses of one hotkey.
func (c *Config) HotkeyDebounce() time.Duration { return ms(c.Hotkeys.DebounceMS) }

// EventEnabled reports whether notifications for the named event are on.
// Unknown names default to enabled.
func (c *Config) EventEnabled(name string) bool {
	on, ok := c.Notify.Events[name]
	return !ok || on
}
