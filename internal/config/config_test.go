package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/teslashibe/go-hunter/internal/config"
)

func TestConfig_Default(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.Default()

		convey.Convey("Then it should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the attack cycle should be 1.0s / 5.0s / 5.2s", func() {
			convey.So(cfg.LoadDuration(), convey.ShouldEqual, time.Second)
			convey.So(cfg.FireDuration(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.CooldownDuration(), convey.ShouldEqual, 5200*time.Millisecond)
		})

		convey.Convey("Then the loop should tick at 25 Hz with grace 30", func() {
			convey.So(cfg.TickInterval(), convey.ShouldEqual, 40*time.Millisecond)
			convey.So(cfg.Tracking.GraceTicks, convey.ShouldEqual, 30)
		})

		convey.Convey("Then the built-in hold should fit under the click cap", func() {
			convey.So(cfg.MaxClickDuration(), convey.ShouldBeGreaterThan, cfg.LoadDuration()+cfg.FireDuration())
		})

		convey.Convey("Then every event should be enabled", func() {
			for _, n := range config.EventNames {
				convey.So(cfg.EventEnabled(n), convey.ShouldBeTrue)
			}
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold zero", func(c *config.Config) { c.Detection.Threshold = 0 }},
		{"threshold above one", func(c *config.Config) { c.Detection.Threshold = 1.5 }},
		{"smooth factor zero", func(c *config.Config) { c.Aiming.MouseSmoothFactor = 0 }},
		{"roi past edge", func(c *config.Config) { c.Capture.ROIFraction.Left = 0.5; c.Capture.ROIFraction.Width = 0.6 }},
		{"roi empty", func(c *config.Config) { c.Capture.ROIFraction.Height = 0 }},
		{"tick too fast", func(c *config.Config) { c.Loop.TickHz = 500 }},
		{"tick zero", func(c *config.Config) { c.Loop.TickHz = 0 }},
		{"grace zero", func(c *config.Config) { c.Tracking.GraceTicks = 0 }},
		{"velocity window one", func(c *config.Config) { c.Tracking.VelocityWindow = 1 }},
		{"click cap zero", func(c *config.Config) { c.Aiming.MaxClickDurationMS = 0 }},
		{"duplicate hotkeys", func(c *config.Config) { c.Hotkeys.Record = c.Hotkeys.Toggle }},
		{"duplicate hotkeys ignoring case", func(c *config.Config) { c.Hotkeys.Record = "F1" }},
		{"hotkey is loot key", func(c *config.Config) { c.Hotkeys.Toggle = "E" }},
		{"hotkey is camera key", func(c *config.Config) { c.Hotkeys.Exit = "left" }},
		{"webhook missing", func(c *config.Config) { c.Notify.Enabled = true }},
		{"input size", func(c *config.Config) { c.Detection.InputSize = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := config.Default()
	cp := cfg.Clone()
	cp.Notify.Events["target_lost"] = false
	cp.Loop.TickHz = 30

	if !cfg.Notify.Events["target_lost"] {
		t.Error("clone shares the events map")
	}
	if cfg.Loop.TickHz != 25 {
		t.Error("clone shares scalar fields")
	}
}
