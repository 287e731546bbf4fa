// Package hunter wires the capture, detection, tracking, attack and
// notification components into one application.
package hunter

import (
	"image"

	"github.com/teslashibe/go-hunter/pkg/actuator"
	"github.com/teslashibe/go-hunter/pkg/capture"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
)

// Options holds the command line settings. Flag parsing is done in
// cmd/hunter/main.go; this struct is data only.
type Options struct {
	// ConfigPath is the YAML or JSON config file. Empty uses defaults
	// and environment overrides only.
	ConfigPath string

	// Autostart starts hunting immediately instead of waiting for the
	// toggle hotkey.
	Autostart bool

	// NoClicks replaces the input backend with one that only logs.
	NoClicks bool

	// Debug forces debug logging.
	Debug bool

	// Device overrides. Nil selects the real screen, robotgo and gohook.
	Source  capture.Source
	Backend actuator.Backend
	Input   inputhook.Source
	// Display is used with Source; it must be set when Source is.
	Display image.Rectangle
}
