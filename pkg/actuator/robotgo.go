package actuator

import (
	"github.com/go-vgo/robotgo"
)

// RobotgoBackend emits real OS input through robotgo.
type RobotgoBackend struct{}

// Ensure RobotgoBackend implements Backend
var _ Backend = RobotgoBackend{}

// Move places the cursor.
func (RobotgoBackend) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

// Location returns the cursor position.
func (RobotgoBackend) Location() (int, int) {
	return robotgo.Location()
}

// ToggleKey presses or releases a keyboard key.
func (RobotgoBackend) ToggleKey(key string, down bool) error {
	return robotgo.KeyToggle(key, direction(down))
}

// ToggleButton presses or releases a mouse button.
func (RobotgoBackend) ToggleButton(button string, down bool) error {
	return robotgo.Toggle(buttonName(button), direction(down))
}

func direction(down bool) string {
	if down {
		return "down"
	}
	return "up"
}

// buttonName maps recorded button names onto robotgo's.
func buttonName(b string) string {
	if b == "middle" {
		return "center"
	}
	return b
}
