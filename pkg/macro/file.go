package macro

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Load reads and validates a sequence file. Besides the native object
// format it accepts the legacy tuple list [[seconds, "key_press", name], ...],
// either bare or under a "recorded_actions" key.
func Load(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seq, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Parse decodes and validates a sequence document.
func Parse(data []byte) (*Sequence, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptySequence
	}

	var seq *Sequence
	if data[0] == '[' {
		s, err := parseLegacy(data, "")
		if err != nil {
			return nil, err
		}
		seq = s
	} else {
		var probe struct {
			Recorded       json.RawMessage `json:"recorded_actions"`
			AttackSettings struct {
				SequenceName string `json:"sequence_name"`
			} `json:"attack_settings"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
		}
		if len(probe.Recorded) > 0 {
			s, err := parseLegacy(probe.Recorded, probe.AttackSettings.SequenceName)
			if err != nil {
				return nil, err
			}
			seq = s
		} else {
			seq = &Sequence{}
			if err := json.Unmarshal(data, seq); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
			}
		}
	}

	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if seq.ID == uuid.Nil {
		seq.ID = uuid.New()
	}
	return seq, nil
}

// parseLegacy converts [[t, type, data], ...] tuples. Mouse buttons were
// recorded as key events named left, right or middle.
func parseLegacy(data []byte, name string) (*Sequence, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	if name == "" {
		name = "Imported"
	}
	seq := &Sequence{Name: name}
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: row %d has %d fields", ErrInvalidAction, i, len(row))
		}
		var secs float64
		var typ, arg string
		if err := json.Unmarshal(row[0], &secs); err != nil {
			return nil, fmt.Errorf("%w: row %d timestamp: %v", ErrInvalidAction, i, err)
		}
		if err := json.Unmarshal(row[1], &typ); err != nil {
			return nil, fmt.Errorf("%w: row %d type: %v", ErrInvalidAction, i, err)
		}
		if len(row) > 2 && string(row[2]) != "null" {
			if err := json.Unmarshal(row[2], &arg); err != nil {
				return nil, fmt.Errorf("%w: row %d data: %v", ErrInvalidAction, i, err)
			}
		}
		offset := time.Duration(secs * float64(time.Second))

		var a Action
		switch typ {
		case "end_marker":
			seq.Duration = offset
			continue
		case "key_press", "key_release":
			down := typ == "key_press"
			arg = strings.TrimPrefix(strings.ToLower(arg), "key.")
			switch arg {
			case "left", "right", "middle":
				a = Action{Kind: KindButtonUp, Button: arg}
				if down {
					a.Kind = KindButtonDown
				}
			default:
				a = Action{Kind: KindKeyUp, Key: arg}
				if down {
					a.Kind = KindKeyDown
				}
			}
		default:
			return nil, fmt.Errorf("%w: row %d type %q", ErrInvalidAction, i, typ)
		}
		a.Offset = offset
		seq.Actions = append(seq.Actions, a)
	}
	return seq, nil
}

// Save writes seq to path atomically.
func Save(path string, seq *Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sequence-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
