package macro

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-hunter/pkg/inputhook"
)

func TestRecorder_RecordsWithOffsets(t *testing.T) {
	r := NewRecorder(10*time.Millisecond, "f3")
	t0 := time.Unix(5000, 0)

	// Ignored before Start
	r.Feed(inputhook.Event{Kind: inputhook.KeyDown, Key: "x", At: t0})

	if err := r.Start(t0); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(t0); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start = %v", err)
	}

	events := []inputhook.Event{
		{Kind: inputhook.KeyDown, Key: "F3", At: t0.Add(ms(1))}, // control hotkey
		{Kind: inputhook.ButtonDown, Button: "left", At: t0.Add(ms(100))},
		{Kind: inputhook.Move, X: 5, Y: 6, At: t0.Add(ms(150))},
		{Kind: inputhook.Move, X: 6, Y: 6, At: t0.Add(ms(155))}, // coalesced
		{Kind: inputhook.KeyDown, Key: "E", At: t0.Add(ms(200))},
		{Kind: inputhook.KeyDown, Key: "e", At: t0.Add(ms(230))}, // auto-repeat
		{Kind: inputhook.KeyUp, Key: "e", At: t0.Add(ms(260))},
		{Kind: inputhook.ButtonUp, Button: "left", At: t0.Add(ms(900))},
		{Kind: inputhook.KeyUp, Key: "f3", At: t0.Add(ms(990))},
	}
	for _, ev := range events {
		r.Feed(ev)
	}

	seq, err := r.Stop(t0.Add(time.Second), "combo")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []Action{
		{Kind: KindButtonDown, Button: "left", Offset: ms(100)},
		{Kind: KindMove, X: 5, Y: 6, Offset: ms(150)},
		{Kind: KindKeyDown, Key: "e", Offset: ms(200)},
		{Kind: KindKeyUp, Key: "e", Offset: ms(260)},
		{Kind: KindButtonUp, Button: "left", Offset: ms(900)},
	}
	if diff := cmp.Diff(want, seq.Actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	if seq.Duration != time.Second || seq.Name != "combo" {
		t.Errorf("Duration=%v Name=%q", seq.Duration, seq.Name)
	}
	if r.Recording() {
		t.Error("still recording after Stop")
	}
}

func TestRecorder_EmptyRecordingRejected(t *testing.T) {
	r := NewRecorder(0, "f3")
	t0 := time.Unix(0, 0)
	_ = r.Start(t0)
	r.Feed(inputhook.Event{Kind: inputhook.KeyDown, Key: "f3", At: t0})

	if _, err := r.Stop(t0.Add(time.Second), ""); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Stop = %v, want ErrEmptySequence", err)
	}
	if _, err := r.Stop(t0, ""); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop when idle = %v, want ErrNotRecording", err)
	}
}

func TestRecorder_MonotonicUnderJitter(t *testing.T) {
	r := NewRecorder(0)
	t0 := time.Unix(0, 0)
	_ = r.Start(t0)
	r.Feed(inputhook.Event{Kind: inputhook.KeyDown, Key: "a", At: t0.Add(ms(50))})
	r.Feed(inputhook.Event{Kind: inputhook.KeyUp, Key: "a", At: t0.Add(ms(49))})

	seq, err := r.Stop(t0.Add(ms(100)), "")
	if err != nil {
		t.Fatal(err)
	}
	if seq.Actions[1].Offset != ms(50) {
		t.Errorf("offset = %v, want clamped to 50ms", seq.Actions[1].Offset)
	}
}
