package hotkey

import (
	"testing"
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
	"github.com/teslashibe/go-hunter/pkg/loop"
)

type fakeCommander struct {
	mode    loop.Mode
	full    bool
	sent    []loop.Command
	stopped int
}

func (f *fakeCommander) Mode() loop.Mode { return f.mode }

func (f *fakeCommander) Enqueue(cmd loop.Command) error {
	if f.full {
		return loop.ErrCommandQueueFull
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeCommander) RequestStop() { f.stopped++ }

func keyDown(key string, at time.Time) inputhook.Event {
	return inputhook.Event{Kind: inputhook.KeyDown, Key: key, At: at}
}

func TestListener_Bindings(t *testing.T) {
	cmds := &fakeCommander{}
	l := NewListener(config.NewStaticStore(config.Default()), cmds)
	t0 := time.Unix(100, 0)

	tests := []struct {
		key  string
		want loop.Command
		ok   bool
	}{
		{"f1", loop.CmdToggle, true},
		{"F3", loop.CmdRecord, true},
		{"f12", loop.CmdExit, true},
		{"a", 0, false},
	}
	for i, tt := range tests {
		got, ok := l.Handle(keyDown(tt.key, t0.Add(time.Duration(i)*time.Second)))
		if ok != tt.ok || got != tt.want {
			t.Errorf("Handle(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
	if len(cmds.sent) != 3 {
		t.Errorf("sent %v", cmds.sent)
	}
}

func TestListener_IgnoresNonKeyDown(t *testing.T) {
	cmds := &fakeCommander{}
	l := NewListener(config.NewStaticStore(config.Default()), cmds)
	now := time.Unix(0, 0)

	l.Handle(inputhook.Event{Kind: inputhook.KeyUp, Key: "f1", At: now})
	l.Handle(inputhook.Event{Kind: inputhook.ButtonDown, Button: "left", At: now})

	if len(cmds.sent) != 0 {
		t.Errorf("sent %v", cmds.sent)
	}
}

func TestListener_Debounce(t *testing.T) {
	cmds := &fakeCommander{}
	l := NewListener(config.NewStaticStore(config.Default()), cmds)
	t0 := time.Unix(0, 0)

	l.Handle(keyDown("f1", t0))
	l.Handle(keyDown("f1", t0.Add(100*time.Millisecond)))
	// Other keys are debounced separately
	l.Handle(keyDown("f3", t0.Add(150*time.Millisecond)))
	l.Handle(keyDown("f1", t0.Add(400*time.Millisecond)))

	want := []loop.Command{loop.CmdToggle, loop.CmdRecord, loop.CmdToggle}
	if len(cmds.sent) != len(want) {
		t.Fatalf("sent %v, want %v", cmds.sent, want)
	}
	for i := range want {
		if cmds.sent[i] != want[i] {
			t.Errorf("sent[%d] = %v, want %v", i, cmds.sent[i], want[i])
		}
	}
}

func TestListener_Rebind(t *testing.T) {
	store := config.NewStaticStore(config.Default())
	cmds := &fakeCommander{}
	l := NewListener(store, cmds)

	next := store.Current().Clone()
	next.Hotkeys.Toggle = "f5"
	if err := store.Swap(next); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Handle(keyDown("f1", time.Unix(0, 0))); ok {
		t.Error("old binding still active")
	}
	if cmd, ok := l.Handle(keyDown("f5", time.Unix(1, 0))); !ok || cmd != loop.CmdToggle {
		t.Errorf("Handle(f5) = %v, %v", cmd, ok)
	}
}

func TestListener_QueueFullRequestsStop(t *testing.T) {
	cmds := &fakeCommander{full: true, mode: loop.Running}
	l := NewListener(config.NewStaticStore(config.Default()), cmds)

	if _, ok := l.Handle(keyDown("f1", time.Unix(0, 0))); !ok {
		t.Error("toggle not handled")
	}
	if cmds.stopped != 1 {
		t.Errorf("RequestStop calls = %d, want 1", cmds.stopped)
	}
	if _, ok := l.Handle(keyDown("f3", time.Unix(1, 0))); ok {
		t.Error("record reported sent on a full queue")
	}
	if cmds.stopped != 1 {
		t.Errorf("record must not request stop")
	}
}

func TestListener_Run(t *testing.T) {
	cmds := &fakeCommander{}
	l := NewListener(config.NewStaticStore(config.Default()), cmds)
	events := make(chan inputhook.Event, 2)
	events <- keyDown("f12", time.Unix(0, 0))
	close(events)
	l.Run(events)
	if len(cmds.sent) != 1 || cmds.sent[0] != loop.CmdExit {
		t.Errorf("sent %v", cmds.sent)
	}
}
