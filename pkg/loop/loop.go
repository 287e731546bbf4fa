package loop

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/internal/timeutil"
	"github.com/teslashibe/go-hunter/pkg/actuator"
	"github.com/teslashibe/go-hunter/pkg/attack"
	"github.com/teslashibe/go-hunter/pkg/capture"
	"github.com/teslashibe/go-hunter/pkg/detection"
	"github.com/teslashibe/go-hunter/pkg/macro"
	"github.com/teslashibe/go-hunter/pkg/metrics"
	"github.com/teslashibe/go-hunter/pkg/notify"
	"github.com/teslashibe/go-hunter/pkg/tracking"
)

// Publisher accepts outbound events without blocking.
type Publisher interface {
	Publish(ev notify.Event) error
}

// Deps are the loop's collaborators. Async, Recorder, Player, Events,
// Reporter, Metrics, Display and Clock are optional.
type Deps struct {
	Shared   *Shared
	Source   capture.Source
	Detector detection.Detector
	Async    *detection.Async
	Actuator *actuator.Actuator
	Player   *macro.Player
	Recorder *macro.Recorder
	Events   Publisher
	Reporter Reporter
	Metrics  *metrics.Manager
	// Display is the screen rectangle used for the fail-safe corner.
	Display image.Rectangle
	Clock   timeutil.Clock
}

// Loop is the control loop. It is the only writer of tracking and attack
// state; Run must be called from a single goroutine.
type Loop struct {
	shared   *Shared
	source   capture.Source
	detector detection.Detector
	async    *detection.Async
	act      *actuator.Actuator
	recorder *macro.Recorder
	events   Publisher
	reporter Reporter
	metrics  *metrics.Manager
	display  image.Rectangle
	clock    timeutil.Clock
	lg       *slog.Logger
	errs     *log.Limiter

	cfg     *config.Config
	filter  detection.Filter
	tracker *tracking.Tracker
	sweeper *tracking.Sweeper
	machine *attack.Machine

	session  *Session
	last     tracking.Result
	lastConf float64
	frame    capture.Frame
	hasFrame bool
}

// New builds a Loop from deps and the current config snapshot.
func New(d Deps) *Loop {
	if d.Clock == nil {
		d.Clock = timeutil.RealClock{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}
	if d.Detector == nil {
		d.Detector = detection.Disabled{}
	}

	cfg := d.Shared.Config.Current()
	l := &Loop{
		shared:   d.Shared,
		source:   d.Source,
		detector: d.Detector,
		async:    d.Async,
		act:      d.Actuator,
		recorder: d.Recorder,
		events:   d.Events,
		reporter: d.Reporter,
		metrics:  d.Metrics,
		display:  d.Display,
		clock:    d.Clock,
		lg:       log.With("component", "loop"),
		errs:     log.NewLimiter(5 * time.Second),
		tracker:  tracking.New(tracking.ConfigFrom(cfg)),
		sweeper:  tracking.NewSweeper(cfg.SweepPeriod()),
		session:  newSession(d.Clock.Now()),
	}

	var player attack.SequencePlayer
	if d.Player != nil {
		player = d.Player
	}
	l.machine = attack.New(attack.ConfigFrom(cfg), d.Actuator, player, l)
	l.act.OnError(func(error) { l.metrics.IncError("actuator") })
	l.applyConfig(cfg)
	l.loadSequence(cfg.Attack.SequencePath)
	return l
}

// loadSequence installs the recorded sequence from path. A missing file
// is normal; a malformed one falls back to the built-in attack.
func (l *Loop) loadSequence(path string) {
	if path == "" {
		return
	}
	seq, err := macro.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.lg.Debug("no recorded sequence", "path", path)
	case err != nil:
		l.lg.Warn("recorded sequence rejected, using built-in attack", "path", path, "error", err)
	default:
		l.machine.SetSequence(seq)
		l.lg.Info("recorded sequence loaded", "name", seq.Name, "actions", len(seq.Actions), "duration", seq.Length())
	}
}

// applyConfig pushes a new snapshot into every component.
func (l *Loop) applyConfig(cfg *config.Config) {
	if cfg == l.cfg {
		return
	}
	l.cfg = cfg
	l.filter = detection.FilterFrom(cfg.Detection)
	l.tracker.SetConfig(tracking.ConfigFrom(cfg))
	l.sweeper.SetPeriod(cfg.SweepPeriod())
	l.machine.SetConfig(attack.ConfigFrom(cfg))
	l.act.SetOptions(actuator.Options{
		Aimer:       actuator.NewAimer(cfg.Aiming.MouseSmoothFactor, cfg.Aiming.MaxMouseSpeedPx, cfg.TickInterval()),
		MaxHold:     cfg.MaxClickDuration(),
		CameraLeft:  cfg.Camera.LeftKey,
		CameraRight: cfg.Camera.RightKey,
	})
	if l.recorder != nil {
		l.recorder.SetSkipKeys(cfg.Hotkeys.Toggle, cfg.Hotkeys.Record, cfg.Hotkeys.Exit)
	}
}

// interval is the tick period for the current mode.
func (l *Loop) interval() time.Duration {
	if l.shared.Mode() == Running {
		return l.cfg.TickInterval()
	}
	if d := l.cfg.IdleBackoff(); d > 0 {
		return d
	}
	return l.cfg.TickInterval()
}

// Run ticks until ctx is cancelled or an exit command arrives. All input
// is released before it returns.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.lg.Info("control loop ready", "tick_hz", l.cfg.Loop.TickHz, "mode", l.shared.Mode().String())
	for {
		select {
		case <-ctx.Done():
			l.halt(l.clock.Now(), "shutdown")
			return nil
		case <-ticker.C:
			if exit := l.tick(ctx, l.clock.Now()); exit {
				l.halt(l.clock.Now(), "exit")
				return nil
			}
			if next := l.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// tick runs one iteration in fixed order. It reports whether the loop
// should exit.
func (l *Loop) tick(ctx context.Context, now time.Time) bool {
	start := l.clock.Now()
	l.applyConfig(l.shared.Config.Current())

	if l.drainCommands(now) {
		return true
	}
	if l.shared.takeStop() && l.shared.Mode() == Running {
		l.stopRun(now, "stop requested")
	}
	if l.shared.Mode() != Running {
		return false
	}
	if l.failsafe() {
		l.lg.Warn("cursor in fail-safe corner, stopping")
		l.stopRun(now, "failsafe")
		return false
	}

	l.session.Ticks++
	res := l.carry()
	if frame, ok := l.capture(ctx); ok {
		l.frame, l.hasFrame = frame, true
		res = l.observe(frame, now)
	}

	l.aim(res, now)
	phase := l.machine.Step(now, res.State == tracking.Locked)
	for range l.act.Enforce(now) {
		l.metrics.IncHoldCap()
	}

	l.report(res, phase, now)
	l.metrics.ObserveTick(l.clock.Since(start))
	return false
}

func (l *Loop) drainCommands(now time.Time) bool {
	for {
		select {
		case cmd := <-l.shared.cmds:
			l.lg.Debug("command", "cmd", cmd.String())
			switch cmd {
			case CmdToggle:
				if l.shared.Mode() == Running {
					l.stopRun(now, "toggle")
				} else {
					l.startRun(now)
				}
			case CmdStart:
				l.startRun(now)
			case CmdStop:
				if l.shared.Mode() == Running {
					l.stopRun(now, "stop")
				}
			case CmdRecord:
				l.toggleRecording(now)
			case CmdExit:
				return true
			}
		default:
			return false
		}
	}
}

func (l *Loop) capture(ctx context.Context) (capture.Frame, bool) {
	frame, err := l.source.Capture(ctx, l.cfg.Capture.ROIFraction)
	if err != nil {
		l.metrics.IncError("capture")
		l.errs.Warn(l.lg, "capture", "capture failed, skipping tick", "error", err)
		return capture.Frame{}, false
	}
	return frame, true
}

// carry returns the previous result without per-tick transition flags.
func (l *Loop) carry() tracking.Result {
	r := l.last
	r.Detected, r.Acquired, r.Lost = false, false, false
	return r
}

// observe detects on frame and advances the tracker.
func (l *Loop) observe(frame capture.Frame, now time.Time) tracking.Result {
	var dets []detection.Detection
	if l.cfg.Detection.Async && l.async != nil {
		l.async.Submit(frame.Image, frame.At)
		r, fresh := l.async.Latest()
		if !fresh {
			return l.carry()
		}
		if r.Err != nil {
			l.metrics.IncError("detection")
		}
		dets = r.Detections
	} else {
		var err error
		dets, err = l.detector.Detect(frame.Image)
		if err != nil {
			l.metrics.IncError("detection")
			l.errs.Warn(l.lg, "detect", "detection failed", "error", err)
		}
		for i := range dets {
			dets[i].At = frame.At
		}
	}

	best := detection.Best(dets, l.cfg.Detection.Threshold, l.filter)
	res := l.tracker.Update(best, now)
	if best != nil {
		l.session.Detections++
		l.lastConf = best.Confidence
		l.metrics.IncDetection()
	}
	l.metrics.SetTrackState(res.State == tracking.Locked, res.Acquired)

	switch {
	case res.Acquired:
		l.session.Acquisitions++
		l.sweeper.Reset(0)
		ev := l.event(notify.TargetAcquired, now)
		ev.Target = l.target(res)
		l.publish(ev)
	case res.Lost:
		l.sweeper.Reset(sign(res.Velocity.X))
		l.publish(l.event(notify.TargetLost, now))
	}
	l.last = res
	return res
}

// aim decides cursor and camera motion for this tick.
func (l *Loop) aim(res tracking.Result, now time.Time) {
	locked := res.State == tracking.Locked
	switch l.machine.Phase() {
	case attack.Idle:
		if !locked {
			_ = l.act.Rotate(l.sweeper.Direction(now))
			return
		}
		_ = l.act.Rotate(0)
		if l.hasFrame {
			_ = l.act.MoveToward(aimPoint(res, l.frame, l.cfg.Aiming.AimOffsetX))
		}
	case attack.Load:
		dir := 0
		if locked && l.hasFrame {
			dir = edgeDirection(res.Position.X, float64(l.frame.Width()), l.cfg.Tracking.EdgeFraction)
		}
		_ = l.act.Rotate(dir)
	}
	// FIRE and COOLDOWN: aim is frozen
}

// aimPoint is the screen point to aim at: aim_offset_x of the box width in
// from its left edge at the predicted position, vertically centered.
func aimPoint(res tracking.Result, frame capture.Frame, offsetX float64) image.Point {
	x := res.Predicted.X - res.Size.X/2 + offsetX*res.Size.X
	return frame.ToScreen(x, res.Predicted.Y)
}

// edgeDirection returns -1 or +1 when x lies in the outer edge band of a
// frame of the given width, 0 inside the band.
func edgeDirection(x, width, edge float64) int {
	if width <= 0 || edge <= 0 {
		return 0
	}
	f := x / width
	switch {
	case f < edge:
		return -1
	case f > 1-edge:
		return 1
	default:
		return 0
	}
}

func sign(v float64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func (l *Loop) failsafe() bool {
	px := l.cfg.Safety.FailsafeCornerPx
	if px <= 0 {
		return false
	}
	pos := l.act.CursorPosition()
	dx, dy := pos.X-l.display.Min.X, pos.Y-l.display.Min.Y
	return dx >= 0 && dy >= 0 && dx < px && dy < px
}

func (l *Loop) startRun(now time.Time) {
	switch l.shared.Mode() {
	case Running:
		return
	case Recording:
		l.lg.Warn("finish the recording before starting")
		return
	}
	l.session = newSession(now)
	l.tracker.Reset()
	l.sweeper.Reset(0)
	l.last = tracking.Result{}
	l.shared.setMode(Running)
	l.metrics.SetRunning(true)

	ev := l.event(notify.LoopStarted, now)
	sum := l.session.Summary(now, "")
	ev.Summary = &sum
	l.publish(ev)
	l.lg.Info("hunter started", "session", l.session.ID.String())
	l.report(l.last, l.machine.Phase(), now)
}

// stopRun ends the run: the attack is stopped and every input released
// before it returns.
func (l *Loop) stopRun(now time.Time, reason string) {
	l.machine.Stop(now)
	if err := l.act.ReleaseAll(); err != nil {
		l.lg.Warn("release incomplete", "error", err)
	}
	l.tracker.Reset()
	l.last = tracking.Result{}
	l.shared.setMode(Stopped)
	l.metrics.SetRunning(false)
	l.metrics.SetTrackState(false, false)

	ev := l.event(notify.LoopStopped, now)
	sum := l.session.Summary(now, reason)
	ev.Summary = &sum
	l.publish(ev)
	l.lg.Info("hunter stopped", "reason", reason, "runtime", sum.Runtime.Round(time.Second), "cycles", sum.Cycles)
	l.report(l.last, attack.Idle, now)
}

// halt leaves the loop in a safe state before Run returns.
func (l *Loop) halt(now time.Time, reason string) {
	switch l.shared.Mode() {
	case Running:
		l.stopRun(now, reason)
	case Recording:
		if _, err := l.recorder.Stop(now, ""); err != nil {
			l.lg.Debug("recording discarded on exit", "error", err)
		}
		l.shared.setMode(Stopped)
	}
	if err := l.act.ReleaseAll(); err != nil {
		l.lg.Warn("release on exit incomplete", "error", err)
	}
}

// toggleRecording starts or finishes a recording. Recording is only
// allowed while the loop is stopped.
func (l *Loop) toggleRecording(now time.Time) {
	if l.recorder == nil {
		l.lg.Warn("recording unavailable: no input hook")
		return
	}
	switch l.shared.Mode() {
	case Running:
		l.lg.Warn("stop the hunter before recording")

	case Stopped:
		if err := l.recorder.Start(now); err != nil {
			l.lg.Warn("recording not started", "error", err)
			return
		}
		l.shared.setMode(Recording)
		l.lg.Info("recording started")

	case Recording:
		l.shared.setMode(Stopped)
		seq, err := l.recorder.Stop(now, "")
		if err != nil {
			l.lg.Warn("recording not kept", "error", err)
			return
		}
		if path := l.cfg.Attack.SequencePath; path != "" {
			if err := macro.Save(path, seq); err != nil {
				l.lg.Warn("recording not saved", "path", path, "error", err)
			}
		}
		l.machine.SetSequence(seq)
	}
	l.report(l.last, l.machine.Phase(), now)
}

// SequenceInfo describes the loaded sequence.
func (l *Loop) SequenceInfo() macro.Info {
	return macro.Describe(l.machine.Sequence())
}

// ClearSequence unloads the recorded sequence and deletes its file.
func (l *Loop) ClearSequence() error {
	l.machine.SetSequence(nil)
	path := l.shared.Config.Current().Attack.SequencePath
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SetReporter sets the dashboard reporter. It must be called before Run.
func (l *Loop) SetReporter(r Reporter) { l.reporter = r }

// Machine exposes the attack state machine for status queries.
func (l *Loop) Machine() *attack.Machine { return l.machine }

func (l *Loop) event(t notify.Type, now time.Time) notify.Event {
	return notify.New(t, now, l.session.ID)
}

func (l *Loop) target(res tracking.Result) *notify.Target {
	t := &notify.Target{Confidence: l.lastConf}
	if l.hasFrame {
		p := l.frame.ToScreen(res.Position.X, res.Position.Y)
		t.X, t.Y = p.X, p.Y
	}
	return t
}

func (l *Loop) publish(ev notify.Event) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ev); err != nil {
		l.lg.Debug("event not published", "type", string(ev.Type), "error", err)
	}
}

// PhaseEntered implements attack.Observer.
func (l *Loop) PhaseEntered(p attack.Phase, at time.Time) {
	l.metrics.SetPhase(p.String())
	ev := l.event(notify.PhaseEntered, at)
	ev.Phase = p.String()
	if p == attack.Load && l.last.State == tracking.Locked {
		ev.Target = l.target(l.last)
	}
	l.publish(ev)
}

// CycleCompleted implements attack.Observer.
func (l *Loop) CycleCompleted(s attack.CycleStats) {
	l.session.Cycles++
	l.metrics.IncCycle()
	ev := l.event(notify.CycleCompleted, s.Completed)
	ev.Cycle = &s
	l.publish(ev)
}

func (l *Loop) report(res tracking.Result, phase attack.Phase, now time.Time) {
	if l.reporter == nil {
		return
	}
	st := Status{
		Mode:       l.shared.Mode().String(),
		Phase:      phase.String(),
		Track:      res.State.String(),
		Grace:      res.Grace,
		Ticks:      l.session.Ticks,
		Detections: l.session.Detections,
		Cycles:     l.session.Cycles,
		At:         now,
	}
	if l.shared.Mode() == Running {
		st.Session = l.session.ID.String()
		st.RuntimeMS = now.Sub(l.session.Started).Milliseconds()
	}
	for _, in := range l.act.Held() {
		st.Held = append(st.Held, in.String())
	}
	if info := l.SequenceInfo(); info.Exists {
		st.Sequence = &info
	}
	locked := res.State == tracking.Locked
	if locked && l.hasFrame {
		p := l.frame.ToScreen(res.Position.X, res.Position.Y)
		a := aimPoint(res, l.frame, l.cfg.Aiming.AimOffsetX)
		st.Target = &Position{X: p.X, Y: p.Y}
		st.Aim = &Position{X: a.X, Y: a.Y}
		st.Confidence = l.lastConf
	}
	l.reporter.UpdateStatus(st)

	every := int64(l.cfg.Dashboard.FrameEvery)
	if every <= 0 || !l.hasFrame || l.session.Ticks%every != 0 || !l.reporter.WantsFrames() {
		return
	}
	var box image.Rectangle
	if locked {
		box = image.Rect(
			int(math.Round(res.Position.X-res.Size.X/2)), int(math.Round(res.Position.Y-res.Size.Y/2)),
			int(math.Round(res.Position.X+res.Size.X/2)), int(math.Round(res.Position.Y+res.Size.Y/2)),
		)
	}
	l.reporter.SendFrame(l.frame.Image, box)
}
