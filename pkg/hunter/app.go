package hunter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/internal/timeutil"
	"github.com/teslashibe/go-hunter/pkg/actuator"
	"github.com/teslashibe/go-hunter/pkg/capture"
	"github.com/teslashibe/go-hunter/pkg/detection"
	"github.com/teslashibe/go-hunter/pkg/hotkey"
	"github.com/teslashibe/go-hunter/pkg/inputhook"
	"github.com/teslashibe/go-hunter/pkg/loop"
	"github.com/teslashibe/go-hunter/pkg/macro"
	"github.com/teslashibe/go-hunter/pkg/metrics"
	"github.com/teslashibe/go-hunter/pkg/notify"
	"github.com/teslashibe/go-hunter/pkg/store"
	"github.com/teslashibe/go-hunter/pkg/web"
)

const (
	// recorderMoveEvery thins recorded cursor moves.
	recorderMoveEvery = 20 * time.Millisecond

	drainTimeout = 5 * time.Second
)

// App is the main application orchestrator.
// It owns every component and their lifecycle.
type App struct {
	opts  Options
	store *config.Store
	lg    *slog.Logger

	shared   *loop.Shared
	loop     *loop.Loop
	detector detection.Detector
	async    *detection.Async
	act      *actuator.Actuator
	recorder *macro.Recorder
	metrics  *metrics.Manager

	inputs   *inputhook.Hub
	listener *hotkey.Listener

	dispatcher *notify.Dispatcher
	history    *store.Store

	web   *web.Server
	webLn net.Listener
}

// New loads the configuration and sets up logging. An unreadable or
// invalid config file is logged and the defaults are used instead.
func New(opts Options) (*App, error) {
	cs, loadErr := config.NewStore(opts.ConfigPath)
	cfg := cs.Current()

	level := cfg.Log.Level
	if opts.Debug {
		level = "debug"
	}
	log.Setup(log.Options{Level: level, Format: cfg.Log.Format, File: cfg.Log.File})
	if loadErr != nil {
		log.Warn("config rejected, using defaults", "path", opts.ConfigPath, "error", loadErr)
	}

	return &App{
		opts:    opts,
		store:   cs,
		lg:      log.With("component", "app"),
		metrics: metrics.Default(),
	}, nil
}

// Init builds every component.
// Call this after New() and before Run().
func (a *App) Init() error {
	cfg := a.store.Current()
	a.lg.Info("go-hunter starting", "config", a.store.Path(), "tick_hz", cfg.Loop.TickHz, "dry_run", a.opts.NoClicks)

	source, display, err := a.openCapture(cfg)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	// A missing model disables detection; the loop still runs
	a.detector, _ = detection.Open(detection.ConfigFrom(cfg.Detection))
	if cfg.Detection.Async {
		a.async = detection.NewAsync(a.detector)
	}

	backend := a.opts.Backend
	switch {
	case backend != nil:
	case a.opts.NoClicks:
		c := center(display)
		backend = actuator.NewDryRun(c.X, c.Y)
	default:
		backend = actuator.RobotgoBackend{}
	}
	a.act = actuator.New(backend, actuator.Options{})

	a.shared = loop.NewShared(a.store)
	a.recorder = macro.NewRecorder(recorderMoveEvery)
	a.initInput()

	if err := a.initNotify(cfg); err != nil {
		return err
	}

	if cfg.Dashboard.Enabled {
		ln, err := net.Listen("tcp", cfg.Dashboard.Addr)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		a.webLn = ln
	}

	a.loop = loop.New(loop.Deps{
		Shared:   a.shared,
		Source:   source,
		Detector: a.detector,
		Async:    a.async,
		Actuator: a.act,
		Player:   macro.NewPlayer(a.act, timeutil.RealClock{}),
		Recorder: a.recorder,
		Events:   a.dispatcher,
		Metrics:  a.metrics,
		Display:  display,
	})

	if a.webLn != nil {
		deps := web.Deps{
			Config:    a.store,
			Control:   a.shared,
			Sequences: a.loop,
			Metrics:   a.metrics,
		}
		if a.history != nil {
			deps.History = a.history
		}
		a.web = web.NewServer(cfg.Dashboard.Addr, deps)
		a.loop.SetReporter(a.web)
	}
	return nil
}

func (a *App) openCapture(cfg *config.Config) (capture.Source, image.Rectangle, error) {
	if a.opts.Source != nil {
		return a.opts.Source, a.opts.Display, nil
	}
	screen := capture.NewScreen(cfg.Capture.Display)
	display, err := screen.Bounds()
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	a.lg.Info("capturing display", "display", cfg.Capture.Display, "bounds", display.String(),
		"roi", capture.ROI(display, cfg.Capture.ROIFraction).String())
	return screen, display, nil
}

func (a *App) initInput() {
	src := a.opts.Input
	if src == nil {
		src = inputhook.NewGohookSource()
	}
	a.inputs = inputhook.NewHub(src)
	a.listener = hotkey.NewListener(a.store, a.shared)
}

func (a *App) initNotify(cfg *config.Config) error {
	sinks := []notify.Sink{notify.NewLogSink()}

	if cfg.Notify.Enabled {
		discord, err := notify.NewDiscord(notify.DiscordConfig{
			WebhookURL:  cfg.Notify.WebhookURL,
			MaxAttempts: cfg.Notify.MaxAttempts,
		})
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		// Only the webhook is filtered and rate limited
		webhook := notify.NewFilter(discord, cfg.NotifyRateLimit(), enabledFunc(cfg))
		a.store.OnSwap(func(next *config.Config) {
			webhook.Configure(next.NotifyRateLimit(), enabledFunc(next))
		})
		sinks = append(sinks, webhook)
	}

	if cfg.History.Enabled {
		db, err := store.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		a.history = db
		sinks = append(sinks, db.Sink())
	}

	a.dispatcher = notify.NewDispatcher(notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		OnDrop:    a.metrics.IncDropped,
	}, sinks...)
	return nil
}

func enabledFunc(cfg *config.Config) func(notify.Type) bool {
	return func(t notify.Type) bool { return cfg.EventEnabled(string(t)) }
}

func center(r image.Rectangle) image.Point {
	if r.Empty() {
		return image.Point{}
	}
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

// Run starts the background workers and the control loop.
// Blocks until ctx is cancelled or the exit hotkey is pressed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if err := a.store.Watch(ctx); err != nil {
		a.lg.Warn("config hot reload unavailable", "error", err)
	}

	// Notifications outlive ctx so the final loop_stopped is delivered
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()
	start(func() { a.dispatcher.Run(notifyCtx) })

	if a.async != nil {
		start(func() { a.async.Run(ctx) })
	}

	keys, unsubKeys := a.inputs.Subscribe(64)
	recorded, unsubRecorded := a.inputs.Subscribe(256)
	start(func() { a.inputs.Run(ctx) })
	start(func() { a.listener.Run(keys) })
	start(func() { a.recorder.Run(recorded) })

	if a.web != nil {
		start(func() {
			if err := a.web.Serve(ctx, a.webLn); err != nil {
				a.lg.Warn("dashboard stopped", "error", err)
			}
		})
	}

	if a.opts.Autostart {
		if err := a.shared.Enqueue(loop.CmdStart); err != nil {
			a.lg.Warn("autostart failed", "error", err)
		}
	} else {
		cfg := a.store.Current()
		a.lg.Info("ready", "toggle", cfg.Hotkeys.Toggle, "record", cfg.Hotkeys.Record, "exit", cfg.Hotkeys.Exit)
	}

	err := a.loop.Run(ctx)

	cancel()
	unsubKeys()
	unsubRecorded()

	dctx, dcancel := context.WithTimeout(context.Background(), drainTimeout)
	if cerr := a.dispatcher.Close(dctx); cerr != nil {
		a.lg.Warn("notifications not drained", "error", cerr)
	}
	dcancel()
	stopNotify()

	wg.Wait()
	return err
}

// Shutdown releases resources. All input is released first.
func (a *App) Shutdown() {
	var errs []error
	if a.act != nil {
		errs = append(errs, a.act.ReleaseAll())
	}
	if a.web != nil {
		errs = append(errs, a.web.Shutdown())
	}
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.lg.Warn("shutdown incomplete", "error", err)
	}
	a.lg.Info("goodbye")
	_ = log.Close()
}

// Shared exposes the loop's command channel and mode.
func (a *App) Shared() *loop.Shared { return a.shared }
