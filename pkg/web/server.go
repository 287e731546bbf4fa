// Package web provides the local dashboard: live status and overlay
// frames over websockets, plus a small JSON control API.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/pkg/hub"
	"github.com/teslashibe/go-hunter/pkg/loop"
	"github.com/teslashibe/go-hunter/pkg/macro"
	"github.com/teslashibe/go-hunter/pkg/metrics"
	"github.com/teslashibe/go-hunter/pkg/store"
)

//go:embed static
var static embed.FS

// Controller accepts commands for the control loop. *loop.Shared
// implements it.
type Controller interface {
	Mode() loop.Mode
	Enqueue(cmd loop.Command) error
	RequestStop()
}

// Sequences manages the recorded attack sequence. *loop.Loop implements it.
type Sequences interface {
	SequenceInfo() macro.Info
	ClearSequence() error
}

// History reads past sessions. *store.Store implements it.
type History interface {
	RecentSessions(ctx context.Context, n int) ([]store.Session, error)
	RecentCycles(ctx context.Context, n int) ([]store.Cycle, error)
}

// Deps are the server's collaborators. History and Metrics are optional.
type Deps struct {
	Config    *config.Store
	Control   Controller
	Sequences Sequences
	History   History
	Metrics   *metrics.Manager
}

// Server is the web dashboard server. It implements loop.Reporter.
type Server struct {
	app  *fiber.App
	addr string
	deps Deps
	lg   *slog.Logger

	status    loop.Status
	hasStatus bool
	statusMu  sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	frameHub  *hub.Hub

	statusClients atomic.Int32
	frameClients  atomic.Int32

	frames  chan frameJob
	encoded atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

var _ loop.Reporter = (*Server)(nil)

// NewServer creates a dashboard server that will listen on addr.
func NewServer(addr string, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:   addr,
		deps:   deps,
		lg:     log.With("component", "web"),
		frames: make(chan frameJob, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	s.statusHub = hub.New("status", hub.WithReplay(), hub.WithCountHook(func(n int) {
		s.statusClients.Store(int32(n))
		s.reportClients()
	}))
	s.frameHub = hub.New("frames", hub.WithCountHook(func(n int) {
		s.frameClients.Store(int32(n))
		s.reportClients()
	}))

	app := fiber.New(fiber.Config{
		AppName:               "Hunter Dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Post("/config/reload", s.handleReloadConfig)
	api.Get("/sequence", s.handleGetSequence)
	api.Delete("/sequence", s.handleClearSequence)
	api.Get("/history", s.handleHistory)
	api.Post("/control/:cmd", s.handleControl)

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(func(c *websocket.Conn) { s.statusHub.Serve(c) }))
	app.Get("/ws/frames", websocket.New(func(c *websocket.Conn) { s.frameHub.Serve(c) }))

	// Static files
	root, _ := fs.Sub(static, "static")
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(root),
		Index: "index.html",
	}))

	s.app = app
	return s
}

func (s *Server) reportClients() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetDashboardClients(int(s.statusClients.Load() + s.frameClients.Load()))
	}
}

// Start listens on the configured address and serves until Shutdown or
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln. It starts the hubs and the frame encoder and blocks
// until the server is shut down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(s.ctx)
	go s.frameHub.Run(s.ctx)
	go s.encodeFrames(s.ctx)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.Shutdown(); err != nil {
				s.lg.Warn("dashboard shutdown", "error", err)
			}
		case <-s.ctx.Done():
		}
	}()

	s.lg.Info("dashboard listening", "url", "http://"+ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the hubs, disconnects every client and closes the listener.
func (s *Server) Shutdown() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.app.ShutdownWithTimeout(5 * time.Second)
	})
	return err
}

// UpdateStatus stores s and broadcasts it to status clients.
func (s *Server) UpdateStatus(st loop.Status) {
	s.statusMu.Lock()
	s.status = st
	s.hasStatus = true
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.lg.Debug("status not broadcast", "error", err)
	}
}

// Status returns the last reported status.
func (s *Server) Status() (loop.Status, bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status, s.hasStatus
}

// WantsFrames reports whether any frame client is connected.
func (s *Server) WantsFrames() bool {
	return s.frameClients.Load() > 0
}
