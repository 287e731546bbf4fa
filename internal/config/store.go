package config

import (
	"context"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Store publishes the current configuration snapshot. Readers call
// Current once per tick and use that pointer for the whole tick; writers
// replace the pointer, never the pointee.
type Store struct {
	path    string
	current atomic.Pointer[Config]
	onSwap  atomic.Pointer[func(*Config)]
}

// NewStore loads path and returns a Store holding the result. If loading
// fails the Store starts from defaults and the error is returned alongside
// it so the caller can report it.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	cfg, err := Load(path)
	if err != nil {
		s.current.Store(Default())
		return s, err
	}
	s.current.Store(cfg)
	return s, nil
}

// NewStaticStore returns a Store that holds cfg and has no backing file.
func NewStaticStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Current returns the active snapshot. Callers must not mutate it.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// OnSwap registers fn to be called after every successful swap.
func (s *Store) OnSwap(fn func(*Config)) {
	s.onSwap.Store(&fn)
}

// Swap validates cfg and publishes it. An invalid cfg leaves the current
// snapshot in place.
func (s *Store) Swap(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(cfg)
	if fn := s.onSwap.Load(); fn != nil {
		(*fn)(cfg)
	}
	return nil
}

// Reload re-reads the backing file. On failure the last-known-good
// snapshot stays active.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	return s.Swap(cfg)
}

// Watch reloads the store whenever the backing file changes, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	lg := log.With("component", "config")
	fp := file.Provider(s.path)
	err := fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			lg.Warn("config watch error", "error", err)
			return
		}
		if err := s.Reload(); err != nil {
			lg.Warn("config reload rejected, keeping last-known-good", "error", err)
			return
		}
		lg.Info("config reloaded", "path", s.path)
	})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = fp.Unwatch()
	}()
	return nil
}
