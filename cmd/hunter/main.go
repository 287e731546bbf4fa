// go-hunter - screen-reading target tracker with a timed attack cycle
// Captures a region of the display, detects the target with an ONNX model
// and drives mouse and keyboard through a LOAD/FIRE/COOLDOWN cycle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-hunter/internal/config"
	"github.com/teslashibe/go-hunter/pkg/hunter"
)

func main() {
	opts, check := parseFlags()

	if check {
		os.Exit(checkConfig(opts.ConfigPath))
	}

	app, err := hunter.New(opts)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Printf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns the app options.
func parseFlags() (hunter.Options, bool) {
	var opts hunter.Options

	flag.StringVar(&opts.ConfigPath, "config", "hunter.yaml", "Config file (YAML or JSON); missing file uses defaults")
	flag.BoolVar(&opts.Autostart, "autostart", false, "Start hunting without waiting for the toggle hotkey")
	flag.BoolVar(&opts.NoClicks, "no-clicks", false, "Log input instead of emitting it")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable verbose debug logging")
	check := flag.Bool("check", false, "Load and validate the config, print it and exit")
	flag.Parse()

	return opts, *check
}

// checkConfig prints the effective configuration. It returns the exit code.
func checkConfig(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	fmt.Fprintln(os.Stderr, "✅ config OK")
	return 0
}
