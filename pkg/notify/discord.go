package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-hunter/internal/httpc"
	"github.com/teslashibe/go-hunter/internal/log"
	"github.com/teslashibe/go-hunter/internal/timeutil"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
	maxErrorBody       = 256
)

// DiscordConfig configures a Discord webhook sink.
type DiscordConfig struct {
	WebhookURL  string
	Username    string
	MaxAttempts int
	RetryDelay  time.Duration // doubled after each failed attempt
	Client      *http.Client
	Clock       timeutil.Clock
}

// Discord posts events as embeds to a Discord webhook.
type Discord struct {
	cfg DiscordConfig
	lg  *slog.Logger
}

// NewDiscord creates a Discord sink.
func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	if cfg.WebhookURL == "" {
		return nil, ErrNoWebhook
	}
	if cfg.Username == "" {
		cfg.Username = "go-hunter"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Client == nil {
		cfg.Client = httpc.Client
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Discord{cfg: cfg, lg: log.With("component", "notify.discord")}, nil
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Timestamp string       `json:"timestamp"`
	Fields    []embedField `json:"fields,omitempty"`
	Footer    *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
}

type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

var colors = map[Type]int{
	TargetAcquired: 0x2ecc71,
	TargetLost:     0xe67e22,
	PhaseEntered:   0x3498db,
	CycleCompleted: 0x9b59b6,
	LoopStarted:    0x1abc9c,
	LoopStopped:    0xe74c3c,
}

var titles = map[Type]string{
	TargetAcquired: "Target acquired",
	TargetLost:     "Target lost",
	PhaseEntered:   "Attack phase",
	CycleCompleted: "Attack cycle completed",
	LoopStarted:    "Hunter started",
	LoopStopped:    "Hunter stopped",
}

func buildPayload(username string, ev Event) webhookPayload {
	e := embed{
		Title:     titles[ev.Type],
		Color:     colors[ev.Type],
		Timestamp: ev.At.UTC().Format(time.RFC3339),
	}
	if e.Title == "" {
		e.Title = string(ev.Type)
	}
	add := func(name, value string) {
		e.Fields = append(e.Fields, embedField{Name: name, Value: value, Inline: true})
	}

	if ev.Phase != "" {
		add("Phase", ev.Phase)
	}
	if t := ev.Target; t != nil {
		add("Position", fmt.Sprintf("%d, %d", t.X, t.Y))
		add("Confidence", fmt.Sprintf("%.0f%%", t.Confidence*100))
	}
	if c := ev.Cycle; c != nil {
		add("Cycle", fmt.Sprintf("#%d", c.Number))
		add("Mode", c.Mode)
		add("Duration", c.Duration.Round(100*time.Millisecond).String())
	}
	if s := ev.Summary; s != nil {
		add("Runtime", s.Runtime.Round(time.Second).String())
		add("Cycles", fmt.Sprintf("%d", s.Cycles))
		add("Detections", fmt.Sprintf("%d", s.Detections))
		if s.Reason != "" {
			add("Reason", s.Reason)
		}
	}
	e.Footer = &struct {
		Text string `json:"text"`
	}{Text: "session " + ev.Session.String()[:8]}

	return webhookPayload{Username: username, Embeds: []embed{e}}
}

// Send posts ev, retrying transport errors, 429 and 5xx up to MaxAttempts.
func (d *Discord) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(buildPayload(d.cfg.Username, ev))
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	delay := d.cfg.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.cfg.Clock.After(delay):
			}
			delay *= 2
		}

		lastErr = d.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		d.lg.Debug("webhook attempt failed", "attempt", attempt, "error", lastErr)
	}
	return fmt.Errorf("notify: giving up after %d attempts: %w", d.cfg.MaxAttempts, lastErr)
}

func (d *Discord) post(ctx context.Context, body []byte) error {
	status, msg, err := httpc.PostJSON(ctx, d.cfg.Client, d.cfg.WebhookURL, body, maxErrorBody)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	if status >= 200 && status < 300 {
		return nil
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(msg))}
}
