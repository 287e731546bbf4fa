package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hunter/pkg/attack"
)

func newTestDiscord(t *testing.T, url string) *Discord {
	t.Helper()
	d, err := NewDiscord(DiscordConfig{WebhookURL: url, MaxAttempts: 3, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return d
}

func TestDiscord_PostsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := New(CycleCompleted, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), uuid.New())
	ev.Cycle = &attack.CycleStats{Number: 7, Mode: "builtin", Duration: 11200 * time.Millisecond}

	require.NoError(t, newTestDiscord(t, srv.URL).Send(context.Background(), ev))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "go-hunter", got.Username)
	assert.Equal(t, "Attack cycle completed", e.Title)
	assert.Equal(t, "2026-01-02T03:04:05Z", e.Timestamp)
	assert.Contains(t, e.Fields, embedField{Name: "Cycle", Value: "#7", Inline: true})
	assert.Contains(t, e.Fields, embedField{Name: "Duration", Value: "11.2s", Inline: true})
}

func TestDiscord_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestDiscord(t, srv.URL).Send(context.Background(), New(TargetLost, time.Now(), uuid.New()))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDiscord_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestDiscord(t, srv.URL).Send(context.Background(), New(TargetLost, time.Now(), uuid.New()))
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRateLimited())
}

func TestDiscord_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestDiscord(t, srv.URL).Send(context.Background(), New(LoopStarted, time.Now(), uuid.New()))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "bad webhook", apiErr.Message)
	assert.False(t, apiErr.IsRetryable())
	assert.EqualValues(t, 1, calls.Load())
}

func TestDiscord_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, err := NewDiscord(DiscordConfig{WebhookURL: srv.URL, MaxAttempts: 5, RetryDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = d.Send(ctx, New(LoopStopped, time.Now(), uuid.New()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDiscord_RequiresURL(t *testing.T) {
	_, err := NewDiscord(DiscordConfig{})
	assert.ErrorIs(t, err, ErrNoWebhook)
}

func TestBuildPayload_Summary(t *testing.T) {
	ev := New(LoopStopped, time.Now(), uuid.New())
	ev.Summary = &Summary{Runtime: 95 * time.Second, Cycles: 4, Detections: 120, Reason: "hotkey"}
	p := buildPayload("bot", ev)

	require.Len(t, p.Embeds, 1)
	assert.Equal(t, "Hunter stopped", p.Embeds[0].Title)
	assert.Contains(t, p.Embeds[0].Fields, embedField{Name: "Runtime", Value: "1m35s", Inline: true})
	assert.Contains(t, p.Embeds[0].Fields, embedField{Name: "Reason", Value: "hotkey", Inline: true})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: refused"), true},
		{&APIError{StatusCode: 500}, true},
		{&APIError{StatusCode: 429}, true},
		{&APIError{StatusCode: 400}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}
