package detection

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-hunter/internal/log"
)

// Result is one completed inference.
type Result struct {
	Detections []Detection
	At         time.Time // capture time of the frame
	Seq        uint64
	Err        error
}

// Async runs a Detector on a background goroutine. Submit never blocks:
// while an inference is running, newer frames replace the pending one.
// Latest returns the most recent completed result.
type Async struct {
	det     Detector
	pending chan job

	mu     sync.Mutex
	latest Result
	taken  uint64
	seq    uint64

	done chan struct{}
}

type job struct {
	img image.Image
	at  time.Time
}

// NewAsync wraps det.
func NewAsync(det Detector) *Async {
	return &Async{
		det:     det,
		pending: make(chan job, 1),
		done:    make(chan struct{}),
	}
}

// Run processes frames until ctx is done.
func (a *Async) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-a.pending:
			dets, err := a.det.Detect(j.img)
			if err != nil {
				log.Debug("async detect failed", "error", err)
			}
			for i := range dets {
				dets[i].At = j.at
			}
			a.mu.Lock()
			a.seq++
			a.latest = Result{Detections: dets, At: j.at, Seq: a.seq, Err: err}
			a.mu.Unlock()
		}
	}
}

// Submit queues img for detection, replacing any frame still waiting.
func (a *Async) Submit(img image.Image, at time.Time) {
	j := job{img: img, at: at}
	for {
		select {
		case a.pending <- j:
			return
		default:
		}
		// Drop the stale frame and retry
		select {
		case <-a.pending:
		default:
		}
	}
}

// Latest returns the newest completed result and whether it has not been
// returned by Latest before.
func (a *Async) Latest() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fresh := a.latest.Seq > a.taken
	a.taken = a.latest.Seq
	return a.latest, fresh
}

// Wait blocks until Run has returned.
func (a *Async) Wait() { <-a.done }
