package gate

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/storage"
)

// Window is a time-bounded shutdown state. While active, the boundary
// rejects storefront traffic with 503. It clears itself when the deadline
// passes.
type Window struct {
	log *zap.Logger

	mu       sync.Mutex
	deadline time.Time
	timer    *time.Timer
	now      func() time.Time
}

func NewWindow(log *zap.Logger) *Window {
	return &Window{log: log, now: time.Now}
}

// Activate opens the window for the given number of seconds, replacing any
// window already in progress.
func (w *Window) Activate(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("shutdown duration must be positive, got %d: %w", seconds, storage.ErrInvalidInput)
	}

	d := time.Duration(seconds) * time.Second

	w.mu.Lock()
	defer w.mu.Unlock()

	w.deadline = w.now().Add(d)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, func() {
		w.log.Info("shutdown window elapsed, storefront reopened")
	})

	w.log.Info("shutdown window activated", zap.Int("seconds", seconds), zap.Time("until", w.deadline))
	return nil
}

// IsActive reports whether the window is still open.
func (w *Window) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Before(w.deadline)
}

// Deadline returns when the current window ends; zero when none is active.
func (w *Window) Deadline() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.now().Before(w.deadline) {
		return time.Time{}
	}
	return w.deadline
}
