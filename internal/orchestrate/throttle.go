package orchestrate

import (
	"sync"
	"time"
)

// DefaultRefreshWindow is the minimum spacing between post-transaction data
// refreshes. Requests inside the window are dropped, not queued.
const DefaultRefreshWindow = 3000 * time.Millisecond

// Throttle rate-limits refresh work. One instance per Engine; callers pass it
// explicitly so tests can isolate time.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return &Throttle{window: window}
}

// ShouldRefresh reports whether enough time has passed since the last
// completed refresh. It does not record anything: only MarkRefreshed moves
// the window, and only after the refresh actually ran.
func (t *Throttle) ShouldRefresh(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last.IsZero() {
		return true
	}
	return now.Sub(t.last) >= t.window
}

func (t *Throttle) MarkRefreshed(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = now
}
