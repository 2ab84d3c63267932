package members

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// frameClock is the single shared per-frame driver. The controller starts it
// when the sounding set becomes non-empty and stops it when the set empties;
// the tick callback may stop it early by returning false.
type frameClock struct {
	clk      clock.Clock
	interval time.Duration
	tick     func(now time.Time) bool

	mu   sync.Mutex
	stop chan struct{}
}

func newFrameClock(clk clock.Clock, interval time.Duration, tick func(now time.Time) bool) *frameClock {
	return &frameClock{
		clk:      clk,
		interval: interval,
		tick:     tick,
	}
}

func (f *frameClock) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		return
	}
	stop := make(chan struct{})
	f.stop = stop
	go f.run(stop)
}

func (f *frameClock) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop == nil {
		return
	}
	close(f.stop)
	f.stop = nil
}

func (f *frameClock) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stop != nil
}

func (f *frameClock) run(stop chan struct{}) {
	ticker := f.clk.Ticker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if !f.tick(now) {
				f.stopFrom(stop)
				return
			}
		}
	}
}

// stopFrom stops the clock only if it still runs the given generation, so a
// self-stop cannot cancel a clock that was already restarted.
func (f *frameClock) stopFrom(stop chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != stop {
		return
	}
	close(f.stop)
	f.stop = nil
}
