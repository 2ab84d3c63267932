package members

import "time"

// fadeAnimation is a start/target/duration tuple sampled by wall time. The
// painter reads the scalar via Value; nothing ticks it.
type fadeAnimation struct {
	from      float64
	to        float64
	startTime time.Time
	duration  time.Duration
	animating bool
}

func (a *fadeAnimation) Start(from, to float64, now time.Time, d time.Duration) {
	a.from = from
	a.to = to
	a.startTime = now
	a.duration = d
	a.animating = true
}

// Value returns the interpolated scalar at now, or def when no fade has been
// started.
func (a *fadeAnimation) Value(now time.Time, def float64) float64 {
	if !a.animating {
		return def
	}
	if a.duration <= 0 {
		return a.to
	}
	elapsed := now.Sub(a.startTime)
	if elapsed >= a.duration {
		return a.to
	}
	if elapsed < 0 {
		return a.from
	}
	progress := float64(elapsed) / float64(a.duration)
	return a.from + (a.to-a.from)*progress
}

// blobLevel interpolates the displayed audio level toward the last observed
// level across a fixed window.
type blobLevel struct {
	current  float64
	target   float64
	max      float64
	duration time.Duration
}

func (l *blobLevel) SetLevel(v float64) {
	if v > l.max {
		v = l.max
	}
	l.target = v
}

func (l *blobLevel) Update(elapsed time.Duration) {
	if l.duration <= 0 || elapsed >= l.duration {
		l.current = l.target
		return
	}
	if elapsed <= 0 {
		return
	}
	k := float64(elapsed) / float64(l.duration)
	l.current += (l.target - l.current) * k
}

func (l *blobLevel) Current() float64 {
	return l.current
}

// blobsAnimation is the per-row sounding sub-state. It exists only while the
// row is (or was recently) sounding; leaving the sounding state destroys it
// rather than pausing it.
type blobsAnimation struct {
	level              blobLevel
	lastTime           time.Time
	lastSoundingUpdate time.Time
	enter              float64
}

func newBlobsAnimation(st Style) *blobsAnimation {
	return &blobsAnimation{
		level: blobLevel{
			max:      st.MaxLevel,
			duration: st.LevelDuration.Std(),
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
