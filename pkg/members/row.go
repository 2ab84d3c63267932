package members

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/call"
)

// State classifies a row for icon rendering and menu defaults.
type State int

const (
	StateActive State = iota
	StateInactive
	StateMuted
	StateInvited
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateMuted:
		return "muted"
	case StateInvited:
		return "invited"
	}
	return "unknown"
}

// RowDelegate is the narrow capability surface a row needs from its owner.
type RowDelegate interface {
	RowCanMuteMembers() bool
	RowUpdated(row *Row)
}

// IconState carries the three fade scalars the external painter renders the
// row icon from.
type IconState struct {
	Speaking float64 `json:"speaking"`
	Active   float64 `json:"active"`
	Muted    float64 `json:"muted"`
}

// BlobState carries the avatar blob overlay parameters for the painter.
type BlobState struct {
	Enter        float64 `json:"enter"`
	Level        float64 `json:"level"`
	UserpicScale float64 `json:"userpicScale"`
}

// Row is one participant's presentation state. Rows are owned by the
// controller's list and are only mutated on the controller's event path.
type Row struct {
	delegate RowDelegate
	clk      clock.Clock
	st       Style

	identity string
	self     bool

	state           State
	ssrc            uint32
	sounding        bool
	speaking        bool
	skipLevelUpdate bool

	blobs *blobsAnimation

	speakingAnim fadeAnimation
	activeAnim   fadeAnimation
	mutedAnim    fadeAnimation
}

func newRow(delegate RowDelegate, clk clock.Clock, st Style, identity string, self bool) *Row {
	return &Row{
		delegate: delegate,
		clk:      clk,
		st:       st,
		identity: identity,
		self:     self,
		state:    StateInactive,
	}
}

func (r *Row) Identity() string { return r.identity }
func (r *Row) Self() bool       { return r.self }
func (r *Row) State() State     { return r.state }
func (r *Row) Ssrc() uint32     { return r.ssrc }
func (r *Row) Sounding() bool   { return r.sounding }
func (r *Row) Speaking() bool   { return r.speaking }

// ActionDisabled reports whether the row's mute action button should be
// inert: own row, not-yet-joined row, or actor without manage rights.
func (r *Row) ActionDisabled() bool {
	return r.self || r.state == StateInvited || !r.delegate.RowCanMuteMembers()
}

// StatusText is the row's status line.
func (r *Row) StatusText(s Strings) string {
	if r.state == StateInvited {
		if r.self {
			return s.Connecting()
		}
		return s.Invited()
	}
	if r.speaking {
		return s.Speaking()
	}
	return s.Listening()
}

// IconState samples the fade scalars at now.
func (r *Row) IconState(now time.Time) IconState {
	return IconState{
		Speaking: r.speakingAnim.Value(now, boolScalar(r.speaking)),
		Active:   r.activeAnim.Value(now, boolScalar(r.state == StateActive)),
		Muted:    r.mutedAnim.Value(now, boolScalar(r.state == StateMuted)),
	}
}

// BlobState returns the blob overlay parameters, or false when the row has no
// live blob animation.
func (r *Row) BlobState() (BlobState, bool) {
	if r.blobs == nil {
		return BlobState{}, false
	}
	level := r.blobs.level.Current()
	scale := r.st.UserpicMinScale + (1-r.st.UserpicMinScale)*level
	return BlobState{
		Enter:        r.blobs.enter,
		Level:        level,
		UserpicScale: scale*r.blobs.enter + 1*(1-r.blobs.enter),
	}, true
}

func (r *Row) setSkipLevelUpdate(v bool) {
	r.skipLevelUpdate = v
}

// updateState maps a participant snapshot (or its absence) onto the row's
// state, sounding and speaking fields, evaluated in order: no snapshot,
// audible-or-unmuted, self-unmutable, hard-muted.
func (r *Row) updateState(p *call.Participant) {
	if p != nil {
		r.setSsrc(p.Ssrc)
	} else {
		r.setSsrc(0)
	}
	switch {
	case p == nil:
		r.setState(StateInvited)
		r.setSounding(false)
		r.setSpeaking(false)
	case !p.Muted || (p.Sounding && p.Ssrc != 0):
		r.setState(StateActive)
		r.setSounding(p.Sounding && p.Ssrc != 0)
		r.setSpeaking(p.Speaking && p.Ssrc != 0)
	case p.CanSelfUnmute:
		r.setState(StateInactive)
		r.setSounding(false)
		r.setSpeaking(false)
	default:
		r.setState(StateMuted)
		r.setSounding(false)
		r.setSpeaking(false)
	}
}

func (r *Row) setSsrc(ssrc uint32) {
	r.ssrc = ssrc
}

func (r *Row) setSpeaking(speaking bool) {
	if r.speaking == speaking {
		return
	}
	r.speaking = speaking
	from, to := 1.0, 0.0
	if speaking {
		from, to = 0.0, 1.0
	}
	r.speakingAnim.Start(from, to, r.clk.Now(), r.st.FadeDuration.Std())
	r.delegate.RowUpdated(r)
}

func (r *Row) setSounding(sounding bool) {
	if r.sounding == sounding {
		return
	}
	r.sounding = sounding
	if !r.sounding {
		r.blobs = nil
		return
	}
	if r.blobs == nil {
		r.blobs = newBlobsAnimation(r.st)
		r.blobs.lastTime = r.clk.Now()
		r.updateLevel(r.st.SpeakLevelThreshold)
	}
}

func (r *Row) setState(state State) {
	if r.state == state {
		return
	}
	wasActive := r.state == StateActive
	wasMuted := r.state == StateMuted
	r.state = state
	nowActive := r.state == StateActive
	nowMuted := r.state == StateMuted
	now := r.clk.Now()
	if nowActive != wasActive {
		from, to := 1.0, 0.0
		if nowActive {
			from, to = 0.0, 1.0
		}
		r.activeAnim.Start(from, to, now, r.st.FadeDuration.Std())
	}
	if nowMuted != wasMuted {
		from, to := 1.0, 0.0
		if nowMuted {
			from, to = 0.0, 1.0
		}
		r.mutedAnim.Start(from, to, now, r.st.FadeDuration.Std())
	}
	if nowActive != wasActive || nowMuted != wasMuted {
		r.delegate.RowUpdated(r)
	}
}

// updateLevel feeds one observed audio level into the blob animation.
// Calling it on a row without blob state is a contract violation.
func (r *Row) updateLevel(level float64) {
	if r.blobs == nil {
		panic("members: level update on a row without blob animation")
	}
	if r.skipLevelUpdate {
		return
	}
	if level >= r.st.SpeakLevelThreshold {
		r.blobs.lastSoundingUpdate = r.clk.Now()
	}
	r.blobs.level.SetLevel(level)
}

// updateBlobAnimation advances the blob entry progress and level
// interpolation to now. The entry progress ramps toward 1 while the row was
// recently above the speak threshold and decays toward 0 across the enter
// window once the kept-for deadline approaches.
func (r *Row) updateBlobAnimation(now time.Time) {
	if r.blobs == nil {
		panic("members: blob tick on a row without blob animation")
	}
	enterDur := r.st.BlobsEnterDuration.Std()
	finishesAt := r.blobs.lastSoundingUpdate.Add(r.st.SoundStatusKeptFor.Std())
	startsFinishing := finishesAt.Add(-enterDur)
	if now.After(startsFinishing) {
		r.blobs.enter = clamp01(float64(finishesAt.Sub(now)) / float64(enterDur))
	} else if r.blobs.enter < 1 {
		step := float64(now.Sub(r.blobs.lastTime)) / float64(enterDur)
		r.blobs.enter = clamp01(r.blobs.enter + step)
	}
	r.blobs.level.Update(now.Sub(r.blobs.lastTime))
	r.blobs.lastTime = now
}

func boolScalar(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
