package members

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/call"
	"github.com/stretchr/testify/require"
)

type stubDelegate struct {
	canMute bool
	updates int
}

func (d *stubDelegate) RowCanMuteMembers() bool { return d.canMute }
func (d *stubDelegate) RowUpdated(row *Row)     { d.updates++ }

func newStubRow(identity string, self bool) (*Row, *clock.Mock, *stubDelegate) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	delegate := &stubDelegate{canMute: true}
	return newRow(delegate, mock, DefaultStyle(), identity, self), mock, delegate
}

func TestUpdateStateWithoutSnapshot(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	row.updateState(nil)
	require.Equal(t, StateInvited, row.State())
	require.False(t, row.Sounding())
	require.False(t, row.Speaking())
	require.Equal(t, uint32(0), row.Ssrc())
}

func TestUpdateStateUnmuted(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true, Speaking: true})
	require.Equal(t, StateActive, row.State())
	require.True(t, row.Sounding())
	require.True(t, row.Speaking())
	require.Equal(t, uint32(7), row.Ssrc())
}

func TestUpdateStateUnmutedWithoutSource(t *testing.T) {
	// The boundary case: unmuted but no live audio source. The row is
	// active, yet can be neither sounding nor speaking.
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 0, Sounding: true, Speaking: true})
	require.Equal(t, StateActive, row.State())
	require.False(t, row.Sounding())
	require.False(t, row.Speaking())
}

func TestUpdateStateMutedButSounding(t *testing.T) {
	// A muted participant whose source still sounds counts as active.
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Muted: true, Sounding: true})
	require.Equal(t, StateActive, row.State())
	require.True(t, row.Sounding())
	require.False(t, row.Speaking())
}

func TestUpdateStateMutedCanSelfUnmute(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Muted: true, CanSelfUnmute: true})
	require.Equal(t, StateInactive, row.State())
	require.False(t, row.Sounding())
	require.False(t, row.Speaking())
}

func TestUpdateStateHardMuted(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Muted: true})
	require.Equal(t, StateMuted, row.State())
	require.False(t, row.Sounding())
	require.False(t, row.Speaking())
}

func TestSoundingAllocatesAndSeedsBlob(t *testing.T) {
	row, mock, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})
	require.NotNil(t, row.blobs)
	require.Equal(t, row.st.SpeakLevelThreshold, row.blobs.level.target)
	require.Equal(t, mock.Now(), row.blobs.lastTime)
	require.Equal(t, mock.Now(), row.blobs.lastSoundingUpdate)
}

func TestSoundingExitDestroysBlob(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})
	row.blobs.enter = 0.7
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: false})
	require.Nil(t, row.blobs)

	// Re-entering sounding starts fresh, not from the old progress.
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})
	require.Zero(t, row.blobs.enter)
}

func TestStateTransitionStartsFades(t *testing.T) {
	row, mock, delegate := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7})
	require.Equal(t, StateActive, row.State())
	require.True(t, delegate.updates > 0)

	mock.Add(row.st.FadeDuration.Std() / 2)
	icon := row.IconState(mock.Now())
	require.InDelta(t, 0.5, icon.Active, 0.01)

	mock.Add(row.st.FadeDuration.Std())
	icon = row.IconState(mock.Now())
	require.Equal(t, 1.0, icon.Active)
	require.Equal(t, 0.0, icon.Muted)
}

func TestSpeakingFade(t *testing.T) {
	row, mock, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true, Speaking: true})
	mock.Add(row.st.FadeDuration.Std() / 4)
	icon := row.IconState(mock.Now())
	require.InDelta(t, 0.25, icon.Speaking, 0.01)
}

func TestSkipLevelUpdate(t *testing.T) {
	row, mock, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})
	seeded := row.blobs.lastSoundingUpdate

	row.setSkipLevelUpdate(true)
	mock.Add(50 * time.Millisecond)
	row.updateLevel(0.9)
	require.Equal(t, row.st.SpeakLevelThreshold, row.blobs.level.target)
	require.Equal(t, seeded, row.blobs.lastSoundingUpdate)

	row.setSkipLevelUpdate(false)
	row.updateLevel(0.9)
	require.Equal(t, 0.9, row.blobs.level.target)
	require.Equal(t, mock.Now(), row.blobs.lastSoundingUpdate)
}

func TestUpdateLevelWithoutBlobPanics(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	require.Panics(t, func() { row.updateLevel(0.5) })
}

func TestBlobEnterRampAndDecay(t *testing.T) {
	row, mock, _ := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})

	// Ramp: 100ms into a 250ms enter window.
	mock.Add(100 * time.Millisecond)
	row.updateBlobAnimation(mock.Now())
	require.InDelta(t, 0.4, row.blobs.enter, 0.001)

	// Decay: at start+300ms the kept-for deadline (start+350ms) is inside
	// the enter window, so enter tracks the remaining 50ms.
	mock.Add(200 * time.Millisecond)
	row.updateBlobAnimation(mock.Now())
	require.InDelta(t, 0.2, row.blobs.enter, 0.001)

	// Fully decayed once the deadline has passed.
	mock.Add(200 * time.Millisecond)
	row.updateBlobAnimation(mock.Now())
	require.Zero(t, row.blobs.enter)

	// A fresh loud level restarts the ramp from the decayed value.
	row.updateLevel(0.8)
	mock.Add(25 * time.Millisecond)
	row.updateBlobAnimation(mock.Now())
	require.InDelta(t, 0.1, row.blobs.enter, 0.001)
}

func TestBlobStateScale(t *testing.T) {
	row, _, _ := newStubRow("a", false)
	_, ok := row.BlobState()
	require.False(t, ok)

	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Sounding: true})
	row.blobs.enter = 1
	row.blobs.level.current = 1
	blob, ok := row.BlobState()
	require.True(t, ok)
	require.Equal(t, 1.0, blob.Level)
	require.Equal(t, 1.0, blob.UserpicScale)

	// Halfway entered at zero level sits between min scale and identity.
	row.blobs.enter = 0.5
	row.blobs.level.current = 0
	blob, _ = row.BlobState()
	require.InDelta(t, 0.9, blob.UserpicScale, 0.001)
}

func TestStatusText(t *testing.T) {
	s := EnglishStrings{}

	row, _, _ := newStubRow("a", false)
	row.updateState(nil)
	require.Equal(t, s.Invited(), row.StatusText(s))

	self, _, _ := newStubRow("me", true)
	self.updateState(nil)
	require.Equal(t, s.Connecting(), self.StatusText(s))

	row.updateState(&call.Participant{Identity: "a", Ssrc: 7})
	require.Equal(t, s.Listening(), row.StatusText(s))

	row.updateState(&call.Participant{Identity: "a", Ssrc: 7, Speaking: true})
	require.Equal(t, s.Speaking(), row.StatusText(s))
}

func TestActionDisabled(t *testing.T) {
	row, _, delegate := newStubRow("a", false)
	row.updateState(&call.Participant{Identity: "a", Ssrc: 7})
	require.False(t, row.ActionDisabled())

	delegate.canMute = false
	require.True(t, row.ActionDisabled())

	delegate.canMute = true
	row.updateState(nil)
	require.True(t, row.ActionDisabled())

	self, _, _ := newStubRow("me", true)
	self.updateState(&call.Participant{Identity: "me", Ssrc: 7})
	require.True(t, self.ActionDisabled())
}
