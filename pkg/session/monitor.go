package session

import (
	"sync"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/call"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/list"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/members"
	"github.com/labstack/gommon/log"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

type monitorParams struct {
	ID    string
	URL   string
	Token string

	Controller *members.Controller
	List       *list.Memory

	AudioLevelExtensionID uint8
}

// Monitor joins one room as the hidden roster observer and translates SDK
// callbacks into the engine's participant deltas and level updates.
type Monitor struct {
	id    string
	room  *lksdk.Room
	ctrl  *members.Controller
	rows  *list.Memory
	extID uint8

	lock      sync.Mutex
	snapshots map[string]call.Participant
	probes    map[uint32]*levelProbe
}

func connectMonitor(p monitorParams) (*Monitor, error) {
	m := &Monitor{
		id:        p.ID,
		ctrl:      p.Controller,
		rows:      p.List,
		extID:     p.AudioLevelExtensionID,
		snapshots: make(map[string]call.Participant),
		probes:    make(map[uint32]*levelProbe),
	}
	if m.extID == 0 {
		m.extID = DefaultAudioLevelExtensionID
	}

	room, err := lksdk.ConnectToRoomWithToken(p.URL, p.Token, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return nil, err
	}
	room.Callback.OnParticipantConnected = m.onParticipantConnected
	room.Callback.OnParticipantDisconnected = m.onParticipantDisconnected
	room.Callback.OnActiveSpeakersChanged = m.onActiveSpeakersChanged
	room.Callback.OnTrackSubscribed = m.onTrackSubscribed
	room.Callback.OnTrackUnsubscribed = m.onTrackUnsubscribed
	room.Callback.OnTrackMuted = m.onTrackMuted
	room.Callback.OnTrackUnmuted = m.onTrackUnmuted
	m.room = room

	// Seed the roster with whoever is already in the room.
	var seed []call.Participant
	m.lock.Lock()
	for _, rp := range room.GetParticipants() {
		p := call.Participant{
			Identity:      rp.Identity(),
			CanSelfUnmute: true,
			Speaking:      rp.IsSpeaking(),
		}
		m.snapshots[p.Identity] = p
		seed = append(seed, p)
	}
	m.lock.Unlock()
	m.ctrl.Reconcile(seed)

	return m, nil
}

func (m *Monitor) Controller() *members.Controller { return m.ctrl }
func (m *Monitor) Rows() *list.Memory              { return m.rows }

func (m *Monitor) Invite(identity string) {
	m.ctrl.AddInvited(identity)
}

func (m *Monitor) disconnect() {
	m.lock.Lock()
	for ssrc, probe := range m.probes {
		probe.Stop()
		delete(m.probes, ssrc)
	}
	m.lock.Unlock()
	m.room.Disconnect()
	m.ctrl.Close()
}

// mutate applies fn to the identity's snapshot and forwards the resulting
// delta to the engine. Unchanged snapshots produce no delta.
func (m *Monitor) mutate(identity string, fn func(p *call.Participant)) {
	m.lock.Lock()
	was, known := m.snapshots[identity]
	now := was
	if !known {
		now = call.Participant{Identity: identity, CanSelfUnmute: true}
	}
	fn(&now)
	if known && now == was {
		m.lock.Unlock()
		return
	}
	m.snapshots[identity] = now
	m.lock.Unlock()

	update := call.ParticipantUpdate{Now: &now}
	if known {
		update.Was = &was
	}
	m.ctrl.ApplyUpdate(update)
}

func (m *Monitor) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	log.Debugf("participant joined | participant: %s", rp.Identity())
	m.mutate(rp.Identity(), func(p *call.Participant) {
		p.Speaking = rp.IsSpeaking()
	})
}

func (m *Monitor) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	log.Debugf("participant left | participant: %s", rp.Identity())
	m.lock.Lock()
	was, known := m.snapshots[rp.Identity()]
	delete(m.snapshots, rp.Identity())
	if probe, ok := m.probes[was.Ssrc]; ok {
		probe.Stop()
		delete(m.probes, was.Ssrc)
	}
	m.lock.Unlock()
	if !known {
		return
	}
	m.ctrl.ApplyUpdate(call.ParticipantUpdate{Was: &was})
}

func (m *Monitor) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	ssrc := uint32(track.SSRC())
	probe := newLevelProbe(track, m.extID, m.onLevel)
	m.lock.Lock()
	m.probes[ssrc] = probe
	m.lock.Unlock()
	probe.Start()

	muted := publication.IsMuted()
	m.mutate(rp.Identity(), func(p *call.Participant) {
		p.Ssrc = ssrc
		p.Muted = muted
	})
	log.Debugf("audio track subscribed | participant: %s, ssrc: %d", rp.Identity(), ssrc)
}

func (m *Monitor) onTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	ssrc := uint32(track.SSRC())
	m.lock.Lock()
	if probe, ok := m.probes[ssrc]; ok {
		probe.Stop()
		delete(m.probes, ssrc)
	}
	m.lock.Unlock()
	m.mutate(rp.Identity(), func(p *call.Participant) {
		if p.Ssrc != ssrc {
			return
		}
		p.Ssrc = 0
		p.Sounding = false
		p.Speaking = false
	})
}

func (m *Monitor) onTrackMuted(pub lksdk.TrackPublication, p lksdk.Participant) {
	if pub.Kind() != lksdk.TrackKindAudio {
		return
	}
	m.mutate(p.Identity(), func(snap *call.Participant) {
		snap.Muted = true
		snap.Sounding = false
		snap.Speaking = false
	})
}

func (m *Monitor) onTrackUnmuted(pub lksdk.TrackPublication, p lksdk.Participant) {
	if pub.Kind() != lksdk.TrackKindAudio {
		return
	}
	m.mutate(p.Identity(), func(snap *call.Participant) {
		snap.Muted = false
	})
}

func (m *Monitor) onActiveSpeakersChanged(speakers []lksdk.Participant) {
	active := make(map[string]float64, len(speakers))
	for _, sp := range speakers {
		active[sp.Identity()] = float64(sp.AudioLevel())
	}

	m.lock.Lock()
	identities := make([]string, 0, len(m.snapshots))
	for identity := range m.snapshots {
		identities = append(identities, identity)
	}
	m.lock.Unlock()

	for _, identity := range identities {
		level, isActive := active[identity]
		var ssrc uint32
		m.mutate(identity, func(p *call.Participant) {
			on := isActive && p.Ssrc != 0
			p.Speaking = on
			p.Sounding = on
			ssrc = p.Ssrc
		})
		if isActive && ssrc != 0 {
			m.ctrl.ApplyLevel(call.LevelUpdate{Ssrc: ssrc, Value: level})
		}
	}
}

func (m *Monitor) onLevel(ssrc uint32, level float64) {
	m.ctrl.ApplyLevel(call.LevelUpdate{Ssrc: ssrc, Value: level})
}
