package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/list"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/members"
	"github.com/labstack/gommon/log"
	"github.com/lithammer/shortuuid/v4"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

// WatchRequest asks the service to start observing a room. Self optionally
// names the identity whose perspective the roster renders from; when empty
// the observer's own identity is used.
type WatchRequest struct {
	Room string
	Self string
}

type Service interface {
	Watch(ctx context.Context, req WatchRequest) error
	Unwatch(room string) error
	Rooms() []string
	Snapshot(room string) ([]members.RowView, error)
	Invite(room string, identity string) error
	ToggleMute(room string, identity string) error
	Kick(room string, identity string) error
	Subscribe(room string) (<-chan list.Event, func(), error)
	Close()
}

type service struct {
	url string

	lock     sync.Mutex
	monitors map[string]*Monitor

	auth  *authProvider
	lksvc *lksdk.RoomServiceClient
	style members.Style
	extID uint8
}

const observerPrefix = "roster-"

var (
	ErrURLMustHaveWS  = errors.New("url must contain either ws:// or wss://")
	ErrRoomNotWatched = errors.New("room is not watched")
	ErrUnknownMember  = errors.New("no such member")
)

func httpURLFromWS(url string) string {
	if strings.Contains(url, "ws://") {
		return strings.ReplaceAll(url, "ws://", "http://")
	} else if strings.Contains(url, "wss://") {
		return strings.ReplaceAll(url, "wss://", "https://")
	}
	return ""
}

func NewService(url string, apiKey string, apiSecret string, style members.Style, audioLevelExtID uint8) (Service, error) {
	httpURL := httpURLFromWS(url)
	if httpURL == "" {
		return nil, ErrURLMustHaveWS
	}
	if audioLevelExtID == 0 {
		audioLevelExtID = DefaultAudioLevelExtensionID
	}
	return &service{
		url:      url,
		monitors: make(map[string]*Monitor),
		auth:     newAuthProvider(apiKey, apiSecret),
		lksvc:    lksdk.NewRoomServiceClient(httpURL, apiKey, apiSecret),
		style:    style,
		extID:    audioLevelExtID,
	}, nil
}

func (s *service) Watch(ctx context.Context, req WatchRequest) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, found := s.monitors[req.Room]; found {
		return nil
	}

	id := observerPrefix + shortuuid.New()
	token, err := s.auth.buildObserverToken(req.Room, id)
	if err != nil {
		return err
	}

	self := req.Self
	if self == "" {
		self = id
	}

	room := req.Room
	rows := list.NewMemory()
	ctrl := members.NewController(members.ControllerParams{
		SelfIdentity: self,
		List:         rows,
		Capabilities: managerCapabilities{},
		Style:        &s.style,
		Callback: members.ControllerCallback{
			OnMuteRequest: func(req members.MuteRequest) {
				go s.muteParticipant(room, req)
			},
			OnKickRequest: func(identity string) {
				go s.removeParticipant(room, identity)
			},
		},
	})

	mon, err := connectMonitor(monitorParams{
		ID:                    id,
		URL:                   s.url,
		Token:                 token,
		Controller:            ctrl,
		List:                  rows,
		AudioLevelExtensionID: s.extID,
	})
	if err != nil {
		ctrl.Close()
		return err
	}

	log.Infof("watching room | room: %s, observer: %s", room, id)
	s.monitors[room] = mon
	return nil
}

func (s *service) Unwatch(room string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	mon, found := s.monitors[room]
	if !found {
		return ErrRoomNotWatched
	}
	mon.disconnect()
	delete(s.monitors, room)
	log.Infof("stopped watching room | room: %s", room)
	return nil
}

func (s *service) Rooms() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	rooms := make([]string, 0, len(s.monitors))
	for room := range s.monitors {
		rooms = append(rooms, room)
	}
	return rooms
}

func (s *service) monitor(room string) (*Monitor, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	mon, found := s.monitors[room]
	if !found {
		return nil, ErrRoomNotWatched
	}
	return mon, nil
}

func (s *service) Snapshot(room string) ([]members.RowView, error) {
	mon, err := s.monitor(room)
	if err != nil {
		return nil, err
	}
	return mon.Controller().Snapshot(), nil
}

func (s *service) Invite(room string, identity string) error {
	mon, err := s.monitor(room)
	if err != nil {
		return err
	}
	mon.Invite(identity)
	return nil
}

func (s *service) ToggleMute(room string, identity string) error {
	mon, err := s.monitor(room)
	if err != nil {
		return err
	}
	if !mon.Controller().ToggleMuteDefault(identity) {
		return ErrUnknownMember
	}
	return nil
}

func (s *service) Kick(room string, identity string) error {
	mon, err := s.monitor(room)
	if err != nil {
		return err
	}
	if !mon.Controller().RequestRemove(identity) {
		return ErrUnknownMember
	}
	return nil
}

func (s *service) Subscribe(room string) (<-chan list.Event, func(), error) {
	mon, err := s.monitor(room)
	if err != nil {
		return nil, nil, err
	}
	events, cancel := mon.Rows().Subscribe()
	return events, cancel, nil
}

func (s *service) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for room, mon := range s.monitors {
		mon.disconnect()
		delete(s.monitors, room)
	}
}

// muteParticipant executes an emitted mute intent against the room service:
// every audio track the member publishes is muted or unmuted.
func (s *service) muteParticipant(room string, req members.MuteRequest) {
	ctx := context.Background()
	pi, err := s.lksvc.GetParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     room,
		Identity: req.Identity,
	})
	if err != nil {
		log.Errorf("cannot resolve participant for mute | error: %v, participant: %s", err, req.Identity)
		return
	}
	for _, t := range pi.Tracks {
		if t.Type != livekit.TrackType_AUDIO {
			continue
		}
		_, err = s.lksvc.MutePublishedTrack(ctx, &livekit.MuteRoomTrackRequest{
			Room:     room,
			Identity: req.Identity,
			TrackSid: t.Sid,
			Muted:    req.Mute,
		})
		if err != nil {
			log.Errorf("cannot toggle track mute | error: %v, participant: %s, track: %s", err, req.Identity, t.Sid)
		}
	}
}

func (s *service) removeParticipant(room string, identity string) {
	_, err := s.lksvc.RemoveParticipant(context.Background(), &livekit.RoomParticipantIdentity{
		Room:     room,
		Identity: identity,
	})
	if err != nil {
		log.Errorf("cannot remove participant | error: %v, participant: %s", err, identity)
	}
}

// managerCapabilities reflects the observer's API-key rights: it may manage
// the call and restrict anyone, but knows nothing about member admin status.
type managerCapabilities struct{}

func (managerCapabilities) CanManageCall() bool     { return true }
func (managerCapabilities) CanRestrict(string) bool { return true }
func (managerCapabilities) IsAdmin(string) bool     { return false }
