package session

import (
	"time"

	"github.com/livekit/protocol/auth"
)

type authProvider struct {
	APIKey    string
	APISecret string
}

func newAuthProvider(key string, secret string) *authProvider {
	return &authProvider{key, secret}
}

// buildObserverToken grants a hidden, subscribe-only join: the roster
// observer must see every track but never publish or appear as a member.
func (p *authProvider) buildObserverToken(room string, identity string) (string, error) {
	at := auth.NewAccessToken(p.APIKey, p.APISecret)
	f := false
	t := true
	grant := &auth.VideoGrant{
		Room:           room,
		RoomJoin:       true,
		CanPublish:     &f,
		CanPublishData: &f,
		CanSubscribe:   &t,
		Hidden:         true,
	}
	return at.
		AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(time.Hour).
		ToJWT()
}
