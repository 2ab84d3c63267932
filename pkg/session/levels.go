package session

import (
	"context"
	"io"
	"math"

	"github.com/labstack/gommon/log"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// DefaultAudioLevelExtensionID is the RTP header extension id negotiated for
// urn:ietf:params:rtp-hdrext:ssrc-audio-level on typical LiveKit deployments.
const DefaultAudioLevelExtensionID uint8 = 1

// levelProbe reads RTP packets from one subscribed audio track and emits the
// per-packet audio level carried in the ssrc-audio-level header extension.
// It never touches the media payload.
type levelProbe struct {
	ctx    context.Context
	cancel context.CancelFunc

	track   *webrtc.TrackRemote
	ssrc    uint32
	extID   uint8
	onLevel func(ssrc uint32, level float64)
}

func newLevelProbe(track *webrtc.TrackRemote, extID uint8, onLevel func(ssrc uint32, level float64)) *levelProbe {
	ctx, cancel := context.WithCancel(context.Background())
	return &levelProbe{
		ctx:     ctx,
		cancel:  cancel,
		track:   track,
		ssrc:    uint32(track.SSRC()),
		extID:   extID,
		onLevel: onLevel,
	}
}

func (p *levelProbe) Start() {
	go p.run()
}

func (p *levelProbe) Stop() {
	p.cancel()
}

func (p *levelProbe) run() {
	var err error
	defer func() {
		if err == io.EOF {
			err = nil
		}
		if err != nil {
			log.Warnf("level probe stopped | ssrc: %d, error: %v", p.ssrc, err)
		}
	}()

	var packet *rtp.Packet
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			packet, _, err = p.track.ReadRTP()
			if err != nil {
				return
			}
			p.push(packet)
		}
	}
}

func (p *levelProbe) push(packet *rtp.Packet) {
	payload := packet.GetExtension(p.extID)
	if payload == nil {
		return
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(payload); err != nil {
		return
	}
	p.onLevel(p.ssrc, levelFromDBov(ext.Level))
}

// levelFromDBov maps the extension's attenuation (0 = full scale, 127 =
// silence, in -dBov) onto the engine's linear [0, 1] scale.
func levelFromDBov(dbov uint8) float64 {
	if dbov >= 127 {
		return 0
	}
	return math.Pow(10, -float64(dbov)/20)
}
