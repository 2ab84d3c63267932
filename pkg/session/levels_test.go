package session

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestLevelFromDBov(t *testing.T) {
	require.Equal(t, 1.0, levelFromDBov(0))
	require.InDelta(t, 0.1, levelFromDBov(20), 1e-9)
	require.InDelta(t, 0.01, levelFromDBov(40), 1e-9)
	require.Zero(t, levelFromDBov(127))
	require.Zero(t, levelFromDBov(200))
}

func levelPacket(t *testing.T, extID uint8, dbov uint8) *rtp.Packet {
	t.Helper()
	payload, err := rtp.AudioLevelExtension{Level: dbov, Voice: true}.Marshal()
	require.NoError(t, err)
	packet := &rtp.Packet{}
	packet.Header.Extension = true
	packet.Header.ExtensionProfile = 0xBEDE
	require.NoError(t, packet.Header.SetExtension(extID, payload))
	return packet
}

func TestProbePushEmitsLevel(t *testing.T) {
	var gotSsrc uint32
	var gotLevel float64
	calls := 0
	probe := &levelProbe{
		ssrc:  42,
		extID: 1,
		onLevel: func(ssrc uint32, level float64) {
			gotSsrc = ssrc
			gotLevel = level
			calls++
		},
	}

	probe.push(levelPacket(t, 1, 20))
	require.Equal(t, 1, calls)
	require.Equal(t, uint32(42), gotSsrc)
	require.InDelta(t, 0.1, gotLevel, 1e-9)
}

func TestProbePushIgnoresOtherExtensions(t *testing.T) {
	calls := 0
	probe := &levelProbe{
		ssrc:    42,
		extID:   1,
		onLevel: func(uint32, float64) { calls++ },
	}

	probe.push(levelPacket(t, 3, 20))
	probe.push(&rtp.Packet{})
	require.Zero(t, calls)
}
