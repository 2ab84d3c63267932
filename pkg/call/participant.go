package call

// Participant is a snapshot of one group call member as reported by the
// session layer. At most one snapshot per identity exists in the
// authoritative set at any time.
type Participant struct {
	Identity      string `json:"identity"`
	Ssrc          uint32 `json:"ssrc"`
	Muted         bool   `json:"muted"`
	CanSelfUnmute bool   `json:"canSelfUnmute"`
	Speaking      bool   `json:"speaking"`
	Sounding      bool   `json:"sounding"`
}

// ParticipantUpdate is a discrete membership delta. At least one of Was and
// Now is non-nil: (nil, p) means joined, (p, nil) means left, (p, q) means
// changed in place.
type ParticipantUpdate struct {
	Was *Participant
	Now *Participant
}

// LevelUpdate carries one instantaneous audio level for a source id.
// Level updates arrive unordered across sources and interleaved with
// membership deltas.
type LevelUpdate struct {
	Ssrc  uint32
	Value float64
}

// SpeakLevelThreshold is the instantaneous level above which a source is
// considered audibly sounding.
const SpeakLevelThreshold = 0.2
