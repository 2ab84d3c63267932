package members

import (
	"fmt"
	"os"
	"time"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/call"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Style holds the animation timings and thresholds of the roster engine.
// These are presentation configuration, not engine logic; the zero value is
// not usable, start from DefaultStyle.
type Style struct {
	// FadeDuration is the length of the speaking, active and muted icon
	// fades.
	FadeDuration Duration `yaml:"fade_duration"`

	// BlobsEnterDuration is the ramp-in/ramp-out length of the avatar blob
	// overlay. It also bounds the grace window before the frame clock may
	// idle-stop while animations are gated off.
	BlobsEnterDuration Duration `yaml:"blobs_enter_duration"`

	// LevelDuration is the window over which the displayed audio level
	// interpolates toward the last observed level.
	LevelDuration Duration `yaml:"level_duration"`

	// SoundStatusKeptFor is how long a row keeps its sounding visuals after
	// the level last crossed the speak threshold.
	SoundStatusKeptFor Duration `yaml:"sound_status_kept_for"`

	// FrameInterval is the shared animation clock period.
	FrameInterval Duration `yaml:"frame_interval"`

	SpeakLevelThreshold float64 `yaml:"speak_level_threshold"`
	UserpicMinScale     float64 `yaml:"userpic_min_scale"`
	MaxLevel            float64 `yaml:"max_level"`
}

func DefaultStyle() Style {
	return Style{
		FadeDuration:        Duration(200 * time.Millisecond),
		BlobsEnterDuration:  Duration(250 * time.Millisecond),
		LevelDuration:       Duration(215 * time.Millisecond),
		SoundStatusKeptFor:  Duration(350 * time.Millisecond),
		FrameInterval:       Duration(16 * time.Millisecond),
		SpeakLevelThreshold: call.SpeakLevelThreshold,
		UserpicMinScale:     0.8,
		MaxLevel:            1.0,
	}
}

// LoadStyle reads a YAML style file over the defaults. Fields missing from
// the file keep their default values.
func LoadStyle(path string) (Style, error) {
	st := DefaultStyle()
	raw, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("cannot parse style file: %w", err)
	}
	return st, nil
}
