package call

import "time"

// VADConfig controls end-of-utterance detection.
type VADConfig struct {
	// VoiceThresholdDB is the metering level above which a sample counts
	// as speech.
	VoiceThresholdDB float64
	// SilenceDuration is the continuous non-speech span that ends a turn.
	SilenceDuration time.Duration
	// MinRecording suppresses end-of-utterance before this much audio
	// exists, even when silence has been detected.
	MinRecording time.Duration
	// MaxRecording forces finalization regardless of voice activity.
	MaxRecording time.Duration
	// MeterFallbackAfter applies when the device reports no level at all:
	// a recording active beyond this span is treated as voice-detected.
	// Degraded but functional; turns then end only at MaxRecording.
	MeterFallbackAfter time.Duration
	// PollInterval is how often the session samples the recorder level.
	PollInterval time.Duration
}

// DefaultVADConfig returns the thresholds tuned for a child speaking near
// a phone microphone.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		VoiceThresholdDB:   -30,
		SilenceDuration:    3000 * time.Millisecond,
		MinRecording:       1000 * time.Millisecond,
		MaxRecording:       30000 * time.Millisecond,
		MeterFallbackAfter: 1000 * time.Millisecond,
		PollInterval:       200 * time.Millisecond,
	}
}

// Sample is one periodic level reading. HasLevel is false when the capture
// device does not support metering.
type Sample struct {
	At       time.Time
	LevelDB  float64
	HasLevel bool
}

// Decision is the detector's verdict after observing a sample.
type Decision int

const (
	// DecisionNone means keep listening.
	DecisionNone Decision = iota
	// DecisionEndOfUtterance means the speaker finished; finalize and upload.
	DecisionEndOfUtterance
	// DecisionForcedEnd means the ceiling was hit with voice present;
	// finalize and upload what exists.
	DecisionForcedEnd
	// DecisionAbandonRestart means the ceiling was hit with no voice ever
	// detected; discard the recording and re-enter listening.
	DecisionAbandonRestart
)

// Detector classifies a stream of level samples and emits at most one
// terminal decision per listening turn.
type Detector struct {
	cfg       VADConfig
	startedAt time.Time
	lastVoice time.Time
	hasVoice  bool
	done      bool
}

// NewDetector creates a detector for a listening turn that started at now.
// lastVoice starts at the turn start so silence accrues from the beginning.
func NewDetector(cfg VADConfig, now time.Time) *Detector {
	return &Detector{cfg: cfg, startedAt: now, lastVoice: now}
}

// Observe feeds one sample and returns the decision. After a terminal
// decision every further sample returns DecisionNone.
func (d *Detector) Observe(s Sample) Decision {
	if d.done {
		return DecisionNone
	}

	total := s.At.Sub(d.startedAt)

	switch {
	case s.HasLevel:
		if s.LevelDB > d.cfg.VoiceThresholdDB {
			d.hasVoice = true
			d.lastVoice = s.At
		}
	case total >= d.cfg.MeterFallbackAfter:
		// Metering unsupported: assume the child is talking.
		d.hasVoice = true
		d.lastVoice = s.At
	}

	if total >= d.cfg.MaxRecording {
		d.done = true
		if d.hasVoice {
			return DecisionForcedEnd
		}
		return DecisionAbandonRestart
	}

	silence := s.At.Sub(d.lastVoice)
	if d.hasVoice && silence >= d.cfg.SilenceDuration && total >= d.cfg.MinRecording {
		d.done = true
		return DecisionEndOfUtterance
	}

	return DecisionNone
}
