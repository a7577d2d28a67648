package call

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned by a Recorder when the user refused
// microphone access. Fatal to the call; the session never retries it.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Recording is one finalized captured utterance. The artifact at Path is
// exclusively owned by the capture device until handed to the pipeline
// client, which removes it after upload.
type Recording struct {
	Path      string
	StartedAt time.Time
	SizeBytes int64
	Duration  time.Duration
}

// Recorder is a continuous microphone capture device.
type Recorder interface {
	// RequestPermission asks for microphone access and configures the
	// audio session. Returns ErrPermissionDenied when refused.
	RequestPermission(ctx context.Context) error
	// Begin starts capturing into a fresh artifact.
	Begin(ctx context.Context) error
	// Level reports the instantaneous input level in dBFS. ok is false
	// when the device does not support metering.
	Level() (db float64, ok bool, err error)
	// Stop finalizes capture and returns the bounded artifact.
	Stop() (*Recording, error)
}

// Player plays one synthesized audio payload at a time.
type Player interface {
	// Play starts playback and invokes onDone exactly once, from any
	// goroutine, when playback finishes or fails.
	Play(audio []byte, onDone func(err error)) error
	// Stop halts and unloads any active playback. Idempotent.
	Stop() error
}
