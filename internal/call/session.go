// Package call implements the client side of a Santa phone call: microphone
// capture, end-of-utterance detection, upload, and gapless playback,
// repeated until the user hangs up.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/polarline/santacall/internal/prompts"
)

// Status is the coarse lifecycle of a call.
type Status int

const (
	StatusCalling Status = iota
	StatusInCall
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusCalling:
		return "calling"
	case StatusInCall:
		return "in_call"
	case StatusEnded:
		return "ended"
	}
	return "unknown"
}

// TurnState is the conversational sub-state while in a call. At most one
// turn state is active at a time; transitions are strictly sequential.
type TurnState int

const (
	TurnNone TurnState = iota
	TurnGreeting
	TurnListening
	TurnProcessing
	TurnSpeaking
)

func (t TurnState) String() string {
	switch t {
	case TurnNone:
		return "none"
	case TurnGreeting:
		return "greeting"
	case TurnListening:
		return "listening"
	case TurnProcessing:
		return "processing"
	case TurnSpeaking:
		return "speaking"
	}
	return "unknown"
}

// ChildRef identifies who Santa is calling.
type ChildRef struct {
	ID               string
	Name             string
	PhoneticSpelling string
}

// SpokenName returns the name Santa says aloud, preferring the phonetic
// spelling. A malformed ref returns a descriptive error; the caller greets
// generically but must not swallow the error silently.
func (c ChildRef) SpokenName() (string, error) {
	if c.ID == "" {
		return "", fmt.Errorf("child ref has no id")
	}
	if c.PhoneticSpelling != "" {
		return c.PhoneticSpelling, nil
	}
	if c.Name != "" {
		return c.Name, nil
	}
	return "", fmt.Errorf("child ref %q has neither phonetic spelling nor name", c.ID)
}

// Hooks are UI notification callbacks. They are invoked with the session
// lock held and must not call back into the session synchronously.
type Hooks struct {
	OnTurn             func(TurnState)
	OnReply            func(Reply)
	OnPermissionDenied func(error)
	OnAuthExpired      func()
}

// SessionConfig wires a session's collaborators and timing.
type SessionConfig struct {
	Child    ChildRef
	Client   PipelineClient
	Recorder Recorder
	Player   Player
	Clock    Clock
	Diag     *DiagSink
	VAD      VADConfig

	// RingDelay simulates ringing before the call connects.
	RingDelay time.Duration
	// RetryDelay is the short pause before re-listening after a benign
	// hiccup (no reply audio, playback error).
	RetryDelay time.Duration
	// ErrorBackoff is the longer pause after a failed network round trip.
	ErrorBackoff time.Duration
	// MinUploadBytes discards finalized recordings below this size without
	// a network call.
	MinUploadBytes int64

	Hooks Hooks
}

// Session is one phone-call screen instance. All state transitions are
// serialized under one mutex; completions of async work (uploads, playback,
// timers) re-check status and generation before acting, so anything that
// finishes after End is discarded.
type Session struct {
	cfg    SessionConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    Status
	turn      TurnState
	startedAt time.Time
	gen       int

	ringTimer  Timer
	pollTimer  Timer
	retryTimer Timer

	det       *Detector
	recActive bool
}

// NewSession creates a session in the Calling state. Call Start to dial.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.RingDelay <= 0 {
		cfg.RingDelay = 3 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 3 * time.Second
	}
	if cfg.MinUploadBytes <= 0 {
		cfg.MinUploadBytes = 1000
	}
	if cfg.VAD == (VADConfig{}) {
		cfg.VAD = DefaultVADConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{cfg: cfg, ctx: ctx, cancel: cancel, status: StatusCalling, turn: TurnNone}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn returns the current conversational sub-state.
func (s *Session) Turn() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Elapsed reports how long the call has been connected.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return s.cfg.Clock.Now().Sub(s.startedAt)
}

// Start begins ringing. After the ring delay the session acquires the
// microphone and greets the child.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCalling || s.ringTimer != nil {
		return
	}
	s.diag("dialing %s", s.cfg.Child.ID)
	s.ringTimer = s.cfg.Clock.AfterFunc(s.cfg.RingDelay, s.connect)
}

func (s *Session) connect() {
	s.mu.Lock()
	if s.status != StatusCalling {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.cfg.Recorder.RequestPermission(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCalling {
		return
	}
	if err != nil {
		s.diag("microphone permission denied: %v", err)
		if s.cfg.Hooks.OnPermissionDenied != nil {
			s.cfg.Hooks.OnPermissionDenied(err)
		}
		s.status = StatusEnded
		s.teardownLocked()
		return
	}

	s.status = StatusInCall
	s.startedAt = s.cfg.Clock.Now()
	s.setTurnLocked(TurnGreeting)
	go s.greet(s.gen)
}

func (s *Session) greet(gen int) {
	spoken, verr := s.cfg.Child.SpokenName()
	if verr != nil {
		slog.Error("malformed child ref, greeting generically", "error", verr)
		s.cfg.Diag.Add("malformed child ref: %v", verr)
	}
	text := prompts.Greeting(spoken)

	reply, err := s.cfg.Client.Greeting(s.ctx, s.cfg.Child.ID, text, spoken)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen {
		return
	}
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.authExpiredLocked()
			return
		}
		s.diag("greeting failed: %v", err)
		s.scheduleLocked(&s.retryTimer, s.cfg.ErrorBackoff, s.listen)
		return
	}
	if s.cfg.Hooks.OnReply != nil {
		s.cfg.Hooks.OnReply(*reply)
	}
	s.speakLocked(reply)
}

// --- listening ---

func (s *Session) listen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenLocked()
}

func (s *Session) listenLocked() {
	if s.status != StatusInCall {
		return
	}
	s.setTurnLocked(TurnListening)
	s.det = NewDetector(s.cfg.VAD, s.cfg.Clock.Now())
	go s.beginCapture(s.gen)
}

func (s *Session) beginCapture(gen int) {
	err := s.cfg.Recorder.Begin(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnListening {
		// The turn moved on while Begin was in flight. recActive was never
		// set, so teardown will not stop this recorder; release it here.
		if err == nil {
			if rec, serr := s.cfg.Recorder.Stop(); serr == nil {
				discardArtifact(rec)
			}
		}
		return
	}
	if err != nil {
		s.diag("recorder start failed: %v", err)
		s.scheduleLocked(&s.retryTimer, s.cfg.ErrorBackoff, s.listen)
		return
	}
	s.recActive = true
	s.schedulePollLocked(gen)
}

func (s *Session) schedulePollLocked(gen int) {
	s.pollTimer = s.cfg.Clock.AfterFunc(s.cfg.VAD.PollInterval, func() { s.poll(gen) })
}

func (s *Session) poll(gen int) {
	s.mu.Lock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnListening {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	db, hasLevel, err := s.cfg.Recorder.Level()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnListening {
		return
	}
	if err != nil {
		// Transient sampling errors must not kill the detection loop.
		s.diag("level sample error: %v", err)
		s.schedulePollLocked(gen)
		return
	}

	switch s.det.Observe(Sample{At: s.cfg.Clock.Now(), LevelDB: db, HasLevel: hasLevel}) {
	case DecisionNone:
		s.schedulePollLocked(gen)
	case DecisionAbandonRestart:
		s.diag("no voice before ceiling, restarting listen")
		s.stopListeningLocked(true)
		s.listenLocked()
	case DecisionEndOfUtterance, DecisionForcedEnd:
		rec := s.stopListeningLocked(false)
		s.processLocked(rec)
	}
}

// StopListening cancels the detection loop and finalizes any active
// recording, discarding it. Safe to call repeatedly.
func (s *Session) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopListeningLocked(true)
}

// stopListeningLocked cancels the poll timer and finalizes the recording.
// Returns the artifact, or nil when discarding or when nothing was active.
func (s *Session) stopListeningLocked(discard bool) *Recording {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
		s.pollTimer = nil
	}
	if !s.recActive {
		return nil
	}
	s.recActive = false

	rec, err := s.cfg.Recorder.Stop()
	if err != nil {
		s.diag("recorder stop failed: %v", err)
		return nil
	}
	if discard {
		discardArtifact(rec)
		return nil
	}
	return rec
}

// --- processing ---

func (s *Session) processLocked(rec *Recording) {
	s.setTurnLocked(TurnProcessing)

	if rec == nil || rec.SizeBytes < s.cfg.MinUploadBytes || rec.Duration < s.cfg.VAD.MinRecording {
		if rec != nil {
			s.diag("discarding undersized recording (%d bytes, %s)", rec.SizeBytes, rec.Duration)
		}
		discardArtifact(rec)
		s.listenLocked()
		return
	}

	go s.upload(s.gen, rec)
}

func (s *Session) upload(gen int, rec *Recording) {
	reply, err := s.cfg.Client.Utterance(s.ctx, s.cfg.Child.ID, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen {
		// Ended mid-flight: the reply is stale, drop it.
		return
	}
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.authExpiredLocked()
			return
		}
		s.diag("upload failed: %v", err)
		s.scheduleLocked(&s.retryTimer, s.cfg.ErrorBackoff, s.listen)
		return
	}
	if s.cfg.Hooks.OnReply != nil {
		s.cfg.Hooks.OnReply(*reply)
	}
	s.speakLocked(reply)
}

// --- speaking ---

func (s *Session) speakLocked(reply *Reply) {
	if len(reply.Audio) == 0 {
		// No playback: resume listening after a beat.
		s.scheduleLocked(&s.retryTimer, s.cfg.RetryDelay, s.listen)
		return
	}
	s.setTurnLocked(TurnSpeaking)
	go s.play(s.gen, reply.Audio)
}

func (s *Session) play(gen int, audio []byte) {
	s.mu.Lock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnSpeaking {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.cfg.Player.Play(audio, func(perr error) { s.playbackDone(gen, perr) })
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnSpeaking {
		return
	}
	s.diag("playback start failed: %v", err)
	s.scheduleLocked(&s.retryTimer, s.cfg.RetryDelay, s.listen)
}

func (s *Session) playbackDone(gen int, perr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall || gen != s.gen || s.turn != TurnSpeaking {
		// Playback raced End or a turn change; make sure it is not left
		// running on a session that already moved on.
		s.cfg.Player.Stop()
		return
	}
	// Unload before the next recording starts.
	s.cfg.Player.Stop()
	if perr != nil {
		s.diag("playback error: %v", perr)
		s.scheduleLocked(&s.retryTimer, s.cfg.RetryDelay, s.listen)
		return
	}
	s.listenLocked()
}

// --- auth, teardown ---

func (s *Session) authExpiredLocked() {
	s.diag("auth token rejected, waiting for re-login")
	if s.cfg.Hooks.OnAuthExpired != nil {
		s.cfg.Hooks.OnAuthExpired()
	}
	// No retry timer: the session idles until Resume or End.
}

// Resume re-enters listening after the caller refreshed credentials.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInCall {
		return
	}
	s.listenLocked()
}

// End hangs up from any state. Idempotent: all timers are cancelled, any
// active recording and playback is stopped and its artifact removed, and
// in-flight replies are discarded when they land.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return
	}
	s.status = StatusEnded
	s.teardownLocked()
}

func (s *Session) teardownLocked() {
	s.gen++
	s.cancel()

	for _, t := range []*Timer{&s.ringTimer, &s.pollTimer, &s.retryTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}

	if s.recActive {
		s.recActive = false
		if rec, err := s.cfg.Recorder.Stop(); err == nil {
			discardArtifact(rec)
		}
	}
	s.cfg.Player.Stop()

	s.turn = TurnNone
	s.diag("call ended")
}

// --- helpers ---

func (s *Session) setTurnLocked(t TurnState) {
	s.turn = t
	s.diag("turn %s", t)
	if s.cfg.Hooks.OnTurn != nil {
		s.cfg.Hooks.OnTurn(t)
	}
}

func (s *Session) scheduleLocked(slot *Timer, d time.Duration, f func()) {
	if *slot != nil {
		(*slot).Stop()
	}
	*slot = s.cfg.Clock.AfterFunc(d, f)
}

func (s *Session) diag(format string, args ...any) {
	s.cfg.Diag.Add(format, args...)
}

func discardArtifact(rec *Recording) {
	if rec == nil || rec.Path == "" {
		return
	}
	os.Remove(rec.Path)
}
