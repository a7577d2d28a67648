// Command callsim places a simulated call against a running server: it
// drives the full ring, greet, listen, upload, speak loop using a synthetic
// microphone and speaker, and prints each of Santa's replies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polarline/santacall/internal/audio"
	"github.com/polarline/santacall/internal/auth"
	"github.com/polarline/santacall/internal/call"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	secret := flag.String("secret", "", "shared auth secret, must match the server's AUTH_SECRET")
	parentID := flag.String("parent", "sim-parent", "parent account ID to sign the token for")
	childID := flag.String("child", "", "child profile ID (required)")
	childName := flag.String("name", "", "child name for the greeting")
	phonetic := flag.String("phonetic", "", "phonetic spelling for the greeting")
	turns := flag.Int("turns", 3, "utterance turns before hanging up")
	voiceFor := flag.Duration("voice-for", 1500*time.Millisecond, "how long the synthetic mic reports voice per turn")
	flag.Parse()

	if *secret == "" || *childID == "" {
		fmt.Fprintln(os.Stderr, "usage: callsim -secret ... -child ... [flags]")
		os.Exit(1)
	}

	signer, err := auth.NewSigner(*secret, time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: %v\n", err)
		os.Exit(1)
	}
	token, err := signer.Issue(*parentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	// Tight VAD timings so a simulated turn completes in a few seconds.
	vad := call.DefaultVADConfig()
	vad.SilenceDuration = time.Second
	vad.MinRecording = 500 * time.Millisecond
	vad.PollInterval = 50 * time.Millisecond

	replies := make(chan call.Reply, *turns+1)
	done := make(chan struct{})

	session := call.NewSession(call.SessionConfig{
		Child:     call.ChildRef{ID: *childID, Name: *childName, PhoneticSpelling: *phonetic},
		Client:    call.NewClient(*server, token, 30*time.Second),
		Recorder:  &toneRecorder{voiceFor: *voiceFor},
		Player:    &instantPlayer{},
		Diag:      call.NewDiagSink(128, call.SystemClock()),
		VAD:       vad,
		RingDelay: 500 * time.Millisecond,
		Hooks: call.Hooks{
			OnTurn: func(t call.TurnState) {
				fmt.Printf("[turn] %s\n", t)
			},
			OnReply: func(r call.Reply) {
				replies <- r
			},
			OnPermissionDenied: func(err error) {
				fmt.Fprintf(os.Stderr, "permission denied: %v\n", err)
				close(done)
			},
			OnAuthExpired: func() {
				fmt.Fprintln(os.Stderr, "auth expired")
				close(done)
			},
		},
	})

	fmt.Printf("Calling %s as %s...\n", *childID, *parentID)
	session.Start()

	for i := 0; i <= *turns; i++ {
		select {
		case r := <-replies:
			label := "santa"
			if r.Fallback {
				label = "santa (fallback)"
			}
			fmt.Printf("[%s] %s (audio %d bytes)\n", label, r.Text, len(r.Audio))
		case <-done:
			session.End()
			os.Exit(1)
		case <-time.After(60 * time.Second):
			fmt.Fprintln(os.Stderr, "timed out waiting for a reply")
			session.End()
			os.Exit(1)
		}
	}

	session.End()
	fmt.Printf("Hung up after %d turns, %s elapsed\n", *turns, session.Elapsed().Round(time.Second))
}

// toneRecorder is a synthetic microphone: it reports a strong input level
// for voiceFor after each Begin, then silence, and finalizes each capture
// as a sine-tone WAV file.
type toneRecorder struct {
	mu       sync.Mutex
	begun    time.Time
	voiceFor time.Duration
}

func (r *toneRecorder) RequestPermission(ctx context.Context) error { return nil }

func (r *toneRecorder) Begin(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun = time.Now()
	return nil
}

func (r *toneRecorder) Level() (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.begun) < r.voiceFor {
		return -12, true, nil
	}
	return -48, true, nil
}

func (r *toneRecorder) Stop() (*call.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const sampleRate = 16000
	elapsed := time.Since(r.begun)
	samples := audio.Tone(440, sampleRate, int(elapsed.Seconds()*sampleRate))
	wav := audio.SamplesToWAV(samples, sampleRate)

	path := filepath.Join(os.TempDir(), "callsim-"+uuid.NewString()+".wav")
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		return nil, fmt.Errorf("write capture: %w", err)
	}
	return &call.Recording{
		Path:      path,
		StartedAt: r.begun,
		SizeBytes: int64(len(wav)),
		Duration:  elapsed,
	}, nil
}

// instantPlayer completes every playback immediately.
type instantPlayer struct{}

func (instantPlayer) Play(audio []byte, onDone func(err error)) error {
	go onDone(nil)
	return nil
}

func (instantPlayer) Stop() error { return nil }
