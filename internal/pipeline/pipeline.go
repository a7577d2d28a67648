// Package pipeline turns one uploaded utterance (or one greeting directive)
// into Santa's spoken reply: transcription, persona-conditioned reply
// generation, then speech synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polarline/santacall/internal/children"
	"github.com/polarline/santacall/internal/metrics"
	"github.com/polarline/santacall/internal/prompts"
)

// ErrBadInput marks requests missing both an utterance and a greeting
// directive, or carrying an empty greeting. These are genuine client errors.
var ErrBadInput = errors.New("bad pipeline input")

// Config holds the pipeline's collaborators.
type Config struct {
	Transcriber Transcriber
	Responder   Responder
	TTS         *TTSRouter
	Children    children.Store
	Scratch     *Scratch
	TTSEngine   string
}

// Pipeline is safe for concurrent use; it holds no per-call state.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Request describes one turn. Exactly one of AudioPath or the greeting
// fields is set. AudioPath is a scratch file owned by the pipeline from this
// point on: it is removed on every exit path.
type Request struct {
	ParentID     string
	ChildID      string
	IsGreeting   bool
	GreetingText string
	AudioPath    string
}

// Reply is the result of one turn. Audio may be nil when synthesis failed;
// the client must treat nil audio as "resume listening without playback".
type Reply struct {
	Text     string
	Audio    []byte
	Fallback bool
	Reprompt bool
}

// Respond runs the full turn. Stage failures past profile resolution degrade
// into in-character fallbacks rather than errors, so the conversation
// continues; only not-found and malformed input reach the caller.
func (p *Pipeline) Respond(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	defer p.cfg.Scratch.Remove(req.AudioPath)

	child, err := p.cfg.Children.Get(ctx, req.ParentID, req.ChildID)
	if err != nil {
		return nil, err
	}

	reply := &Reply{}
	switch {
	case req.IsGreeting:
		if strings.TrimSpace(req.GreetingText) == "" {
			return nil, fmt.Errorf("%w: greeting text is empty", ErrBadInput)
		}
		reply.Text = req.GreetingText
	case req.AudioPath == "":
		return nil, fmt.Errorf("%w: no audio uploaded", ErrBadInput)
	default:
		reply = p.replyToUtterance(ctx, child, req.AudioPath)
	}

	reply.Audio = p.synthesize(ctx, reply.Text)

	metrics.TurnsTotal.Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	slog.Info("turn done",
		"child_id", child.ID,
		"greeting", req.IsGreeting,
		"fallback", reply.Fallback,
		"reprompt", reply.Reprompt,
		"audio_bytes", len(reply.Audio),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

// replyToUtterance transcribes the recording and asks the persona model for
// a reply. Transcription trouble yields a re-prompt line, model trouble the
// fixed fallback line; both still go through synthesis.
func (p *Pipeline) replyToUtterance(ctx context.Context, child *children.Profile, audioPath string) *Reply {
	transcript, err := p.cfg.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		slog.Error("transcription failed", "child_id", child.ID, "error", err)
		return &Reply{Text: prompts.Reprompt, Fallback: true, Reprompt: true}
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		metrics.EmptyTranscripts.Inc()
		slog.Info("empty transcript", "child_id", child.ID)
		return &Reply{Text: prompts.Reprompt, Fallback: true, Reprompt: true}
	}

	slog.Info("transcript", "child_id", child.ID, "text", transcript)

	persona := prompts.Santa(child.Name, child.Age)
	text, err := p.cfg.Responder.Reply(ctx, persona, transcript)
	if err != nil {
		metrics.Fallbacks.WithLabelValues("llm").Inc()
		slog.Error("llm reply failed", "child_id", child.ID, "error", err)
		return &Reply{Text: prompts.FallbackReply, Fallback: true}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.Fallbacks.WithLabelValues("llm").Inc()
		return &Reply{Text: prompts.FallbackReply, Fallback: true}
	}
	return &Reply{Text: text}
}

// RespondText handles the one-shot text chat: no audio upload, no turn
// state, same persona and fallback rules as the voice path.
func (p *Pipeline) RespondText(ctx context.Context, parentID, childID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrBadInput)
	}

	child, err := p.cfg.Children.Get(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}

	reply := &Reply{}
	text, err := p.cfg.Responder.Reply(ctx, prompts.Santa(child.Name, child.Age), message)
	if err != nil {
		metrics.Fallbacks.WithLabelValues("llm").Inc()
		slog.Error("llm reply failed", "child_id", child.ID, "error", err)
		reply.Text, reply.Fallback = prompts.FallbackReply, true
	} else {
		reply.Text = strings.TrimSpace(text)
	}

	reply.Audio = p.synthesize(ctx, reply.Text)
	return reply, nil
}

// synthesize is best-effort: a TTS failure returns nil audio, never an error.
func (p *Pipeline) synthesize(ctx context.Context, text string) []byte {
	audio, err := p.cfg.TTS.Synthesize(ctx, text, p.cfg.TTSEngine)
	if err != nil {
		metrics.Fallbacks.WithLabelValues("tts").Inc()
		slog.Error("tts failed, returning text only", "error", err)
		return nil
	}
	return audio
}
