package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"
)

func TestTTSRouterDispatch(t *testing.T) {
	t.Parallel()

	fast := &fakeSynth{audio: []byte("fast")}
	slow := &fakeSynth{audio: []byte("slow")}
	router := NewTTSRouter(map[string]Synthesizer{"fast": fast, "slow": slow}, "fast")

	audio, err := router.Synthesize(context.Background(), "hello", "slow")
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "slow" {
		t.Errorf("audio = %q, want the named backend", audio)
	}

	// Unknown engine names fall back to the default.
	audio, err = router.Synthesize(context.Background(), "hello", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "fast" {
		t.Errorf("audio = %q, want the fallback backend", audio)
	}

	engines := router.Engines()
	sort.Strings(engines)
	if len(engines) != 2 || engines[0] != "fast" || engines[1] != "slow" {
		t.Errorf("engines = %v", engines)
	}
}

func TestTTSRouterNoBackend(t *testing.T) {
	t.Parallel()

	router := NewTTSRouter(map[string]Synthesizer{}, "fast")
	if _, err := router.Synthesize(context.Background(), "hello", "fast"); err == nil {
		t.Fatal("expected an error with no backends registered")
	}
}

func TestOpenAISynthesizerRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Input          string `json:"input"`
			Model          string `json:"model"`
			Voice          string `json:"voice"`
			ResponseFormat string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Input != "Ho ho ho!" || body.Model != "tts-1" || body.Voice != "onyx" || body.ResponseFormat != "mp3" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := NewOpenAISynthesizer(srv.URL, "", "tts-1", "onyx", NewPooledHTTPClient(2, time.Second))
	audio, err := s.SynthesizeAudio(context.Background(), "Ho ho ho!")
	if err != nil {
		t.Fatal(err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestOpenAISynthesizerErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewOpenAISynthesizer(srv.URL, "", "tts-1", "onyx", NewPooledHTTPClient(2, time.Second))
	if _, err := s.SynthesizeAudio(context.Background(), "Ho ho ho!"); err == nil {
		t.Fatal("expected an error from a 502")
	}
}
