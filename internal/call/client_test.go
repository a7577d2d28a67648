package call

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRecording(t *testing.T, content string) *Recording {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utterance.m4a")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return &Recording{Path: path, SizeBytes: int64(len(content)), Duration: 2 * time.Second}
}

func replyJSON(text string, audio []byte) string {
	payload := map[string]any{"text": text}
	if audio != nil {
		payload["audioBase64"] = base64.StdEncoding.EncodeToString(audio)
	} else {
		payload["audioBase64"] = nil
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func TestClientGreeting(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-audio/c1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth header = %q", got)
		}
		var body struct {
			IsGreeting   bool   `json:"isGreeting"`
			GreetingText string `json:"greetingText"`
			ChildName    string `json:"childName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if !body.IsGreeting || body.GreetingText == "" || body.ChildName != "Kee-rah" {
			t.Errorf("body = %+v", body)
		}
		io.WriteString(w, replyJSON("Ho ho ho!", []byte("mp3")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", time.Second)
	reply, err := c.Greeting(context.Background(), "c1", "Ho ho ho Kee-rah!", "Kee-rah")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Ho ho ho!" || string(reply.Audio) != "mp3" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestClientUtteranceUploadsAndRemovesArtifact(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "utterance.m4a" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "audio-data" {
			t.Errorf("uploaded %q", data)
		}
		io.WriteString(w, replyJSON("What a wish!", []byte("mp3")))
	}))
	defer srv.Close()

	rec := writeRecording(t, "audio-data")
	c := NewClient(srv.URL, "tok-1", time.Second)
	reply, err := c.Utterance(context.Background(), "c1", rec)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "What a wish!" {
		t.Errorf("reply = %+v", reply)
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Error("artifact not removed after upload")
	}
}

func TestClientUtteranceRemovesArtifactOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := writeRecording(t, "audio-data")
	c := NewClient(srv.URL, "tok-1", time.Second)
	if _, err := c.Utterance(context.Background(), "c1", rec); err == nil {
		t.Fatal("expected an error from a 500")
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Error("artifact kept after a failed upload")
	}
}

func TestClientUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "expired", time.Second)
	_, err := c.Greeting(context.Background(), "c1", "hello", "Emma")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClientNullAudioMeansNoPlayback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, replyJSON("text only", nil))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", time.Second)
	reply, err := c.Greeting(context.Background(), "c1", "hello", "Emma")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Audio != nil {
		t.Errorf("audio = %v, want nil", reply.Audio)
	}
}

func TestClientSetToken(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		io.WriteString(w, replyJSON("ok", nil))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "old", time.Second)
	c.SetToken("fresh")
	if _, err := c.Greeting(context.Background(), "c1", "hello", ""); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer fresh" {
		t.Errorf("auth header = %q", got)
	}
}
