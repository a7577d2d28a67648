package call

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrUnauthorized marks a rejected or expired token. The session surfaces
// it as a re-login prompt instead of retrying.
var ErrUnauthorized = errors.New("pipeline rejected auth token")

// Reply is the backend's answer to one turn.
type Reply struct {
	Text     string
	Audio    []byte
	Fallback bool
}

// PipelineClient submits one finalized utterance or greeting directive and
// receives Santa's reply.
type PipelineClient interface {
	Greeting(ctx context.Context, childID, greetingText, childName string) (*Reply, error)
	Utterance(ctx context.Context, childID string, rec *Recording) (*Reply, error)
}

// Client is the HTTP pipeline client. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given backend. timeout bounds each
// round trip so a stalled network surfaces as a retryable error instead of
// hanging the call.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer token after a re-login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type replyPayload struct {
	Text        string `json:"text"`
	AudioBase64 string `json:"audioBase64"`
	Fallback    bool   `json:"fallback"`
	Error       string `json:"error,omitempty"`
}

// Greeting submits a text-only greeting directive.
func (c *Client) Greeting(ctx context.Context, childID, greetingText, childName string) (*Reply, error) {
	body, err := json.Marshal(struct {
		IsGreeting   bool   `json:"isGreeting"`
		GreetingText string `json:"greetingText"`
		ChildName    string `json:"childName,omitempty"`
	}{IsGreeting: true, GreetingText: greetingText, ChildName: childName})
	if err != nil {
		return nil, fmt.Errorf("marshal greeting: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat-audio/"+childID, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create greeting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Utterance uploads a finalized recording as multipart form data. Ownership
// of the artifact transfers here: the file is removed once the upload
// attempt completes, success or not.
func (c *Client) Utterance(ctx context.Context, childID string, rec *Recording) (*Reply, error) {
	defer func() {
		if rec.Path != "" {
			os.Remove(rec.Path)
		}
	}()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "utterance.m4a")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	f, err := os.Open(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	_, err = io.Copy(part, f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat-audio/"+childID, &body)
	if err != nil {
		return nil, fmt.Errorf("create utterance request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Reply, error) {
	req.Header.Set("Authorization", "Bearer "+c.bearer())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipeline request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pipeline status %d: %s", resp.StatusCode, body)
	}

	var payload replyPayload
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode pipeline reply: %w", err)
	}

	reply := &Reply{Text: payload.Text, Fallback: payload.Fallback}
	if payload.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(payload.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("decode reply audio: %w", err)
		}
		reply.Audio = audio
	}
	return reply, nil
}
