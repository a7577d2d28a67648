package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polarline/santacall/internal/auth"
	"github.com/polarline/santacall/internal/children"
	"github.com/polarline/santacall/internal/pipeline"
	"github.com/polarline/santacall/internal/wishlist"
)

// maxUploadBytes bounds one uploaded utterance. The client's recording
// ceiling keeps real utterances far below this.
const maxUploadBytes = 10 << 20

type deps struct {
	pipe      *pipeline.Pipeline
	scratch   *pipeline.Scratch
	store     children.Store
	wishes    wishlist.Store
	signer    *auth.Signer
	wsHandler http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	authed := d.signer.Middleware

	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("/ws/call", authed(d.wsHandler))
	mux.Handle("POST /chat-audio/{childId}", authed(http.HandlerFunc(d.handleChatAudio)))
	mux.Handle("POST /chat/{childId}", authed(http.HandlerFunc(d.handleChat)))

	mux.Handle("POST /children", authed(http.HandlerFunc(d.handleChildCreate)))
	mux.Handle("GET /children", authed(http.HandlerFunc(d.handleChildList)))
	mux.Handle("GET /children/{id}", authed(http.HandlerFunc(d.handleChildGet)))
	mux.Handle("PUT /children/{id}", authed(http.HandlerFunc(d.handleChildUpdate)))
	mux.Handle("DELETE /children/{id}", authed(http.HandlerFunc(d.handleChildDelete)))

	mux.Handle("POST /wishlist/{childId}", authed(http.HandlerFunc(d.handleWishlistAdd)))
	mux.Handle("GET /wishlist/{childId}", authed(http.HandlerFunc(d.handleWishlistGet)))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- speech pipeline endpoints ---

// greetingBody is the JSON form of a chat-audio request.
type greetingBody struct {
	IsGreeting   bool   `json:"isGreeting"`
	GreetingText string `json:"greetingText"`
	ChildName    string `json:"childName"`
}

// chatAudioResponse is the reply shape for both greeting and utterance
// requests. AudioBase64 is null when synthesis failed; clients resume
// listening without playback.
type chatAudioResponse struct {
	Text        string  `json:"text"`
	AudioBase64 *string `json:"audioBase64"`
	Fallback    bool    `json:"fallback,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (d deps) handleChatAudio(w http.ResponseWriter, r *http.Request) {
	req := pipeline.Request{
		ParentID: auth.ParentID(r.Context()),
		ChildID:  r.PathValue("childId"),
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		var body greetingBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.IsGreeting {
			writeError(w, http.StatusBadRequest, "expected a greeting directive")
			return
		}
		req.IsGreeting = true
		req.GreetingText = body.GreetingText
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, _, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no audio uploaded")
			return
		}
		defer file.Close()

		path, size, err := d.scratch.Save(file)
		if err != nil {
			slog.Error("save upload", "error", err)
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		slog.Info("utterance received", "child_id", req.ChildID, "size_bytes", size)
		req.AudioPath = path
	}

	reply, err := d.pipe.Respond(r.Context(), req)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeReply(w, reply)
}

func (d deps) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	reply, err := d.pipe.RespondText(r.Context(), auth.ParentID(r.Context()), r.PathValue("childId"), body.Message)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	resp := map[string]any{"reply": reply.Text}
	if reply.Audio != nil {
		resp["audioBase64"] = base64.StdEncoding.EncodeToString(reply.Audio)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeReply(w http.ResponseWriter, reply *pipeline.Reply) {
	resp := chatAudioResponse{Text: reply.Text, Fallback: reply.Fallback}
	if reply.Audio != nil {
		encoded := base64.StdEncoding.EncodeToString(reply.Audio)
		resp.AudioBase64 = &encoded
	}
	if reply.Reprompt {
		resp.Error = "empty transcript"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, children.ErrNotFound):
		writeError(w, http.StatusNotFound, "child not found")
	case errors.Is(err, pipeline.ErrBadInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("pipeline respond", "error", err)
		writeError(w, http.StatusInternalServerError, "pipeline failed")
	}
}

// --- child profile CRUD ---

type childBody struct {
	Name             string `json:"name"`
	Age              int    `json:"age"`
	Gender           string `json:"gender"`
	PhoneticSpelling string `json:"phoneticSpelling"`
}

func (d deps) handleChildCreate(w http.ResponseWriter, r *http.Request) {
	var body childBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	p := children.Profile{
		ParentID:         auth.ParentID(r.Context()),
		Name:             body.Name,
		Age:              body.Age,
		Gender:           body.Gender,
		PhoneticSpelling: body.PhoneticSpelling,
	}
	if err := d.store.Create(r.Context(), &p); err != nil {
		if errors.Is(err, children.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add child")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (d deps) handleChildList(w http.ResponseWriter, r *http.Request) {
	list, err := d.store.List(r.Context(), auth.ParentID(r.Context()))
	if err != nil {
		slog.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if list == nil {
		list = []children.Profile{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (d deps) handleChildGet(w http.ResponseWriter, r *http.Request) {
	p, err := d.store.Get(r.Context(), auth.ParentID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (d deps) handleChildUpdate(w http.ResponseWriter, r *http.Request) {
	var body childBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	p := children.Profile{
		ID:               r.PathValue("id"),
		ParentID:         auth.ParentID(r.Context()),
		Name:             body.Name,
		Age:              body.Age,
		Gender:           body.Gender,
		PhoneticSpelling: body.PhoneticSpelling,
	}
	if err := d.store.Update(r.Context(), &p); err != nil {
		if errors.Is(err, children.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (d deps) handleChildDelete(w http.ResponseWriter, r *http.Request) {
	if err := d.store.Delete(r.Context(), auth.ParentID(r.Context()), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- wishlist ---

// wishlistResponse is the reply shape for both wishlist endpoints.
type wishlistResponse struct {
	ChildID string          `json:"childId"`
	Items   []wishlist.Item `json:"items"`
}

func (d deps) handleWishlistAdd(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childId")
	var body struct {
		Items []wishlist.Item `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "expected a non-empty items array")
		return
	}

	// The child must belong to the requesting parent.
	if _, err := d.store.Get(r.Context(), auth.ParentID(r.Context()), childID); err != nil {
		writeStoreError(w, err)
		return
	}

	added, err := d.wishes.Add(r.Context(), childID, body.Items)
	if err != nil {
		if errors.Is(err, wishlist.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("add wishlist items", "error", err, "child_id", childID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	slog.Info("wishlist items added", "child_id", childID, "count", len(added))
	writeJSON(w, http.StatusCreated, wishlistResponse{ChildID: childID, Items: added})
}

func (d deps) handleWishlistGet(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childId")

	if _, err := d.store.Get(r.Context(), auth.ParentID(r.Context()), childID); err != nil {
		writeStoreError(w, err)
		return
	}

	items, err := d.wishes.List(r.Context(), childID)
	if err != nil {
		slog.Error("list wishlist", "error", err, "child_id", childID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if items == nil {
		items = []wishlist.Item{}
	}
	writeJSON(w, http.StatusOK, wishlistResponse{ChildID: childID, Items: items})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, children.ErrNotFound) {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}
	slog.Error("child store", "error", err)
	writeError(w, http.StatusInternalServerError, "server error")
}

// --- shared helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
