package dialogue

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	processor Processor
}

func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor}
}

// ChatRequest is the pipeline boundary request shape.
type ChatRequest struct {
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// StreamEvent is one chunk of the streamed rendering. Type is one of
// "metadata", "content" or "done".
type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// contentChunkSize is how many runes of the computed message each content
// chunk carries. Chunking is purely transport framing over a complete string.
const contentChunkSize = 48

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	result, err := h.processor.ProcessMessage(r.Context(), req.UserID, req.Message, req.ConversationID)
	if err != nil {
		writeTurnError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	result, err := h.processor.ProcessMessage(r.Context(), req.UserID, req.Message, req.ConversationID)
	if err != nil {
		writeTurnError(w)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, event := range RenderStream(result) {
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// RenderStream derives the chunk sequence from an already-computed result:
// one metadata event, the message split into content chunks, then a terminal
// done marker. The pipeline is never re-run for the streamed rendering.
func RenderStream(result *PipelineResult) []StreamEvent {
	events := []StreamEvent{{
		Type: "metadata",
		Payload: map[string]any{
			"conversation_id": result.ConversationID,
			"metadata":        result.Metadata,
			"sources":         result.Sources,
		},
	}}

	runes := []rune(result.Message)
	for start := 0; start < len(runes); start += contentChunkSize {
		end := start + contentChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		events = append(events, StreamEvent{Type: "content", Payload: string(runes[start:end])})
	}

	return append(events, StreamEvent{Type: "done"})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return req, false
	}
	if req.UserID == "" || req.Message == "" {
		http.Error(w, "user_id and message are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// writeTurnError hides internal failure detail; the conversation stays at its
// last committed state so a retry resumes correctly.
func writeTurnError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "服务暂时不可用,请稍后重试。",
	})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/triage/chat", h.HandleChat)
	r.Post("/triage/chat/stream", h.HandleChatStream)
}
