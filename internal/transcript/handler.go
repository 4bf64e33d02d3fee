package transcript

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes transcript readback for operators.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	messages, err := h.store.Transcript(r.Context(), conversationID)
	if err != nil {
		http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/transcript/{conversationID}", h.HandleGet)
}
