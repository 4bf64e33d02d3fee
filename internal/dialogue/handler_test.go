package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	result *PipelineResult
	err    error
}

func (s stubProcessor) ProcessMessage(context.Context, string, string, string) (*PipelineResult, error) {
	return s.result, s.err
}

func TestRenderStreamFramesTheComputedMessage(t *testing.T) {
	message := strings.Repeat("体温持续升高时请及时就医。", 20)
	result := &PipelineResult{
		ConversationID: "conv-1",
		Message:        message,
		Metadata:       map[string]string{"action": "ASK_MISSING_SLOTS"},
	}

	events := RenderStream(result)

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, "metadata", events[0].Type)
	assert.Equal(t, "done", events[len(events)-1].Type)

	var rebuilt strings.Builder
	for _, e := range events[1 : len(events)-1] {
		assert.Equal(t, "content", e.Type)
		rebuilt.WriteString(e.Payload.(string))
	}
	assert.Equal(t, message, rebuilt.String(), "chunks must reassemble to the exact reply")
}

func TestHandleChatReturnsResult(t *testing.T) {
	h := NewHandler(stubProcessor{result: &PipelineResult{
		ConversationID: "conv-1",
		Message:        "请补充患者年龄。",
	}})
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	body, _ := json.Marshal(ChatRequest{UserID: "user-1", Message: "孩子发烧了"})
	req := httptest.NewRequest(http.MethodPost, "/triage/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "请补充患者年龄。", got.Message)
}

func TestHandleChatRejectsMissingFields(t *testing.T) {
	h := NewHandler(stubProcessor{result: &PipelineResult{}})
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	body, _ := json.Marshal(ChatRequest{Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/triage/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatHidesInternalErrors(t *testing.T) {
	h := NewHandler(stubProcessor{err: assert.AnError})
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	body, _ := json.Marshal(ChatRequest{UserID: "user-1", Message: "孩子发烧了"})
	req := httptest.NewRequest(http.MethodPost, "/triage/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestHandleChatStreamEmitsEventStream(t *testing.T) {
	h := NewHandler(stubProcessor{result: &PipelineResult{
		ConversationID: "conv-1",
		Message:        "请补充患者年龄。",
	}})
	r := chi.NewRouter()
	RegisterRoutes(r, h)

	body, _ := json.Marshal(ChatRequest{UserID: "user-1", Message: "孩子发烧了"})
	req := httptest.NewRequest(http.MethodPost, "/triage/chat/stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"metadata"`)
	assert.Contains(t, rec.Body.String(), `"type":"content"`)
	assert.Contains(t, rec.Body.String(), `"type":"done"`)
}
