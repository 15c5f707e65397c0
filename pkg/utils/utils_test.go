package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"busy"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Text string `json:"text"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &payload))
	assert.Equal(t, "hi", payload.Text)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &payload))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &payload))
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	require.NoError(t, SendSSEEvent(rec, rec, "delta", map[string]string{"text": "Sta"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: delta\ndata: {\"text\":\"Sta\"}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
