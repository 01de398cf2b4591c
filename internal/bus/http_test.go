package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/review-radar/internal/logging"
)

func testRouter() *Router {
	r := NewRouter(logging.Discard())
	r.Handle("getBadge", func(context.Context, json.RawMessage) (any, error) {
		return map[string]string{"text": "3"}, nil
	})
	r.Handle("saveSettings", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("invalid sound")
	})
	return r
}

func TestHTTPHandler_Message(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHTTPHandler(testRouter(), NewBroadcaster(logging.Discard()), logging.Discard())

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		validate       func(*testing.T, Response)
	}{
		{
			name:           "success",
			body:           `{"action":"getBadge"}`,
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, r Response) {
				assert.True(t, r.Success)
				assert.Equal(t, map[string]any{"text": "3"}, r.Data)
			},
		},
		{
			name:           "handler error",
			body:           `{"action":"saveSettings","payload":{"sound":"x"}}`,
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, r Response) {
				assert.False(t, r.Success)
				assert.Equal(t, "invalid sound", r.Error)
			},
		},
		{
			name:           "unknown action",
			body:           `{"action":"nope"}`,
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, r Response) {
				assert.False(t, r.Success)
				assert.Contains(t, r.Error, "unknown action")
			},
		},
		{
			name:           "missing action",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, r Response) {
				assert.Equal(t, "invalid request body", r.Error)
			},
		},
		{
			name:           "malformed json",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
			validate:       func(t *testing.T, r Response) { assert.False(t, r.Success) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, PathMessage, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tt.validate(t, resp)
		})
	}
}

func TestHTTPHandler_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHTTPHandler(testRouter(), NewBroadcaster(logging.Discard()), logging.Discard())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathHealth, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "getBadge")
}

func TestClient_Send(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(NewHTTPHandler(testRouter(), NewBroadcaster(logging.Discard()), logging.Discard()))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)

	resp, err := client.Send(context.Background(), "getBadge", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"text":"3"}`, string(resp.Data.(json.RawMessage)))

	resp, err = client.Send(context.Background(), "nope", map[string]bool{"force": true})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown action")
}

func TestClient_DaemonNotRunning(t *testing.T) {
	client := NewClient("127.0.0.1:1", time.Second)

	_, err := client.Send(context.Background(), "getBadge", nil)

	assert.Error(t, err)
}
