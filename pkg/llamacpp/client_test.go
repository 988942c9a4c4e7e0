package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smodf-client/internal/transport"
)

func TestAnalyzeImageStringContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "minicpm", req.Model)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"objects":[{"label":"lamp","confidence":0.6},{"label":"desk","confidence":0.9}]}`,
				},
			}},
		})
	}))
	defer server.Close()

	c, err := NewClient(server.URL + "/")
	require.NoError(t, err)

	result, err := c.AnalyzeImage(context.Background(), "minicpm", "list", "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, result.Objects, 2)
	assert.Equal(t, "lamp", result.Objects[0].Label)
	assert.Equal(t, "desk", result.Objects[1].Label)
}

func TestSimpleQueryPartsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": []map[string]any{{"type": "text", "text": "a desk lamp"}},
				},
			}},
		})
	}))
	defer server.Close()

	c, err := NewClient(server.URL)
	require.NoError(t, err)

	text, err := c.SimpleQuery(context.Background(), "m", "what is this", "")
	require.NoError(t, err)
	assert.Equal(t, "a desk lamp", text)
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = c.AnalyzeImage(context.Background(), "m", "p", "")
	assert.ErrorContains(t, err, "503")
}

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(transport.HeaderRequestID))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL)
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "m", "p", "")
	require.NoError(t, err)
}

func TestEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL)
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "m", "p", "")
	assert.ErrorContains(t, err, "no choices")
}

func TestNewClientDefaultURL(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.baseURL)
}
