package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jetstream-aero/embedq/configs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(endpoint string, timeout time.Duration) *Client {
	return NewClient(&configs.AppConfigs{
		IndexerURL:     endpoint,
		IndexerAPIKey:  "test-key",
		IndexerTimeout: timeout,
	})
}

func TestIndexObjectSuccess(t *testing.T) {
	var gotBody indexRequest
	var gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAPIKey = req.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 5*time.Second)
	result := client.IndexObject("offer", "offer-42", context.Background())

	assert.True(t, result.Success)
	assert.Empty(t, result.Message)
	assert.Equal(t, "offer", gotBody.Type)
	assert.Equal(t, "offer-42", gotBody.Id)
	assert.Equal(t, "test-key", gotAPIKey)
}

func TestIndexObjectAcceptsAny2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	result := newTestClient(server.URL, 5*time.Second).IndexObject("flight", "flight-1", context.Background())

	assert.True(t, result.Success)
}

func TestIndexObjectNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("embedding provider unavailable"))
	}))
	defer server.Close()

	result := newTestClient(server.URL, 5*time.Second).IndexObject("user", "user-7", context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "status 500")
	assert.Contains(t, result.Message, "embedding provider unavailable")
}

func TestIndexObjectTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-req.Context().Done():
		}
	}))
	defer server.Close()

	result := newTestClient(server.URL, 50*time.Millisecond).IndexObject("crew", "crew-9", context.Background())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "timed out")
}

func TestIndexObjectTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close() // connection refused from here on

	result := newTestClient(server.URL, time.Second).IndexObject("offer", "offer-1", context.Background())

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}
