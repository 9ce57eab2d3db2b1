// Package api_test tests the backend HTTP client wrapper.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/session"
)

const testTimeout = 5 * time.Second

func newTestClient(t *testing.T, serverURL string) (*api.Client, *session.Store) {
	t.Helper()

	store, err := session.New(t.TempDir())
	require.NoError(t, err)

	return api.New(serverURL, testTimeout, store), store
}

func TestClient_Request_AttachesBearerAndContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "value", body["key"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
	defer server.Close()

	client, store := newTestClient(t, server.URL)
	require.NoError(t, store.SetToken("tok-1"))

	var out struct {
		OK bool `json:"ok"`
	}

	err := client.Request(context.Background(), http.MethodPost, "/echo",
		map[string]string{"key": "value"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestClient_Request_NoTokenNoHeader(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{}`))
		}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	err := client.Request(context.Background(), http.MethodGet, "/open", nil, nil)
	require.NoError(t, err)
}

func TestClient_Request_ServerErrorMessageSurfaced(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid phone number format"}`))
		}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	err := client.Request(context.Background(), http.MethodPost, "/auth/send-code", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "Invalid phone number format", err.Error())
	assert.True(t, api.IsKind(err, api.KindTransport))

	var clientErr *api.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
}

func TestClient_Request_NonJSONErrorFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream exploded"))
		}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	err := client.Request(context.Background(), http.MethodGet, "/tasks", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "请求失败", err.Error())
}

func TestClient_Request_UnauthorizedClassifiedAsAuth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"User not authenticated"}`))
		}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	err := client.Request(context.Background(), http.MethodGet, "/auth/me", nil, nil)
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindAuth))
	assert.False(t, api.IsKind(err, api.KindTransport))
}

func TestClient_Request_TransportFailure(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "http://127.0.0.1:1")

	err := client.Request(context.Background(), http.MethodGet, "/tasks", nil, nil)
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindTransport))
}

func TestClient_RequireToken(t *testing.T) {
	t.Parallel()

	client, store := newTestClient(t, "http://localhost:8080")

	_, err := client.RequireToken()
	require.ErrorIs(t, err, api.ErrNotAuthenticated)
	assert.True(t, api.IsKind(err, api.KindAuth))

	require.NoError(t, store.SetToken("tok-2"))

	token, err := client.RequireToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
}

func TestIsKind_PlainError(t *testing.T) {
	t.Parallel()

	assert.False(t, api.IsKind(context.Canceled, api.KindTransport))
}
