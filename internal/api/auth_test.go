package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/core"
)

func TestValidatePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		phone string
		valid bool
	}{
		{"13800138000", true},
		{"13912345678", true},
		{"19999999999", true},
		{"12345678901", false}, // second digit 2
		{"1380013800", false},  // 10 digits
		{"138001380001", false},
		{"23800138000", false},
		{"1380013800a", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.valid, api.ValidatePhone(tc.phone), "phone %q", tc.phone)
	}
}

func TestSendVerificationCode_RejectsBadPhoneLocally(t *testing.T) {
	t.Parallel()

	// No server: a validation failure must never reach the network.
	client, _ := newTestClient(t, "http://127.0.0.1:1")

	err := client.SendVerificationCode(context.Background(), "12345678901")
	require.ErrorIs(t, err, api.ErrInvalidPhone)
	assert.True(t, api.IsKind(err, api.KindValidation))
}

func TestSendVerificationCode_PostsPhone(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/send-code", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "13800138000", body["phone"])

			_, _ = w.Write([]byte(`{"message":"Verification code sent successfully"}`))
		}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	err := client.SendVerificationCode(context.Background(), "13800138000")
	require.NoError(t, err)
}

func TestLogin_Success_PersistsSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "13912345678", body["phone"])
			assert.Equal(t, "123456", body["code"])

			_, _ = w.Write([]byte(`{
				"token": "jwt-xyz",
				"user": {"id":"u-9","phone":"13912345678","status":"active"}
			}`))
		}))
	defer server.Close()

	client, store := newTestClient(t, server.URL)

	resp, err := client.Login(context.Background(), "13912345678", "123456")
	require.NoError(t, err)
	assert.Equal(t, "jwt-xyz", resp.Token)

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "jwt-xyz", token)

	user, ok := store.CachedUser()
	require.True(t, ok)
	assert.Equal(t, "u-9", user.ID)
	assert.True(t, client.IsAuthenticated())
}

// A rejected login must surface the server message and leave the session
// unauthenticated.
func TestLogin_WrongCode_NothingPersisted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"验证码错误"}`))
		}))
	defer server.Close()

	client, store := newTestClient(t, server.URL)

	_, err := client.Login(context.Background(), "13912345678", "000000")
	require.Error(t, err)
	assert.Equal(t, "验证码错误", err.Error())

	_, ok := store.Token()
	assert.False(t, ok, "no token must be persisted after a rejected login")
	assert.False(t, client.IsAuthenticated())
}

func TestLogin_RejectsBadCodeLocally(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.Login(context.Background(), "13912345678", "12345")
	require.ErrorIs(t, err, api.ErrInvalidCode)

	_, err = client.Login(context.Background(), "13912345678", "12345a")
	require.ErrorIs(t, err, api.ErrInvalidCode)
}

func TestCurrentUser_RefreshesCache(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/me", r.URL.Path)
			assert.Equal(t, "Bearer tok-3", r.Header.Get("Authorization"))

			_, _ = w.Write([]byte(`{"id":"u-5","phone":"13800138000","nickname":"voxer","status":"active"}`))
		}))
	defer server.Close()

	client, store := newTestClient(t, server.URL)
	require.NoError(t, store.SetToken("tok-3"))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "voxer", user.Nickname)

	cached, ok := store.CachedUser()
	require.True(t, ok)
	assert.Equal(t, user, cached)
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.CurrentUser(context.Background())
	require.ErrorIs(t, err, api.ErrNotAuthenticated)
}

func TestLogout_ClearsSession(t *testing.T) {
	t.Parallel()

	client, store := newTestClient(t, "http://localhost:8080")
	require.NoError(t, store.SetToken("tok"))
	require.NoError(t, store.SetCachedUser(&core.User{ID: "u-1"}))

	require.NoError(t, client.Logout())

	assert.False(t, client.IsAuthenticated())

	_, ok := store.CachedUser()
	assert.False(t, ok)
}
