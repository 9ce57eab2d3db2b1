// Package files_test tests the file transfer client against a mock backend.
package files_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/files"
	"github.com/voxclone/voxclone-go/internal/session"
)

const testTimeout = 5 * time.Second

func newTestClient(t *testing.T, handler http.Handler) *files.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := session.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SetToken("test-token"))

	return files.New(api.New(server.URL, testTimeout, store))
}

func uploadHandler(t *testing.T, wantContent string) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)

		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, wantContent, string(data))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       uuid.NewString(),
			"filename": header.Filename,
			"size":     len(data),
		})
	})
}

func TestUpload_MultipartForm(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, uploadHandler(t, "RIFF fake wav bytes"))

	path := filepath.Join(t.TempDir(), "reference.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake wav bytes"), 0o600))

	descriptor, err := client.Upload(context.Background(), path)
	require.NoError(t, err)

	assert.NotEmpty(t, descriptor.ID)
	assert.Equal(t, "reference.wav", descriptor.Filename)
	assert.Equal(t, int64(19), descriptor.Size)
}

func TestUpload_MissingFile(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUploadReader_Unauthenticated(t *testing.T) {
	t.Parallel()

	store, err := session.New(t.TempDir())
	require.NoError(t, err)

	client := files.New(api.New("http://127.0.0.1:1", testTimeout, store))

	_, err = client.UploadReader(
		context.Background(), bytes.NewReader([]byte("audio")), "a.wav")
	require.ErrorIs(t, err, api.ErrNotAuthenticated)
}

func TestUploadFromBase64(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte("recorded audio"))

	t.Run("plain payload with default filename", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, uploadHandler(t, "recorded audio"))

		descriptor, err := client.UploadFromBase64(context.Background(), encoded, "")
		require.NoError(t, err)
		assert.Equal(t, "audio.wav", descriptor.Filename)
	})

	t.Run("data URL prefix is stripped", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, uploadHandler(t, "recorded audio"))

		payload := "data:audio/wav;base64," + encoded

		descriptor, err := client.UploadFromBase64(
			context.Background(), payload, "clip.wav")
		require.NoError(t, err)
		assert.Equal(t, "clip.wav", descriptor.Filename)
	})

	t.Run("empty payload", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.NotFoundHandler())

		_, err := client.UploadFromBase64(context.Background(), "", "a.wav")
		require.ErrorIs(t, err, files.ErrEmptyBase64)
	})

	t.Run("decodes to nothing", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.NotFoundHandler())

		_, err := client.UploadFromBase64(context.Background(), "data:audio/wav;base64,", "a.wav")
		require.ErrorIs(t, err, files.ErrEmptyFile)
	})

	t.Run("invalid base64", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.NotFoundHandler())

		_, err := client.UploadFromBase64(context.Background(), "!!not-base64!!", "a.wav")
		require.Error(t, err)
	})
}

func TestSignedURL_CachesUntilExpiry(t *testing.T) {
	t.Parallel()

	fileID := uuid.NewString()

	var hits atomic.Int64

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		require.Equal(t, "/files/"+fileID+"/url", r.URL.Path)
		require.Equal(t, "3600", r.URL.Query().Get("expire"))

		_ = json.NewEncoder(w).Encode(files.SignedURLResponse{
			ID:        fileID,
			Filename:  "result.wav",
			URL:       fmt.Sprintf("https://cdn.example.com/%s?sig=abc", fileID),
			ExpiresIn: 3600,
		})
	})

	client := newTestClient(t, handler)

	first, err := client.SignedURL(context.Background(), fileID, 0)
	require.NoError(t, err)
	require.Contains(t, first, fileID)

	second, err := client.SignedURL(context.Background(), fileID, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load(),
		"second lookup must be served from the cache")
}

func TestSignedURL_EmptyID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.SignedURL(context.Background(), "", time.Hour)
	require.ErrorIs(t, err, files.ErrEmptyFileID)
}

func TestDownload(t *testing.T) {
	t.Parallel()

	fileID := uuid.NewString()
	audio := []byte("RIFF synthesized audio payload")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/"+fileID, r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(audio)
	})

	client := newTestClient(t, handler)

	handle, err := client.Download(context.Background(), fileID)
	require.NoError(t, err)

	defer func() { _ = handle.Release() }()

	assert.Equal(t, "audio/wav", handle.ContentType)
	assert.Equal(t, int64(len(audio)), handle.Size)

	data, err := os.ReadFile(handle.Path)
	require.NoError(t, err)
	assert.Equal(t, audio, data)

	target := filepath.Join(t.TempDir(), "out", "result.wav")
	require.NoError(t, handle.SaveTo(target))

	saved, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, audio, saved)
}

func TestDownload_ServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"File not found"}`))
	})

	client := newTestClient(t, handler)

	_, err := client.Download(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "获取音频失败")
	assert.Contains(t, err.Error(), "File not found")
}

func TestAudioHandle_Release(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o600))

	handle := &files.AudioHandle{Path: path}

	require.NoError(t, handle.Release())
	assert.NoFileExists(t, path)

	// Releasing again is a no-op.
	require.NoError(t, handle.Release())

	err := handle.SaveTo(filepath.Join(t.TempDir(), "copy.wav"))
	require.ErrorIs(t, err, files.ErrHandleReleased)
}
