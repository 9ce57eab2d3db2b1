// Package files provides the file transfer client: multipart upload of
// reference audio and retrieval of stored audio for local playback.
package files

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/core"
)

// File endpoints.
const (
	endpointUpload = "/upload"
	endpointFiles  = "/files/"
)

const (
	formFieldFile = "file"

	// DefaultSignedURLExpire is the signed URL lifetime requested when the
	// caller does not specify one.
	DefaultSignedURLExpire = time.Hour

	// signedURLSafetyMargin keeps cached URLs from being handed out right
	// at their expiry boundary.
	signedURLSafetyMargin = 30 * time.Second

	urlCacheCleanupInterval = 10 * time.Minute

	tempFilePattern = "voxclone-audio-*"
)

// Static errors.
var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrEmptyBase64    = errors.New("base64 payload is empty")
	ErrHandleReleased = errors.New("audio handle already released")
	ErrEmptyFileID    = errors.New("file id cannot be empty")
	ErrUploadFilename = errors.New("filename cannot be empty")
)

// Client uploads and fetches audio files. Signed URLs are cached per file id
// until shortly before their server-reported expiry.
type Client struct {
	api  *api.Client
	urls *gocache.Cache
}

// New creates a file transfer client on top of the backend API client.
func New(apiClient *api.Client) *Client {
	return &Client{
		api:  apiClient,
		urls: gocache.New(gocache.NoExpiration, urlCacheCleanupInterval),
	}
}

// Upload posts the file at path as a multipart form and returns the opaque
// descriptor the backend assigns. The caller must be authenticated.
func (c *Client) Upload(ctx context.Context, path string) (*core.FileDescriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	return c.UploadReader(ctx, file, filepath.Base(path))
}

// UploadReader posts the contents of r under filename.
func (c *Client) UploadReader(
	ctx context.Context,
	r io.Reader,
	filename string,
) (*core.FileDescriptor, error) {
	if filename == "" {
		return nil, ErrUploadFilename
	}

	_, err := c.api.RequireToken()
	if err != nil {
		return nil, err
	}

	body, contentType, err := buildMultipartBody(r, filename)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Do(ctx, http.MethodPost, endpointUpload, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var descriptor core.FileDescriptor

	err = api.DecodeResponse(resp, &descriptor)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	return &descriptor, nil
}

// UploadFromBase64 decodes a Base64 payload, optionally carrying a data URL
// prefix, and uploads it under filename. The MIME type embedded in a data
// URL prefix is preserved for the upload part; without one the payload is
// treated as WAV audio.
func (c *Client) UploadFromBase64(
	ctx context.Context,
	payload, filename string,
) (*core.FileDescriptor, error) {
	if payload == "" {
		return nil, ErrEmptyBase64
	}

	if filename == "" {
		filename = "audio.wav"
	}

	content := payload
	if idx := strings.Index(content, ","); idx >= 0 {
		content = content[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	return c.UploadReader(ctx, bytes.NewReader(data), filename)
}

// SignedURLResponse is the signed access URL for a stored file.
type SignedURLResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

// SignedURL returns a signed access URL for fileID, valid for at least
// expire. Responses are cached until shortly before their expiry so repeated
// playback does not re-request signatures.
func (c *Client) SignedURL(
	ctx context.Context,
	fileID string,
	expire time.Duration,
) (string, error) {
	if fileID == "" {
		return "", ErrEmptyFileID
	}

	if expire <= 0 {
		expire = DefaultSignedURLExpire
	}

	if cached, ok := c.urls.Get(fileID); ok {
		return cached.(string), nil
	}

	_, err := c.api.RequireToken()
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s%s/url?expire=%d",
		endpointFiles, fileID, int64(expire.Seconds()))

	var resp SignedURLResponse

	err = c.api.Request(ctx, http.MethodGet, endpoint, nil, &resp)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - signedURLSafetyMargin
	if ttl > 0 {
		c.urls.Set(fileID, resp.URL, ttl)
	}

	return resp.URL, nil
}

// AudioHandle is a locally resolvable copy of a fetched audio file. It owns
// a temporary file on disk; the caller must call Release on every exit path
// once the audio is no longer needed.
type AudioHandle struct {
	Path        string
	ContentType string
	Size        int64
	released    bool
}

// Release removes the temporary file. Releasing twice is not an error.
func (h *AudioHandle) Release() error {
	if h.released {
		return nil
	}

	h.released = true

	err := os.Remove(h.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release audio file: %w", err)
	}

	return nil
}

// SaveTo copies the audio to path, creating parent directories as needed.
// The handle remains valid and still owns its temporary file.
func (h *AudioHandle) SaveTo(path string) error {
	if h.released {
		return ErrHandleReleased
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := os.ReadFile(h.Path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	return nil
}

// Download fetches the raw bytes of fileID into a temporary file and returns
// a handle for local playback. The caller must be authenticated and owns the
// handle's release.
func (c *Client) Download(ctx context.Context, fileID string) (*AudioHandle, error) {
	if fileID == "" {
		return nil, ErrEmptyFileID
	}

	_, err := c.api.RequireToken()
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Do(ctx, http.MethodGet, endpointFiles+fileID, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	err = api.CheckResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("获取音频失败: %w", err)
	}

	tmp, err := os.CreateTemp("", tempFilePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary audio file: %w", err)
	}

	size, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()

	if err != nil {
		_ = os.Remove(tmp.Name())

		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}

	if closeErr != nil {
		_ = os.Remove(tmp.Name())

		return nil, fmt.Errorf("failed to close temporary audio file: %w", closeErr)
	}

	return &AudioHandle{
		Path:        tmp.Name(),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}

// buildMultipartBody assembles the single-field multipart form the upload
// endpoint expects, returning the encoded body and its content type.
func buildMultipartBody(r io.Reader, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart form: %w", err)
	}

	_, err = io.Copy(part, r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio data: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
