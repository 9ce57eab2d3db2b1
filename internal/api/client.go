// Package api provides the HTTP client for the VoxClone backend. It attaches
// bearer authentication, serializes JSON bodies, and normalizes every failure
// into a single error type tagged with its origin.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxclone/voxclone-go/internal/core"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// Client is an HTTP client for the VoxClone backend. The session store it
// holds is the single source of the bearer token; a token present in the
// store is attached to every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    core.SessionStore
}

// New creates a client for the backend at baseURL. The timeout applies to
// every HTTP request made by this client.
func New(baseURL string, timeout time.Duration, sess core.SessionStore) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		session: sess,
	}
}

// Session returns the session store backing this client.
func (c *Client) Session() core.SessionStore {
	return c.session
}

// RequireToken returns the stored bearer token, or ErrNotAuthenticated when
// no token is present. Operations that must not reach the network without
// authentication call this first.
func (c *Client) RequireToken() (string, error) {
	token, ok := c.session.Token()
	if !ok {
		return "", ErrNotAuthenticated
	}

	return token, nil
}

// Request issues a JSON request against endpoint and decodes the JSON
// response into out when out is non-nil. A non-success status is converted
// into an Error carrying the server-supplied error field or a generic
// fallback.
func (c *Client) Request(
	ctx context.Context,
	method, endpoint string,
	body any,
	out any,
) error {
	var reqBody io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		reqBody = bytes.NewReader(payload)
	}

	resp, err := c.Do(ctx, method, endpoint, reqBody, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !successStatus(resp.StatusCode) {
		return parseErrorResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// Do issues a raw request against endpoint with the caller-supplied body and
// content type, attaching the bearer token when one is stored. The caller
// owns the response body. Transport failures are returned as tagged client
// errors; non-success statuses are not inspected here.
func (c *Client) Do(
	ctx context.Context,
	method, endpoint string,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}

	token, ok := c.session.Token()
	if ok {
		req.Header.Set(headerAuthorization, bearerPrefix+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{
			Kind:    KindTransport,
			Message: fmt.Sprintf("request to %s failed: %v", endpoint, err),
		}
	}

	return resp, nil
}

// CheckResponse converts a non-success response into a tagged client error,
// consuming the body in that case. Success responses are left untouched.
func CheckResponse(resp *http.Response) error {
	if successStatus(resp.StatusCode) {
		return nil
	}

	return parseErrorResponse(resp)
}

// DecodeResponse checks resp for success and decodes its JSON body into out.
func DecodeResponse(resp *http.Response, out any) error {
	err := CheckResponse(resp)
	if err != nil {
		return err
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// parseErrorResponse decodes the server's JSON error envelope. If the body
// is not the expected envelope, the generic fallback message is used so the
// caller always receives a tagged client error.
func parseErrorResponse(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}

	err := json.NewDecoder(resp.Body).Decode(&envelope)
	if err != nil {
		return errorFromStatus(resp.StatusCode, "")
	}

	return errorFromStatus(resp.StatusCode, envelope.Error)
}

func successStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
