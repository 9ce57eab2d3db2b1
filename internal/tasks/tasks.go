// Package tasks provides the synthesis task client: task creation, single
// fetch, paginated listing, and polling a task to a terminal state.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/core"
)

const endpointTasks = "/tasks"

const maxTextLength = 5000

// Validation errors raised before any network call.
var (
	ErrTextEmpty            = errors.New("text cannot be empty")
	ErrTextTooLong          = errors.New("text exceeds maximum length")
	ErrReferenceAudioEmpty  = errors.New("reference audio file id is required")
	ErrEmotionModeInvalid   = errors.New("unsupported emotion mode")
	ErrEmotionPromptMissing = errors.New(
		"emotion prompt file id is required for emotion_prompt mode")
	ErrEmotionVectorLength = errors.New(
		"emotion vector must have exactly 8 components")
	ErrEmotionVectorRange = errors.New(
		"emotion vector components must be between 0 and 1")
	ErrEmotionAlphaRange = errors.New("emotion alpha must be between 0 and 1")
	ErrTaskIDEmpty       = errors.New("task id cannot be empty")
)

// CreateRequest describes one synthesis job to submit.
type CreateRequest struct {
	Text                 string           `json:"text"`
	ReferenceAudioFileID string           `json:"reference_audio_file_id"`
	EmotionMode          core.EmotionMode `json:"emotion_mode"`
	EmotionPromptFileID  string           `json:"emotion_prompt_file_id,omitempty"`
	EmotionVector        []float64        `json:"emotion_vector,omitempty"`
	EmotionAlpha         *float64         `json:"emotion_alpha,omitempty"`
}

// Validate checks the request against the backend's contract so malformed
// submissions fail locally, before any network call.
func (r *CreateRequest) Validate() error {
	if r.Text == "" {
		return ErrTextEmpty
	}

	if len(r.Text) > maxTextLength {
		return fmt.Errorf("%w: %d characters", ErrTextTooLong, len(r.Text))
	}

	if r.ReferenceAudioFileID == "" {
		return ErrReferenceAudioEmpty
	}

	switch r.EmotionMode {
	case core.EmotionModeSameAsReference, core.EmotionModeText:
	case core.EmotionModePrompt:
		if r.EmotionPromptFileID == "" {
			return ErrEmotionPromptMissing
		}
	case core.EmotionModeVector:
		err := validateEmotionVector(r.EmotionVector)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrEmotionModeInvalid, r.EmotionMode)
	}

	if r.EmotionAlpha != nil && (*r.EmotionAlpha < 0 || *r.EmotionAlpha > 1) {
		return fmt.Errorf("%w: got %f", ErrEmotionAlphaRange, *r.EmotionAlpha)
	}

	return nil
}

// CreateResponse is the acknowledgement returned for a newly created task.
type CreateResponse struct {
	ID        string          `json:"id"`
	Status    core.TaskStatus `json:"status"`
	CreatedAt string          `json:"created_at"`
}

// ListOptions narrows and paginates a task listing. Zero values fall back to
// the backend defaults.
type ListOptions struct {
	Page     int
	PageSize int
	Status   core.TaskStatus
}

// ListResult is one page of tasks, newest first. The server is authoritative
// for ordering and totals.
type ListResult struct {
	Tasks    []core.Task `json:"tasks"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// Client is the task lifecycle client.
type Client struct {
	api *api.Client
}

// New creates a task client on top of the backend API client.
func New(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// Create submits a synthesis task. The caller must be authenticated and the
// request must pass local validation.
func (c *Client) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	_, err = c.api.RequireToken()
	if err != nil {
		return nil, err
	}

	var resp CreateResponse

	err = c.api.Request(ctx, http.MethodPost, endpointTasks, req, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// Get fetches the full record of one task. A single fetch, no retry.
func (c *Client) Get(ctx context.Context, id string) (*core.Task, error) {
	if id == "" {
		return nil, ErrTaskIDEmpty
	}

	_, err := c.api.RequireToken()
	if err != nil {
		return nil, err
	}

	var task core.Task

	err = c.api.Request(ctx, http.MethodGet, endpointTasks+"/"+id, nil, &task)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// List fetches one page of tasks with optional status filtering.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	_, err := c.api.RequireToken()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}

	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}

	endpoint := endpointTasks
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var result ListResult

	err = c.api.Request(ctx, http.MethodGet, endpoint, nil, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func validateEmotionVector(vector []float64) error {
	if len(vector) != core.EmotionVectorDimensions {
		return fmt.Errorf("%w: got %d", ErrEmotionVectorLength, len(vector))
	}

	for i, v := range vector {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: component %d is %f",
				ErrEmotionVectorRange, i, v)
		}
	}

	return nil
}
