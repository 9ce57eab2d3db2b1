// Package core defines the domain types and interfaces shared by the
// VoxClone client packages.
package core

import "encoding/json"

// TaskStatus represents the server-side status of a synthesis task.
type TaskStatus string

// Task statuses reported by the backend. Pending and processing are both
// non-terminal; only completed and failed are terminal.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further status transitions occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// EmotionMode represents how the emotion of the synthesized speech is derived.
type EmotionMode string

// Supported emotion modes.
const (
	// EmotionModeSameAsReference copies the emotion of the reference audio.
	EmotionModeSameAsReference EmotionMode = "same_as_reference"
	// EmotionModePrompt copies the emotion of a second reference clip.
	EmotionModePrompt EmotionMode = "emotion_prompt"
	// EmotionModeVector uses an explicit 8-dimensional emotion vector.
	EmotionModeVector EmotionMode = "emotion_vector"
	// EmotionModeText derives the emotion from the script text itself.
	EmotionModeText EmotionMode = "emotion_text"
)

// EmotionVectorDimensions is the required length of an emotion vector:
// happy, angry, sad, fear, disgust, depressed, surprised, calm.
const EmotionVectorDimensions = 8

// UserStatus represents the account status of a user.
type UserStatus string

// User statuses reported by the backend.
const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is the authenticated account as reported by the backend. It is
// server-owned; the client only holds a possibly stale mirror.
type User struct {
	ID          string     `json:"id"`
	Phone       string     `json:"phone"`
	Nickname    string     `json:"nickname,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	Status      UserStatus `json:"status"`
	Credits     float64    `json:"credits,omitempty"`
	LastLoginAt string     `json:"last_login_at,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// Task is the full record of one synthesis job. The backend owns every
// transition; the client only observes it via fetch or poll.
//
// ResultAudioFileID is set if and only if the status is completed, and
// ErrorMessage if and only if the status is failed.
type Task struct {
	ID                   string      `json:"id"`
	Status               TaskStatus  `json:"status"`
	Text                 string      `json:"text"`
	ReferenceAudioFileID string      `json:"reference_audio_file_id"`
	EmotionMode          EmotionMode `json:"emotion_mode"`
	EmotionPromptFileID  string      `json:"emotion_prompt_file_id,omitempty"`
	EmotionVector        string      `json:"emotion_vector,omitempty"`
	EmotionAlpha         *float64    `json:"emotion_alpha,omitempty"`
	ResultAudioFileID    string      `json:"result_audio_file_id,omitempty"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	CreatedAt            string      `json:"created_at"`
	UpdatedAt            string      `json:"updated_at"`
}

// EmotionVectorValues parses the JSON-encoded emotion vector carried on the
// wire. It returns nil when no vector is set.
func (t *Task) EmotionVectorValues() ([]float64, error) {
	if t.EmotionVector == "" {
		return nil, nil
	}

	var values []float64

	err := json.Unmarshal([]byte(t.EmotionVector), &values)
	if err != nil {
		return nil, err
	}

	return values, nil
}

// FileDescriptor is the opaque handle returned for an uploaded file.
type FileDescriptor struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}
