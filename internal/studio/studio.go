// Package studio orchestrates one voice generation end to end: upload the
// reference audio, create the synthesis task, poll it to a terminal state,
// and download the result for local playback.
package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/voxclone/voxclone-go/internal/core"
	"github.com/voxclone/voxclone-go/internal/files"
	"github.com/voxclone/voxclone-go/internal/localstore"
	"github.com/voxclone/voxclone-go/internal/tasks"
)

// Input validation errors.
var (
	ErrNoReferenceAudio = errors.New("需要上传声音参考音频")
	ErrNoScript         = errors.New("请输入需要朗读的台词脚本")
)

// Options configures a Studio.
type Options struct {
	// PollInterval and PollTimeout configure the task poller; zero values
	// use the poller defaults.
	PollInterval time.Duration
	PollTimeout  time.Duration

	// GenerationCost is deducted from the local balance per successful
	// generation when a local store is attached.
	GenerationCost float64
}

// Studio runs voice generations. A single Studio admits one generation at a
// time via an explicit single-flight guard; a second submission while one is
// in flight fails with ErrGenerationInFlight instead of interleaving.
type Studio struct {
	files *files.Client
	tasks *tasks.Client
	local *localstore.Store
	log   *logger.Logger
	opts  Options
	guard flightGuard
}

// New creates a studio. The local store is optional; when nil, no history is
// recorded and no credits are deducted.
func New(
	filesClient *files.Client,
	tasksClient *tasks.Client,
	local *localstore.Store,
	log *logger.Logger,
	opts Options,
) *Studio {
	return &Studio{
		files: filesClient,
		tasks: tasksClient,
		local: local,
		log:   log,
		opts:  opts,
	}
}

// GenerateRequest describes one voice generation. Exactly one of
// ReferenceAudioPath and ReferenceAudioBase64 must be set; the emotion
// fields follow the task creation contract.
type GenerateRequest struct {
	ReferenceAudioPath   string
	ReferenceAudioBase64 string

	Script string

	EmotionMode          core.EmotionMode
	EmotionVector        []float64
	EmotionReferencePath string
	EmotionAlpha         *float64

	// OutputPath, when set, receives a copy of the result audio.
	OutputPath string
}

// GenerateResult is the outcome of one generation. A task that terminated as
// failed is a normal result whose Task.ErrorMessage the caller surfaces, not
// an error. Audio is set only for completed tasks and is owned by the
// caller, who must release it.
type GenerateResult struct {
	TaskID string
	Task   *core.Task
	Audio  *files.AudioHandle
}

// Generate runs the full submission flow. It returns ErrGenerationInFlight
// when another generation is already running on this studio.
func (s *Studio) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	token, err := s.guard.begin()
	if err != nil {
		return nil, err
	}
	defer s.guard.end(token)

	err = validateRequest(req)
	if err != nil {
		return nil, err
	}

	err = s.checkBalance()
	if err != nil {
		return nil, err
	}

	createResp, err := s.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("Task %s created, polling until done", createResp.ID)

	task, err := s.await(ctx, createResp.ID, req.Script)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{TaskID: task.ID, Task: task}

	if task.Status == core.TaskStatusFailed {
		s.log.Error("Task %s failed: %s", task.ID, task.ErrorMessage)
		s.recordOutcome(task, "")

		return result, nil
	}

	audio, err := s.fetchResult(ctx, task, req.OutputPath)
	if err != nil {
		return nil, err
	}

	result.Audio = audio
	s.recordOutcome(task, audioPath(audio, req.OutputPath))
	s.deductCredits(task.ID)

	return result, nil
}

// submit uploads the reference clips and creates the task.
func (s *Studio) submit(ctx context.Context, req *GenerateRequest) (*tasks.CreateResponse, error) {
	reference, err := s.uploadReference(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("Reference audio uploaded: %s (%d bytes)", reference.ID, reference.Size)

	createReq := &tasks.CreateRequest{
		Text:                 req.Script,
		ReferenceAudioFileID: reference.ID,
		EmotionMode:          req.EmotionMode,
		EmotionVector:        req.EmotionVector,
		EmotionAlpha:         req.EmotionAlpha,
	}

	if createReq.EmotionMode == "" {
		createReq.EmotionMode = core.EmotionModeSameAsReference
	}

	if req.EmotionReferencePath != "" {
		prompt, uploadErr := s.files.Upload(ctx, req.EmotionReferencePath)
		if uploadErr != nil {
			return nil, uploadErr
		}

		createReq.EmotionPromptFileID = prompt.ID
	}

	return s.tasks.Create(ctx, createReq)
}

// await polls the task to a terminal state, logging status transitions. The
// poller invokes the observer on every tick; the studio de-duplicates for
// its log output.
func (s *Studio) await(ctx context.Context, taskID, script string) (*core.Task, error) {
	var lastStatus core.TaskStatus

	task, err := s.tasks.PollUntilDone(ctx, taskID, tasks.PollOptions{
		Interval: s.opts.PollInterval,
		Timeout:  s.opts.PollTimeout,
		OnStatus: func(status core.TaskStatus) {
			if status != lastStatus {
				s.log.Info("Task %s status: %s", taskID, status)
				lastStatus = status
			}
		},
	})
	if err != nil {
		s.recordFailure(taskID, script, err)

		return nil, err
	}

	return task, nil
}

func (s *Studio) fetchResult(ctx context.Context, task *core.Task, outputPath string) (*files.AudioHandle, error) {
	audio, err := s.files.Download(ctx, task.ResultAudioFileID)
	if err != nil {
		return nil, err
	}

	if outputPath != "" {
		err = audio.SaveTo(outputPath)
		if err != nil {
			releaseErr := audio.Release()
			if releaseErr != nil {
				s.log.Error("Failed to release audio handle: %v", releaseErr)
			}

			return nil, err
		}
	}

	s.log.Info("Result audio ready: %s (%d bytes)", audio.Path, audio.Size)

	return audio, nil
}

func (s *Studio) checkBalance() error {
	if s.local == nil {
		return nil
	}

	cost := s.generationCost()
	if s.local.Balance() < cost {
		return fmt.Errorf("%w: 需要 %.2f", localstore.ErrInsufficientBalance, cost)
	}

	return nil
}

func (s *Studio) deductCredits(taskID string) {
	if s.local == nil {
		return
	}

	balance, err := s.local.Deduct(s.generationCost())
	if err != nil {
		s.log.Error("Failed to deduct credits for task %s: %v", taskID, err)

		return
	}

	s.log.Info("Balance after task %s: %.2f", taskID, balance)
}

func (s *Studio) generationCost() float64 {
	if s.opts.GenerationCost > 0 {
		return s.opts.GenerationCost
	}

	return 1.00
}

func (s *Studio) recordOutcome(task *core.Task, audioPath string) {
	if s.local == nil {
		return
	}

	record := localstore.Record{
		ID:           task.ID,
		Status:       string(task.Status),
		Script:       task.Text,
		AudioPath:    audioPath,
		CreatedAt:    time.Now().UnixMilli(),
		ErrorMessage: task.ErrorMessage,
	}

	err := s.local.Append(record)
	if err != nil {
		s.log.Error("Failed to record task %s in history: %v", task.ID, err)
	}
}

// recordFailure records a submission that never reached a terminal state,
// such as a poll timeout, so the history reflects it.
func (s *Studio) recordFailure(taskID, script string, cause error) {
	if s.local == nil {
		return
	}

	if taskID == "" {
		taskID = uuid.NewString()
	}

	record := localstore.Record{
		ID:           taskID,
		Status:       string(core.TaskStatusFailed),
		Script:       script,
		CreatedAt:    time.Now().UnixMilli(),
		ErrorMessage: cause.Error(),
	}

	err := s.local.Append(record)
	if err != nil {
		s.log.Error("Failed to record task %s in history: %v", taskID, err)
	}
}

func (s *Studio) uploadReference(ctx context.Context, req *GenerateRequest) (*core.FileDescriptor, error) {
	if req.ReferenceAudioPath != "" {
		return s.files.Upload(ctx, req.ReferenceAudioPath)
	}

	return s.files.UploadFromBase64(ctx, req.ReferenceAudioBase64, "reference.wav")
}

func validateRequest(req *GenerateRequest) error {
	if req.ReferenceAudioPath == "" && req.ReferenceAudioBase64 == "" {
		return ErrNoReferenceAudio
	}

	if req.Script == "" {
		return ErrNoScript
	}

	return nil
}

func audioPath(audio *files.AudioHandle, outputPath string) string {
	if outputPath != "" {
		return outputPath
	}

	return audio.Path
}
