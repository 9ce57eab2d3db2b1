// Command voxclone is the command-line client for the VoxClone voice-cloning
// backend: phone/SMS login, reference audio upload, synthesis task submission
// and polling, and result download.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/voxclone/voxclone-go/internal/api"
	"github.com/voxclone/voxclone-go/internal/config"
	"github.com/voxclone/voxclone-go/internal/core"
	"github.com/voxclone/voxclone-go/internal/files"
	"github.com/voxclone/voxclone-go/internal/localstore"
	"github.com/voxclone/voxclone-go/internal/session"
	"github.com/voxclone/voxclone-go/internal/studio"
	"github.com/voxclone/voxclone-go/internal/tasks"
)

// Command names.
const (
	cmdSendCode = "send-code"
	cmdLogin    = "login"
	cmdLogout   = "logout"
	cmdWhoami   = "whoami"
	cmdUpload   = "upload"
	cmdGenerate = "generate"
	cmdTasks    = "tasks"
	cmdTask     = "task"
	cmdDownload = "download"
	cmdHistory  = "history"
	cmdBalance  = "balance"
)

// Flag descriptions.
const (
	flagPhoneDesc      = "Phone number (11 digits, e.g. 13800138000)"
	flagCodeDesc       = "6-digit SMS verification code"
	flagRefreshDesc    = "Refresh the profile from the backend"
	flagFileDesc       = "Path to an audio file (wav, mp3, flac, ogg, m4a)"
	flagRefDesc        = "Path to the reference voice audio"
	flagRefB64Desc     = "Path to a file holding Base64 reference audio"
	flagTextDesc       = "Text script to synthesize"
	flagEmotionDesc    = "Emotion mode: same_as_reference, emotion_vector, emotion_prompt or emotion_text"
	flagVectorDesc     = "8 comma-separated emotion components in [0,1]"
	flagEmotionRefDesc = "Path to the emotion reference audio (emotion_prompt mode)"
	flagAlphaDesc      = "Emotion intensity in [0,1]"
	flagOutputDesc     = "Output file path (.wav)"
	flagTaskIDDesc     = "Task id"
	flagPageDesc       = "Page number"
	flagPageSizeDesc   = "Page size"
	flagStatusDesc     = "Filter by status: pending, processing, completed, failed"
	flagFileIDDesc     = "File id"
	flagDeleteDesc     = "Delete the history entry with this id"
	flagClearDesc      = "Clear the whole history"
)

const (
	logFileName      = "voxclone.log"
	bootstrapLogName = "voxclone-bootstrap.log"

	commandTimeout = 2 * time.Minute
)

const usageText = `Usage: voxclone <command> [flags]

Commands:
  send-code   Send an SMS verification code
  login       Log in with phone and code
  logout      Clear the local session
  whoami      Show the current user
  upload      Upload an audio file
  generate    Run a full voice generation (upload, create, poll, download)
  tasks       List synthesis tasks
  task        Show one task
  download    Download a stored audio file
  history     Show or edit the local generation history
  balance     Show the local credit balance
`

func main() {
	err := run()
	if err != nil {
		// The logger may not be initialized yet, so use the standard log
		// package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Print(usageText)

		return errors.New("no command given")
	}

	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	command := os.Args[1]

	// The generate flow must outlive the poll horizon; every other command
	// is bounded by the generic command timeout.
	timeout := commandTimeout
	if command == cmdGenerate {
		timeout = app.cfg.Polling.Timeout() + commandTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return app.dispatch(ctx, command, os.Args[2:])
}

// app bundles the configured clients for command handlers.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	client *api.Client
	files  *files.Client
	tasks  *tasks.Client
	local  *localstore.Store
	studio *studio.Studio
}

// setup loads configuration and wires the client stack. A missing TOML
// source is not fatal; the built-in defaults are used instead.
func setup() (*app, error) {
	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogName)
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Info("No configuration source, using defaults: %v", err)

		cfg = config.Default()
	}

	finalLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	closeErr := bootstrapLog.Close()
	if closeErr != nil {
		finalLog.Error("Failed to close bootstrap logger: %v", closeErr)
	}

	sess, err := session.New(cfg.Session.StateDir)
	if err != nil {
		return nil, err
	}

	local, err := localstore.New(cfg.Session.StateDir)
	if err != nil {
		return nil, err
	}

	client := api.New(
		cfg.API.BaseURL,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
		sess,
	)
	filesClient := files.New(client)
	tasksClient := tasks.New(client)

	studioClient := studio.New(filesClient, tasksClient, local, finalLog, studio.Options{
		PollInterval:   cfg.Polling.Interval(),
		PollTimeout:    cfg.Polling.Timeout(),
		GenerationCost: cfg.Studio.CostPerGeneration,
	})

	return &app{
		cfg:    cfg,
		log:    finalLog,
		client: client,
		files:  filesClient,
		tasks:  tasksClient,
		local:  local,
		studio: studioClient,
	}, nil
}

func (a *app) close() {
	err := a.log.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", err)
	}
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case cmdSendCode:
		return a.runSendCode(ctx, args)
	case cmdLogin:
		return a.runLogin(ctx, args)
	case cmdLogout:
		return a.runLogout()
	case cmdWhoami:
		return a.runWhoami(ctx, args)
	case cmdUpload:
		return a.runUpload(ctx, args)
	case cmdGenerate:
		return a.runGenerate(ctx, args)
	case cmdTasks:
		return a.runTasks(ctx, args)
	case cmdTask:
		return a.runTask(ctx, args)
	case cmdDownload:
		return a.runDownload(ctx, args)
	case cmdHistory:
		return a.runHistory(args)
	case cmdBalance:
		return a.runBalance()
	default:
		fmt.Print(usageText)

		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) runSendCode(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdSendCode, flag.ExitOnError)
	phone := flags.String("phone", "", flagPhoneDesc)
	parseFlags(flags, args)

	err := a.client.SendVerificationCode(ctx, *phone)
	if err != nil {
		a.log.Error("Failed to send verification code: %v", err)

		return err
	}

	fmt.Printf("Verification code sent to %s\n", *phone)

	return nil
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdLogin, flag.ExitOnError)
	phone := flags.String("phone", "", flagPhoneDesc)
	code := flags.String("code", "", flagCodeDesc)
	parseFlags(flags, args)

	resp, err := a.client.Login(ctx, *phone, *code)
	if err != nil {
		a.log.Error("Login failed for %s: %v", *phone, err)

		return err
	}

	a.log.Info("Logged in as %s", resp.User.ID)
	fmt.Printf("Logged in as %s\n", displayName(resp.User))

	return nil
}

func (a *app) runLogout() error {
	err := a.client.Logout()
	if err != nil {
		return err
	}

	fmt.Println("Logged out")

	return nil
}

func (a *app) runWhoami(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdWhoami, flag.ExitOnError)
	refresh := flags.Bool("refresh", false, flagRefreshDesc)
	parseFlags(flags, args)

	var (
		user *core.User
		err  error
	)

	if *refresh {
		user, err = a.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
	} else {
		cached, ok := a.client.Session().CachedUser()
		if !ok {
			return api.ErrNotAuthenticated
		}

		user = cached
	}

	fmt.Printf("%s (%s, %s)\n", displayName(user), user.Phone, user.Status)

	return nil
}

func (a *app) runUpload(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdUpload, flag.ExitOnError)
	file := flags.String("file", "", flagFileDesc)
	parseFlags(flags, args)

	if *file == "" {
		return errors.New("--file is required")
	}

	descriptor, err := a.files.Upload(ctx, *file)
	if err != nil {
		a.log.Error("Upload failed: %v", err)

		return err
	}

	fmt.Printf("Uploaded %s: id=%s size=%d\n",
		descriptor.Filename, descriptor.ID, descriptor.Size)

	return nil
}

func (a *app) runGenerate(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdGenerate, flag.ExitOnError)
	ref := flags.String("ref", "", flagRefDesc)
	refB64 := flags.String("ref-base64", "", flagRefB64Desc)
	text := flags.String("text", "", flagTextDesc)
	emotionMode := flags.String("emotion-mode", "", flagEmotionDesc)
	vector := flags.String("emotion-vector", "", flagVectorDesc)
	emotionRef := flags.String("emotion-ref", "", flagEmotionRefDesc)
	alpha := flags.Float64("emotion-alpha", -1, flagAlphaDesc)
	output := flags.String("output", "", flagOutputDesc)
	parseFlags(flags, args)

	req := &studio.GenerateRequest{
		ReferenceAudioPath:   *ref,
		Script:               *text,
		EmotionMode:          core.EmotionMode(*emotionMode),
		EmotionReferencePath: *emotionRef,
		OutputPath:           *output,
	}

	if *refB64 != "" {
		payload, err := os.ReadFile(*refB64)
		if err != nil {
			return fmt.Errorf("failed to read base64 file: %w", err)
		}

		req.ReferenceAudioBase64 = strings.TrimSpace(string(payload))
	}

	if *vector != "" {
		values, err := parseVector(*vector)
		if err != nil {
			return err
		}

		req.EmotionVector = values
		if req.EmotionMode == "" {
			req.EmotionMode = core.EmotionModeVector
		}
	}

	if *alpha >= 0 {
		req.EmotionAlpha = alpha
	}

	result, err := a.studio.Generate(ctx, req)
	if err != nil {
		a.log.Error("Generation failed: %v", err)

		return err
	}

	if result.Task.Status == core.TaskStatusFailed {
		return fmt.Errorf("task %s failed: %s", result.TaskID, result.Task.ErrorMessage)
	}

	defer func() {
		releaseErr := result.Audio.Release()
		if releaseErr != nil {
			a.log.Error("Failed to release audio handle: %v", releaseErr)
		}
	}()

	if *output != "" {
		fmt.Printf("Generated: %s\n", *output)
	} else {
		fmt.Printf("Generated task %s (result file %s)\n",
			result.TaskID, result.Task.ResultAudioFileID)
	}

	return nil
}

func (a *app) runTasks(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdTasks, flag.ExitOnError)
	page := flags.Int("page", 1, flagPageDesc)
	pageSize := flags.Int("page-size", 20, flagPageSizeDesc)
	status := flags.String("status", "", flagStatusDesc)
	parseFlags(flags, args)

	result, err := a.tasks.List(ctx, tasks.ListOptions{
		Page:     *page,
		PageSize: *pageSize,
		Status:   core.TaskStatus(*status),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d tasks (page %d/%d)\n",
		result.Total, result.Page, totalPages(result.Total, result.PageSize))

	for _, task := range result.Tasks {
		fmt.Printf("  %s  %-10s  %s\n", task.ID, task.Status, truncate(task.Text, 48))
	}

	return nil
}

func (a *app) runTask(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdTask, flag.ExitOnError)
	id := flags.String("id", "", flagTaskIDDesc)
	parseFlags(flags, args)

	task, err := a.tasks.Get(ctx, *id)
	if err != nil {
		return err
	}

	fmt.Printf("Task %s\n  status: %s\n  text: %s\n  emotion_mode: %s\n",
		task.ID, task.Status, task.Text, task.EmotionMode)

	if task.ResultAudioFileID != "" {
		fmt.Printf("  result_audio_file_id: %s\n", task.ResultAudioFileID)
	}

	if task.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", task.ErrorMessage)
	}

	return nil
}

func (a *app) runDownload(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet(cmdDownload, flag.ExitOnError)
	id := flags.String("id", "", flagFileIDDesc)
	output := flags.String("output", "", flagOutputDesc)
	parseFlags(flags, args)

	if *output == "" {
		return errors.New("--output is required")
	}

	audio, err := a.files.Download(ctx, *id)
	if err != nil {
		return err
	}

	defer func() {
		releaseErr := audio.Release()
		if releaseErr != nil {
			a.log.Error("Failed to release audio handle: %v", releaseErr)
		}
	}()

	err = audio.SaveTo(*output)
	if err != nil {
		return err
	}

	fmt.Printf("Downloaded %s (%d bytes)\n", *output, audio.Size)

	return nil
}

func (a *app) runHistory(args []string) error {
	flags := flag.NewFlagSet(cmdHistory, flag.ExitOnError)
	deleteID := flags.String("delete", "", flagDeleteDesc)
	clearAll := flags.Bool("clear", false, flagClearDesc)
	parseFlags(flags, args)

	if *clearAll {
		err := a.local.ClearHistory()
		if err != nil {
			return err
		}

		fmt.Println("History cleared")

		return nil
	}

	if *deleteID != "" {
		err := a.local.Delete(*deleteID)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %s\n", *deleteID)

		return nil
	}

	records := a.local.History()
	if len(records) == 0 {
		fmt.Println("No history")

		return nil
	}

	for _, record := range records {
		created := time.UnixMilli(record.CreatedAt).Format(time.DateTime)
		fmt.Printf("  %s  %-10s  %s  %s\n",
			record.ID, record.Status, created, truncate(record.Script, 40))
	}

	return nil
}

func (a *app) runBalance() error {
	fmt.Printf("Balance: %.2f\n", a.local.Balance())

	return nil
}

// parseFlags parses args; with flag.ExitOnError a parse failure terminates
// the process, so no error propagates.
func parseFlags(flags *flag.FlagSet, args []string) {
	_ = flags.Parse(args)
}

func parseVector(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))

	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid emotion vector component %q: %w", part, err)
		}

		values = append(values, value)
	}

	return values, nil
}

func displayName(user *core.User) string {
	if user.Nickname != "" {
		return user.Nickname
	}

	return user.Phone
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "..."
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 1
	}

	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}

	if pages == 0 {
		pages = 1
	}

	return pages
}
