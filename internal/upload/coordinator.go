// ABOUTME: Sequential batch upload with per-file outcome attribution
// ABOUTME: A failed file never stops the batch; the summary lists each failure by name

package upload

import (
	"context"
	"log/slog"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/errs"
)

// Uploader sends one file to the store
type Uploader interface {
	Upload(ctx context.Context, file client.LocalFile, credential string) (*client.FileRecord, error)
}

// Credentials yields a currently valid bearer credential
type Credentials interface {
	Credential(ctx context.Context) (string, error)
}

// Status is the lifecycle of one upload task
type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "uploading"
	case StatusSucceeded:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one file of a batch
type Task struct {
	File   client.LocalFile
	Status Status
	Reason string
	Err    error
}

// Failure names a file that did not upload and why
type Failure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// Summary is the outcome of a whole batch
type Summary struct {
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Tasks     []Task    `json:"-"`
}

// Total is the number of files in the batch
func (s Summary) Total() int {
	return len(s.Tasks)
}

// Observer is told about every task state change. index is the task's position
// in the batch.
type Observer func(index int, task Task)

// Coordinator runs upload batches against one repository
type Coordinator struct {
	repo     Uploader
	observer Observer
	logger   *slog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithObserver reports task progress to fn
func WithObserver(fn Observer) Option {
	return func(c *Coordinator) { c.observer = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a coordinator for repo
func New(repo Uploader, opts ...Option) *Coordinator {
	c := &Coordinator{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadAll uploads files one after another. The credential is obtained again
// before each file so a long batch never sends a stale one.
func (c *Coordinator) UploadAll(ctx context.Context, files []client.LocalFile, creds Credentials) Summary {
	tasks := make([]Task, len(files))
	for i, f := range files {
		tasks[i] = Task{File: f, Status: StatusPending}
		c.emit(i, tasks[i])
	}

	summary := Summary{Failed: []Failure{}}
	for i := range tasks {
		tasks[i].Status = StatusInFlight
		c.emit(i, tasks[i])

		err := c.uploadOne(ctx, tasks[i].File, creds)
		if err != nil {
			tasks[i].Status = StatusFailed
			tasks[i].Err = err
			tasks[i].Reason = errs.Reason(err)
			summary.Failed = append(summary.Failed, Failure{
				Filename: tasks[i].File.DisplayName(),
				Reason:   tasks[i].Reason,
				Err:      err,
			})
			c.logger.Warn("upload failed", "file", tasks[i].File.DisplayName(), "error", err)
		} else {
			tasks[i].Status = StatusSucceeded
			summary.Succeeded++
			c.logger.Info("uploaded", "file", tasks[i].File.DisplayName())
		}
		c.emit(i, tasks[i])
	}

	summary.Tasks = tasks
	return summary
}

func (c *Coordinator) uploadOne(ctx context.Context, file client.LocalFile, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.KindNetwork, "upload", err)
	}
	credential, err := creds.Credential(ctx)
	if err != nil {
		return err
	}
	_, err = c.repo.Upload(ctx, file, credential)
	return err
}

func (c *Coordinator) emit(i int, t Task) {
	if c.observer != nil {
		c.observer(i, t)
	}
}
