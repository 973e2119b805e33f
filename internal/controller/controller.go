// ABOUTME: Explicit state machine composing auth, file repository, view state and uploads
// ABOUTME: Update is the only mutator; commands perform I/O and return resolution events

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/AsafNachman/file-management-system/internal/upload"
	"github.com/AsafNachman/file-management-system/internal/view"
)

// Cmd performs I/O off the state machine and returns the event that resolves it.
// A nil Event means nothing to report.
type Cmd func(ctx context.Context) Event

// Repository is the file store as the controller uses it
type Repository interface {
	List(ctx context.Context, query url.Values, credential string) ([]client.FileRecord, error)
	Upload(ctx context.Context, file client.LocalFile, credential string) (*client.FileRecord, error)
	Remove(ctx context.Context, id, credential string) error
	Download(ctx context.Context, id, credential string) (*client.Payload, error)
}

// Session is the auth manager as the controller uses it
type Session interface {
	Identity() *auth.Identity
	SignIn(ctx context.Context, login auth.Login) (auth.Identity, error)
	SignOut()
	Credential(ctx context.Context) (string, error)
	Subscribe(l auth.Listener) func()
}

// errSessionChanged marks a command that found a different user signed in
// than the one it was issued for
var errSessionChanged = errors.New("session changed")

// Level grades a notice
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-visible message
type Notice struct {
	Level Level
	Text  string
	Err   error
}

// State is a snapshot for rendering
type State struct {
	Identity      *auth.Identity
	Criteria      view.Criteria
	Files         []client.FileRecord
	Loaded        bool
	Loading       bool
	SigningIn     bool
	Uploading     bool
	UploadTasks   []upload.Task
	LastUpload    *upload.Summary
	PendingDelete *client.FileRecord
	LastDownload  string
	Notice        *Notice
}

// Controller owns request versioning and routes user intents
type Controller struct {
	session     Session
	repo        Repository
	downloadDir string
	logger      *slog.Logger
	uploadOpts  []upload.Option
	send        func(Event)

	view          *view.State
	identity      *auth.Identity
	latest        uint64
	epoch         uint64
	loading       bool
	signingIn     bool
	uploading     bool
	uploadTasks   []upload.Task
	lastUpload    *upload.Summary
	pendingDelete *client.FileRecord
	lastDownload  string
	notice        *Notice
}

// Option configures a Controller
type Option func(*Controller)

// WithDownloadDir sets where downloads go when a request names no directory
func WithDownloadDir(dir string) Option {
	return func(c *Controller) { c.downloadDir = dir }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithUploadObserver reports upload task changes as they happen, in addition
// to UploadProgress events
func WithUploadObserver(fn upload.Observer) Option {
	return func(c *Controller) { c.uploadOpts = append(c.uploadOpts, upload.WithObserver(fn)) }
}

// New creates a controller. Call SessionChanged (or Attach) to pick up an
// existing session.
func New(session Session, repo Repository, opts ...Option) *Controller {
	c := &Controller{
		session:     session,
		repo:        repo,
		downloadDir: ".",
		logger:      slog.Default(),
		view:        view.NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach subscribes to session changes and forwards them through send. send is
// also used for upload progress and must not block the caller. Call Attach
// before the first Update; the returned function detaches.
func (c *Controller) Attach(send func(Event)) func() {
	c.send = send
	return c.session.Subscribe(func(*auth.Identity) {
		send(SessionChanged{})
	})
}

// State returns a snapshot of the controller
func (c *Controller) State() State {
	st := State{
		Criteria:     c.view.Criteria(),
		Files:        c.view.Files(),
		Loaded:       c.view.Loaded(),
		Loading:      c.loading,
		SigningIn:    c.signingIn,
		Uploading:    c.uploading,
		UploadTasks:  append([]upload.Task(nil), c.uploadTasks...),
		LastUpload:   c.lastUpload,
		LastDownload: c.lastDownload,
		Notice:       c.notice,
	}
	if c.identity != nil {
		id := *c.identity
		st.Identity = &id
	}
	if c.pendingDelete != nil {
		rec := *c.pendingDelete
		st.PendingDelete = &rec
	}
	return st
}

// Logger returns the controller's logger
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// LatestRequest is the id of the newest issued list request
func (c *Controller) LatestRequest() uint64 {
	return c.latest
}

// CanModify reports whether delete and download are offered for rec
func (c *Controller) CanModify(rec client.FileRecord) bool {
	return c.identity != nil && rec.OwnerID == c.identity.UserID
}

// Update applies ev and returns the command to run next, if any
func (c *Controller) Update(ev Event) Cmd {
	switch ev := ev.(type) {
	case SessionChanged:
		return c.reconcile()

	case SignInRequested:
		if c.signingIn {
			return nil
		}
		c.signingIn = true
		c.notice = nil
		login := ev.Login
		return func(ctx context.Context) Event {
			id, err := c.session.SignIn(ctx, login)
			return SignInFinished{Identity: id, Err: err}
		}

	case SignInFinished:
		c.signingIn = false
		if ev.Err != nil {
			if errors.Is(ev.Err, auth.ErrCancelled) {
				c.setNotice(LevelInfo, "Sign-in cancelled", ev.Err)
			} else {
				c.setNotice(LevelError, "Sign-in failed: "+errs.Reason(ev.Err), ev.Err)
			}
			return nil
		}
		return c.reconcile()

	case SignOutRequested:
		c.session.SignOut()
		cmd := c.reconcile()
		c.setNotice(LevelInfo, "Signed out", nil)
		return cmd

	case CriteriaChanged:
		if err := c.view.SetCriteria(ev.Patch); err != nil {
			c.setNotice(LevelWarn, err.Error(), err)
			return nil
		}
		if !ev.Apply || c.identity == nil {
			return nil
		}
		return c.fetch()

	case RefreshRequested:
		if c.identity == nil {
			c.setNotice(LevelWarn, "Sign in to list files", nil)
			return nil
		}
		return c.fetch()

	case FilesFetched:
		if ev.Request != c.latest {
			c.logger.Debug("discarding stale list response", "request", ev.Request, "latest", c.latest)
			return nil
		}
		c.loading = false
		if ev.Err != nil {
			return c.fail("list files", ev.Err)
		}
		c.view.Replace(ev.Files)
		return nil

	case UploadRequested:
		return c.startUpload(ev.Files)

	case UploadProgress:
		if ev.Epoch != c.epoch || !c.uploading {
			return nil
		}
		if ev.Index >= 0 && ev.Index < len(c.uploadTasks) {
			c.uploadTasks[ev.Index] = ev.Task
		}
		return nil

	case UploadFinished:
		if ev.Epoch != c.epoch {
			return nil
		}
		return c.finishUpload(ev.Summary)

	case DeleteRequested:
		return c.requestDelete(ev.ID)

	case DeleteCancelled:
		c.pendingDelete = nil
		return nil

	case DeleteConfirmed:
		return c.confirmDelete()

	case DeleteFinished:
		if ev.Epoch != c.epoch {
			return nil
		}
		if ev.Err != nil && !errors.Is(ev.Err, errs.ErrNotFound) {
			return c.fail("delete "+ev.Filename, ev.Err)
		}
		c.view.RemoveLocally(ev.ID)
		if ev.Err != nil {
			c.setNotice(LevelInfo, ev.Filename+" was already deleted", nil)
		} else {
			c.setNotice(LevelInfo, "Deleted "+ev.Filename, nil)
		}
		return c.fetch()

	case DownloadRequested:
		return c.startDownload(ev.ID, ev.Dir)

	case DownloadFinished:
		if ev.Epoch != c.epoch {
			return nil
		}
		if ev.Err != nil {
			return c.fail("download", ev.Err)
		}
		c.lastDownload = ev.Path
		c.setNotice(LevelInfo, "Saved "+ev.Path, nil)
		return nil

	case NoticeDismissed:
		c.notice = nil
		return nil
	}
	return nil
}

// reconcile compares the controller's identity with the session's. Any
// transition invalidates every outstanding request; leaving a user also clears
// what was shown for them.
func (c *Controller) reconcile() Cmd {
	current := c.session.Identity()
	if sameIdentity(c.identity, current) {
		return nil
	}

	c.epoch++
	c.latest++
	c.loading = false
	c.uploading = false
	c.uploadTasks = nil
	c.pendingDelete = nil
	if c.identity != nil {
		c.view.Reset()
		c.lastUpload = nil
		c.lastDownload = ""
	}
	c.identity = current

	if current == nil {
		c.logger.Debug("session ended", "epoch", c.epoch)
		return nil
	}
	c.logger.Debug("session started", "user_id", current.UserID, "epoch", c.epoch)
	c.notice = nil
	return c.fetch()
}

func sameIdentity(a, b *auth.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID == b.UserID
}

// fetch issues a new list request tagged with the next id
func (c *Controller) fetch() Cmd {
	c.latest++
	c.loading = true
	request := c.latest
	criteria := c.view.Criteria()
	owner := c.identity.UserID
	return func(ctx context.Context) Event {
		creds := ownerCredentials{session: c.session, owner: owner}
		files, err := view.Fetch(ctx, c.repo, creds, criteria)
		return FilesFetched{Request: request, Files: files, Err: err}
	}
}

func (c *Controller) startUpload(files []client.LocalFile) Cmd {
	if c.identity == nil {
		c.setNotice(LevelWarn, "Sign in to upload files", nil)
		return nil
	}
	if c.uploading {
		c.setNotice(LevelWarn, "An upload is already in progress", nil)
		return nil
	}
	if len(files) == 0 {
		return nil
	}

	c.uploading = true
	c.lastUpload = nil
	c.uploadTasks = make([]upload.Task, len(files))
	for i, f := range files {
		c.uploadTasks[i] = upload.Task{File: f, Status: upload.StatusPending}
	}

	epoch := c.epoch
	owner := c.identity.UserID
	opts := append([]upload.Option{upload.WithLogger(c.logger)}, c.uploadOpts...)
	if send := c.send; send != nil {
		opts = append(opts, upload.WithObserver(func(i int, t upload.Task) {
			send(UploadProgress{Epoch: epoch, Index: i, Task: t})
		}))
	}
	coordinator := upload.New(c.repo, opts...)
	batch := append([]client.LocalFile(nil), files...)

	return func(ctx context.Context) Event {
		creds := ownerCredentials{session: c.session, owner: owner}
		return UploadFinished{Epoch: epoch, Summary: coordinator.UploadAll(ctx, batch, creds)}
	}
}

func (c *Controller) finishUpload(summary upload.Summary) Cmd {
	c.uploading = false
	c.uploadTasks = summary.Tasks
	c.lastUpload = &summary

	for _, f := range summary.Failed {
		if expired(f.Err) {
			return c.expire(f.Err)
		}
	}

	switch {
	case len(summary.Failed) == 0:
		c.setNotice(LevelInfo, fmt.Sprintf("Uploaded %d file(s)", summary.Succeeded), nil)
	case summary.Succeeded == 0:
		c.setNotice(LevelError, fmt.Sprintf("All %d upload(s) failed", len(summary.Failed)), nil)
	default:
		c.setNotice(LevelWarn, fmt.Sprintf("Uploaded %d file(s), %d failed", summary.Succeeded, len(summary.Failed)), nil)
	}
	return c.fetch()
}

// gate resolves id to a record and refuses records visibly owned by someone
// else. Ids not in the visible list are forwarded for the backend to decide.
func (c *Controller) gate(id, action string) (client.FileRecord, bool) {
	if c.identity == nil {
		c.setNotice(LevelWarn, "Sign in to "+action+" files", nil)
		return client.FileRecord{}, false
	}
	rec, found := c.view.Find(id)
	if !found {
		return client.FileRecord{ID: id, Filename: id}, true
	}
	if !c.CanModify(rec) {
		c.setNotice(LevelWarn, fmt.Sprintf("You can only %s your own files", action), nil)
		return client.FileRecord{}, false
	}
	return rec, true
}

func (c *Controller) requestDelete(id string) Cmd {
	rec, ok := c.gate(id, "delete")
	if !ok {
		return nil
	}
	c.pendingDelete = &rec
	return nil
}

func (c *Controller) confirmDelete() Cmd {
	if c.pendingDelete == nil || c.identity == nil {
		return nil
	}
	rec := *c.pendingDelete
	c.pendingDelete = nil

	epoch := c.epoch
	owner := c.identity.UserID
	return func(ctx context.Context) Event {
		creds := ownerCredentials{session: c.session, owner: owner}
		credential, err := creds.Credential(ctx)
		if err == nil {
			err = c.repo.Remove(ctx, rec.ID, credential)
		}
		return DeleteFinished{Epoch: epoch, ID: rec.ID, Filename: rec.Filename, Err: err}
	}
}

func (c *Controller) startDownload(id, dir string) Cmd {
	rec, ok := c.gate(id, "download")
	if !ok {
		return nil
	}
	if dir == "" {
		dir = c.downloadDir
	}

	epoch := c.epoch
	owner := c.identity.UserID
	return func(ctx context.Context) Event {
		creds := ownerCredentials{session: c.session, owner: owner}
		credential, err := creds.Credential(ctx)
		if err != nil {
			return DownloadFinished{Epoch: epoch, ID: rec.ID, Err: err}
		}
		payload, err := c.repo.Download(ctx, rec.ID, credential)
		if err != nil {
			return DownloadFinished{Epoch: epoch, ID: rec.ID, Err: err}
		}
		path, err := Save(dir, payload, rec.Filename)
		return DownloadFinished{Epoch: epoch, ID: rec.ID, Path: path, Err: err}
	}
}

// fail turns an operation error into a notice. Rejected or missing credentials
// end the session; a 403 only informs.
func (c *Controller) fail(op string, err error) Cmd {
	if errors.Is(err, errSessionChanged) {
		return nil
	}
	if expired(err) {
		return c.expire(err)
	}

	var text string
	switch errs.KindOf(err) {
	case errs.KindAuth:
		text = "Not allowed: " + errs.Reason(err)
	case errs.KindNetwork:
		text = fmt.Sprintf("Network error during %s: %s", op, errs.Reason(err))
	case errs.KindNotFound:
		text = fmt.Sprintf("%s: file not found", op)
	default:
		text = fmt.Sprintf("%s failed: %s", op, errs.Reason(err))
	}
	c.logger.Warn("operation failed", "op", op, "error", err)
	c.setNotice(LevelError, text, err)
	return nil
}

func (c *Controller) expire(err error) Cmd {
	c.logger.Info("credential rejected, signing out", "error", err)
	c.session.SignOut()
	cmd := c.reconcile()
	c.setNotice(LevelError, "Session expired, please sign in again", err)
	return cmd
}

// expired reports errors that mean the credential itself is no good
func expired(err error) bool {
	if err == nil || errs.KindOf(err) != errs.KindAuth {
		return false
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Status == http.StatusForbidden {
		return false
	}
	return true
}

func (c *Controller) setNotice(level Level, text string, err error) {
	c.notice = &Notice{Level: level, Text: text, Err: err}
}

// ownerCredentials refuses to hand out a credential once a different user is
// signed in than the one a command was issued for
type ownerCredentials struct {
	session Session
	owner   string
}

func (o ownerCredentials) Credential(ctx context.Context) (string, error) {
	if id := o.session.Identity(); id == nil || id.UserID != o.owner {
		return "", errSessionChanged
	}
	return o.session.Credential(ctx)
}
