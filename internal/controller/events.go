// ABOUTME: Events consumed by Controller.Update
// ABOUTME: User intents plus the resolution events returned by commands

package controller

import (
	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/upload"
	"github.com/AsafNachman/file-management-system/internal/view"
)

// Event is anything Update understands. Unknown events are ignored.
type Event any

// SessionChanged asks the controller to reconcile with the auth manager's
// current identity. Duplicates are harmless.
type SessionChanged struct{}

// SignInRequested starts the identity flow
type SignInRequested struct {
	Login auth.Login
}

// SignInFinished resolves SignInRequested
type SignInFinished struct {
	Identity auth.Identity
	Err      error
}

// SignOutRequested ends the session
type SignOutRequested struct{}

// CriteriaChanged merges Patch into the active criteria. Apply also issues a fetch.
type CriteriaChanged struct {
	Patch view.Patch
	Apply bool
}

// RefreshRequested fetches the list with the active criteria
type RefreshRequested struct{}

// FilesFetched resolves one list request
type FilesFetched struct {
	Request uint64
	Files   []client.FileRecord
	Err     error
}

// UploadRequested starts a batch
type UploadRequested struct {
	Files []client.LocalFile
}

// UploadProgress reports one task state change of the running batch
type UploadProgress struct {
	Epoch uint64
	Index int
	Task  upload.Task
}

// UploadFinished resolves UploadRequested
type UploadFinished struct {
	Epoch   uint64
	Summary upload.Summary
}

// DeleteRequested selects a record for deletion. Nothing is sent until
// DeleteConfirmed.
type DeleteRequested struct {
	ID string
}

// DeleteConfirmed sends the pending delete
type DeleteConfirmed struct{}

// DeleteCancelled drops the pending delete
type DeleteCancelled struct{}

// DeleteFinished resolves DeleteConfirmed
type DeleteFinished struct {
	Epoch    uint64
	ID       string
	Filename string
	Err      error
}

// DownloadRequested saves a record into Dir, or the configured download
// directory when Dir is empty
type DownloadRequested struct {
	ID  string
	Dir string
}

// DownloadFinished resolves DownloadRequested
type DownloadFinished struct {
	Epoch uint64
	ID    string
	Path  string
	Err   error
}

// NoticeDismissed clears the visible notice
type NoticeDismissed struct{}
