// ABOUTME: Tests for the controller state machine
// ABOUTME: Drives Update with synthetic events against fake session and repository

package controller

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/AsafNachman/file-management-system/internal/upload"
	"github.com/AsafNachman/file-management-system/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	id        *auth.Identity
	listeners []auth.Listener
	credErr   error
	signInErr error
	signOuts  int
}

func (s *fakeSession) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return nil
	}
	id := *s.id
	return &id
}

func (s *fakeSession) SignIn(_ context.Context, login auth.Login) (auth.Identity, error) {
	if s.signInErr != nil {
		return auth.Identity{}, s.signInErr
	}
	s.mu.Lock()
	s.id = &auth.Identity{UserID: login.Username, DisplayName: login.Username}
	s.mu.Unlock()
	s.notify()
	return *s.Identity(), nil
}

func (s *fakeSession) SignOut() {
	s.mu.Lock()
	s.id = nil
	s.signOuts++
	s.mu.Unlock()
	s.notify()
}

func (s *fakeSession) Credential(context.Context) (string, error) {
	if s.credErr != nil {
		return "", s.credErr
	}
	id := s.Identity()
	if id == nil {
		return "", errs.New(errs.KindAuth, "credential", "not signed in")
	}
	return "tok-" + id.UserID, nil
}

func (s *fakeSession) Subscribe(l auth.Listener) func() {
	s.listeners = append(s.listeners, l)
	l(s.Identity())
	return func() {}
}

func (s *fakeSession) notify() {
	for _, l := range s.listeners {
		l(s.Identity())
	}
}

type fakeRepo struct {
	mu        sync.Mutex
	bySearch  map[string][]client.FileRecord
	listErr   error
	listCalls int
	creds     []string
	uploadErr map[string]error
	uploads   []string
	removeErr error
	removed   []string
	content   string
}

func (r *fakeRepo) List(_ context.Context, q url.Values, cred string) ([]client.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.creds = append(r.creds, cred)
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.bySearch[q.Get(view.ParamSearch)], nil
}

func (r *fakeRepo) Upload(_ context.Context, f client.LocalFile, cred string) (*client.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, f.DisplayName())
	if err := r.uploadErr[f.DisplayName()]; err != nil {
		return nil, err
	}
	stored := client.FileRecord{
		ID:       "up-" + f.DisplayName(),
		Filename: f.DisplayName(),
		OwnerID:  strings.TrimPrefix(cred, "tok-"),
	}
	if r.bySearch == nil {
		r.bySearch = make(map[string][]client.FileRecord)
	}
	r.bySearch[""] = append(r.bySearch[""], stored)
	return &stored, nil
}

func (r *fakeRepo) Remove(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	return r.removeErr
}

func (r *fakeRepo) Download(_ context.Context, id, _ string) (*client.Payload, error) {
	return &client.Payload{Filename: "attachment-" + id + ".bin", Body: io.NopCloser(strings.NewReader(r.content))}, nil
}

func rec(id, owner string) client.FileRecord {
	return client.FileRecord{ID: id, Filename: id + ".pdf", OwnerID: owner, Size: 1024}
}

// run executes cmd and feeds its result back, returning the follow-up command
func run(t *testing.T, c *Controller, cmd Cmd) Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	return c.Update(cmd(context.Background()))
}

func signedIn(t *testing.T, repo *fakeRepo, user string) (*Controller, *fakeSession) {
	t.Helper()
	sess := &fakeSession{id: &auth.Identity{UserID: user, DisplayName: user}}
	c := New(sess, repo)
	assert.Nil(t, run(t, c, c.Update(SessionChanged{})))
	return c, sess
}

func TestSessionChangedFetchesOnce(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "u1")}}}
	c, _ := signedIn(t, repo, "u1")

	st := c.State()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "u1", st.Identity.UserID)
	assert.True(t, st.Loaded)
	assert.False(t, st.Loading)
	assert.Len(t, st.Files, 1)
	assert.Equal(t, []string{"tok-u1"}, repo.creds)

	assert.Nil(t, c.Update(SessionChanged{}), "duplicate ping is a no-op")
}

func TestStaleResponseDiscarded(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{
		"one": {rec("r1", "u1")},
		"two": {rec("r2", "u1"), rec("r2b", "u1")},
	}}
	c, _ := signedIn(t, repo, "u1")

	first := c.Update(CriteriaChanged{Patch: view.SearchPatch("one"), Apply: true})
	second := c.Update(CriteriaChanged{Patch: view.SearchPatch("two"), Apply: true})

	r2 := second(context.Background())
	r1 := first(context.Background())

	c.Update(r2)
	c.Update(r1)

	files := c.State().Files
	require.Len(t, files, 2)
	assert.Equal(t, "r2", files[0].ID)
}

func TestStaleErrorIsAlsoDiscarded(t *testing.T) {
	repo := &fakeRepo{}
	c, _ := signedIn(t, repo, "u1")

	old := c.Update(RefreshRequested{})
	latest := c.Update(RefreshRequested{})
	c.Update(latest(context.Background()))

	repo.listErr = errs.New(errs.KindServer, "list", "boom")
	c.Update(old(context.Background()))

	assert.Nil(t, c.State().Notice)
}

func TestCriteriaChangeWithoutApplyDoesNotFetch(t *testing.T) {
	repo := &fakeRepo{}
	c, _ := signedIn(t, repo, "u1")
	calls := repo.listCalls

	assert.Nil(t, c.Update(CriteriaChanged{Patch: view.SearchPatch("rep")}))
	assert.Equal(t, "rep", c.State().Criteria.Search)
	assert.Equal(t, calls, repo.listCalls)

	assert.Nil(t, c.Update(CriteriaChanged{Patch: view.SortPatch("name"), Apply: true}))
	require.NotNil(t, c.State().Notice)
	assert.Equal(t, view.SortByDate, c.State().Criteria.SortBy)
}

func TestSignOutClearsStateAndInvalidatesPending(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{
		"":  {rec("a", "u1")},
		"x": {rec("x", "u1")},
	}}
	c, _ := signedIn(t, repo, "u1")

	pending := c.Update(CriteriaChanged{Patch: view.SearchPatch("x"), Apply: true})
	assert.True(t, c.State().Loading)

	assert.Nil(t, c.Update(SignOutRequested{}))

	st := c.State()
	assert.Nil(t, st.Identity)
	assert.Empty(t, st.Files)
	assert.False(t, st.Loading)
	assert.Equal(t, view.DefaultCriteria(), st.Criteria)
	assert.Equal(t, "sort_by=date", st.Criteria.Encode())

	c.Update(pending(context.Background()))
	assert.Empty(t, c.State().Files)
}

func TestResponseForPreviousUserNeverShown(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("mine", "u1")}}}
	c, sess := signedIn(t, repo, "u1")

	pending := c.Update(RefreshRequested{})
	c.Update(SignOutRequested{})

	sess.id = &auth.Identity{UserID: "u2"}
	repo.bySearch[""] = []client.FileRecord{rec("theirs", "u2")}
	fetchU2 := c.Update(SessionChanged{})

	// The old command now sees a different user and never asks for a credential
	stale := pending(context.Background())
	c.Update(stale)
	assert.Empty(t, c.State().Files)

	c.Update(fetchU2(context.Background()))
	files := c.State().Files
	require.Len(t, files, 1)
	assert.Equal(t, "theirs", files[0].ID)
}

func TestSignInFlow(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "ada")}}}
	sess := &fakeSession{}
	c := New(sess, repo)

	var sent []Event
	c.Attach(func(ev Event) { sent = append(sent, ev) })
	require.Len(t, sent, 1, "subscribe reports current state immediately")
	assert.Nil(t, c.Update(sent[0]))

	cmd := c.Update(SignInRequested{Login: auth.Login{Username: "ada", Password: "pw"}})
	assert.True(t, c.State().SigningIn)

	fetch := run(t, c, cmd)
	assert.False(t, c.State().SigningIn)
	require.NotNil(t, fetch)
	assert.Nil(t, run(t, c, fetch))

	assert.Equal(t, "ada", c.State().Identity.UserID)
	assert.Len(t, c.State().Files, 1)

	// The listener ping that followed sign-in reconciles to nothing
	assert.Nil(t, c.Update(sent[len(sent)-1]))
}

func TestSignInErrorsAreNotFatal(t *testing.T) {
	sess := &fakeSession{signInErr: auth.ErrCancelled}
	c := New(sess, &fakeRepo{})

	assert.Nil(t, run(t, c, c.Update(SignInRequested{})))
	require.NotNil(t, c.State().Notice)
	assert.Equal(t, LevelInfo, c.State().Notice.Level)
	assert.Nil(t, c.State().Identity)

	sess.signInErr = errs.New(errs.KindAuth, "sign in", "bad password")
	assert.Nil(t, run(t, c, c.Update(SignInRequested{})))
	assert.Equal(t, LevelError, c.State().Notice.Level)
	assert.Contains(t, c.State().Notice.Text, "bad password")
}

func TestOwnershipGating(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("mine", "u1"), rec("theirs", "u2")}}}
	c, _ := signedIn(t, repo, "u1")

	files := c.State().Files
	assert.True(t, c.CanModify(files[0]))
	assert.False(t, c.CanModify(files[1]))

	assert.Nil(t, c.Update(DeleteRequested{ID: "theirs"}))
	assert.Nil(t, c.State().PendingDelete)
	assert.Nil(t, c.Update(DownloadRequested{ID: "theirs"}))
	assert.Len(t, c.State().Files, 2)
	assert.Empty(t, repo.removed)
}

func TestForgedDeleteRejectedByBackendLeavesState(t *testing.T) {
	repo := &fakeRepo{
		bySearch:  map[string][]client.FileRecord{"": {rec("mine", "u1")}},
		removeErr: &errs.Error{Kind: errs.KindAuth, Op: "remove", Status: 403, Message: "You do not have permission to delete this file."},
	}
	c, sess := signedIn(t, repo, "u1")

	c.Update(DeleteRequested{ID: "someone-elses"})
	require.NotNil(t, c.State().PendingDelete)

	assert.Nil(t, run(t, c, c.Update(DeleteConfirmed{})))
	assert.Equal(t, []string{"someone-elses"}, repo.removed)

	st := c.State()
	assert.Len(t, st.Files, 1)
	assert.NotNil(t, st.Identity, "403 does not end the session")
	assert.Equal(t, 0, sess.signOuts)
	require.NotNil(t, st.Notice)
	assert.Contains(t, st.Notice.Text, "permission")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "u1"), rec("b", "u1")}}}
	c, _ := signedIn(t, repo, "u1")

	assert.Nil(t, c.Update(DeleteConfirmed{}), "nothing pending")

	assert.Nil(t, c.Update(DeleteRequested{ID: "a"}))
	assert.Equal(t, "a", c.State().PendingDelete.ID)
	c.Update(DeleteCancelled{})
	assert.Nil(t, c.State().PendingDelete)
	assert.Empty(t, repo.removed)

	c.Update(DeleteRequested{ID: "a"})
	finished := c.Update(DeleteConfirmed{})
	ev := finished(context.Background())

	repo.bySearch[""] = []client.FileRecord{rec("b", "u1")}
	before := c.LatestRequest()
	refresh := c.Update(ev)

	assert.Equal(t, []string{"a"}, repo.removed)
	files := c.State().Files
	require.Len(t, files, 1, "removed locally before the refresh returns")
	assert.Equal(t, "b", files[0].ID)
	assert.Equal(t, before+1, c.LatestRequest())

	assert.Nil(t, run(t, c, refresh))
	assert.Len(t, c.State().Files, 1)
}

func TestDeleteNotFoundTreatedAsSuccess(t *testing.T) {
	repo := &fakeRepo{
		bySearch:  map[string][]client.FileRecord{"": {rec("a", "u1")}},
		removeErr: errs.New(errs.KindNotFound, "remove", "File not found"),
	}
	c, _ := signedIn(t, repo, "u1")

	c.Update(DeleteRequested{ID: "a"})
	refresh := run(t, c, c.Update(DeleteConfirmed{}))

	assert.NotNil(t, refresh)
	assert.Empty(t, c.State().Files)
	assert.Equal(t, LevelInfo, c.State().Notice.Level)
}

func TestUploadBatchRefreshesExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	var local []client.LocalFile
	for _, n := range []string{"file1.txt", "file2.exe", "file3.pdf"} {
		local = append(local, client.LocalFile{Path: filepath.Join(dir, n), Name: n})
	}
	repo := &fakeRepo{uploadErr: map[string]error{
		"file2.exe": &errs.Error{Kind: errs.KindValidation, Status: 400, Message: "unsupported type"},
	}}
	c, _ := signedIn(t, repo, "u1")

	cmd := c.Update(UploadRequested{Files: local})
	require.NotNil(t, cmd)
	assert.True(t, c.State().Uploading)
	assert.Len(t, c.State().UploadTasks, 3)

	assert.Nil(t, c.Update(UploadRequested{Files: local}), "second batch rejected while one is in flight")
	assert.Contains(t, c.State().Notice.Text, "already in progress")

	listsBefore := repo.listCalls
	requestBefore := c.LatestRequest()
	refresh := run(t, c, cmd)
	require.NotNil(t, refresh)
	assert.Equal(t, requestBefore+1, c.LatestRequest())

	st := c.State()
	assert.False(t, st.Uploading)
	require.NotNil(t, st.LastUpload)
	assert.Equal(t, 2, st.LastUpload.Succeeded)
	require.Len(t, st.LastUpload.Failed, 1)
	assert.Equal(t, upload.Failure{Filename: "file2.exe", Reason: "unsupported type", Err: st.LastUpload.Failed[0].Err}, st.LastUpload.Failed[0])
	assert.Equal(t, []string{"file1.txt", "file2.exe", "file3.pdf"}, repo.uploads)

	assert.Nil(t, run(t, c, refresh))
	assert.Equal(t, listsBefore+1, repo.listCalls)

	files := c.State().Files
	require.Len(t, files, 2, "only the uploads that succeeded are listed")
	assert.Equal(t, "file1.txt", files[0].Filename)
	assert.Equal(t, "file3.pdf", files[1].Filename)
	assert.Equal(t, "u1", files[0].OwnerID)
}

func TestUploadProgressEvents(t *testing.T) {
	repo := &fakeRepo{}
	sess := &fakeSession{id: &auth.Identity{UserID: "u1"}}
	c := New(sess, repo)

	var sent []Event
	c.Attach(func(ev Event) { sent = append(sent, ev) })
	run(t, c, c.Update(SessionChanged{}))
	sent = nil

	cmd := c.Update(UploadRequested{Files: []client.LocalFile{{Name: "a.txt"}}})
	ev := cmd(context.Background())

	require.Len(t, sent, 3)
	for _, p := range sent {
		c.Update(p)
	}
	assert.Equal(t, upload.StatusSucceeded, c.State().UploadTasks[0].Status)

	c.Update(ev)
	assert.False(t, c.State().Uploading)
}

func TestExpiredCredentialSignsOut(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "u1")}}}
	c, sess := signedIn(t, repo, "u1")

	repo.listErr = &errs.Error{Kind: errs.KindAuth, Op: "list", Status: 401, Message: "Invalid or expired token"}
	assert.Nil(t, run(t, c, c.Update(RefreshRequested{})))

	st := c.State()
	assert.Equal(t, 1, sess.signOuts)
	assert.Nil(t, st.Identity)
	assert.Empty(t, st.Files)
	require.NotNil(t, st.Notice)
	assert.Contains(t, st.Notice.Text, "Session expired")
}

func TestCredentialFailureSignsOut(t *testing.T) {
	repo := &fakeRepo{}
	c, sess := signedIn(t, repo, "u1")

	sess.credErr = errs.New(errs.KindAuth, "credential", "refresh refused")
	assert.Nil(t, run(t, c, c.Update(RefreshRequested{})))
	assert.Nil(t, c.State().Identity)
}

func TestNetworkErrorIsANotice(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "u1")}}}
	c, _ := signedIn(t, repo, "u1")

	repo.listErr = errs.New(errs.KindNetwork, "list", "cannot connect")
	run(t, c, c.Update(RefreshRequested{}))

	st := c.State()
	assert.NotNil(t, st.Identity)
	assert.Len(t, st.Files, 1, "previous list kept")
	assert.Equal(t, LevelError, st.Notice.Level)

	c.Update(NoticeDismissed{})
	assert.Nil(t, c.State().Notice)
}

func TestMutationResultFromOldSessionIgnored(t *testing.T) {
	repo := &fakeRepo{bySearch: map[string][]client.FileRecord{"": {rec("a", "u1")}}}
	c, sess := signedIn(t, repo, "u1")

	c.Update(DeleteRequested{ID: "a"})
	cmd := c.Update(DeleteConfirmed{})
	ev := cmd(context.Background())

	c.Update(SignOutRequested{})
	sess.id = &auth.Identity{UserID: "u1"}
	run(t, c, c.Update(SessionChanged{}))

	assert.Nil(t, c.Update(ev))
	assert.Len(t, c.State().Files, 1)
}

func TestDownloadSavesFile(t *testing.T) {
	dir := t.TempDir()
	repo := &fakeRepo{
		bySearch: map[string][]client.FileRecord{"": {{ID: "notes", Filename: "notes.txt", OwnerID: "u1"}}},
		content:  "hello",
	}
	sess := &fakeSession{id: &auth.Identity{UserID: "u1"}}
	c := New(sess, repo, WithDownloadDir(dir))
	run(t, c, c.Update(SessionChanged{}))

	assert.Nil(t, run(t, c, c.Update(DownloadRequested{ID: "notes"})))

	st := c.State()
	assert.Equal(t, filepath.Join(dir, "notes.txt"), st.LastDownload, "saved under the record's filename")
	data, err := os.ReadFile(st.LastDownload)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestActionsRequireSession(t *testing.T) {
	c := New(&fakeSession{}, &fakeRepo{})

	assert.Nil(t, c.Update(RefreshRequested{}))
	assert.Nil(t, c.Update(UploadRequested{Files: []client.LocalFile{{Name: "a"}}}))
	assert.Nil(t, c.Update(DeleteRequested{ID: "a"}))
	assert.Nil(t, c.Update(DownloadRequested{ID: "a"}))
	assert.False(t, c.CanModify(rec("a", "")))
	assert.NotNil(t, c.State().Notice)
}

func TestUnknownEventIgnored(t *testing.T) {
	c := New(&fakeSession{}, &fakeRepo{})
	assert.Nil(t, c.Update(struct{}{}))
}
