// ABOUTME: Integration tests for TUI app
// ABOUTME: Drives the root model with key presses against a fake session and file store

package tui

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/AsafNachman/file-management-system/internal/tui/browser"
	"github.com/AsafNachman/file-management-system/internal/tui/confirm"
	"github.com/AsafNachman/file-management-system/internal/tui/filepicker"
	"github.com/AsafNachman/file-management-system/internal/tui/recentfiles"
	"github.com/AsafNachman/file-management-system/internal/tui/signin"
	"github.com/AsafNachman/file-management-system/internal/view"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSession struct {
	mu        sync.Mutex
	id        *auth.Identity
	signInErr error
}

func (s *memSession) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return nil
	}
	id := *s.id
	return &id
}

func (s *memSession) SignIn(_ context.Context, login auth.Login) (auth.Identity, error) {
	if s.signInErr != nil {
		return auth.Identity{}, s.signInErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = &auth.Identity{UserID: login.Username, DisplayName: login.Username}
	return *s.id, nil
}

func (s *memSession) SignOut() {
	s.mu.Lock()
	s.id = nil
	s.mu.Unlock()
}

func (s *memSession) Credential(context.Context) (string, error) {
	if id := s.Identity(); id != nil {
		return "tok-" + id.UserID, nil
	}
	return "", errs.New(errs.KindAuth, "credential", "not signed in")
}

func (s *memSession) Subscribe(l auth.Listener) func() {
	l(s.Identity())
	return func() {}
}

// memStore is an in-memory file store honouring sort_by
type memStore struct {
	mu      sync.Mutex
	files   []client.FileRecord
	queries []url.Values
	nextID  int
}

func (m *memStore) List(_ context.Context, q url.Values, _ string) ([]client.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	out := append([]client.FileRecord(nil), m.files...)
	if q.Get(view.ParamSortBy) == string(view.SortBySize) {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	}
	return out, nil
}

func (m *memStore) Upload(_ context.Context, f client.LocalFile, cred string) (*client.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := client.FileRecord{
		ID:       "up" + string(rune('0'+m.nextID)),
		Filename: f.DisplayName(),
		Size:     f.Size,
		OwnerID:  strings.TrimPrefix(cred, "tok-"),
	}
	m.files = append(m.files, rec)
	return &rec, nil
}

func (m *memStore) Remove(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files {
		if f.ID == id {
			m.files = append(m.files[:i], m.files[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *memStore) Download(context.Context, string, string) (*client.Payload, error) {
	return nil, errors.New("not used")
}

func (m *memStore) lastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return nil
	}
	return m.queries[len(m.queries)-1]
}

func seededStore() *memStore {
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return &memStore{files: []client.FileRecord{
		{ID: "a", Filename: "alpha.pdf", ContentType: "application/pdf", Size: 100, UploadDate: day, OwnerID: "alice"},
		{ID: "b", Filename: "bravo.json", ContentType: "application/json", Size: 900, UploadDate: day, OwnerID: "bob"},
		{ID: "c", Filename: "charlie.txt", ContentType: "text/plain", Size: 500, UploadDate: day, OwnerID: "alice"},
	}}
}

func newTestApp(t *testing.T, sess *memSession, store *memStore) *App {
	t.Helper()
	ctrl := controller.New(sess, store, controller.WithDownloadDir(t.TempDir()))
	app := New(context.Background(), ctrl, "http://localhost:8000", recentfiles.New(t.TempDir()))
	model, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(*App)
}

// drain runs cmd and feeds controller events and browser messages back into
// the app until nothing is left. Commands that do not finish quickly (cursor blinks) are dropped.
func drain(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "command loop did not settle")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}

		done := make(chan tea.Msg, 1)
		go func() { done <- next() }()
		var msg tea.Msg
		select {
		case msg = <-done:
		case <-time.After(100 * time.Millisecond):
			continue
		}

		switch m := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, m...)
		case eventMsg, browser.SearchChangedMsg, browser.SearchClosedMsg:
			_, follow := a.Update(m)
			queue = append(queue, follow)
		}
	}
}

func press(t *testing.T, a *App, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := a.Update(msg)
		drain(t, a, cmd)
	}
}

func signedInApp(t *testing.T, store *memStore) (*App, *memSession) {
	t.Helper()
	sess := &memSession{id: &auth.Identity{UserID: "alice", DisplayName: "Alice"}}
	a := newTestApp(t, sess, store)
	drain(t, a, a.Init())
	require.Equal(t, ScreenFiles, a.screen)
	return a, sess
}

func TestScreenConstants(t *testing.T) {
	assert.Equal(t, Screen(0), ScreenSignIn)
	assert.Equal(t, Screen(1), ScreenFiles)
	assert.Equal(t, Screen(2), ScreenPicker)
	assert.Equal(t, Screen(3), ScreenConfirm)
	assert.Equal(t, Screen(4), ScreenSummary)
}

func TestAppInitialStateSignedOut(t *testing.T) {
	store := seededStore()
	a := newTestApp(t, &memSession{}, store)
	drain(t, a, a.Init())

	assert.Equal(t, ScreenSignIn, a.screen)
	assert.Nil(t, a.state.Identity)
	assert.Empty(t, store.queries)
}

func TestRestoredSessionListsFiles(t *testing.T) {
	a, _ := signedInApp(t, seededStore())

	require.Len(t, a.state.Files, 3)
	assert.False(t, a.lastUpdate.IsZero())
	view := a.View()
	assert.Contains(t, view, "alpha.pdf")
	assert.Contains(t, view, "Alice")
}

func TestSignInSubmitted(t *testing.T) {
	sess := &memSession{}
	a := newTestApp(t, sess, seededStore())
	drain(t, a, a.Init())

	_, cmd := a.Update(signin.SubmittedMsg{Login: auth.Login{Username: "alice", Password: "pw"}})
	drain(t, a, cmd)

	assert.Equal(t, ScreenFiles, a.screen)
	require.NotNil(t, a.state.Identity)
	assert.Equal(t, "alice", a.state.Identity.UserID)
	assert.Len(t, a.state.Files, 3)
}

func TestSignInFailureStaysOnForm(t *testing.T) {
	sess := &memSession{signInErr: errs.New(errs.KindAuth, "sign in", "invalid username or password")}
	a := newTestApp(t, sess, seededStore())
	drain(t, a, a.Init())

	_, cmd := a.Update(signin.SubmittedMsg{Login: auth.Login{Username: "alice", Password: "bad"}})
	drain(t, a, cmd)

	assert.Equal(t, ScreenSignIn, a.screen)
	assert.Contains(t, a.View(), "invalid username or password")
}

func TestSortKeyRefetchesBySize(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	press(t, a, "s")

	assert.Equal(t, view.SortBySize, a.state.Criteria.SortBy)
	assert.Equal(t, "size", store.lastQuery().Get(view.ParamSortBy))
	require.Len(t, a.state.Files, 3)
	assert.Equal(t, "b", a.state.Files[0].ID)

	press(t, a, "s")
	assert.Equal(t, view.SortByDate, a.state.Criteria.SortBy)
}

func TestTypeKeyCyclesFilter(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	press(t, a, "t")

	assert.Equal(t, view.NextType(""), a.state.Criteria.FileType)
	assert.Equal(t, a.state.Criteria.FileType, store.lastQuery().Get(view.ParamFileType))
}

func TestSearchTypingFetchesPerKeystroke(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)
	before := len(store.queries)

	press(t, a, "/", "a", "l", "enter")

	assert.Equal(t, "al", a.state.Criteria.Search)
	assert.Equal(t, "al", store.lastQuery().Get(view.ParamSearch))
	assert.Equal(t, before+2, len(store.queries))
	assert.False(t, a.browser.Searching())
}

func TestDeleteOwnFileAfterConfirm(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	press(t, a, "d")
	require.Equal(t, ScreenConfirm, a.screen)
	require.NotNil(t, a.state.PendingDelete)
	assert.Equal(t, "a", a.state.PendingDelete.ID)

	_, cmd := a.Update(confirm.AnsweredMsg{Yes: true})
	drain(t, a, cmd)

	assert.Equal(t, ScreenFiles, a.screen)
	assert.Len(t, a.state.Files, 2)
	for _, f := range a.state.Files {
		assert.NotEqual(t, "a", f.ID)
	}
}

func TestDeleteDeclinedKeepsFile(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	press(t, a, "d")
	_, cmd := a.Update(confirm.AnsweredMsg{Yes: false})
	drain(t, a, cmd)

	assert.Equal(t, ScreenFiles, a.screen)
	assert.Len(t, a.state.Files, 3)
	assert.Nil(t, a.state.PendingDelete)
}

func TestDeleteNotOfferedForOthersFiles(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	press(t, a, "down")
	rec, _ := a.browser.Selected()
	require.Equal(t, "bob", rec.OwnerID)
	assert.NotContains(t, strings.Join(a.shortcuts(), " "), "d Delete")

	press(t, a, "d")

	assert.Equal(t, ScreenFiles, a.screen)
	require.NotNil(t, a.state.Notice)
	assert.Equal(t, controller.LevelWarn, a.state.Notice.Level)
	assert.Len(t, store.files, 3)
}

func TestSignOutReturnsToSignIn(t *testing.T) {
	a, sess := signedInApp(t, seededStore())

	press(t, a, "L")

	assert.Equal(t, ScreenSignIn, a.screen)
	assert.Nil(t, sess.Identity())
	assert.Empty(t, a.state.Files)
}

func TestUploadFlow(t *testing.T) {
	store := seededStore()
	a, _ := signedInApp(t, store)

	dir := t.TempDir()
	one := filepath.Join(dir, "one.txt")
	two := filepath.Join(dir, "two.txt")
	require.NoError(t, os.WriteFile(one, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(two, []byte("22"), 0o644))

	press(t, a, "u")
	require.Equal(t, ScreenPicker, a.screen)

	_, cmd := a.Update(filepicker.FilesChosenMsg{Paths: []string{one, two}})
	assert.Equal(t, ScreenSummary, a.screen)
	drain(t, a, cmd)

	require.NotNil(t, a.state.LastUpload)
	assert.Equal(t, 2, a.state.LastUpload.Succeeded)
	assert.Len(t, a.state.Files, 5)
	assert.Contains(t, a.View(), "All 2 file(s) uploaded")

	recent := a.recentFiles.List()
	require.Len(t, recent, 2)
	assert.Equal(t, one, recent[0])

	press(t, a, "enter")
	assert.Equal(t, ScreenFiles, a.screen)
}

func TestUploadChoiceWithMissingFileStaysOnPicker(t *testing.T) {
	a, _ := signedInApp(t, seededStore())

	press(t, a, "u")
	_, cmd := a.Update(filepicker.FilesChosenMsg{Paths: []string{filepath.Join(t.TempDir(), "gone.txt")}})
	drain(t, a, cmd)

	assert.Equal(t, ScreenPicker, a.screen)
	assert.False(t, a.state.Uploading)
}

func TestPickerCancelReturnsToFiles(t *testing.T) {
	a, _ := signedInApp(t, seededStore())

	press(t, a, "u")
	_, cmd := a.Update(filepicker.CancelledMsg{})
	drain(t, a, cmd)

	assert.Equal(t, ScreenFiles, a.screen)
	assert.Nil(t, a.picker)
}

func TestFormatTimeSince(t *testing.T) {
	assert.Equal(t, "just now", formatTimeSince(time.Now()))
	assert.Equal(t, "30s ago", formatTimeSince(time.Now().Add(-30*time.Second)))
	assert.Equal(t, "5m ago", formatTimeSince(time.Now().Add(-5*time.Minute)))
	assert.Equal(t, "2h ago", formatTimeSince(time.Now().Add(-2*time.Hour)))
}
