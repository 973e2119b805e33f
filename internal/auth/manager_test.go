// ABOUTME: Tests for the session manager lifecycle
// ABOUTME: Uses a fake provider so no identity service is needed

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	mu        sync.Mutex
	token     *oauth2.Token
	authErr   error
	refreshed *oauth2.Token
	refErr    error
	refreshes int
}

func (p *fakeProvider) Authenticate(_ context.Context, login Login) (*oauth2.Token, error) {
	if p.authErr != nil {
		return nil, p.authErr
	}
	return p.token, nil
}

func (p *fakeProvider) Refresh(_ context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if p.refErr != nil {
		return nil, p.refErr
	}
	return p.refreshed, nil
}

func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestSignInEstablishesSessionAndNotifies(t *testing.T) {
	idTok := signedJWT(t, jwt.MapClaims{"sub": "u-123", "email": "ada@example.com"})
	p := &fakeProvider{token: (&oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}).
		WithExtra(map[string]any{"id_token": idTok})}
	m := NewManager(p)

	var seen []*Identity
	unsubscribe := m.Subscribe(func(id *Identity) { seen = append(seen, id) })
	defer unsubscribe()

	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	id, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u-123", DisplayName: "ada@example.com"}, id)

	require.Len(t, seen, 2)
	require.NotNil(t, seen[1])
	assert.Equal(t, "u-123", seen[1].UserID)

	cred, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idTok, cred, "id_token is preferred as the bearer credential")
}

func TestSignInFailureLeavesSignedOut(t *testing.T) {
	m := NewManager(&fakeProvider{authErr: errors.New("bad password")})

	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "nope"})
	assert.True(t, errors.Is(err, errs.ErrAuth))
	assert.Nil(t, m.Identity())

	_, err = m.Credential(context.Background())
	assert.True(t, errors.Is(err, errs.ErrAuth))
}

func TestSignInCancelled(t *testing.T) {
	m := NewManager(&fakeProvider{authErr: ErrCancelled})

	_, err := m.SignIn(context.Background(), Login{})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, m.Identity())
}

func TestSignOutNotifiesSynchronously(t *testing.T) {
	m := NewManager(&fakeProvider{token: &oauth2.Token{AccessToken: "opaque"}})
	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)

	var last *Identity
	calls := 0
	m.Subscribe(func(id *Identity) { last = id; calls++ })
	require.NotNil(t, last)
	assert.Equal(t, "ada", last.UserID, "opaque tokens fall back to the login name")

	m.SignOut()
	assert.Equal(t, 2, calls)
	assert.Nil(t, last)
	assert.Nil(t, m.Identity())
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	m := NewManager(&fakeProvider{token: &oauth2.Token{AccessToken: "opaque"}})

	calls := 0
	unsubscribe := m.Subscribe(func(*Identity) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCredentialRefreshesWhenStale(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := &fakeProvider{
		token:     &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: c.t.Add(30 * time.Second)},
		refreshed: &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: c.t.Add(time.Hour)},
	}
	m := NewManager(p, WithClock(c.now), WithRefreshSkew(time.Minute))

	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)

	cred, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", cred)
	assert.Equal(t, 1, p.refreshes)

	cred, err = m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", cred)
	assert.Equal(t, 1, p.refreshes, "fresh credential is reused")

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, c.t.Add(time.Hour), s.Expiry)
}

func TestCredentialRefreshRefused(t *testing.T) {
	c := &clock{t: time.Now()}
	p := &fakeProvider{
		token:  &oauth2.Token{AccessToken: "old", Expiry: c.t.Add(-time.Minute)},
		refErr: errors.New("invalid_grant"),
	}
	m := NewManager(p, WithClock(c.now))
	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)

	_, err = m.Credential(context.Background())
	assert.True(t, errors.Is(err, errs.ErrAuth))
}

type blockingProvider struct {
	fakeProvider
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	p.started <- struct{}{}
	<-p.release
	return p.fakeProvider.Refresh(ctx, tok)
}

func newBlockingManager(t *testing.T) (*Manager, *blockingProvider) {
	t.Helper()
	c := &clock{t: time.Now()}
	p := &blockingProvider{
		fakeProvider: fakeProvider{
			token:     &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: c.t.Add(-time.Minute)},
			refreshed: &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: c.t.Add(time.Hour)},
		},
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	m := NewManager(p, WithClock(c.now))
	_, err := m.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	return m, p
}

func TestSessionReadableDuringRefresh(t *testing.T) {
	m, p := newBlockingManager(t)

	type result struct {
		cred string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		cred, err := m.Credential(context.Background())
		got <- result{cred, err}
	}()
	<-p.started

	done := make(chan struct{})
	go func() {
		assert.NotNil(t, m.Identity())
		_, ok := m.Session()
		assert.True(t, ok)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("session reads waited on the credential refresh")
	}

	close(p.release)
	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, "new", r.cred)
}

func TestSignOutDuringRefreshDiscardsCredential(t *testing.T) {
	m, p := newBlockingManager(t)

	got := make(chan error, 1)
	go func() {
		_, err := m.Credential(context.Background())
		got <- err
	}()
	<-p.started

	done := make(chan struct{})
	go func() {
		m.SignOut()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("sign-out waited on the credential refresh")
	}
	assert.Nil(t, m.Identity())

	close(p.release)
	err := <-got
	assert.True(t, errors.Is(err, errs.ErrAuth))
	assert.Nil(t, m.Identity(), "refresh must not revive the session")
}

func TestConcurrentRefreshesShareOneCall(t *testing.T) {
	m, p := newBlockingManager(t)

	var wg sync.WaitGroup
	creds := make([]string, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		creds[0], _ = m.Credential(context.Background())
	}()
	<-p.started
	for i := 1; i < len(creds); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds[i], _ = m.Credential(context.Background())
		}(i)
	}
	// give the followers time to join the in-flight refresh
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	assert.Equal(t, []string{"new", "new", "new"}, creds)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 1, p.refreshes)
}

func TestRestoreFromStore(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))
	p := &fakeProvider{token: &oauth2.Token{AccessToken: "opaque", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}

	first := NewManager(p, WithStore(store))
	_, err := first.SignIn(context.Background(), Login{Username: "ada", Password: "pw"})
	require.NoError(t, err)

	second := NewManager(p, WithStore(store))
	restored, err := second.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, restored)
	require.NotNil(t, second.Identity())
	assert.Equal(t, "ada", second.Identity().UserID)

	second.SignOut()
	third := NewManager(p, WithStore(store))
	restored, err = third.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestRestoreDropsExpiredTokenWithoutRefresh(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(-time.Hour)}, "ada"))

	m := NewManager(&fakeProvider{}, WithStore(store))
	restored, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)

	_, _, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}
