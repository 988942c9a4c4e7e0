package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerStoreLifecycle(t *testing.T) {
	s, err := NewMarkerStore()
	require.NoError(t, err)
	assert.Equal(t, DefaultMarkerKey, s.Key())
	assert.False(t, s.Present())

	require.NoError(t, s.Set("abc"))
	assert.True(t, s.Present())
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	require.NoError(t, s.Clear())
	assert.False(t, s.Present())
	require.NoError(t, s.Clear(), "clearing twice is fine")

	require.NoError(t, s.Set("x"))
	require.NoError(t, s.Set(""))
	assert.False(t, s.Present(), "empty token clears")
}

func TestMarkerStoreTTL(t *testing.T) {
	s, err := NewMarkerStore(WithMarkerTTL(30 * time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Set("abc"))
	assert.True(t, s.Present())
	assert.Eventually(t, func() bool { return !s.Present() }, time.Second, 10*time.Millisecond)
}

func TestMarkerStoreFileMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := NewMarkerStore(WithMarkerFile(path))
	require.NoError(t, err)
	require.NoError(t, s.Set("persisted"))

	reloaded, err := NewMarkerStore(WithMarkerFile(path))
	require.NoError(t, err)
	token, ok := reloaded.Token()
	require.True(t, ok)
	assert.Equal(t, "persisted", token)

	other, err := NewMarkerStore(WithMarkerFile(path), WithMarkerKey("other"))
	require.NoError(t, err)
	assert.False(t, other.Present(), "marker for another key is ignored")

	require.NoError(t, reloaded.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMarkerStoreExpiredMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewMarkerStore(WithMarkerFile(path), WithMarkerTTL(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Set("old"))

	later := &MarkerStore{key: DefaultMarkerKey, path: path, now: func() time.Time { return time.Now().Add(2 * time.Hour) }}
	later.cache = s.cache
	later.cache.Flush()
	require.NoError(t, later.load())
	assert.False(t, later.Present())
}

func TestMarkerStoreCorruptMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewMarkerStore(WithMarkerFile(path))
	require.NoError(t, err)
	assert.False(t, s.Present())
}

func TestCookieMarkers(t *testing.T) {
	markers := NewCookieMarkers("test-secret", CookieOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, markers.Present(req))

	rec := httptest.NewRecorder()
	require.NoError(t, markers.Set(rec, req, "tok"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/sistema", nil)
	next.AddCookie(cookies[0])
	token, ok := markers.Token(next)
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	rec = httptest.NewRecorder()
	require.NoError(t, markers.Clear(rec, next))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestCookieMarkersRejectsForeignCookie(t *testing.T) {
	issuer := NewCookieMarkers("secret-a", CookieOptions{})
	verifier := NewCookieMarkers("secret-b", CookieOptions{})

	rec := httptest.NewRecorder()
	require.NoError(t, issuer.Set(rec, httptest.NewRequest(http.MethodGet, "/", nil), "tok"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	assert.False(t, verifier.Present(req))
}
