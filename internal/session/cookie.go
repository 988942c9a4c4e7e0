package session

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// DefaultCookieName is the browser session cookie
const DefaultCookieName = "smodf_session"

// CookieOptions configures CookieMarkers
type CookieOptions struct {
	Name   string
	Key    string
	MaxAge int // seconds; 0 = browser session
	Secure bool
}

// CookieMarkers keeps the marker in a signed, encrypted cookie
type CookieMarkers struct {
	store *sessions.CookieStore
	name  string
	key   string
}

// NewCookieMarkers creates a cookie-backed marker store keyed by secret
func NewCookieMarkers(secret string, opts CookieOptions) *CookieMarkers {
	if opts.Name == "" {
		opts.Name = DefaultCookieName
	}
	if opts.Key == "" {
		opts.Key = DefaultMarkerKey
	}
	authKey := sha256.Sum256([]byte(secret))
	encKey := sha256.Sum256([]byte(secret + "encryption"))
	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieMarkers{store: store, name: opts.Name, key: opts.Key}
}

// Present reports whether r carries a marker
func (c *CookieMarkers) Present(r *http.Request) bool {
	_, ok := c.Token(r)
	return ok
}

// Token returns the marker carried by r
func (c *CookieMarkers) Token(r *http.Request) (string, bool) {
	sess, err := c.store.Get(r, c.name)
	if err != nil {
		return "", false
	}
	token, ok := sess.Values[c.key].(string)
	return token, ok && token != ""
}

// Set writes the marker cookie
func (c *CookieMarkers) Set(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := c.store.Get(r, c.name)
	sess.Values[c.key] = token
	return sess.Save(r, w)
}

// Clear expires the marker cookie
func (c *CookieMarkers) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := c.store.Get(r, c.name)
	delete(sess.Values, c.key)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
