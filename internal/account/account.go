// Package account wraps the SMODF user endpoints and keeps the session
// marker in step with the server session: login and register set it,
// logout and any 401 reply clear it.
package account

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/session"
	"github.com/menta2k/smodf-client/internal/transport"
)

// Endpoint paths
const (
	LoginPath    = "/api/usuarios/login/"
	RegisterPath = "/api/usuarios/registro/"
	LogoutPath   = "/api/usuarios/logout/"
	MePath       = "/api/usuarios/me/"
	ProfilePath  = "/api/usuarios/perfil/"

	// SessionCookie is the server session cookie the marker mirrors
	SessionCookie = "sessionid"

	componentName = "account"
)

// Requester is the transport contract the service needs
type Requester interface {
	Request(ctx context.Context, method, path string, body any, opts ...transport.RequestOption) (*transport.Response, error)
}

// User is the account as returned by the server
type User struct {
	ID             int64  `json:"id"`
	Correo         string `json:"correo"`
	Email          string `json:"email,omitempty"`
	Nickname       string `json:"nickname"`
	NombreCompleto string `json:"nombre_completo"`
	FechaReg       string `json:"fecha_reg,omitempty"`
}

// Registration is the sign-up payload
type Registration struct {
	Email          string `json:"email"`
	Nickname       string `json:"nickname"`
	NombreCompleto string `json:"nombre_completo"`
	Password       string `json:"password"`
	Password2      string `json:"password2"`
}

// ProfileUpdate is the profile payload; empty fields are not sent
type ProfileUpdate struct {
	Nickname       string `json:"nickname,omitempty"`
	NombreCompleto string `json:"nombre_completo,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Service performs account operations
type Service struct {
	t      Requester
	marker session.Marker
	log    logger.Logger
}

// New creates a Service
func New(t Requester, marker session.Marker, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{t: t, marker: marker, log: log.Module(componentName)}
}

// Authenticated reports whether a session marker is held
func (s *Service) Authenticated() bool {
	return s.marker.Present()
}

// Login authenticates with e-mail and password and stores the marker
func (s *Service) Login(ctx context.Context, correo, password string) (*User, error) {
	correo = strings.TrimSpace(correo)
	if correo == "" || password == "" {
		return nil, errors.ValidationError("correo and password are required")
	}
	resp, err := s.t.Request(ctx, http.MethodPost, LoginPath, map[string]string{"correo": correo, "password": password})
	if err != nil {
		return nil, s.fail(err)
	}
	var u User
	if err := resp.Decode(&u); err != nil {
		return nil, err
	}
	if err := s.marker.Set(markerToken(resp, &u)); err != nil {
		return nil, err
	}
	s.log.Info("logged in", logger.Int64("user_id", u.ID))
	return &u, nil
}

// Register creates an account and logs it in
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	if reg.Password != reg.Password2 {
		return nil, errors.ValidationError("passwords do not match")
	}
	if strings.TrimSpace(reg.Email) == "" || strings.TrimSpace(reg.Nickname) == "" || strings.TrimSpace(reg.NombreCompleto) == "" {
		return nil, errors.ValidationError("email, nickname and full name are required")
	}
	resp, err := s.t.Request(ctx, http.MethodPost, RegisterPath, reg)
	if err != nil {
		return nil, s.fail(err)
	}
	var u User
	if err := resp.Decode(&u); err != nil {
		return nil, err
	}
	if u.Correo == "" {
		u.Correo = reg.Email
	}
	if err := s.marker.Set(markerToken(resp, &u)); err != nil {
		return nil, err
	}
	s.log.Info("registered", logger.Int64("user_id", u.ID))
	return &u, nil
}

// Logout ends the server session. The marker is cleared even when the
// server call fails.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.t.Request(ctx, http.MethodPost, LogoutPath, nil, s.auth()...)
	if clearErr := s.marker.Clear(); clearErr != nil {
		return clearErr
	}
	if err != nil && !transport.IsUnauthorized(err) {
		s.log.Warn("logout request failed", logger.Error(err))
		return err
	}
	s.log.Info("logged out")
	return nil
}

// CurrentUser fetches the logged-in account
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := s.t.Request(ctx, http.MethodGet, MePath, nil, s.auth()...)
	if err != nil {
		return nil, s.fail(err)
	}
	var u User
	if err := resp.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes profile fields of the logged-in account
func (s *Service) UpdateProfile(ctx context.Context, p ProfileUpdate) (*User, error) {
	if p == (ProfileUpdate{}) {
		return nil, errors.ValidationError("nothing to update")
	}
	resp, err := s.t.Request(ctx, http.MethodPut, ProfilePath, p, s.auth()...)
	if err != nil {
		return nil, s.fail(err)
	}
	var u User
	if err := resp.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) auth() []transport.RequestOption {
	token, ok := s.marker.Token()
	if !ok {
		return nil
	}
	return []transport.RequestOption{transport.WithHeader("Cookie", SessionCookie+"="+token)}
}

// fail clears the marker on a 401 reply
func (s *Service) fail(err error) error {
	if transport.IsUnauthorized(err) {
		if clearErr := s.marker.Clear(); clearErr != nil {
			s.log.Warn("failed to clear session marker", logger.Error(clearErr))
		}
		s.log.Info("session expired")
	}
	return err
}

// markerToken prefers the server session cookie and falls back to the user id
func markerToken(resp *transport.Response, u *User) string {
	header := http.Header{"Set-Cookie": resp.Header.Values("Set-Cookie")}
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c.Value
		}
	}
	if u.ID != 0 {
		return strconv.FormatInt(u.ID, 10)
	}
	return u.Correo
}
