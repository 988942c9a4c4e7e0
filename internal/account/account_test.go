package account

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/session"
	"github.com/menta2k/smodf-client/internal/transport"
)

const base = "http://backend.test"

func newTestService(t *testing.T) (*Service, *session.MarkerStore, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	tc, err := transport.New(transport.Config{BaseURL: base}, transport.WithHTTPClient(&http.Client{Transport: mt}))
	require.NoError(t, err)
	marker, err := session.NewMarkerStore()
	require.NoError(t, err)
	return New(tc, marker, logger.Discard()), marker, mt
}

func TestLoginSetsMarkerFromSessionCookie(t *testing.T) {
	svc, marker, mt := newTestService(t)
	mt.RegisterResponder(http.MethodPost, base+LoginPath, func(req *http.Request) (*http.Response, error) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "ana@smodf.io", body["correo"])
		assert.Equal(t, "secret", body["password"])

		resp := httpmock.NewStringResponse(http.StatusOK, `{"id":7,"correo":"ana@smodf.io","nickname":"ana","nombre_completo":"Ana Diaz"}`)
		resp.Header.Add("Set-Cookie", "sessionid=srv-123; Path=/; HttpOnly")
		return resp, nil
	})

	u, err := svc.Login(context.Background(), " ana@smodf.io ", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "ana", u.Nickname)

	token, ok := marker.Token()
	require.True(t, ok)
	assert.Equal(t, "srv-123", token)
	assert.True(t, svc.Authenticated())
}

func TestLoginFallsBackToUserID(t *testing.T) {
	svc, marker, mt := newTestService(t)
	mt.RegisterResponder(http.MethodPost, base+LoginPath,
		httpmock.NewStringResponder(http.StatusOK, `{"id":42,"correo":"x@y.z"}`))

	_, err := svc.Login(context.Background(), "x@y.z", "pw")
	require.NoError(t, err)
	token, _ := marker.Token()
	assert.Equal(t, "42", token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, marker, mt := newTestService(t)
	mt.RegisterResponder(http.MethodPost, base+LoginPath,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"Credenciales inválidas"}`))

	_, err := svc.Login(context.Background(), "x@y.z", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Credenciales inválidas")
	assert.Equal(t, http.StatusBadRequest, transport.StatusCode(err))
	assert.False(t, marker.Present())
}

func TestLoginValidation(t *testing.T) {
	svc, _, mt := newTestService(t)

	_, err := svc.Login(context.Background(), "  ", "pw")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestRegister(t *testing.T) {
	svc, marker, mt := newTestService(t)
	mt.RegisterResponder(http.MethodPost, base+RegisterPath, func(req *http.Request) (*http.Response, error) {
		var body Registration
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "luis", body.Nickname)
		return httpmock.NewStringResponse(http.StatusCreated, `{"id":3,"email":"l@s.io","nickname":"luis","nombre_completo":"Luis P"}`), nil
	})

	u, err := svc.Register(context.Background(), Registration{
		Email: "l@s.io", Nickname: "luis", NombreCompleto: "Luis P", Password: "pw123456", Password2: "pw123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "l@s.io", u.Correo)
	assert.True(t, marker.Present())
}

func TestRegisterValidation(t *testing.T) {
	svc, _, mt := newTestService(t)

	_, err := svc.Register(context.Background(), Registration{Email: "a", Nickname: "b", NombreCompleto: "c", Password: "x", Password2: "y"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = svc.Register(context.Background(), Registration{Password: "x", Password2: "x"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestLogoutClearsMarker(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, marker, mt := newTestService(t)
		require.NoError(t, marker.Set("srv-1"))
		mt.RegisterResponder(http.MethodPost, base+LogoutPath, func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "sessionid=srv-1", req.Header.Get("Cookie"))
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})

		require.NoError(t, svc.Logout(context.Background()))
		assert.False(t, marker.Present())
	})

	t.Run("expired session", func(t *testing.T) {
		svc, marker, mt := newTestService(t)
		require.NoError(t, marker.Set("srv-1"))
		mt.RegisterResponder(http.MethodPost, base+LogoutPath, httpmock.NewStringResponder(http.StatusUnauthorized, ""))

		require.NoError(t, svc.Logout(context.Background()))
		assert.False(t, marker.Present())
	})

	t.Run("server error still clears", func(t *testing.T) {
		svc, marker, mt := newTestService(t)
		require.NoError(t, marker.Set("srv-1"))
		mt.RegisterResponder(http.MethodPost, base+LogoutPath, httpmock.NewStringResponder(http.StatusInternalServerError, ""))

		assert.Error(t, svc.Logout(context.Background()))
		assert.False(t, marker.Present())
	})
}

func TestUnauthorizedClearsMarker(t *testing.T) {
	svc, marker, mt := newTestService(t)
	require.NoError(t, marker.Set("stale"))
	mt.RegisterResponder(http.MethodGet, base+MePath,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`))

	_, err := svc.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, transport.IsUnauthorized(err))
	assert.False(t, marker.Present())
}

func TestCurrentUser(t *testing.T) {
	svc, marker, mt := newTestService(t)
	require.NoError(t, marker.Set("srv-9"))
	mt.RegisterResponder(http.MethodGet, base+MePath,
		httpmock.NewStringResponder(http.StatusOK, `{"id":9,"correo":"me@smodf.io","nickname":"me"}`))

	u, err := svc.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@smodf.io", u.Correo)
	assert.True(t, marker.Present())
}

func TestUpdateProfile(t *testing.T) {
	svc, marker, mt := newTestService(t)
	require.NoError(t, marker.Set("srv-9"))
	mt.RegisterResponder(http.MethodPut, base+ProfilePath, func(req *http.Request) (*http.Response, error) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, map[string]any{"nickname": "neo"}, body)
		return httpmock.NewStringResponse(http.StatusOK, `{"id":9,"nickname":"neo"}`), nil
	})

	u, err := svc.UpdateProfile(context.Background(), ProfileUpdate{Nickname: "neo"})
	require.NoError(t, err)
	assert.Equal(t, "neo", u.Nickname)

	_, err = svc.UpdateProfile(context.Background(), ProfileUpdate{})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
