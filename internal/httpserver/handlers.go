package httpserver

import (
	"image"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/menta2k/smodf-client/internal/account"
	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/pkg/types"
)

// ImageField is the multipart field carrying an uploaded image
const ImageField = "image"

// Credentials is the login body
type Credentials struct {
	Correo   string `json:"correo"`
	Password string `json:"password"`
}

// SelectRequest selects an entry by id; 0 clears the selection
type SelectRequest struct {
	ID int64 `json:"id"`
}

func (s *Server) accountService(c echo.Context) (*account.Service, error) {
	if s.accounts == nil {
		return nil, echo.NewHTTPError(http.StatusNotImplemented, "accounts are not configured")
	}
	marker := requestMarker{cookies: s.cookies, w: c.Response(), r: c.Request()}
	return account.New(s.accounts, marker, s.log), nil
}

// Login handles POST /api/session
func (s *Server) Login(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	svc, err := s.accountService(c)
	if err != nil {
		return err
	}
	u, err := svc.Login(c.Request().Context(), creds.Correo, creds.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Register handles POST /api/session/register
func (s *Server) Register(c echo.Context) error {
	var reg account.Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	svc, err := s.accountService(c)
	if err != nil {
		return err
	}
	u, err := svc.Register(c.Request().Context(), reg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Logout handles DELETE /api/session. The cookie is cleared even when the
// backend call fails.
func (s *Server) Logout(c echo.Context) error {
	svc, err := s.accountService(c)
	if err != nil {
		return err
	}
	if err := svc.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /api/session
func (s *Server) Me(c echo.Context) error {
	if !s.cookies.Present(c.Request()) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	}
	svc, err := s.accountService(c)
	if err != nil {
		return err
	}
	u, err := svc.CurrentUser(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// GetState handles GET /api/state
func (s *Server) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot())
}

// GetCamera handles GET /api/camera
func (s *Server) GetCamera(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot().Camera)
}

// StartCamera handles POST /api/camera/start. A device failure is reported
// in the camera state with 503.
func (s *Server) StartCamera(c echo.Context) error {
	s.store.StartCamera(c.Request().Context())
	cam := s.store.Snapshot().Camera
	if !cam.IsActive && cam.Error != "" {
		return c.JSON(http.StatusServiceUnavailable, cam)
	}
	return c.JSON(http.StatusOK, cam)
}

// StopCamera handles POST /api/camera/stop
func (s *Server) StopCamera(c echo.Context) error {
	s.store.StopCamera()
	return c.JSON(http.StatusOK, s.store.Snapshot().Camera)
}

// GetDetection handles GET /api/detection
func (s *Server) GetDetection(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot().Detection)
}

// DetectObjects handles POST /api/detection with an image upload.
// A pipeline failure is reported in the detection state with 502.
func (s *Server) DetectObjects(c echo.Context) error {
	img, err := s.readImage(c)
	if err != nil {
		return err
	}
	s.store.DetectObjects(c.Request().Context(), img)
	det := s.store.Snapshot().Detection
	if det.Error != "" {
		return c.JSON(http.StatusBadGateway, det)
	}
	return c.JSON(http.StatusOK, det)
}

// SelectObject handles PUT /api/detection/current
func (s *Server) SelectObject(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.SelectObject(int(req.ID)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.store.Snapshot().Detection)
}

// GetModels handles GET /api/models
func (s *Server) GetModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot().Models)
}

// ProcessImage handles POST /api/models with an image upload.
// A pipeline failure is reported in the models state with 502.
func (s *Server) ProcessImage(c echo.Context) error {
	img, err := s.readImage(c)
	if err != nil {
		return err
	}
	before := len(s.store.ModelsList())
	s.store.ProcessImage(c.Request().Context(), img)
	models := s.store.Snapshot().Models
	if len(models.ModelsList) == before && models.Error != "" {
		return c.JSON(http.StatusBadGateway, models)
	}
	return c.JSON(http.StatusCreated, models)
}

// SelectModel handles PUT /api/models/current
func (s *Server) SelectModel(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.SelectModel(req.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.store.Snapshot().Models)
}

// GetSettings handles GET /api/settings
func (s *Server) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Settings())
}

// UpdateSettings handles PUT /api/settings with a partial settings body
func (s *Server) UpdateSettings(c echo.Context) error {
	var patch types.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.UpdateSettings(patch); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.store.Settings())
}

// readImage decodes a multipart image field, or the raw body when the
// request is not multipart
func (s *Server) readImage(c echo.Context) (image.Image, error) {
	var r io.Reader = c.Request().Body
	if fh, err := c.FormFile(ImageField); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	img, err := s.processor.ReadImage(r)
	if err != nil {
		return nil, errors.New(err).Component(componentName).Category(errors.CategoryImage).Build()
	}
	if err := s.processor.ValidateImage(img); err != nil {
		return nil, errors.New(err).Component(componentName).Category(errors.CategoryImage).Build()
	}
	return img, nil
}
