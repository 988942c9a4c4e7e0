// Package backend talks to the SMODF processing service. It implements both
// capability interfaces over POST /api/process_image/.
package backend

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/internal/transport"
	"github.com/menta2k/smodf-client/pkg/processing"
	"github.com/menta2k/smodf-client/pkg/types"
)

// ProcessImagePath is the processing endpoint
const ProcessImagePath = "/api/process_image/"

// Pipeline algorithm identifiers understood by the service
const (
	AlgorithmObjectDetection = "object_detection"
	AlgorithmContour         = "contour"
)

const componentName = "backend"

// Requester is the transport contract the client needs
type Requester interface {
	Request(ctx context.Context, method, path string, body any, opts ...transport.RequestOption) (*transport.Response, error)
}

// Step is one pipeline stage
type Step struct {
	Algorithm string         `json:"algorithm"`
	Params    map[string]any `json:"params,omitempty"`
}

// ProcessRequest is the request body of ProcessImagePath
type ProcessRequest struct {
	ImageID   int64  `json:"image_id,omitempty"`
	ImageData string `json:"image_data,omitempty"`
	Pipeline  []Step `json:"pipeline"`
}

// RawDetection is one detection in pixel coordinates
type RawDetection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Metrics summarises one processing run
type Metrics struct {
	ProcessingTime    float64 `json:"processing_time"`
	DetectionCount    int     `json:"detection_count"`
	AverageConfidence float64 `json:"average_confidence"`
	Resolution        string  `json:"resolution"`
}

// ProcessResponse is the reply of ProcessImagePath
type ProcessResponse struct {
	Detections []RawDetection `json:"detections"`
	Metrics    Metrics        `json:"metrics"`
	Model3D    map[string]any `json:"model_3d,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Client implements client.ObjectDetector and client.ModelGenerator
type Client struct {
	t             Requester
	processor     *processing.Processor
	minConfidence float64
	modelParams   map[string]any
	maxDim        int
	log           logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithMinConfidence sets the detection threshold sent to the service
func WithMinConfidence(v float64) Option {
	return func(c *Client) { c.minConfidence = v }
}

// WithModelParams sets the contour stage parameters (polygons, detail_level, ...)
func WithModelParams(params map[string]any) Option {
	return func(c *Client) { c.modelParams = params }
}

// WithMaxDimension limits the long side of uploaded images; 0 keeps the original
func WithMaxDimension(px int) Option {
	return func(c *Client) { c.maxDim = px }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l.Module(componentName) }
}

// New creates a backend client over t
func New(t Requester, opts ...Option) *Client {
	c := &Client{
		t:             t,
		processor:     processing.NewProcessor(),
		minConfidence: 0.5,
		maxDim:        1920,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process uploads img and runs pipeline on it
func (c *Client) Process(ctx context.Context, img image.Image, pipeline []Step) (*ProcessResponse, error) {
	if err := c.processor.ValidateImage(img); err != nil {
		return nil, err
	}
	data, err := c.processor.PrepareImageForModel(img, "jpg", c.maxDim, 90)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	resp, err := c.t.Request(ctx, http.MethodPost, ProcessImagePath, ProcessRequest{ImageData: data, Pipeline: pipeline})
	if err != nil {
		return nil, serviceError(err)
	}

	var out ProcessResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.Newf("%s", out.Error).Component(componentName).Category(errors.CategoryPipeline).Build()
	}
	c.log.Debug("image processed",
		logger.Int("detections", len(out.Detections)),
		logger.String("resolution", out.Metrics.Resolution))
	return &out, nil
}

// DetectObjects implements client.ObjectDetector
func (c *Client) DetectObjects(ctx context.Context, img image.Image) ([]types.Detection, error) {
	out, err := c.Process(ctx, img, []Step{{
		Algorithm: AlgorithmObjectDetection,
		Params:    map[string]any{"confianza_mínima": c.minConfidence},
	}})
	if err != nil {
		return nil, err
	}
	// boxes come back in the coordinate space of the uploaded image
	b := img.Bounds()
	w, h := processing.ScaledSize(b.Dx(), b.Dy(), c.maxDim)
	return toDetections(out.Detections, float64(w), float64(h)), nil
}

// GenerateModel implements client.ModelGenerator
func (c *Client) GenerateModel(ctx context.Context, img image.Image) (*types.ModelDescriptor, error) {
	out, err := c.Process(ctx, img, []Step{{Algorithm: AlgorithmContour, Params: c.modelParams}})
	if err != nil {
		return nil, err
	}
	if len(out.Model3D) == 0 {
		return nil, errors.Newf("service returned no 3D model").
			Component(componentName).Category(errors.CategoryPipeline).Build()
	}
	return toDescriptor(out.Model3D), nil
}

// serviceError marks replies carrying a service error message as pipeline failures
func serviceError(err error) error {
	var se *transport.StatusError
	if !errors.As(err, &se) || se.Message() == "" {
		return err
	}
	return errors.New(se).
		Component(componentName).
		Category(errors.CategoryPipeline).
		Context("status", se.Status).
		Build()
}

func toDetections(raw []RawDetection, w, h float64) []types.Detection {
	out := make([]types.Detection, 0, len(raw))
	for _, d := range raw {
		det := types.Detection{Name: d.Class, Confidence: d.Confidence}
		if w > 0 && h > 0 && d.Width > 0 && d.Height > 0 {
			det.Box = &types.Box{
				X: clamp01(d.X / w),
				Y: clamp01(d.Y / h),
				W: clamp01(d.Width / w),
				H: clamp01(d.Height / h),
			}
		}
		out = append(out, det)
	}
	return out
}

func toDescriptor(m map[string]any) *types.ModelDescriptor {
	desc := &types.ModelDescriptor{Format: "mesh", Data: m}
	if name, ok := m["name"].(string); ok {
		desc.Name = name
	}
	if format, ok := m["format"].(string); ok && format != "" {
		desc.Format = format
	}
	if vertices, ok := m["vertices"].([]any); ok {
		desc.Vertices = len(vertices)
	}
	return desc
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
