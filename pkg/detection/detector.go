package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/smodf-client/pkg/client"
	"github.com/menta2k/smodf-client/pkg/processing"
	"github.com/menta2k/smodf-client/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the vision model for every distinct object in the image
const DefaultPrompt = `You are an object detector.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- List every clearly visible object, most prominent first, at most 20.
- All coordinates are normalized to [0,1] (NOT pixels).
- confidence is your certainty in [0,1].
- Labels: lowercase, singular, no punctuation. Do not guess real identities.
- If nothing is visible return {"objects": [], "description": "empty scene", "tags": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// MaxObjects caps the number of detections kept from one reply
const MaxObjects = 20

// SendOptions controls how images are encoded for the vision model
type SendOptions struct {
	Format  string // jpg|png
	MaxDim  int    // max long side in px, 0 = original
	Quality int    // JPEG quality
}

// DefaultSendOptions matches what MiniCPM-V and LLaVA class models handle well
func DefaultSendOptions() SendOptions {
	return SendOptions{Format: "jpg", MaxDim: 1536, Quality: 85}
}

// Detector implements client.ObjectDetector on top of a vision-language model
type Detector struct {
	client        client.VisionClient
	processor     *processing.Processor
	model         string
	prompt        string
	send          SendOptions
	minConfidence float64
}

// Option configures a Detector
type Option func(*Detector)

// WithPrompt overrides DefaultPrompt
func WithPrompt(prompt string) Option {
	return func(d *Detector) { d.prompt = prompt }
}

// WithSendOptions overrides DefaultSendOptions
func WithSendOptions(o SendOptions) Option {
	return func(d *Detector) { d.send = o }
}

// WithMinConfidence drops detections below threshold
func WithMinConfidence(threshold float64) Option {
	return func(d *Detector) { d.minConfidence = threshold }
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, model string, opts ...Option) *Detector {
	d := &Detector{
		client:    c,
		processor: processing.NewProcessor(),
		model:     model,
		prompt:    DefaultPrompt,
		send:      DefaultSendOptions(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectObjects sends img to the vision model and returns the objects it reports
func (d *Detector) DetectObjects(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := d.processor.ValidateImage(img); err != nil {
		return nil, err
	}
	imgB64, err := d.processor.PrepareImageForModel(img, d.send.Format, d.send.MaxDim, d.send.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	result, err := d.client.AnalyzeImage(ctx, d.model, d.prompt, imgB64)
	if err != nil {
		return nil, err
	}
	if client.IsFallback(result) {
		return nil, fmt.Errorf("vision model reply unusable: %s", result.Description)
	}
	return d.toDetections(result.Objects), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.send.Format, d.send.MaxDim, d.send.Quality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imgB64)
}

func (d *Detector) toDetections(objects []types.VisionObject) []types.Detection {
	out := make([]types.Detection, 0, len(objects))
	for _, obj := range objects {
		label := normalizeLabel(obj.Label)
		if label == "" || label == "none" {
			continue
		}
		conf := clamp(obj.Confidence, 0, 1)
		if conf < d.minConfidence {
			continue
		}
		det := types.Detection{Name: label, Confidence: conf}
		if obj.Box.W > 0 && obj.Box.H > 0 {
			box := normalizeBox(obj.Box)
			det.Box = &box
		}
		out = append(out, det)
		if len(out) == MaxObjects {
			break
		}
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	return types.Box{
		X: clamp(b.X, 0, 1),
		Y: clamp(b.Y, 0, 1),
		W: clamp(b.W, 0, 1),
		H: clamp(b.H, 0, 1),
	}
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.Trim(label, ".,;:!?\"'")
}
