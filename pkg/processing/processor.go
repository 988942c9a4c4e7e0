package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/smodf-client/pkg/types"
)

// MinImageSize is the smallest side accepted by ValidateImage
const MinImageSize = 16

// Processor handles image decoding, encoding and annotation
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// ReadImage decodes an image from a reader
func (p *Processor) ReadImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.DecodeImage(data)
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ValidateImage checks that an image is usable by the pipelines
func (p *Processor) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	b := img.Bounds()
	if b.Dx() < MinImageSize || b.Dy() < MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum %d px per side)", b.Dx(), b.Dy(), MinImageSize)
	}
	return nil
}

// ScaledSize returns the size of a w x h image after its long side is limited
// to maxDim. A maxDim of 0 or less keeps the size.
func ScaledSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) || w <= 0 || h <= 0 {
		return w, h
	}
	if w >= h {
		return maxDim, int(math.Max(1, math.Floor(float64(maxDim)*float64(h)/float64(w)+0.5)))
	}
	return int(math.Max(1, math.Floor(float64(maxDim)*float64(w)/float64(h)+0.5))), maxDim
}

// EncodeImage resizes img so its long side is at most maxDim and encodes it
func (p *Processor) EncodeImage(img image.Image, format string, maxDim int, quality int) ([]byte, error) {
	b := img.Bounds()
	if w, h := ScaledSize(b.Dx(), b.Dy(), maxDim); w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	default: // jpg
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	data, err := p.EncodeImage(img, format, maxDim, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FitToConstraints scales img down to fit inside width x height, keeping its aspect ratio
func (p *Processor) FitToConstraints(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return img
	}
	return imaging.Fit(img, width, height, imaging.Lanczos)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// AnnotateDetections draws a box for every detected object that carries one
func (p *Processor) AnnotateDetections(img image.Image, objects []types.DetectedObject) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	amber := color.NRGBA{255, 204, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	for _, obj := range objects {
		if obj.Box == nil {
			continue
		}
		c := green
		if obj.Confidence < 0.5 {
			c = amber
		}
		drawBox(nrgba, *obj.Box, w, h, c, stroke)
	}

	// image center marker
	ix, iy := w/2, h/2
	blue := color.NRGBA{0, 170, 255, 255}
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, box types.Box, w, h int, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
