package client

import (
	"context"
	"image"

	"github.com/menta2k/smodf-client/pkg/types"
)

// VisionClient is a vision-language model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}

// ObjectDetector turns an image into an ordered list of detections
type ObjectDetector interface {
	DetectObjects(ctx context.Context, img image.Image) ([]types.Detection, error)
}

// ModelGenerator turns an image into a 3D model descriptor
type ModelGenerator interface {
	GenerateModel(ctx context.Context, img image.Image) (*types.ModelDescriptor, error)
}
