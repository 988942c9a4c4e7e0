package detection

import (
	"context"
	"image"

	"github.com/menta2k/smodf-client/pkg/types"
)

// Stub is the placeholder detector: it ignores the image and reports two
// fixed synthetic objects. Real detectors replace it through configuration.
type Stub struct{}

// DetectObjects implements client.ObjectDetector
func (Stub) DetectObjects(ctx context.Context, _ image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []types.Detection{
		{Name: "Objeto 1", Confidence: 0.95},
		{Name: "Objeto 2", Confidence: 0.87},
	}, nil
}
