// Package reconstruction provides ModelGenerator implementations.
//
// No reconstruction algorithm lives here. Stub is the placeholder the
// application starts with; Namer asks a vision model what the main subject
// is and uses that as the model name.
package reconstruction

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/smodf-client/pkg/client"
	"github.com/menta2k/smodf-client/pkg/processing"
	"github.com/menta2k/smodf-client/pkg/types"
)

// DefaultModelName is used when a generator reports no name
const DefaultModelName = "Nuevo Modelo"

// NamePrompt asks for a short name of the photographed subject
const NamePrompt = `Name the main object in this image in at most four words. Reply with the name only, no punctuation.`

// Stub returns a fixed descriptor for any image
type Stub struct{}

// GenerateModel implements client.ModelGenerator
func (Stub) GenerateModel(ctx context.Context, _ image.Image) (*types.ModelDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.ModelDescriptor{Name: DefaultModelName}, nil
}

// Namer wraps another generator and names its models after the subject
// a vision model sees in the source image
type Namer struct {
	next      client.ModelGenerator
	vision    client.VisionClient
	model     string
	processor *processing.Processor
}

// NewNamer wraps next; a nil next means Stub
func NewNamer(next client.ModelGenerator, vision client.VisionClient, model string) *Namer {
	if next == nil {
		next = Stub{}
	}
	return &Namer{next: next, vision: vision, model: model, processor: processing.NewProcessor()}
}

// GenerateModel implements client.ModelGenerator
func (n *Namer) GenerateModel(ctx context.Context, img image.Image) (*types.ModelDescriptor, error) {
	desc, err := n.next.GenerateModel(ctx, img)
	if err != nil {
		return nil, err
	}
	imgB64, err := n.processor.PrepareImageForModel(img, "jpg", 768, 85)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	answer, err := n.vision.SimpleQuery(ctx, n.model, NamePrompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("naming model: %w", err)
	}
	if name := cleanName(answer); name != "" {
		named := *desc
		named.Name = name
		return &named, nil
	}
	return desc, nil
}

func cleanName(answer string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(answer), "\n")
	line = strings.Trim(strings.TrimSpace(line), ".,;:!?\"'`*")
	words := strings.Fields(line)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}
