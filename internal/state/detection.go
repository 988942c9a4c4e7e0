package state

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/pkg/types"
)

// DetectObjects runs the detector on img. A success replaces the detected
// objects wholesale and clears the detection error; a failure records the
// message and keeps the last good list. The processing flag is cleared on
// every path, panics included.
func (s *Store) DetectObjects(ctx context.Context, img image.Image) {
	s.commit(MutSetDetectionProcessing, true)
	start := time.Now()
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = errors.Pipeline(fmt.Errorf("detector panic: %v", r), "detector", PipelineDetection)
			s.commit(MutSetDetectionError, runErr.Error())
		}
		s.commit(MutSetDetectionProcessing, false)
		s.observer.PipelineFinished(PipelineDetection, time.Since(start), runErr)
	}()

	detections, err := s.detector.DetectObjects(ctx, img)
	if err != nil {
		runErr = errors.Pipeline(err, "detector", PipelineDetection)
		s.commit(MutSetDetectionError, runErr.Error())
		s.log.Warn("detection failed", logger.Error(runErr))
		return
	}

	objects := toObjects(detections)
	s.commit(MutSetDetectedObjects, objects)
	s.commit(MutSetDetectionError, "")
	s.log.Info("objects detected",
		logger.Int("count", len(objects)),
		logger.Duration("elapsed", time.Since(start)))
}

// SelectObject selects the detected object with id; id 0 clears the selection
func (s *Store) SelectObject(id int) error {
	if id != 0 {
		if _, ok := findObject(s.DetectedObjects(), id); !ok {
			return errors.NotFound("detected object %d not found", id)
		}
	}
	s.commit(MutSetCurrentObject, id)
	return nil
}

// toObjects numbers detections 1..n in the order given and clamps confidence
func toObjects(detections []types.Detection) []types.DetectedObject {
	out := make([]types.DetectedObject, len(detections))
	for i, d := range detections {
		obj := types.DetectedObject{ID: i + 1, Name: d.Name, Confidence: clampConfidence(d.Confidence)}
		if d.Box != nil {
			b := *d.Box
			obj.Box = &b
		}
		out[i] = obj
	}
	return out
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
