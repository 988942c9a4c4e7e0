package state

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smodf-client/pkg/types"
)

func TestDetectObjectsStub(t *testing.T) {
	s := New()
	s.DetectObjects(context.Background(), testImage())

	assert.Equal(t, []types.DetectedObject{
		{ID: 1, Name: "Objeto 1", Confidence: 0.95},
		{ID: 2, Name: "Objeto 2", Confidence: 0.87},
	}, s.DetectedObjects())
	assert.False(t, s.IsDetectionProcessing())
	assert.Empty(t, s.DetectionError())
	assert.Nil(t, s.CurrentObject(), "detection never selects automatically")
}

func TestDetectObjectsNumbersAndClamps(t *testing.T) {
	s := New(WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		return []types.Detection{
			{Name: "a", Confidence: 1.7},
			{Name: "b", Confidence: -0.2},
			{Name: "c", Confidence: math.NaN()},
			{Name: "d", Confidence: 0.5, Box: &types.Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}},
		}, nil
	})))
	s.DetectObjects(context.Background(), testImage())

	got := s.DetectedObjects()
	require.Len(t, got, 4)
	for i, o := range got {
		assert.Equal(t, i+1, o.ID)
		assert.GreaterOrEqual(t, o.Confidence, 0.0)
		assert.LessOrEqual(t, o.Confidence, 1.0)
	}
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, 0.0, got[1].Confidence)
	assert.Equal(t, 0.0, got[2].Confidence)
	require.NotNil(t, got[3].Box)
	assert.Equal(t, 0.4, got[3].Box.H)
}

func TestDetectObjectsFailureKeepsLastGoodList(t *testing.T) {
	fail := false
	s := New(WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		if fail {
			return nil, errors.New("model offline")
		}
		return []types.Detection{{Name: "cup", Confidence: 0.9}}, nil
	})))

	s.DetectObjects(context.Background(), testImage())
	before := s.DetectedObjects()

	fail = true
	s.DetectObjects(context.Background(), testImage())

	assert.Equal(t, before, s.DetectedObjects())
	assert.Equal(t, "model offline", s.DetectionError())
	assert.False(t, s.IsDetectionProcessing())

	fail = false
	s.DetectObjects(context.Background(), testImage())
	assert.Empty(t, s.DetectionError(), "success clears the error")
}

func TestDetectObjectsEmptyResultReplaces(t *testing.T) {
	calls := 0
	s := New(WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		calls++
		if calls == 1 {
			return []types.Detection{{Name: "cup", Confidence: 0.9}}, nil
		}
		return nil, nil
	})))

	s.DetectObjects(context.Background(), testImage())
	s.DetectObjects(context.Background(), testImage())
	assert.Empty(t, s.DetectedObjects())
	assert.NotNil(t, s.DetectedObjects())
}

func TestDetectObjectsProcessingFlag(t *testing.T) {
	det := newControlledDetector()
	s := New(WithDetector(det))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.DetectObjects(context.Background(), testImage())
	}()

	c := <-det.calls
	<-c.started
	assert.True(t, s.IsDetectionProcessing())

	c.release <- result{detections: []types.Detection{{Name: "cup", Confidence: 0.4}}}
	<-done
	assert.False(t, s.IsDetectionProcessing())
}

func TestDetectObjectsPanicClearsFlag(t *testing.T) {
	s := New(WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		panic("index out of range")
	})))

	s.DetectObjects(context.Background(), testImage())
	assert.False(t, s.IsDetectionProcessing())
	assert.Contains(t, s.DetectionError(), "index out of range")
}

func TestDetectObjectsContextCanceled(t *testing.T) {
	det := newControlledDetector()
	s := New(WithDetector(det))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.DetectObjects(ctx, testImage())
	}()
	c := <-det.calls
	<-c.started
	cancel()
	<-done

	assert.False(t, s.IsDetectionProcessing())
	assert.Equal(t, context.Canceled.Error(), s.DetectionError())
}

// The first call finishes after the second: its result is the one that stays.
func TestOverlappingDetectionsLastCompletedWins(t *testing.T) {
	det := newControlledDetector()
	s := New(WithDetector(det))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.DetectObjects(context.Background(), testImage())
	}()
	first := <-det.calls
	<-first.started

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		s.DetectObjects(context.Background(), testImage())
	}()
	second := <-det.calls
	<-second.started

	second.release <- result{detections: []types.Detection{{Name: "second", Confidence: 0.5}}}
	<-secondDone
	assert.Equal(t, "second", s.DetectedObjects()[0].Name)
	assert.False(t, s.IsDetectionProcessing(), "the first completion clears the flag")

	first.release <- result{detections: []types.Detection{{Name: "first", Confidence: 0.6}}}
	wg.Wait()

	got := s.DetectedObjects()
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Name)
	assert.False(t, s.IsDetectionProcessing())
}

func TestSelectObject(t *testing.T) {
	names := []string{"cup", "chair"}
	s := New(WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		out := make([]types.Detection, len(names))
		for i, n := range names {
			out[i] = types.Detection{Name: n, Confidence: 0.9}
		}
		return out, nil
	})))

	assert.Error(t, s.SelectObject(1), "nothing detected yet")

	s.DetectObjects(context.Background(), testImage())
	require.NoError(t, s.SelectObject(2))
	require.NotNil(t, s.CurrentObject())
	assert.Equal(t, "chair", s.CurrentObject().Name)

	err := s.SelectObject(9)
	require.Error(t, err)
	assert.Equal(t, "chair", s.CurrentObject().Name, "a failed selection keeps the current one")

	s.DetectObjects(context.Background(), testImage())
	assert.Nil(t, s.CurrentObject(), "a new result clears the selection even when the same object is detected again")

	require.NoError(t, s.SelectObject(1))
	require.NoError(t, s.SelectObject(0))
	assert.Nil(t, s.CurrentObject())
}

func TestDetectionDurationObserved(t *testing.T) {
	obs := &recordingObserver{}
	s := New(WithObserver(obs), WithDetector(funcDetector(func(context.Context, image.Image) ([]types.Detection, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	})))
	s.DetectObjects(context.Background(), testImage())
	assert.Equal(t, []string{PipelineDetection}, obs.pipelines)
}
