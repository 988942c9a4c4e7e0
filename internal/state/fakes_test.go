package state

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/smodf-client/pkg/camera"
	"github.com/menta2k/smodf-client/pkg/types"
)

type fakeTrack struct {
	stopped atomic.Bool
}

func (t *fakeTrack) Kind() string  { return "video" }
func (t *fakeTrack) Stop()         { t.stopped.Store(true) }
func (t *fakeTrack) Stopped() bool { return t.stopped.Load() }

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func newFakeStream(tracks int) *fakeStream {
	s := &fakeStream{id: uuid.NewString()}
	for range tracks {
		s.tracks = append(s.tracks, &fakeTrack{})
	}
	return s
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []camera.Track {
	out := make([]camera.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Frame(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 32, 32)), nil
}

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

type fakeDevice struct {
	mu          sync.Mutex
	err         error
	opened      []*fakeStream
	constraints []camera.Constraints
}

func (d *fakeDevice) Open(_ context.Context, c camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constraints = append(d.constraints, c)
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream(2)
	d.opened = append(d.opened, s)
	return s, nil
}

// call is one pending capability invocation released by the test
type call struct {
	started chan struct{}
	release chan result
}

type result struct {
	detections []types.Detection
	model      *types.ModelDescriptor
	err        error
	panicWith  any
}

// controlledDetector blocks each call until the test releases it
type controlledDetector struct {
	calls chan *call
}

func newControlledDetector() *controlledDetector {
	return &controlledDetector{calls: make(chan *call, 8)}
}

func (d *controlledDetector) DetectObjects(ctx context.Context, _ image.Image) ([]types.Detection, error) {
	c := &call{started: make(chan struct{}), release: make(chan result, 1)}
	d.calls <- c
	close(c.started)
	select {
	case r := <-c.release:
		if r.panicWith != nil {
			panic(r.panicWith)
		}
		return r.detections, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type controlledGenerator struct {
	calls chan *call
}

func newControlledGenerator() *controlledGenerator {
	return &controlledGenerator{calls: make(chan *call, 8)}
}

func (g *controlledGenerator) GenerateModel(ctx context.Context, _ image.Image) (*types.ModelDescriptor, error) {
	c := &call{started: make(chan struct{}), release: make(chan result, 1)}
	g.calls <- c
	close(c.started)
	select {
	case r := <-c.release:
		if r.panicWith != nil {
			panic(r.panicWith)
		}
		return r.model, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type funcDetector func(context.Context, image.Image) ([]types.Detection, error)

func (f funcDetector) DetectObjects(ctx context.Context, img image.Image) ([]types.Detection, error) {
	return f(ctx, img)
}

type funcGenerator func(context.Context, image.Image) (*types.ModelDescriptor, error)

func (f funcGenerator) GenerateModel(ctx context.Context, img image.Image) (*types.ModelDescriptor, error) {
	return f(ctx, img)
}

type recordingObserver struct {
	mu        sync.Mutex
	pipelines []string
	errs      []error
	camera    []bool
}

func (o *recordingObserver) PipelineFinished(p string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pipelines = append(o.pipelines, p)
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) CameraChanged(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.camera = append(o.camera, active)
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 64))
}
