package camera

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/menta2k/smodf-client/internal/utils"
	"github.com/menta2k/smodf-client/pkg/processing"
)

// DirectoryDevice is a virtual camera that plays back the image files of a
// directory in path order, looping at the end
type DirectoryDevice struct {
	dir       string
	processor *processing.Processor
}

// NewDirectoryDevice creates a virtual camera over dir
func NewDirectoryDevice(dir string) *DirectoryDevice {
	return &DirectoryDevice{dir: dir, processor: processing.NewProcessor()}
}

// Open lists the frames of the directory and returns a stream over them
func (d *DirectoryDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.dir == "" || !utils.DirExists(d.dir) {
		return nil, fmt.Errorf("%w: source directory %q not found", ErrNoDevice, d.dir)
	}
	files, err := utils.ListImageFiles(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no image files in %q", ErrNoDevice, d.dir)
	}

	return &fileStream{
		id:          uuid.NewString(),
		files:       files,
		constraints: c,
		processor:   d.processor,
		video:       &videoTrack{},
	}, nil
}

type fileStream struct {
	id          string
	files       []string
	constraints Constraints
	processor   *processing.Processor
	video       *videoTrack

	mu   sync.Mutex
	next int
}

func (s *fileStream) ID() string { return s.id }

func (s *fileStream) Tracks() []Track { return []Track{s.video} }

// Frame returns the next image of the directory fitted to the constraints
func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.video.Stopped() {
		return nil, ErrStreamStopped
	}

	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	img, err := s.processor.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
	}
	return s.processor.FitToConstraints(img, s.constraints.IdealWidth, s.constraints.IdealHeight), nil
}

type videoTrack struct {
	stopped atomic.Bool
}

func (t *videoTrack) Kind() string  { return "video" }
func (t *videoTrack) Stop()         { t.stopped.Store(true) }
func (t *videoTrack) Stopped() bool { return t.stopped.Load() }
