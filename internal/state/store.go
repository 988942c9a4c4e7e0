// Package state is the single source of truth for the client: camera,
// model history, detection results and user settings.
//
// Callers read through getters (which return copies) and change state only
// through actions. Actions apply named mutations via commit, which holds the
// store lock for the duration of one mutation and never across a device or
// pipeline call. Overlapping actions are not serialized: the last one to
// complete wins.
package state

import (
	"sync"
	"time"

	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/pkg/camera"
	"github.com/menta2k/smodf-client/pkg/client"
	"github.com/menta2k/smodf-client/pkg/detection"
	"github.com/menta2k/smodf-client/pkg/reconstruction"
	"github.com/menta2k/smodf-client/pkg/types"
)

// Mutation names one state change
type Mutation string

const (
	MutSetCameraStream        Mutation = "SET_CAMERA_STREAM"
	MutStopCamera             Mutation = "STOP_CAMERA"
	MutSetCameraError         Mutation = "SET_CAMERA_ERROR"
	MutSetCurrentModel        Mutation = "SET_CURRENT_MODEL"
	MutAddModel               Mutation = "ADD_MODEL"
	MutSetModelsLoading       Mutation = "SET_MODELS_LOADING"
	MutSetModelsError         Mutation = "SET_MODELS_ERROR"
	MutSetDetectionProcessing Mutation = "SET_DETECTION_PROCESSING"
	MutSetDetectedObjects     Mutation = "SET_DETECTED_OBJECTS"
	MutSetCurrentObject       Mutation = "SET_CURRENT_OBJECT"
	MutSetDetectionError      Mutation = "SET_DETECTION_ERROR"
	MutUpdateSettings         Mutation = "UPDATE_SETTINGS"
)

// CameraState is the camera sub-state. Stream != nil implies IsActive.
type CameraState struct {
	IsActive bool          `json:"isActive"`
	Stream   camera.Stream `json:"-"`
	StreamID string        `json:"streamId,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ModelsState is the 3D model sub-state
type ModelsState struct {
	CurrentModel *types.Model  `json:"currentModel"`
	ModelsList   []types.Model `json:"modelsList"`
	IsLoading    bool          `json:"isLoading"`
	Error        string        `json:"error,omitempty"`
}

// DetectionState is the object detection sub-state
type DetectionState struct {
	IsProcessing    bool                   `json:"isProcessing"`
	DetectedObjects []types.DetectedObject `json:"detectedObjects"`
	CurrentObject   *types.DetectedObject  `json:"currentObject"`
	Error           string                 `json:"error,omitempty"`
}

// Snapshot is a copy of the whole state
type Snapshot struct {
	Camera    CameraState    `json:"camera"`
	Models    ModelsState    `json:"models"`
	Detection DetectionState `json:"detection"`
	Settings  types.Settings `json:"settings"`
}

// Event is delivered to subscribers after every commit
type Event struct {
	Mutation Mutation
	Snapshot Snapshot
}

// Observer receives pipeline and camera outcomes
type Observer interface {
	PipelineFinished(pipeline string, elapsed time.Duration, err error)
	CameraChanged(active bool)
}

type nopObserver struct{}

func (nopObserver) PipelineFinished(string, time.Duration, error) {}
func (nopObserver) CameraChanged(bool)                            {}

// Pipeline names reported to the Observer
const (
	PipelineDetection = "detection"
	PipelineModel     = "model"
)

// Store holds the application state
type Store struct {
	mu sync.Mutex

	cam struct {
		active bool
		stream camera.Stream
		err    string
	}
	models struct {
		list      []types.Model
		currentID int64
		loading   bool
		err       string
		lastID    int64
	}
	det struct {
		processing bool
		objects     []types.DetectedObject
		currentID   int
		err         string
	}
	settings types.Settings

	device      camera.Device
	constraints camera.Constraints
	detector    client.ObjectDetector
	generator   client.ModelGenerator
	observer    Observer
	log         logger.Logger
	now         func() time.Time

	// deliverMu is taken before mu so events reach subscribers in commit order
	deliverMu sync.Mutex
	subMu     sync.RWMutex
	subs      map[int]func(Event)
	nextID    int
}

// Option configures a Store
type Option func(*Store)

// WithDevice sets the camera device; without one StartCamera records an error
func WithDevice(d camera.Device) Option {
	return func(s *Store) { s.device = d }
}

// WithConstraints overrides the 1920x1080 ideal capture request
func WithConstraints(c camera.Constraints) Option {
	return func(s *Store) { s.constraints = c }
}

// WithDetector sets the object detection capability
func WithDetector(d client.ObjectDetector) Option {
	return func(s *Store) { s.detector = d }
}

// WithGenerator sets the model generation capability
func WithGenerator(g client.ModelGenerator) Option {
	return func(s *Store) { s.generator = g }
}

// WithObserver sets the outcome observer
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l.Module("state") }
}

// WithClock overrides the time source for model ids and dates
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSettings sets the initial settings
func WithSettings(settings types.Settings) Option {
	return func(s *Store) { s.settings = settings }
}

// New creates a store in the initial state: camera idle, no models, no
// detections, default settings, stub capabilities
func New(opts ...Option) *Store {
	s := &Store{
		settings:    types.DefaultSettings(),
		constraints: camera.DefaultConstraints(),
		detector:    detection.Stub{},
		generator:   reconstruction.Stub{},
		observer:    nopObserver{},
		log:         logger.Discard(),
		now:         time.Now,
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.models.list = []types.Model{}
	s.det.objects = []types.DetectedObject{}
	return s
}

// Subscribe registers fn to receive an Event after every commit. Events are
// delivered synchronously on the committing goroutine, outside the store
// lock, one commit at a time and in commit order. fn may read the store but
// must not commit to it. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// commit applies one mutation under the lock and notifies subscribers
func (s *Store) commit(m Mutation, payload any) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.apply(m, payload)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("commit", logger.String("mutation", string(m)))

	s.subMu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(Event{Mutation: m, Snapshot: snap})
	}
}

func (s *Store) apply(m Mutation, payload any) {
	switch m {
	case MutSetCameraStream:
		stream := payload.(camera.Stream)
		if s.cam.stream != nil && s.cam.stream != stream {
			camera.StopAll(s.cam.stream)
		}
		s.cam.stream = stream
		s.cam.active = true
	case MutStopCamera:
		camera.StopAll(s.cam.stream)
		s.cam.stream = nil
		s.cam.active = false
	case MutSetCameraError:
		s.cam.err = payload.(string)

	case MutSetCurrentModel:
		s.models.currentID = payload.(int64)
	case MutAddModel:
		s.models.list = append(s.models.list, payload.(types.Model))
	case MutSetModelsLoading:
		s.models.loading = payload.(bool)
	case MutSetModelsError:
		s.models.err = payload.(string)

	case MutSetDetectionProcessing:
		s.det.processing = payload.(bool)
	case MutSetDetectedObjects:
		s.det.objects = payload.([]types.DetectedObject)
		// a new result replaces every record, so the old selection goes with them
		s.det.currentID = 0
	case MutSetCurrentObject:
		s.det.currentID = 0
		if o, ok := findObject(s.det.objects, payload.(int)); ok {
			s.det.currentID = o.ID
		}
	case MutSetDetectionError:
		s.det.err = payload.(string)

	case MutUpdateSettings:
		s.settings = payload.(types.SettingsPatch).Apply(s.settings)
	}
}

// Snapshot returns a copy of the whole state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Camera: CameraState{
			IsActive: s.cam.active,
			Stream:   s.cam.stream,
			Error:    s.cam.err,
		},
		Models: ModelsState{
			ModelsList: append([]types.Model(nil), s.models.list...),
			IsLoading:  s.models.loading,
			Error:      s.models.err,
		},
		Detection: DetectionState{
			IsProcessing:    s.det.processing,
			DetectedObjects: copyObjects(s.det.objects),
			Error:           s.det.err,
		},
		Settings: s.settings,
	}
	if s.cam.stream != nil {
		snap.Camera.StreamID = s.cam.stream.ID()
	}
	if snap.Models.ModelsList == nil {
		snap.Models.ModelsList = []types.Model{}
	}
	if m, ok := findModel(s.models.list, s.models.currentID); ok {
		snap.Models.CurrentModel = &m
	}
	if o, ok := findObject(snap.Detection.DetectedObjects, s.det.currentID); ok {
		snap.Detection.CurrentObject = &o
	}
	return snap
}

func copyObjects(in []types.DetectedObject) []types.DetectedObject {
	out := make([]types.DetectedObject, len(in))
	for i, o := range in {
		if o.Box != nil {
			b := *o.Box
			o.Box = &b
		}
		out[i] = o
	}
	return out
}

func findModel(list []types.Model, id int64) (types.Model, bool) {
	if id == 0 {
		return types.Model{}, false
	}
	for _, m := range list {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}

func findObject(list []types.DetectedObject, id int) (types.DetectedObject, bool) {
	if id == 0 {
		return types.DetectedObject{}, false
	}
	for _, o := range list {
		if o.ID == id {
			return o, true
		}
	}
	return types.DetectedObject{}, false
}

// IsCameraActive reports whether a stream is held
func (s *Store) IsCameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.active
}

// CameraStream returns the held stream or nil
func (s *Store) CameraStream() camera.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.stream
}

// CameraError returns the last camera failure message
func (s *Store) CameraError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.err
}

// CurrentModel returns the selected model or nil
func (s *Store) CurrentModel() *types.Model {
	return s.Snapshot().Models.CurrentModel
}

// ModelsList returns the model history in insertion order
func (s *Store) ModelsList() []types.Model {
	return s.Snapshot().Models.ModelsList
}

// IsModelsLoading reports whether a model generation is in flight
func (s *Store) IsModelsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models.loading
}

// ModelsError returns the last model generation failure message
func (s *Store) ModelsError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models.err
}

// IsDetectionProcessing reports whether a detection is in flight
func (s *Store) IsDetectionProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det.processing
}

// DetectedObjects returns the last successful detection result
func (s *Store) DetectedObjects() []types.DetectedObject {
	return s.Snapshot().Detection.DetectedObjects
}

// CurrentObject returns the selected object or nil
func (s *Store) CurrentObject() *types.DetectedObject {
	return s.Snapshot().Detection.CurrentObject
}

// DetectionError returns the last detection failure message
func (s *Store) DetectionError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det.err
}

// Settings returns the current settings
func (s *Store) Settings() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
