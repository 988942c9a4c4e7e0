package types

import "time"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ModelStatus is the lifecycle status of a generated 3D model
type ModelStatus string

const (
	ModelPending   ModelStatus = "pending"
	ModelCompleted ModelStatus = "completed"
	ModelFailed    ModelStatus = "failed"
)

// Model is one 3D reconstruction result kept in the model history
type Model struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Date   time.Time   `json:"date"`
	Status ModelStatus `json:"status"`
}

// DetectedObject is one labeled detection with a confidence score
type DetectedObject struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

// Detection is what an object detector returns for a single object
type Detection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

// ModelDescriptor is what a model generator returns for one image
type ModelDescriptor struct {
	Name     string         `json:"name"`
	Format   string         `json:"format,omitempty"`
	Vertices int            `json:"vertices,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Quality is a user-selectable quality level
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Valid reports whether q is one of the known levels
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// Settings holds the user-tunable configuration
type Settings struct {
	CameraQuality Quality `json:"cameraQuality" mapstructure:"camera_quality" yaml:"camera_quality"`
	ModelQuality  Quality `json:"modelQuality" mapstructure:"model_quality" yaml:"model_quality"`
	AutoSave      bool    `json:"autoSave" mapstructure:"auto_save" yaml:"auto_save"`
	Notifications bool    `json:"notifications" mapstructure:"notifications" yaml:"notifications"`
}

// DefaultSettings returns the settings a fresh application starts with
func DefaultSettings() Settings {
	return Settings{
		CameraQuality: QualityHigh,
		ModelQuality:  QualityMedium,
		AutoSave:      true,
		Notifications: true,
	}
}

// SettingsPatch is a partial settings update; nil fields are left untouched
type SettingsPatch struct {
	CameraQuality *Quality `json:"cameraQuality,omitempty"`
	ModelQuality  *Quality `json:"modelQuality,omitempty"`
	AutoSave      *bool    `json:"autoSave,omitempty"`
	Notifications *bool    `json:"notifications,omitempty"`
}

// Empty reports whether the patch sets no field
func (p SettingsPatch) Empty() bool {
	return p.CameraQuality == nil && p.ModelQuality == nil && p.AutoSave == nil && p.Notifications == nil
}

// Apply returns s with every field set in p replaced
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.CameraQuality != nil {
		s.CameraQuality = *p.CameraQuality
	}
	if p.ModelQuality != nil {
		s.ModelQuality = *p.ModelQuality
	}
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	return s
}

// AnalysisResult contains the object list returned by a vision model
type AnalysisResult struct {
	Objects     []VisionObject `json:"objects"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
}

// VisionObject is one object as reported by a vision model
type VisionObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}
