// Package camera defines the device/stream/track contract the camera
// controller drives, plus a directory-backed virtual camera.
//
// A Stream owns one or more Tracks. Releasing a stream means stopping every
// one of its tracks; a stream whose tracks are all stopped no longer yields
// frames.
package camera

import (
	"context"
	"errors"
	"image"
)

// Ideal capture resolution requested by the controller
const (
	IdealWidth  = 1920
	IdealHeight = 1080
)

var (
	// ErrNoDevice is returned when no capture device is available
	ErrNoDevice = errors.New("no camera device available")
	// ErrPermissionDenied is returned when access to the device was refused
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrStreamStopped is returned when reading from a released stream
	ErrStreamStopped = errors.New("camera stream stopped")
)

// Constraints describe the requested video format; the device negotiates
// the closest it can deliver
type Constraints struct {
	IdealWidth  int
	IdealHeight int
}

// DefaultConstraints returns the 1920x1080 ideal request
func DefaultConstraints() Constraints {
	return Constraints{IdealWidth: IdealWidth, IdealHeight: IdealHeight}
}

// Device opens video streams
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an opaque handle to an open device stream
type Stream interface {
	ID() string
	Tracks() []Track
	Frame(ctx context.Context) (image.Image, error)
}

// Track is one media track of a stream
type Track interface {
	Kind() string
	Stop()
	Stopped() bool
}

// StopAll stops every track of s; safe on a nil stream
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
