package state

import (
	"context"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/pkg/camera"
)

// StartCamera opens the configured device at the ideal resolution. On
// success the stream is held and the camera error cleared; on failure the
// camera stays idle and the failure message is recorded. There is no retry.
func (s *Store) StartCamera(ctx context.Context) {
	if s.device == nil {
		s.cameraFailed(camera.ErrNoDevice)
		return
	}

	stream, err := s.device.Open(ctx, s.constraints)
	if err != nil {
		s.cameraFailed(err)
		return
	}

	s.commit(MutSetCameraStream, stream)
	s.commit(MutSetCameraError, "")
	s.observer.CameraChanged(true)
	s.log.Info("camera started",
		logger.String("stream_id", stream.ID()),
		logger.Int("tracks", len(stream.Tracks())))
}

// StopCamera stops every track of the held stream, drops it and returns to
// idle. Calling it while idle is a no-op.
func (s *Store) StopCamera() {
	if !s.IsCameraActive() {
		return
	}
	s.commit(MutStopCamera, nil)
	s.observer.CameraChanged(false)
	s.log.Info("camera stopped")
}

func (s *Store) cameraFailed(err error) {
	ee := errors.DeviceAccess(err, "camera")
	s.commit(MutSetCameraError, ee.Error())
	s.log.Warn("camera start failed", logger.Error(ee))
}
