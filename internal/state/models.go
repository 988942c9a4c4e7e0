package state

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/logger"
	"github.com/menta2k/smodf-client/pkg/reconstruction"
	"github.com/menta2k/smodf-client/pkg/types"
)

// ProcessImage runs the model generator on img. A success appends one
// completed model with a fresh id, selects it and clears the models error;
// a failure records the message and leaves the history and selection
// untouched. The loading flag is cleared on every path, panics included.
func (s *Store) ProcessImage(ctx context.Context, img image.Image) {
	s.commit(MutSetModelsLoading, true)
	start := time.Now()
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = errors.Pipeline(fmt.Errorf("generator panic: %v", r), "generator", PipelineModel)
			s.commit(MutSetModelsError, runErr.Error())
		}
		s.commit(MutSetModelsLoading, false)
		s.observer.PipelineFinished(PipelineModel, time.Since(start), runErr)
	}()

	desc, err := s.generator.GenerateModel(ctx, img)
	if err != nil {
		runErr = errors.Pipeline(err, "generator", PipelineModel)
		s.commit(MutSetModelsError, runErr.Error())
		s.log.Warn("model generation failed", logger.Error(runErr))
		return
	}

	name := reconstruction.DefaultModelName
	if desc != nil && strings.TrimSpace(desc.Name) != "" {
		name = strings.TrimSpace(desc.Name)
	}
	model := types.Model{
		ID:     s.nextModelID(),
		Name:   name,
		Date:   s.now(),
		Status: types.ModelCompleted,
	}
	s.commit(MutAddModel, model)
	s.commit(MutSetCurrentModel, model.ID)
	s.commit(MutSetModelsError, "")
	s.log.Info("model generated",
		logger.Int64("model_id", model.ID),
		logger.String("name", model.Name),
		logger.Duration("elapsed", time.Since(start)))
}

// SelectModel selects the model with id; id 0 clears the selection
func (s *Store) SelectModel(id int64) error {
	if id != 0 {
		if _, ok := findModel(s.ModelsList(), id); !ok {
			return errors.NotFound("model %d not found", id)
		}
	}
	s.commit(MutSetCurrentModel, id)
	return nil
}

// nextModelID derives an id from the wall clock in milliseconds, bumped
// past the previous id when the clock has not advanced
func (s *Store) nextModelID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.models.lastID {
		id = s.models.lastID + 1
	}
	s.models.lastID = id
	return id
}
