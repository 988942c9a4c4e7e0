package state

import (
	"fmt"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/pkg/types"
)

// UpdateSettings merges patch into the settings. Fields the patch leaves nil
// keep their value. An out-of-range quality rejects the whole patch.
func (s *Store) UpdateSettings(patch types.SettingsPatch) error {
	if err := ValidatePatch(patch); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}
	s.commit(MutUpdateSettings, patch)
	return nil
}

// ValidatePatch checks every quality the patch sets
func ValidatePatch(patch types.SettingsPatch) error {
	if patch.CameraQuality != nil && !patch.CameraQuality.Valid() {
		return invalidQuality("cameraQuality", *patch.CameraQuality)
	}
	if patch.ModelQuality != nil && !patch.ModelQuality.Valid() {
		return invalidQuality("modelQuality", *patch.ModelQuality)
	}
	return nil
}

func invalidQuality(field string, q types.Quality) error {
	return errors.New(fmt.Errorf("invalid %s %q: must be one of low, medium, high", field, q)).
		Component("settings").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
