package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateSettingsMerges(t *testing.T) {
	s := New()

	require.NoError(t, s.UpdateSettings(types.SettingsPatch{AutoSave: ptr(false)}))
	assert.Equal(t, types.Settings{
		CameraQuality: types.QualityHigh,
		ModelQuality:  types.QualityMedium,
		AutoSave:      false,
		Notifications: true,
	}, s.Settings())

	require.NoError(t, s.UpdateSettings(types.SettingsPatch{
		CameraQuality: ptr(types.QualityLow),
		ModelQuality:  ptr(types.QualityHigh),
	}))
	assert.Equal(t, types.Settings{
		CameraQuality: types.QualityLow,
		ModelQuality:  types.QualityHigh,
		AutoSave:      false,
		Notifications: true,
	}, s.Settings())
}

func TestUpdateSettingsEmptyPatchIsIdempotent(t *testing.T) {
	s := New(WithSettings(types.Settings{CameraQuality: types.QualityLow, ModelQuality: types.QualityLow}))
	before := s.Settings()

	commits := 0
	s.Subscribe(func(Event) { commits++ })

	for range 3 {
		require.NoError(t, s.UpdateSettings(types.SettingsPatch{}))
	}
	assert.Equal(t, before, s.Settings())
	assert.Zero(t, commits)
}

func TestUpdateSettingsRejectsUnknownQuality(t *testing.T) {
	s := New()
	before := s.Settings()

	err := s.UpdateSettings(types.SettingsPatch{
		AutoSave:     ptr(false),
		ModelQuality: ptr(types.Quality("ultra")),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "modelQuality")
	assert.Equal(t, before, s.Settings(), "nothing is applied")

	err = s.UpdateSettings(types.SettingsPatch{CameraQuality: ptr(types.Quality(""))})
	assert.Error(t, err)
}

func TestUpdateSettingsEveryField(t *testing.T) {
	qualities := []types.Quality{types.QualityLow, types.QualityMedium, types.QualityHigh}
	for _, cq := range qualities {
		for _, mq := range qualities {
			for _, flag := range []bool{true, false} {
				s := New()
				require.NoError(t, s.UpdateSettings(types.SettingsPatch{
					CameraQuality: ptr(cq),
					ModelQuality:  ptr(mq),
					AutoSave:      ptr(flag),
					Notifications: ptr(!flag),
				}))
				assert.Equal(t, types.Settings{CameraQuality: cq, ModelQuality: mq, AutoSave: flag, Notifications: !flag}, s.Settings())
			}
		}
	}
}
