package main

import (
	"github.com/spf13/cobra"

	"github.com/menta2k/smodf-client/pkg/types"
)

func settingsCommand(c *cli) *cobra.Command {
	var cameraQuality, modelQuality string
	var autoSave, notifications bool

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change user settings (saved when auto-save is on)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch types.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("camera-quality") {
				q := types.Quality(cameraQuality)
				patch.CameraQuality = &q
			}
			if flags.Changed("model-quality") {
				q := types.Quality(modelQuality)
				patch.ModelQuality = &q
			}
			if flags.Changed("auto-save") {
				patch.AutoSave = &autoSave
			}
			if flags.Changed("notifications") {
				patch.Notifications = &notifications
			}

			stop := c.app.PersistSettings(c.settingsPath())
			defer stop()
			if err := c.app.Store.UpdateSettings(patch); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.app.Store.Settings())
		},
	}

	cmd.Flags().StringVar(&cameraQuality, "camera-quality", "", "low, medium or high")
	cmd.Flags().StringVar(&modelQuality, "model-quality", "", "low, medium or high")
	cmd.Flags().BoolVar(&autoSave, "auto-save", true, "save settings changes to the config file")
	cmd.Flags().BoolVar(&notifications, "notifications", true, "enable notifications")
	return cmd
}
