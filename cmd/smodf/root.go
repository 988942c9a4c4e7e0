package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	smodf "github.com/menta2k/smodf-client"
	"github.com/menta2k/smodf-client/internal/config"
)

// cli carries the state shared by all subcommands
type cli struct {
	v          *viper.Viper
	configPath string
	app        *smodf.App
}

func rootCommand() *cobra.Command {
	c := &cli{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "smodf",
		Short:         "SMODF client: camera, 3D model and object detection pipelines",
		Version:       smodf.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, c); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serveCommand(c),
		detectCommand(c),
		modelCommand(c),
		captureCommand(c),
		loginCommand(c),
		logoutCommand(c),
		whoamiCommand(c),
		routeCommand(c),
		settingsCommand(c),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return c.initialize()
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if c.app != nil {
			c.app.Close()
		}
	}
	return rootCmd
}

// setupFlags defines the global flags and binds them to their config keys
func setupFlags(rootCmd *cobra.Command, c *cli) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.yaml or "+config.GetConfigPath()+")")
	flags.String("backend-url", "", "SMODF backend base URL")
	flags.String("vision-provider", "", "object detector: stub, backend, ollama or llamacpp")
	flags.String("vision-url", "", "Ollama or llama.cpp server URL")
	flags.String("vision-model", "", "vision model name")
	flags.String("camera-source", "", "directory of frames played back as the camera")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	bindings := map[string]string{
		"backend.url":     "backend-url",
		"vision.provider": "vision-provider",
		"vision.url":      "vision-url",
		"vision.model":    "vision-model",
		"camera.source":   "camera-source",
		"logging.level":   "log-level",
	}
	for key, name := range bindings {
		if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// initialize loads the configuration and wires the app before any subcommand runs
func (c *cli) initialize() error {
	cfg, err := config.LoadWith(c.v, c.configPath)
	if err != nil {
		return err
	}
	app, err := smodf.New(cfg)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

// settingsPath is where auto-saved settings go
func (c *cli) settingsPath() string {
	if c.configPath != "" {
		return c.configPath
	}
	if used := c.v.ConfigFileUsed(); used != "" {
		return used
	}
	return config.GetConfigPath()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
