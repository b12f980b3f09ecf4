package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r58studio/devfinder/internal/config"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/ui"
)

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite without asking")
}

// configCmd skips the root config load so a broken file can be replaced.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}

		err = config.Init(path, configForce)
		if errors.Is(err, config.ErrConfigExists) {
			if !ui.Confirm(os.Stdin, os.Stdout, "CONFIG EXISTS", []string{path + " will be replaced with defaults"}, "Overwrite?") {
				return nil
			}
			err = config.Init(path, true)
		}
		if err != nil {
			return err
		}

		ui.NewPrinter(os.Stdout).PrintSuccess("Config written", map[string]string{"Path": path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		c, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		data, err := c.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}
