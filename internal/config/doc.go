// Package config loads and saves devfinder's YAML settings file.
//
// The file holds discovery defaults: which phases run, the appliance port,
// candidate addresses and hostnames, the mesh CLI path, timeouts and the
// IPC listen address. Command-line flags override these values.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/devfinder/config.yaml or $HOME/.config/devfinder/config.yaml
//   - macOS: $HOME/.config/devfinder/config.yaml
//   - Windows: %LOCALAPPDATA%\devfinder\config.yaml
//
// A missing file is not an error; Load returns the defaults.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Discovery.Phases.Subnet = false
//	if err := cfg.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
