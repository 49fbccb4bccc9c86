// Package config provides configuration management for the cardkeep CLI.
//
// # Configuration File
//
// The default configuration file location is <ConfigHome>/cardkeep/config.yaml
// (~/.config/cardkeep/config.yaml on Linux). The file uses YAML format:
//
//	version: 1
//	destination_root: ~/Backups
//	preserve_timestamps: true
//
// Every key can also be supplied through the environment with a CARDKEEP_
// prefix, for example CARDKEEP_DESTINATION_ROOT.
//
// # Loading Configuration
//
// Call [Init] once at startup, then [Load]:
//
//	config.Init()
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//
// Passing an explicit path to [Load] requires the file to exist; an empty
// path falls back to defaults when no file is found.
//
// # Validation
//
// All loaded configurations are validated automatically. You can also
// validate a configuration manually with [Validate].
package config
