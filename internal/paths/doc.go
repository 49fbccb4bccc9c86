// Package paths provides cross-platform path resolution for cardkeep's
// configuration and backup directories.
//
// # XDG Base Directory Compliance
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base Directory
// Specification compliance. On Linux and macOS, config paths follow XDG
// conventions (~/.config); on Windows they resolve under %LOCALAPPDATA%.
//
// # Application Directories
//
//	paths.ConfigDir()              // <ConfigHome>/cardkeep/
//	paths.ConfigFile()             // <ConfigHome>/cardkeep/config.yaml
//	paths.DefaultDestinationRoot() // <home>/Backups
//
// # Home Expansion
//
// User-supplied paths such as the destination root may use a leading
// tilde. [ExpandHome] resolves it:
//
//	root, err := paths.ExpandHome("~/Backups")
package paths
