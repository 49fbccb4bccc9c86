package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/thoreinstein/cardkeep/internal/config"
	"github.com/thoreinstein/cardkeep/internal/device"
	"github.com/thoreinstein/cardkeep/internal/paths"
)

// ConfigCheck validates that the configuration parses and passes
// validation.
type ConfigCheck struct {
	path string
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck creates a config check. path may be empty to use the
// default search locations.
func NewConfigCheck(path string) *ConfigCheck {
	return &ConfigCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *ConfigCheck) Name() string {
	return "config"
}

// Category returns the grouping for this check.
func (c *ConfigCheck) Category() string {
	return "config"
}

// Run loads the configuration from scratch and reports whether it is
// usable.
func (c *ConfigCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	config.Init()
	cfg, err := config.Load(c.path)
	if err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		result.FixHint = "run 'cardkeep config init' to write a fresh config file"
		return result
	}

	root, err := cfg.ResolvedDestinationRoot()
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("resolving destination root: %v", err)
		return result
	}

	result.Details = map[string]any{
		"version":             cfg.Version,
		"destination_root":    root,
		"preserve_timestamps": cfg.PreserveTimestamps,
	}

	if file := config.FileUsed(); file != "" {
		result.Status = SeverityPass
		result.Message = "configuration valid"
		result.Details["file"] = file
	} else {
		result.Status = SeverityInfo
		result.Message = "no configuration file found, using defaults"
	}
	return result
}

// DestinationCheck verifies the backup destination root is usable:
// present (or creatable) and writable.
type DestinationCheck struct {
	root    string
	missing bool
}

var (
	_ Check = (*DestinationCheck)(nil)
	_ Fixer = (*DestinationCheck)(nil)
)

// NewDestinationCheck creates a destination check for the resolved
// destination root.
func NewDestinationCheck(root string) *DestinationCheck {
	return &DestinationCheck{root: root}
}

// Name returns the unique identifier for this check.
func (c *DestinationCheck) Name() string {
	return "destination-root"
}

// Category returns the grouping for this check.
func (c *DestinationCheck) Category() string {
	return "destination"
}

// Run stats the destination root and probes it for writability.
func (c *DestinationCheck) Run() *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"path": c.root},
	}

	if c.root == "" {
		result.Status = SeverityError
		result.Message = "no destination root configured"
		result.FixHint = "set destination_root in the config file"
		return result
	}

	info, err := os.Stat(c.root)
	if os.IsNotExist(err) {
		c.missing = true
		result.Status = SeverityInfo
		result.Message = "destination root does not exist yet"
		result.Fixable = true
		result.FixHint = "created automatically on first backup, or run 'cardkeep doctor --fix'"
		return result
	}
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot stat destination root: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = SeverityError
		result.Message = "destination root is not a directory"
		return result
	}

	// Writability only shows reliably by writing.
	probe, err := os.CreateTemp(c.root, ".cardkeep-probe-*")
	if err != nil {
		result.Status = SeverityError
		result.Message = "destination root is not writable"
		result.FixHint = "chmod u+w " + c.root
		return result
	}
	probe.Close()
	os.Remove(probe.Name())

	result.Status = SeverityPass
	result.Message = "destination root is writable"
	return result
}

// CanFix reports whether Run found a missing destination root that Fix
// can create.
func (c *DestinationCheck) CanFix() bool {
	return c.missing
}

// Fix creates the missing destination root.
func (c *DestinationCheck) Fix() []FixResult {
	if !c.missing {
		return nil
	}

	res := FixResult{Path: c.root}
	if err := paths.EnsureDir(c.root, paths.BackupDirPerm); err != nil {
		res.Description = "could not create directory"
		res.Error = err
		return []FixResult{res}
	}

	c.missing = false
	res.Fixed = true
	res.Description = "created directory"
	return []FixResult{res}
}

// ScannerCheck verifies removable-device discovery works on this host.
type ScannerCheck struct {
	scanner device.Scanner
	timeout time.Duration
}

var _ Check = (*ScannerCheck)(nil)

// NewScannerCheck creates a device-scan check.
func NewScannerCheck(s device.Scanner) *ScannerCheck {
	return &ScannerCheck{scanner: s, timeout: 5 * time.Second}
}

// Name returns the unique identifier for this check.
func (c *ScannerCheck) Name() string {
	return "device-scan"
}

// Category returns the grouping for this check.
func (c *ScannerCheck) Category() string {
	return "devices"
}

// Run performs one scan. Zero attached devices is a normal state, not
// a failure.
func (c *ScannerCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	devices, err := c.scanner.ListRemovable(ctx)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("device scan failed: %v", err)
		return result
	}

	if len(devices) == 0 {
		result.Status = SeverityInfo
		result.Message = "no removable devices currently attached"
		return result
	}

	labels := make([]string, 0, len(devices))
	for _, d := range devices {
		labels = append(labels, d.Label)
	}
	result.Status = SeverityPass
	result.Message = fmt.Sprintf("found %d removable device(s)", len(devices))
	result.Details = map[string]any{"devices": labels}
	return result
}

// DefaultChecks returns the standard cardkeep check set. destRoot is
// the resolved destination root, or empty when configuration failed to
// load.
func DefaultChecks(configPath, destRoot string) []Check {
	return []Check{
		NewConfigCheck(configPath),
		NewDestinationCheck(destRoot),
		NewScannerCheck(device.New()),
	}
}
