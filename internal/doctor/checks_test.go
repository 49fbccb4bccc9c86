package doctor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cardkeep/internal/device"
)

func TestConfigCheck_Name(t *testing.T) {
	c := NewConfigCheck("")
	if got := c.Name(); got != "config" {
		t.Errorf("Name() = %q, want %q", got, "config")
	}
	if got := c.Category(); got != "config" {
		t.Errorf("Category() = %q, want %q", got, "config")
	}
}

func TestConfigCheck_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("CARDKEEP_CONFIG_DIR", t.TempDir())

	result := NewConfigCheck("").Run()
	if result.Status != SeverityInfo {
		t.Fatalf("Status = %v, want SeverityInfo (message: %s)", result.Status, result.Message)
	}
}

func TestConfigCheck_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := "version: 1\ndestination_root: " + dir + "\npreserve_timestamps: true\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARDKEEP_CONFIG_DIR", dir)

	result := NewConfigCheck(cfgPath).Run()
	if result.Status != SeverityPass {
		t.Fatalf("Status = %v, want SeverityPass (message: %s)", result.Status, result.Message)
	}
	if result.Details["file"] != cfgPath {
		t.Errorf("Details[file] = %v, want %s", result.Details["file"], cfgPath)
	}
}

func TestConfigCheck_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARDKEEP_CONFIG_DIR", dir)

	result := NewConfigCheck(cfgPath).Run()
	if result.Status != SeverityError {
		t.Fatalf("Status = %v, want SeverityError (message: %s)", result.Status, result.Message)
	}
	if result.FixHint == "" {
		t.Error("expected a fix hint for an invalid config")
	}
}

func TestDestinationCheck_Writable(t *testing.T) {
	result := NewDestinationCheck(t.TempDir()).Run()
	if result.Status != SeverityPass {
		t.Fatalf("Status = %v, want SeverityPass (message: %s)", result.Status, result.Message)
	}
}

func TestDestinationCheck_Unconfigured(t *testing.T) {
	result := NewDestinationCheck("").Run()
	if result.Status != SeverityError {
		t.Fatalf("Status = %v, want SeverityError (message: %s)", result.Status, result.Message)
	}
}

func TestDestinationCheck_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := NewDestinationCheck(file).Run()
	if result.Status != SeverityError {
		t.Fatalf("Status = %v, want SeverityError (message: %s)", result.Status, result.Message)
	}
}

func TestDestinationCheck_NotWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory write permissions are not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}

	dir := filepath.Join(t.TempDir(), "readonly")
	if err := os.Mkdir(dir, 0o555); err != nil {
		t.Fatal(err)
	}

	result := NewDestinationCheck(dir).Run()
	if result.Status != SeverityError {
		t.Fatalf("Status = %v, want SeverityError (message: %s)", result.Status, result.Message)
	}
}

func TestDestinationCheck_MissingIsFixable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet")
	check := NewDestinationCheck(dir)

	result := check.Run()
	if result.Status != SeverityInfo {
		t.Fatalf("Status = %v, want SeverityInfo (message: %s)", result.Status, result.Message)
	}
	if !result.Fixable {
		t.Fatal("expected a missing destination to be fixable")
	}
	if !check.CanFix() {
		t.Fatal("CanFix() = false after detecting a missing root")
	}

	fixes := check.Fix()
	if len(fixes) != 1 {
		t.Fatalf("Fix() returned %d results, want 1", len(fixes))
	}
	if !fixes[0].Fixed {
		t.Fatalf("fix failed: %s (%v)", fixes[0].Description, fixes[0].Error)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("destination root was not created: %v", err)
	}

	// A second Run passes and there is nothing left to fix.
	if result := check.Run(); result.Status != SeverityPass {
		t.Errorf("Status after fix = %v, want SeverityPass", result.Status)
	}
	if check.Fix() != nil {
		t.Error("Fix() after successful fix should return nil")
	}
}

// fakeScanner returns a canned device list or error.
type fakeScanner struct {
	devices []device.Device
	err     error
}

func (s fakeScanner) ListRemovable(_ context.Context) ([]device.Device, error) {
	return s.devices, s.err
}

func TestScannerCheck_DevicesFound(t *testing.T) {
	check := NewScannerCheck(fakeScanner{devices: []device.Device{
		{Label: "SDCARD", MountPath: "/media/me/SDCARD", Removable: true},
	}})

	result := check.Run()
	if result.Status != SeverityPass {
		t.Fatalf("Status = %v, want SeverityPass (message: %s)", result.Status, result.Message)
	}
}

func TestScannerCheck_NoDevicesIsInfo(t *testing.T) {
	result := NewScannerCheck(fakeScanner{}).Run()
	if result.Status != SeverityInfo {
		t.Fatalf("Status = %v, want SeverityInfo (message: %s)", result.Status, result.Message)
	}
}

func TestScannerCheck_ScanError(t *testing.T) {
	result := NewScannerCheck(fakeScanner{err: errors.New("boom")}).Run()
	if result.Status != SeverityError {
		t.Fatalf("Status = %v, want SeverityError (message: %s)", result.Status, result.Message)
	}
}

func TestDefaultChecks(t *testing.T) {
	checks := DefaultChecks("", t.TempDir())
	if len(checks) != 3 {
		t.Fatalf("DefaultChecks returned %d checks, want 3", len(checks))
	}
}
