package commands

import (
	"context"
	"log/slog"
	"testing"

	"github.com/thoreinstein/cardkeep/internal/errors"
	"github.com/thoreinstein/cardkeep/internal/logging"
)

func TestSetupLogging_VerbosityFlags(t *testing.T) {
	// Save/Restore original state
	origVerbosity := verbosity
	defer func() { verbosity = origVerbosity }()

	tests := []struct {
		name      string
		verbosity int
		wantLevel slog.Level
	}{
		{"default (0)", 0, slog.LevelWarn},
		{"verbose (1)", 1, slog.LevelInfo},
		{"debug (2)", 2, slog.LevelDebug},
		{"trace (3)", 3, logging.LevelTrace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbosity = tt.verbosity
			if err := setupLogging(rootCmd); err != nil {
				t.Fatalf("setupLogging failed: %v", err)
			}

			logger := slog.Default()
			if !logger.Enabled(context.Background(), tt.wantLevel) {
				t.Errorf("expected level %v to be enabled", tt.wantLevel)
			}
			if tt.wantLevel > logging.LevelTrace {
				shouldBeDisabled := tt.wantLevel - 4
				if logger.Enabled(context.Background(), shouldBeDisabled) {
					t.Errorf("expected level %v to be disabled", shouldBeDisabled)
				}
			}
		})
	}
}

func TestSetupLogging_EnvVar(t *testing.T) {
	origVerbosity := verbosity
	defer func() { verbosity = origVerbosity }()
	verbosity = 0

	t.Setenv("CARDKEEP_DEBUG", "1")
	if err := setupLogging(rootCmd); err != nil {
		t.Fatalf("setupLogging failed: %v", err)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("CARDKEEP_DEBUG=1 should enable debug logging")
	}
}

func TestSetupLogging_QuietVerboseConflict(t *testing.T) {
	origVerbosity, origQuiet := verbosity, quiet
	defer func() { verbosity, quiet = origVerbosity, origQuiet }()

	verbosity = 1
	quiet = true

	err := setupLogging(rootCmd)
	if err == nil {
		t.Fatal("expected error for --quiet with --verbose")
	}

	var exitErr *errors.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T", err)
	}
	if exitErr.Code != errors.ExitUser {
		t.Errorf("exit code = %d, want %d", exitErr.Code, errors.ExitUser)
	}
}

func TestSetupLogging_Quiet(t *testing.T) {
	origVerbosity, origQuiet := verbosity, quiet
	defer func() { verbosity, quiet = origVerbosity, origQuiet }()

	verbosity = 0
	quiet = true

	if err := setupLogging(rootCmd); err != nil {
		t.Fatalf("setupLogging failed: %v", err)
	}
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("quiet mode should suppress warnings")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelError) {
		t.Error("quiet mode should keep errors")
	}
}

func TestCheckConfig_ExemptCommands(t *testing.T) {
	origErr := configLoadErr
	defer func() { configLoadErr = origErr }()
	configLoadErr = errors.New("config is broken")

	// doctor and config subcommands must stay reachable so users can
	// diagnose and repair the config file.
	for _, name := range []string{"doctor", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("finding %s command: %v", name, err)
		}
		if err := checkConfig(cmd); err != nil {
			t.Errorf("%s should be exempt from config errors, got: %v", name, err)
		}
	}

	initCmd, _, err := rootCmd.Find([]string{"config", "init"})
	if err != nil {
		t.Fatalf("finding config init command: %v", err)
	}
	if err := checkConfig(initCmd); err != nil {
		t.Errorf("config init should be exempt from config errors, got: %v", err)
	}

	backupCommand, _, err := rootCmd.Find([]string{"backup"})
	if err != nil {
		t.Fatalf("finding backup command: %v", err)
	}
	if err := checkConfig(backupCommand); err == nil {
		t.Error("backup should surface config load errors")
	}
}
