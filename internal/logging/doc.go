// Package logging provides structured logging for the cardkeep CLI using slog.
//
// The package supports both text and JSON output formats, configurable log
// levels (including a trace level below debug), and helpers for testing.
// All loggers are based on the standard library's [log/slog] package.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		Output: os.Stderr,
//	})
//	logger.Info("starting", "version", "1.0.0")
//
// # Testing
//
// For tests, use [ForTest] to capture log output via the testing framework:
//
//	func TestSomething(t *testing.T) {
//		logger := logging.ForTest(t)
//		// logs appear in test output on failure
//	}
//
// # Quiet Mode
//
// Use [NewDiscard] when log output should be suppressed entirely:
//
//	logger := logging.NewDiscard()
//
// # Context
//
// Commands store the configured logger on the context with [NewContext]
// and retrieve it with [FromContext]:
//
//	ctx := logging.NewContext(cmd.Context(), logger)
//	logger := logging.FromContext(ctx)
package logging
