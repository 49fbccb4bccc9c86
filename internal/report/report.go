package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/thoreinstein/cardkeep/internal/engine"
	"github.com/thoreinstein/cardkeep/internal/session"
	"github.com/thoreinstein/cardkeep/pkg/fileutil"
)

// Report file names, created inside the backup folder.
const (
	TextFileName = "backup_report.txt"
	JSONFileName = "backup_report.json"
)

const timeLayout = "2006-01-02 15:04:05"

// jsonReport is the backup_report.json document.
type jsonReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Summary     *session.Summary    `json:"summary"`
	Results     []engine.FileResult `json:"results"`
}

// Write renders both report files into dir and returns their paths.
// The text report carries the summary and the problem list; the JSON
// report additionally carries every per-file result.
func Write(dir string, sum *session.Summary, results []engine.FileResult) (textPath, jsonPath string, err error) {
	if sum == nil {
		return "", "", errors.New("nil summary")
	}

	textPath = filepath.Join(dir, TextFileName)
	if err := fileutil.AtomicWriteFile(textPath, renderText(sum), 0o644); err != nil {
		return "", "", errors.Wrap(err, "writing text report")
	}

	jsonPath = filepath.Join(dir, JSONFileName)
	payload := jsonReport{
		GeneratedAt: time.Now().UTC(),
		Summary:     sum,
		Results:     results,
	}
	if err := fileutil.AtomicWriteJSON(jsonPath, payload); err != nil {
		return "", "", errors.Wrap(err, "writing JSON report")
	}

	return textPath, jsonPath, nil
}

func renderText(sum *session.Summary) []byte {
	var b strings.Builder
	rule := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 50)

	fmt.Fprintf(&b, "%s\n", rule)
	b.WriteString("CARDKEEP BACKUP REPORT\n")
	fmt.Fprintf(&b, "%s\n\n", rule)

	b.WriteString("BACKUP INFORMATION\n")
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "Device: %s\n", sum.DeviceLabel)
	fmt.Fprintf(&b, "Source Path: %s\n", sum.SourcePath)
	fmt.Fprintf(&b, "Destination Path: %s\n", sum.DestinationDir)
	fmt.Fprintf(&b, "Start Time: %s\n", sum.StartedAt.Format(timeLayout))
	fmt.Fprintf(&b, "End Time: %s\n", sum.FinishedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Duration: %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Status: %s\n\n", strings.ToUpper(string(sum.State)))

	b.WriteString("BACKUP STATISTICS\n")
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "Files Planned: %d\n", sum.FilesPlanned)
	fmt.Fprintf(&b, "Files Verified: %d\n", sum.FilesVerified)
	fmt.Fprintf(&b, "Files Mismatched: %d\n", sum.FilesMismatched)
	fmt.Fprintf(&b, "Files Failed: %d\n", sum.FilesFailed)
	fmt.Fprintf(&b, "Files Skipped: %d\n", sum.FilesSkipped)
	fmt.Fprintf(&b, "Files Aborted: %d\n", sum.FilesAborted)
	fmt.Fprintf(&b, "Total Data Copied: %s\n\n", humanize.IBytes(uint64(sum.BytesCopied)))

	if len(sum.Problems) > 0 {
		b.WriteString("PROBLEMS\n")
		fmt.Fprintf(&b, "%s\n", sep)
		for _, p := range sum.Problems {
			writeProblem(&b, p)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Report generated by cardkeep at %s\n", time.Now().Format(timeLayout))

	return []byte(b.String())
}

func writeProblem(b *strings.Builder, r engine.FileResult) {
	switch {
	case r.Status == engine.StatusCopiedMismatch:
		fmt.Fprintf(b, "[%s] %s: source %s != destination %s\n",
			r.Status, r.RelPath, shortDigest(r.SourceDigest), shortDigest(r.DestDigest))
	case r.Detail != "":
		fmt.Fprintf(b, "[%s] %s: %s\n", r.Status, r.RelPath, r.Detail)
	default:
		fmt.Fprintf(b, "[%s] %s\n", r.Status, r.RelPath)
	}
}

// shortDigest trims a hex digest to a recognizable prefix.
func shortDigest(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
