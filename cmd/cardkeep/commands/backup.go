package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cardkeep/internal/cli/prompt"
	"github.com/thoreinstein/cardkeep/internal/config"
	"github.com/thoreinstein/cardkeep/internal/device"
	"github.com/thoreinstein/cardkeep/internal/engine"
	"github.com/thoreinstein/cardkeep/internal/errors"
	"github.com/thoreinstein/cardkeep/internal/logging"
	"github.com/thoreinstein/cardkeep/internal/paths"
	"github.com/thoreinstein/cardkeep/internal/report"
	"github.com/thoreinstein/cardkeep/internal/session"
)

var (
	backupDevice   string
	backupDest     string
	backupYes      bool
	backupNoReport bool
)

func init() {
	backupCmd.Flags().StringVarP(&backupDevice, "device", "d", "",
		"device to back up, by label or mount path")
	backupCmd.Flags().StringVar(&backupDest, "dest", "",
		"destination parent directory (default: destination_root from config)")
	backupCmd.Flags().BoolVarP(&backupYes, "yes", "y", false,
		"skip the confirmation prompt")
	backupCmd.Flags().BoolVar(&backupNoReport, "no-report", false,
		"skip writing report files into the backup folder")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up a removable device with verification",
	Long: `Copy every file from a removable device into a fresh timestamped
folder under the destination root, verifying each copy against its
source with a SHA-256 digest.

The device is chosen interactively unless --device is given. Existing
backups are never overwritten: each run creates a new
<device>_backup_<timestamp> folder. A report pair
(backup_report.txt, backup_report.json) is written into the folder.

Pressing Ctrl+C cancels the backup after the file currently being
copied; the partial backup folder is safe to delete and the backup can
be retried from scratch.`,
	Example: `  # Interactive backup
  cardkeep backup

  # Back up a specific device without prompting
  cardkeep backup --device SDCARD --yes

  # Back up into a specific directory
  cardkeep backup --device /media/me/SDCARD --dest /mnt/archive

  See Also: cardkeep devices, cardkeep doctor`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runBackupWithIO(ctx, os.Stdin, os.Stdout)
}

func runBackupWithIO(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := logging.FromContext(ctx)

	devices, err := listRemovable(ctx)
	if err != nil {
		return errors.NewSystemError(errors.Wrap(err, "scanning devices"),
			"device scanning may not be supported on this platform")
	}
	if len(devices) == 0 {
		fmt.Fprintln(out, "No removable devices found. Insert a card or drive and try again.")
		return nil
	}

	dev, err := resolveDevice(devices, backupDevice, in, out)
	if err != nil {
		if errors.Is(err, prompt.ErrSelectionCancelled) {
			fmt.Fprintln(out, "Backup cancelled.")
			return nil
		}
		return err
	}

	destParent, err := resolveDestParent(cfg, backupDest)
	if err != nil {
		return err
	}
	if err := paths.EnsureDir(destParent, paths.BackupDirPerm); err != nil {
		return errors.NewSystemError(errors.Wrap(err, "creating destination root"),
			"check permissions on "+destParent)
	}

	fmt.Fprintf(out, "Backing up %s (%s) to %s\n", dev.Label, dev.MountPath, destParent)
	if !backupYes {
		ok, err := confirm(in, out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Backup cancelled.")
			return nil
		}
	}

	preserveTimes := cfg == nil || cfg.PreserveTimestamps
	eng := engine.New(
		engine.WithPreserveTimes(preserveTimes),
		engine.WithLogger(logger),
	)
	sess, err := session.Begin(*dev, destParent,
		session.WithEngine(eng),
		session.WithLogger(logger),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrDestinationConflict):
			return errors.NewUserError(err,
				"a backup folder with this timestamp already exists; wait a second and retry")
		case errors.Is(err, session.ErrDestinationUnwritable):
			return errors.NewSystemError(err, "check permissions on "+destParent)
		}
		return err
	}

	printer := newProgressPrinter(out)
	sum, runErr := sess.Run(ctx, printer.observe)
	printer.finish()

	if runErr != nil {
		// Session-level fault. The partial summary still gets a report so
		// completed work is accounted for.
		writeReports(sess, logger, out)
		return errors.NewSystemError(runErr,
			"the device may have been unplugged; the partial backup is safe to delete")
	}

	writeReports(sess, logger, out)
	printSummary(out, sum)

	if sum.State == session.StateCancelled {
		fmt.Fprintln(out, "Backup cancelled. The partial backup is safe to delete; rerun to start over.")
		return nil
	}
	if sum.FilesMismatched > 0 || sum.FilesFailed > 0 || sum.FilesSkipped > 0 {
		problems := sum.FilesMismatched + sum.FilesFailed + sum.FilesSkipped
		return errors.NewExitErrorWithSuggestion(
			errors.Newf("%d of %d file(s) did not verify", problems, sum.FilesPlanned),
			errors.ExitSystem,
			"see "+report.TextFileName+" in the backup folder for details")
	}

	color.New(color.FgGreen).Fprintln(out, "Backup verified.")
	return nil
}

// resolveDevice picks the device to back up: an explicit --device value
// matches on label or mount path; otherwise a single attached device is
// used as-is, a TTY gets the fuzzy picker, and anything else gets the
// numbered prompt.
func resolveDevice(devices []device.Device, key string, in io.Reader, out io.Writer) (*device.Device, error) {
	if key != "" {
		d, err := device.Find(devices, key)
		if err != nil {
			return nil, errors.NewUserError(err,
				"run 'cardkeep devices' to list attached devices")
		}
		return &d, nil
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	if logging.IsTTY(os.Stdin) {
		idx, err := fuzzyfinder.Find(devices, func(i int) string {
			return fmt.Sprintf("%s (%s, %s)", devices[i].Label, devices[i].MountPath, sizeColumn(devices[i]))
		})
		if err != nil {
			if errors.Is(err, fuzzyfinder.ErrAbort) {
				return nil, prompt.ErrSelectionCancelled
			}
			return nil, errors.Wrap(err, "selecting device")
		}
		return &devices[idx], nil
	}

	return prompt.NewSelectorWithIO(in, out).SelectDevice(devices)
}

// resolveDestParent picks the destination parent directory: the --dest
// flag wins over the configured destination root.
func resolveDestParent(cfg *config.Config, flag string) (string, error) {
	if flag != "" {
		return paths.ExpandHome(flag)
	}
	if cfg == nil {
		return "", errors.NewUserError(errors.New("no destination configured"),
			"pass --dest or set destination_root in the config file")
	}
	root, err := cfg.ResolvedDestinationRoot()
	if err != nil {
		return "", errors.Wrap(err, "resolving destination root")
	}
	if root == "" {
		return "", errors.NewUserError(errors.New("no destination configured"),
			"pass --dest or set destination_root in the config file")
	}
	return root, nil
}

// confirm asks for a yes/no answer, defaulting to no. EOF counts as no.
func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Proceed? [y/N]: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "reading confirmation")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// writeReports renders the report pair into the backup folder. Report
// failures are logged, never fatal: the copied data matters more than
// the paperwork.
func writeReports(sess *session.Session, logger *slog.Logger, out io.Writer) {
	if backupNoReport {
		return
	}
	sum := sess.Summary()
	if sum == nil {
		return
	}
	textPath, _, err := report.Write(sess.Dir(), sum, sess.Results())
	if err != nil {
		logger.Warn("writing reports failed", "error", err)
		return
	}
	fmt.Fprintf(out, "Report written to %s\n", textPath)
}

// progressPrinter renders per-file progress: a rewriting status line on
// a TTY, one line per problem otherwise.
type progressPrinter struct {
	out   io.Writer
	tty   bool
	wrote bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, tty: logging.IsTTY(out)}
}

func (p *progressPrinter) observe(r engine.FileResult, prog session.Progress) {
	if p.tty {
		fmt.Fprintf(p.out, "\r\033[K[%d/%d] %s  %s",
			prog.FilesDone, prog.FilesTotal,
			humanize.IBytes(uint64(prog.BytesDone)),
			truncate(prog.CurrentPath, 48))
		p.wrote = true
		return
	}
	if r.Problem() {
		fmt.Fprintf(p.out, "[%s] %s\n", r.Status, r.RelPath)
	}
}

func (p *progressPrinter) finish() {
	if p.tty && p.wrote {
		fmt.Fprintln(p.out)
	}
}

// printSummary writes the end-of-run summary table.
func printSummary(w io.Writer, sum *session.Summary) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)

	fmt.Fprintln(w)
	bold.Fprintln(w, "Backup summary")
	fmt.Fprintf(w, "  Device:      %s\n", sum.DeviceLabel)
	fmt.Fprintf(w, "  Destination: %s\n", sum.DestinationDir)
	fmt.Fprintf(w, "  Duration:    %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second))
	fmt.Fprintf(w, "  Files:       %d planned, %d verified\n", sum.FilesPlanned, sum.FilesVerified)
	if sum.FilesMismatched > 0 {
		warn.Fprintf(w, "  Mismatched:  %d\n", sum.FilesMismatched)
	}
	if sum.FilesFailed > 0 {
		warn.Fprintf(w, "  Failed:      %d\n", sum.FilesFailed)
	}
	if sum.FilesSkipped > 0 {
		warn.Fprintf(w, "  Skipped:     %d (unsafe paths)\n", sum.FilesSkipped)
	}
	if sum.FilesAborted > 0 {
		warn.Fprintf(w, "  Aborted:     %d\n", sum.FilesAborted)
	}
	fmt.Fprintf(w, "  Copied:      %s\n", humanize.IBytes(uint64(sum.BytesCopied)))
}
