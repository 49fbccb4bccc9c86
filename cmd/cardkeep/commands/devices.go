package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cardkeep/internal/device"
	"github.com/thoreinstein/cardkeep/internal/errors"
)

var devicesJSON bool

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false,
		"output devices as JSON")
	rootCmd.AddCommand(devicesCmd)
}

// listRemovable performs one device scan. Tests replace it to avoid
// touching real hardware.
var listRemovable = func(ctx context.Context) ([]device.Device, error) {
	return device.New().ListRemovable(ctx)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List removable storage devices",
	Long: `Scan for currently mounted removable storage devices.

Each scan is live: devices appearing or disappearing between runs are
reflected immediately. The system volume is never listed. Finding no
devices is a normal state, not an error.`,
	Example: `  # List devices as a table
  cardkeep devices

  # List devices as JSON
  cardkeep devices --json

  See Also: cardkeep backup`,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, _ []string) error {
	return runDevicesWithWriter(cmd.Context(), os.Stdout)
}

func runDevicesWithWriter(ctx context.Context, w io.Writer) error {
	devices, err := listRemovable(ctx)
	if err != nil {
		return errors.NewSystemError(errors.Wrap(err, "scanning devices"),
			"device scanning may not be supported on this platform")
	}

	if devicesJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if devices == nil {
			devices = []device.Device{}
		}
		return errors.Wrap(enc.Encode(devices), "encoding JSON")
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No removable devices found.")
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", bold("LABEL"), bold("MOUNT"), bold("SIZE"), bold("FILESYSTEM"))
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Label, d.MountPath, sizeColumn(d), fsColumn(d))
	}
	return errors.Wrap(tw.Flush(), "writing device table")
}

func sizeColumn(d device.Device) string {
	if d.TotalBytes == 0 {
		return "-"
	}
	return humanize.IBytes(d.TotalBytes)
}

func fsColumn(d device.Device) string {
	if d.Filesystem == "" {
		return "-"
	}
	return d.Filesystem
}
