// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/thoreinstein/cardkeep/internal/device"
	"github.com/thoreinstein/cardkeep/internal/errors"
)

// Sentinel errors for device selection.
var (
	ErrNoDevices          = errors.New("no devices to select from")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// Selector handles interactive device selection prompts.
type Selector struct {
	reader io.Reader
	writer io.Writer
}

// NewSelector creates a new Selector using stdin and stdout.
func NewSelector() *Selector {
	return &Selector{
		reader: os.Stdin,
		writer: os.Stdout,
	}
}

// NewSelectorWithIO creates a Selector with custom reader and writer for testing.
func NewSelectorWithIO(r io.Reader, w io.Writer) *Selector {
	return &Selector{
		reader: r,
		writer: w,
	}
}

// SelectDevice prompts the user to choose one of the scanned devices.
//
// Returns:
//   - ErrNoDevices if the list is empty
//   - The device if only one exists (auto-selects without prompting)
//   - The selected device based on user input (empty input picks the first)
//   - ErrInvalidSelection if the selection is out of range
//   - ErrSelectionCancelled if input is EOF (e.g., Ctrl+D)
func (s *Selector) SelectDevice(devices []device.Device) (*device.Device, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	// Auto-select if only one device
	if len(devices) == 1 {
		return &devices[0], nil
	}

	// Display selection prompt
	fmt.Fprintf(s.writer, "Multiple removable devices found:\n")
	for i, d := range devices {
		fmt.Fprintf(s.writer, "  [%d] %s (%s, %s)\n", i+1, d.Label, d.MountPath, describeSize(d))
	}
	fmt.Fprintf(s.writer, "Select [1]: ")

	// Read user input
	reader := bufio.NewReader(s.reader)
	input, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "reading selection")
	}

	input = strings.TrimSpace(input)

	// Default to first option if empty
	if input == "" {
		return &devices[0], nil
	}

	// Parse selection number
	selection, err := strconv.Atoi(input)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSelection, "%q is not a number", input)
	}

	// Validate range (1-indexed)
	if selection < 1 || selection > len(devices) {
		return nil, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", selection, len(devices))
	}

	return &devices[selection-1], nil
}

// describeSize renders a device's capacity, or "size unknown" when the
// scanner could not determine it.
func describeSize(d device.Device) string {
	if d.TotalBytes == 0 {
		return "size unknown"
	}
	return humanize.IBytes(d.TotalBytes)
}
