//go:build !linux && !darwin && !windows

package device

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
)

type stubScanner struct{}

func newScanner() Scanner {
	return stubScanner{}
}

func (stubScanner) ListRemovable(ctx context.Context) ([]Device, error) {
	return nil, errors.Newf("removable device scanning is not supported on %s", runtime.GOOS)
}
