// Package host answers questions about the machine glimpse runs on.
package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupported means the platform does not expose the requested value.
var ErrUnsupported = fmt.Errorf("not available on %s/%s", runtime.GOOS, runtime.GOARCH)

// counts is swapped out in tests.
var counts = platformCounts

// PhysicalCores returns the number of physical cores, hyper-threads excluded.
func PhysicalCores(ctx context.Context) (int, error) {
	return query(ctx, false)
}

// LogicalCores returns the number of logical CPUs (physical cores times
// threads per core).
func LogicalCores(ctx context.Context) (int, error) {
	return query(ctx, true)
}

func query(ctx context.Context, logical bool) (int, error) {
	n, err := counts(ctx, logical)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return 0, err
		}
		return 0, fmt.Errorf("cpu counts (logical=%t): %w", logical, err)
	}
	// gopsutil reports 0 rather than failing when the topology can't be read
	if n <= 0 {
		return 0, ErrUnsupported
	}
	return n, nil
}
