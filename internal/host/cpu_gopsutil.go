//go:build linux || darwin || windows || freebsd || openbsd || netbsd || dragonfly || solaris || aix

package host

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
)

func platformCounts(ctx context.Context, logical bool) (int, error) {
	return cpu.CountsWithContext(ctx, logical)
}
