//go:build !linux && !darwin && !windows && !freebsd && !openbsd && !netbsd && !dragonfly && !solaris && !aix

package host

import (
	"context"
)

func platformCounts(ctx context.Context, logical bool) (int, error) {
	return 0, ErrUnsupported
}
