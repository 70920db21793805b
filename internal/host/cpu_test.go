package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubCounts(t *testing.T, fn func(ctx context.Context, logical bool) (int, error)) {
	t.Helper()
	orig := counts
	counts = fn
	t.Cleanup(func() { counts = orig })
}

func TestQuery(t *testing.T) {
	boom := errors.New("read /proc/cpuinfo: permission denied")
	tests := []struct {
		name        string
		n           int
		err         error
		want        int
		unsupported bool
		wantErr     error
	}{
		{name: "count returned", n: 8, want: 8},
		{name: "zero is unsupported", n: 0, unsupported: true},
		{name: "negative is unsupported", n: -1, unsupported: true},
		{name: "unsupported passes through", err: ErrUnsupported, unsupported: true},
		{name: "other errors are wrapped", err: boom, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubCounts(t, func(context.Context, bool) (int, error) { return tt.n, tt.err })

			for _, get := range []func(context.Context) (int, error){PhysicalCores, LogicalCores} {
				got, err := get(context.Background())
				switch {
				case tt.unsupported:
					require.ErrorIs(t, err, ErrUnsupported)
				case tt.wantErr != nil:
					require.ErrorIs(t, err, tt.wantErr)
					require.NotErrorIs(t, err, ErrUnsupported)
				default:
					require.NoError(t, err)
					require.Equal(t, tt.want, got)
				}
			}
		})
	}
}

func TestQuery_PassesLogicalFlag(t *testing.T) {
	stubCounts(t, func(_ context.Context, logical bool) (int, error) {
		if logical {
			return 8, nil
		}
		return 4, nil
	})

	phys, err := PhysicalCores(context.Background())
	require.NoError(t, err)
	logical, err := LogicalCores(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, phys)
	require.Equal(t, 8, logical)
}

func TestLogicalCores_RealHost(t *testing.T) {
	n, err := LogicalCores(context.Background())
	if errors.Is(err, ErrUnsupported) {
		t.Skip("logical cpu count not available on this platform")
	}
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	phys, err := PhysicalCores(context.Background())
	if err != nil {
		t.Logf("physical cores unavailable: %v", err)
		return
	}
	require.GreaterOrEqual(t, n, phys)
}
