package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veertuinc/glimpse/internal/config"
)

type namedPlugin struct{ name string }

func (p namedPlugin) Name() string { return p.name }
func (p namedPlugin) FieldsDescription() map[string]FieldDescription { return nil }
func (p namedPlugin) DisplayCurse() bool { return true }
func (p namedPlugin) Configure(context.Context, *config.Config) error { return nil }
func (p namedPlugin) Update(context.Context, config.InputMethod) (Stats, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	Register(namedPlugin{name: "zeta"})
	Register(namedPlugin{name: "alpha"})
	t.Cleanup(func() {
		Unregister("zeta")
		Unregister("alpha")
	})

	p, ok := Get("alpha")
	require.True(t, ok)
	require.Equal(t, "alpha", p.Name())

	_, ok = Get("missing")
	require.False(t, ok)

	names := Names()
	require.Contains(t, names, "alpha")
	require.Contains(t, names, "zeta")
	require.Less(t, indexOf(names, "alpha"), indexOf(names, "zeta"))

	listed := List()
	delete(listed, "alpha")
	_, ok = Get("alpha")
	require.True(t, ok, "List must return a copy")
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
