package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/veertuinc/glimpse/internal/config"
)

// FieldDescription documents one field of a plugin's stats for
// self-describing export.
type FieldDescription struct {
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

// Stats is a single refresh result. Values maps field names to their value,
// nil when the value is unknown.
type Stats interface {
	Values() map[string]*float64
}

// Plugin represents a data-collection plugin run by the glimpse worker
type Plugin interface {
	// Name returns the unique name/identifier for this plugin
	Name() string

	// FieldsDescription describes every field Update can return
	FieldsDescription() map[string]FieldDescription

	// DisplayCurse is false when the UI should not render the plugin on its
	// own panel
	DisplayCurse() bool

	// Configure is called once with the loaded config before the first Update
	Configure(ctx context.Context, cfg *config.Config) error

	// Update refreshes the stats using the given acquisition method
	Update(ctx context.Context, method config.InputMethod) (Stats, error)
}

// Global registry for automatic plugin discovery
var (
	globalPluginRegistry = make(map[string]Plugin)
	registryMutex        = sync.RWMutex{}
)

// Register allows plugins to self-register during init()
func Register(p Plugin) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	globalPluginRegistry[p.Name()] = p
}

// Get retrieves a plugin by name from the global registry
func Get(name string) (Plugin, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	p, exists := globalPluginRegistry[name]
	return p, exists
}

// List returns all registered plugins
func List() map[string]Plugin {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	// Return a copy to prevent external modifications
	result := make(map[string]Plugin)
	for name, p := range globalPluginRegistry {
		result[name] = p
	}
	return result
}

// Names returns the registered plugin names in sorted order
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(globalPluginRegistry))
	for name := range globalPluginRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a plugin; used by tests that register fakes
func Unregister(name string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	delete(globalPluginRegistry, name)
}
