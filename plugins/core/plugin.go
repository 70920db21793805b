package core

import (
	"context"
	"log/slog"

	"github.com/veertuinc/glimpse/internal/config"
	"github.com/veertuinc/glimpse/internal/logging"
	"github.com/veertuinc/glimpse/internal/plugins/plugin"
	"github.com/veertuinc/glimpse/internal/snmp"
)

// Name is the registry name of the core plugin.
const Name = "core"

// init automatically registers this plugin when the package is imported
func init() {
	plugin.Register(NewProbe())
}

// Name returns the plugin name
func (p *Probe) Name() string {
	return Name
}

// Configure wires the SNMP source when the collector runs in snmp mode with a
// target configured.
func (p *Probe) Configure(ctx context.Context, cfg *config.Config) error {
	if cfg.InputMethod != config.InputSNMP || cfg.SNMP.Target == "" {
		p.SetRemote(nil)
		return nil
	}
	client, err := snmp.NewClient(cfg.SNMP)
	if err != nil {
		return err
	}
	p.SetRemote(client)
	if logger, err := logging.GetLoggerFromContext(ctx); err == nil {
		logger.InfoContext(logging.AppendCtx(ctx, slog.String("plugin", Name)),
			"core counts will be read over snmp", "target", client.Target())
	}
	return nil
}

// Update executes a refresh for the plugin registry
func (p *Probe) Update(ctx context.Context, method config.InputMethod) (plugin.Stats, error) {
	stats, err := p.Refresh(ctx, method)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Ensure Probe implements the Plugin interface
var _ plugin.Plugin = (*Probe)(nil)
