package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veertuinc/glimpse/internal/config"
	"github.com/veertuinc/glimpse/internal/database"
	"github.com/veertuinc/glimpse/internal/logging"
	"github.com/veertuinc/glimpse/internal/metrics"
	"github.com/veertuinc/glimpse/internal/plugins/plugin"
)

// enabledPlugins returns the registered plugins the config leaves enabled,
// ordered by name.
func enabledPlugins(cfg *config.Config) []plugin.Plugin {
	var plugins []plugin.Plugin
	for _, name := range plugin.Names() {
		if cfg.PluginDisabled(name) {
			continue
		}
		p, ok := plugin.Get(name)
		if !ok {
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins
}

// ConfigurePlugins hands the loaded config to every enabled plugin once,
// before the first collection.
func ConfigurePlugins(ctx context.Context, cfg *config.Config) error {
	for _, p := range enabledPlugins(cfg) {
		if err := p.Configure(ctx, cfg); err != nil {
			return fmt.Errorf("configuring plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Collect refreshes every enabled plugin once. A failing plugin is recorded
// and logged without stopping the others. When a database is present in ctx
// each snapshot is also stored for aggregators.
func Collect(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	metricsData *metrics.MetricsDataLock,
) {
	// no database in ctx means local-only collection
	db, _ := database.GetDatabaseFromContext(ctx)
	for _, p := range enabledPlugins(cfg) {
		if ctx.Err() != nil {
			return
		}
		pluginCtx := logging.AppendCtx(ctx, slog.String("plugin", p.Name()))
		stats, err := p.Update(pluginCtx, cfg.InputMethod)
		var snap metrics.PluginSnapshot
		if err != nil {
			logger.ErrorContext(pluginCtx, "error refreshing plugin", "error", err)
			snap = metricsData.RecordFailure(p, err, time.Now())
		} else {
			snap = metricsData.RecordSuccess(p, stats, time.Now())
			if logging.IsDebugEnabled() {
				logger.DebugContext(pluginCtx, "refreshed plugin", slog.Any("stats", stats))
			}
		}
		if db == nil {
			continue
		}
		err = db.StoreSnapshot(pluginCtx, database.SnapshotKey(cfg.CollectorID, p.Name()), metrics.StoredSnapshot{
			CollectorID: cfg.CollectorID,
			InputMethod: cfg.InputMethod.String(),
			Snapshot:    snap,
		})
		if err != nil {
			logger.ErrorContext(pluginCtx, "error storing snapshot in database", "error", err)
		}
	}
}

// Loop collects every refresh_interval seconds until ctx is canceled, or just
// once when once is set.
func Loop(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	metricsData *metrics.MetricsDataLock,
	once bool,
) {
	interval := time.Duration(cfg.RefreshInterval) * time.Second
	for {
		Collect(ctx, logger, cfg, metricsData)
		if once {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

const cleanupTimeout = 5 * time.Second

// CleanupDatabase deletes the snapshots this collector stored so aggregators
// stop serving it. ctx is usually canceled by now, so the delete runs on its
// own timeout while keeping ctx's values.
func CleanupDatabase(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	db, err := database.GetDatabaseFromContext(ctx)
	if err != nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	removed, err := db.Cleanup(cleanupCtx, cfg.CollectorID)
	if err != nil {
		logger.ErrorContext(cleanupCtx, "error cleaning up database", "error", err)
		return
	}
	logger.DebugContext(cleanupCtx, "cleaned up database", "removed", removed)
}
