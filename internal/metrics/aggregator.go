package metrics

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/veertuinc/glimpse/internal/database"
)

// AggregatorSource rebuilds one MetricsData per collector from the snapshots
// collectors persisted to the database. Undecodable entries are logged and
// skipped.
func AggregatorSource(db *database.Database, logger *slog.Logger) Source {
	return func(ctx context.Context) ([]MetricsData, error) {
		raw, err := db.LoadSnapshots(ctx, "*")
		if err != nil {
			return nil, err
		}
		byCollector := make(map[string]*MetricsData)
		var order []string
		for key, value := range raw {
			var stored StoredSnapshot
			if err := json.Unmarshal(value, &stored); err != nil {
				logger.ErrorContext(ctx, "error unmarshalling metrics data", "key", key, "error", err)
				continue
			}
			data, ok := byCollector[stored.CollectorID]
			if !ok {
				data = &MetricsData{
					CollectorID: stored.CollectorID,
					InputMethod: stored.InputMethod,
					Plugins:     map[string]PluginSnapshot{},
				}
				byCollector[stored.CollectorID] = data
				order = append(order, stored.CollectorID)
			}
			data.Plugins[stored.Snapshot.Name] = stored.Snapshot
			if stored.Snapshot.LastSuccessfulRun.After(data.LastUpdate) {
				data.LastUpdate = stored.Snapshot.LastSuccessfulRun
			}
			if stored.Snapshot.LastFailedRun.After(data.LastUpdate) {
				data.LastUpdate = stored.Snapshot.LastFailedRun
			}
		}
		sets := make([]MetricsData, 0, len(order))
		for _, id := range order {
			sets = append(sets, *byCollector[id])
		}
		return sets, nil
	}
}
