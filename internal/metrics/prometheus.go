package metrics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fieldDesc = prometheus.NewDesc(
		"glimpse_plugin_field",
		"Latest known value of a plugin field.",
		[]string{"collector", "plugin", "field"}, nil,
	)
	upDesc = prometheus.NewDesc(
		"glimpse_plugin_up",
		"1 when the last refresh of the plugin succeeded.",
		[]string{"collector", "plugin"}, nil,
	)
	runsDesc = prometheus.NewDesc(
		"glimpse_plugin_runs_total",
		"Refreshes attempted since the collector started.",
		[]string{"collector", "plugin"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		"glimpse_plugin_failures_total",
		"Refreshes that failed since the collector started.",
		[]string{"collector", "plugin"}, nil,
	)
)

// collectTimeout bounds the source read of one scrape. prometheus.Collector
// gets no request context, so a client that disconnects does not cancel it.
var collectTimeout = 5 * time.Second

// collector turns a Source into Prometheus metrics on every scrape.
type collector struct {
	source Source
	logger *slog.Logger
}

func newCollector(source Source, logger *slog.Logger) *collector {
	return &collector{source: source, logger: logger}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- fieldDesc
	ch <- upDesc
	ch <- runsDesc
	ch <- failuresDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()
	sets, err := c.source(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "error reading metrics source", "error", err)
		return
	}
	for _, data := range sets {
		for _, snap := range sortedSnapshots(data) {
			up := 0.0
			if snap.Status == StatusOK {
				up = 1
			}
			ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, up, data.CollectorID, snap.Name)
			ch <- prometheus.MustNewConstMetric(runsDesc, prometheus.CounterValue, float64(snap.TotalRuns), data.CollectorID, snap.Name)
			ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(snap.TotalFailures), data.CollectorID, snap.Name)
			for field, value := range snap.Values {
				// unknown values are left out rather than exported as 0
				if value == nil {
					continue
				}
				ch <- prometheus.MustNewConstMetric(fieldDesc, prometheus.GaugeValue, *value, data.CollectorID, snap.Name, field)
			}
		}
	}
}

func sortedSnapshots(data MetricsData) []PluginSnapshot {
	names := make([]string, 0, len(data.Plugins))
	for name := range data.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	snaps := make([]PluginSnapshot, 0, len(names))
	for _, name := range names {
		snaps = append(snaps, data.Plugins[name])
	}
	return snaps
}
