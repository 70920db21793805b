package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veertuinc/glimpse/internal/config"
	"github.com/veertuinc/glimpse/internal/plugins/plugin"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// PluginSnapshot is the latest refresh outcome of one plugin.
type PluginSnapshot struct {
	Name              string                             `json:"name"`
	Status            string                             `json:"status"`
	StatusSince       time.Time                          `json:"status_since"`
	LastSuccessfulRun time.Time                          `json:"last_successful_run"`
	LastFailedRun     time.Time                          `json:"last_failed_run"`
	LastError         string                             `json:"last_error,omitempty"`
	TotalRuns         int                                `json:"total_runs"`
	TotalFailures     int                                `json:"total_failures"`
	DisplayCurse      bool                               `json:"display_curse"`
	Fields            map[string]plugin.FieldDescription `json:"fields"`
	Stats             any                                `json:"stats"`
	Values            map[string]*float64                `json:"values"`
}

type MetricsData struct {
	CollectorID string                    `json:"collector_id"`
	InputMethod string                    `json:"input_method"`
	LastUpdate  time.Time                 `json:"last_update"`
	Plugins     map[string]PluginSnapshot `json:"plugins"`
}

// StoredSnapshot is what a collector persists per plugin for aggregators.
type StoredSnapshot struct {
	CollectorID string         `json:"collector_id"`
	InputMethod string         `json:"input_method"`
	Snapshot    PluginSnapshot `json:"snapshot"`
}

type MetricsDataLock struct {
	sync.RWMutex
	MetricsData
}

func NewMetricsDataLock(collectorID string, method config.InputMethod) *MetricsDataLock {
	return &MetricsDataLock{
		MetricsData: MetricsData{
			CollectorID: collectorID,
			InputMethod: method.String(),
			Plugins:     map[string]PluginSnapshot{},
		},
	}
}

// RecordSuccess replaces the plugin's stats with a fresh refresh result.
func (m *MetricsDataLock) RecordSuccess(p plugin.Plugin, stats plugin.Stats, at time.Time) PluginSnapshot {
	m.Lock()
	defer m.Unlock()
	snap := m.current(p)
	setStatus(&snap, StatusOK, at)
	snap.LastSuccessfulRun = at
	snap.LastError = ""
	snap.TotalRuns++
	snap.Stats = stats
	if stats != nil {
		snap.Values = stats.Values()
	} else {
		snap.Values = nil
	}
	m.Plugins[snap.Name] = snap
	m.LastUpdate = at
	return snap
}

// RecordFailure keeps the last good stats and marks the plugin failed.
func (m *MetricsDataLock) RecordFailure(p plugin.Plugin, err error, at time.Time) PluginSnapshot {
	m.Lock()
	defer m.Unlock()
	snap := m.current(p)
	setStatus(&snap, StatusFailed, at)
	snap.LastFailedRun = at
	snap.LastError = err.Error()
	snap.TotalRuns++
	snap.TotalFailures++
	m.Plugins[snap.Name] = snap
	m.LastUpdate = at
	return snap
}

func (m *MetricsDataLock) current(p plugin.Plugin) PluginSnapshot {
	snap, ok := m.Plugins[p.Name()]
	if !ok {
		snap = PluginSnapshot{Name: p.Name()}
	}
	snap.DisplayCurse = p.DisplayCurse()
	snap.Fields = p.FieldsDescription()
	return snap
}

// only move StatusSince when the status actually changes
func setStatus(snap *PluginSnapshot, status string, at time.Time) {
	if snap.Status != status {
		snap.Status = status
		snap.StatusSince = at
	}
}

func (m *MetricsDataLock) Snapshot(name string) (PluginSnapshot, bool) {
	m.RLock()
	defer m.RUnlock()
	snap, ok := m.Plugins[name]
	return snap, ok
}

// Copy returns the data with its own plugins map, safe to read without the lock.
func (m *MetricsDataLock) Copy() MetricsData {
	m.RLock()
	defer m.RUnlock()
	data := m.MetricsData
	data.Plugins = make(map[string]PluginSnapshot, len(m.Plugins))
	for name, snap := range m.Plugins {
		data.Plugins[name] = snap
	}
	return data
}

// Source yields the data sets a server exposes: one for a collector, one per
// collector for an aggregator.
type Source func(ctx context.Context) ([]MetricsData, error)

func LocalSource(data *MetricsDataLock) Source {
	return func(context.Context) ([]MetricsData, error) {
		if data == nil {
			return nil, fmt.Errorf("no metrics data")
		}
		return []MetricsData{data.Copy()}, nil
	}
}
