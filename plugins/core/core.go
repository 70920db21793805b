// Package core reports the number of physical and logical CPU cores of the
// monitored host.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veertuinc/glimpse/internal/config"
	"github.com/veertuinc/glimpse/internal/host"
	"github.com/veertuinc/glimpse/internal/plugins/plugin"
	"github.com/veertuinc/glimpse/internal/snmp"
)

const (
	FieldPhysical = "phys"
	FieldLogical  = "log"
)

// For testing purpose
var (
	physicalCores = host.PhysicalCores
	logicalCores  = host.LogicalCores
)

// CoreStats is one refresh result. A nil field is unknown on this host.
type CoreStats struct {
	Physical *uint64 `json:"phys"`
	Logical  *uint64 `json:"log"`
}

func (s CoreStats) Values() map[string]*float64 {
	return map[string]*float64{
		FieldPhysical: asFloat(s.Physical),
		FieldLogical:  asFloat(s.Logical),
	}
}

func asFloat(v *uint64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// RemoteSource counts logical processors on a remote host.
type RemoteSource interface {
	LogicalCores(ctx context.Context) (int, error)
}

// Probe collects CoreStats. The zero value is ready for local use; remote
// acquisition stays a no-op until a RemoteSource is set.
type Probe struct {
	mu     sync.RWMutex
	remote RemoteSource
}

func NewProbe() *Probe {
	return &Probe{}
}

func (p *Probe) SetRemote(r RemoteSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = r
}

func (p *Probe) FieldsDescription() map[string]plugin.FieldDescription {
	return map[string]plugin.FieldDescription{
		FieldPhysical: {
			Description: "Number of physical cores (hyper thread CPUs are excluded).",
			Unit:        "number",
		},
		FieldLogical: {
			Description: "Number of logical CPUs. A logical CPU is the number of physical cores " +
				"multiplied by the number of threads that can run on each core.",
			Unit: "number",
		},
	}
}

// DisplayCurse is false: the load panel shows the core counts.
func (p *Probe) DisplayCurse() bool {
	return false
}

// Refresh builds a fresh CoreStats using the given acquisition method.
func (p *Probe) Refresh(ctx context.Context, method config.InputMethod) (CoreStats, error) {
	switch method {
	case config.InputLocal:
		return refreshLocal(ctx)
	case config.InputSNMP:
		p.mu.RLock()
		remote := p.remote
		p.mu.RUnlock()
		if remote == nil {
			return CoreStats{}, nil
		}
		return refreshRemote(ctx, remote)
	default:
		return CoreStats{}, fmt.Errorf("%w: %q", config.ErrInvalidInputMethod, string(method))
	}
}

func refreshLocal(ctx context.Context) (CoreStats, error) {
	var stats CoreStats
	var err error
	if stats.Physical, err = count(ctx, physicalCores); err != nil {
		return CoreStats{}, fmt.Errorf("physical cores: %w", err)
	}
	if stats.Logical, err = count(ctx, logicalCores); err != nil {
		return CoreStats{}, fmt.Errorf("logical cores: %w", err)
	}
	return stats, nil
}

// HOST-RESOURCES-MIB lists processors without telling cores from threads, so
// only the logical count is known remotely.
func refreshRemote(ctx context.Context, remote RemoteSource) (CoreStats, error) {
	logical, err := count(ctx, remote.LogicalCores)
	// agents without HOST-RESOURCES-MIB have no processor table
	if errors.Is(err, snmp.ErrNoProcessors) {
		return CoreStats{}, nil
	}
	if err != nil {
		return CoreStats{}, fmt.Errorf("remote logical cores: %w", err)
	}
	return CoreStats{Logical: logical}, nil
}

// count maps an unsupported or empty answer to nil.
func count(ctx context.Context, query func(context.Context) (int, error)) (*uint64, error) {
	n, err := query(ctx)
	if errors.Is(err, host.ErrUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	v := uint64(n)
	return &v, nil
}
