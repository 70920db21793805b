package snmp

import (
	"context"
	"errors"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/require"
	"github.com/veertuinc/glimpse/internal/config"
)

type fakeWalker struct {
	connectErr error
	walkErr    error
	pdus       []gosnmp.SnmpPDU
	bulk       bool
	walked     string
	closed     bool
}

func (f *fakeWalker) Connect() error { return f.connectErr }

func (f *fakeWalker) WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error) {
	f.walked = rootOid
	return f.pdus, f.walkErr
}

func (f *fakeWalker) BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error) {
	f.bulk = true
	f.walked = rootOid
	return f.pdus, f.walkErr
}

func (f *fakeWalker) Close() error {
	f.closed = true
	return nil
}

func testConfig(version string) config.SNMP {
	return config.SNMP{
		Target:         "192.0.2.1",
		Port:           161,
		Community:      "public",
		Version:        version,
		TimeoutSeconds: 2,
		Retries:        1,
	}
}

func newTestClient(t *testing.T, version string, w *fakeWalker) *Client {
	t.Helper()
	c, err := NewClient(testConfig(version))
	require.NoError(t, err)
	c.newSession = func(context.Context) walker { return w }
	return c
}

func processorRows(n int) []gosnmp.SnmpPDU {
	pdus := make([]gosnmp.SnmpPDU, 0, n)
	for i := 0; i < n; i++ {
		pdus = append(pdus, gosnmp.SnmpPDU{
			Name:  ".1.3.6.1.2.1.25.3.3.1.2." + string(rune('0'+i)),
			Type:  gosnmp.Integer,
			Value: 5,
		})
	}
	return pdus
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.SNMP)
		wantErr string
	}{
		{name: "v2c"},
		{name: "empty version is v2c", mutate: func(c *config.SNMP) { c.Version = "" }},
		{name: "v1", mutate: func(c *config.SNMP) { c.Version = "1" }},
		{name: "zero retries", mutate: func(c *config.SNMP) { c.Retries = 0 }},
		{name: "highest port", mutate: func(c *config.SNMP) { c.Port = 65535 }},
		{name: "missing target", mutate: func(c *config.SNMP) { c.Target = "" }, wantErr: "target"},
		{name: "v3 unsupported", mutate: func(c *config.SNMP) { c.Version = "3" }, wantErr: "version"},
		{name: "port above range", mutate: func(c *config.SNMP) { c.Port = 70000 }, wantErr: "port 70000"},
		{name: "zero port", mutate: func(c *config.SNMP) { c.Port = 0 }, wantErr: "port 0"},
		{name: "negative port", mutate: func(c *config.SNMP) { c.Port = -1 }, wantErr: "port -1"},
		{name: "zero timeout", mutate: func(c *config.SNMP) { c.TimeoutSeconds = 0 }, wantErr: "timeout_seconds"},
		{name: "negative retries", mutate: func(c *config.SNMP) { c.Retries = -1 }, wantErr: "retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("2c")
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := NewClient(cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLogicalCores_CountsProcessorRows(t *testing.T) {
	w := &fakeWalker{pdus: processorRows(8)}
	c := newTestClient(t, "2c", w)

	n, err := c.LogicalCores(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.True(t, w.bulk)
	require.Equal(t, HrProcessorLoad, w.walked)
	require.True(t, w.closed)
}

func TestLogicalCores_V1UsesWalk(t *testing.T) {
	w := &fakeWalker{pdus: processorRows(2)}
	c := newTestClient(t, "1", w)

	n, err := c.LogicalCores(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.False(t, w.bulk)
}

func TestLogicalCores_SkipsExceptions(t *testing.T) {
	pdus := append(processorRows(4),
		gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.25.3.3.1.2.9", Type: gosnmp.NoSuchInstance},
		gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.25.3.3.1.3.1", Type: gosnmp.Integer},
	)
	c := newTestClient(t, "2c", &fakeWalker{pdus: pdus})

	n, err := c.LogicalCores(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestLogicalCores_Errors(t *testing.T) {
	refused := errors.New("connection refused")
	timeout := errors.New("request timeout")

	tests := []struct {
		name    string
		walker  *fakeWalker
		wantErr error
	}{
		{name: "connect fails", walker: &fakeWalker{connectErr: refused}, wantErr: refused},
		{name: "walk fails", walker: &fakeWalker{walkErr: timeout}, wantErr: timeout},
		{name: "no rows", walker: &fakeWalker{}, wantErr: ErrNoProcessors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "2c", tt.walker)
			_, err := c.LogicalCores(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTarget(t *testing.T) {
	c, err := NewClient(testConfig("2c"))
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1:161", c.Target())

	cfg := testConfig("2c")
	cfg.Port = 1161
	c, err = NewClient(cfg)
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1:1161", c.Target())
}
