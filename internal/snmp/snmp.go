// Package snmp reads host stats from a remote agent over SNMP.
package snmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/veertuinc/glimpse/internal/config"
)

// HrProcessorLoad is the HOST-RESOURCES-MIB column with one row per logical
// processor.
const HrProcessorLoad = "1.3.6.1.2.1.25.3.3.1.2"

var ErrNoProcessors = errors.New("agent reported no processors")

type walker interface {
	Connect() error
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	Close() error
}

type session struct {
	*gosnmp.GoSNMP
}

func (s session) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

type Client struct {
	cfg        config.SNMP
	version    gosnmp.SnmpVersion
	newSession func(ctx context.Context) walker
}

// NewClient validates cfg. Port, timeout and retries are taken as given;
// config.Default supplies their defaults.
func NewClient(cfg config.SNMP) (*Client, error) {
	if cfg.Target == "" {
		return nil, errors.New("snmp target is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("snmp port %d out of range 1-65535", cfg.Port)
	}
	if cfg.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("snmp timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("snmp retries must not be negative, got %d", cfg.Retries)
	}
	version, err := parseVersion(cfg.Version)
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, version: version}
	c.newSession = c.session
	return c, nil
}

func parseVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(v) {
	case "1", "v1":
		return gosnmp.Version1, nil
	case "", "2c", "v2c":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported snmp version %q (use 1 or 2c)", v)
	}
}

func (c *Client) session(ctx context.Context) walker {
	return session{&gosnmp.GoSNMP{
		Target:             c.cfg.Target,
		Port:               uint16(c.cfg.Port),
		Community:          c.cfg.Community,
		Version:            c.version,
		Timeout:            time.Duration(c.cfg.TimeoutSeconds) * time.Second,
		Retries:            c.cfg.Retries,
		ExponentialTimeout: true,
		MaxOids:            gosnmp.MaxOids,
		Context:            ctx,
	}}
}

// Target returns host:port of the remote agent.
func (c *Client) Target() string {
	return fmt.Sprintf("%s:%d", c.cfg.Target, c.cfg.Port)
}

// LogicalCores walks hrProcessorLoad and counts the rows.
func (c *Client) LogicalCores(ctx context.Context) (int, error) {
	s := c.newSession(ctx)
	if err := s.Connect(); err != nil {
		return 0, fmt.Errorf("connect %s: %w", c.Target(), err)
	}
	defer s.Close()

	var pdus []gosnmp.SnmpPDU
	var err error
	if c.version == gosnmp.Version1 {
		pdus, err = s.WalkAll(HrProcessorLoad)
	} else {
		pdus, err = s.BulkWalkAll(HrProcessorLoad)
	}
	if err != nil {
		return 0, fmt.Errorf("walk %s on %s: %w", HrProcessorLoad, c.Target(), err)
	}

	n := countRows(pdus)
	if n == 0 {
		return 0, ErrNoProcessors
	}
	return n, nil
}

func countRows(pdus []gosnmp.SnmpPDU) int {
	prefix := "." + HrProcessorLoad + "."
	n := 0
	for _, pdu := range pdus {
		switch pdu.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
			continue
		}
		if strings.HasPrefix("."+strings.TrimPrefix(pdu.Name, "."), prefix) {
			n++
		}
	}
	return n
}
