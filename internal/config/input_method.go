package config

import (
	"errors"
	"fmt"
	"strings"
)

// InputMethod selects how plugins acquire their stats.
type InputMethod string

const (
	// InputLocal queries the host OS directly.
	InputLocal InputMethod = "local"
	// InputSNMP queries a monitored host over SNMP from a separate collector.
	InputSNMP InputMethod = "snmp"
)

var ErrInvalidInputMethod = errors.New("invalid input method")

// ParseInputMethod is case-insensitive and accepts "remote" as an alias for snmp.
func ParseInputMethod(s string) (InputMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(InputLocal):
		return InputLocal, nil
	case string(InputSNMP), "remote":
		return InputSNMP, nil
	default:
		return "", fmt.Errorf("%w: %q (use local or snmp)", ErrInvalidInputMethod, s)
	}
}

func (m InputMethod) String() string {
	return string(m)
}
