package monitor

import (
	"fmt"
	"strings"
)

// Health is the state of one share's state machine.
//
//	Unknown ──▶ Healthy ◀──▶ Unhealthy ──▶ Remounting ──▶ {Healthy, Unhealthy}
//	   └────────────────────────────────────▲
type Health int

const (
	Unknown Health = iota
	Healthy
	Unhealthy
	// Remounting doubles as the per-share mutual exclusion gate: while a
	// share is Remounting no other remount of it may start.
	Remounting
)

var healthNames = []string{"Unknown", "Healthy", "Unhealthy", "Remounting"}

func (h Health) String() string {
	if h >= 0 && int(h) < len(healthNames) {
		return healthNames[h]
	}
	return fmt.Sprintf("Health(%d)", int(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Health) UnmarshalText(b []byte) error {
	for i, name := range healthNames {
		if strings.EqualFold(name, string(b)) {
			*h = Health(i)
			return nil
		}
	}
	return fmt.Errorf("unknown health %q", string(b))
}
