package orchestration

import (
	"fmt"
	"strings"
	"time"
)

// MaxPersonas is how many personas a single debate can seat. Extra persona
// ids are ignored.
const MaxPersonas = 3

// DebateConfig describes one debate. The orchestrator keeps its own copy and
// never changes it.
type DebateConfig struct {
	Room                string
	Topic               string
	PersonaIDs          []string
	TurnDurationSeconds int
	TotalRounds         int
}

func (c DebateConfig) Validate() error {
	if strings.TrimSpace(c.Room) == "" {
		return fmt.Errorf("%w: room is required", ErrInvalidConfig)
	}
	if c.TurnDurationSeconds <= 0 {
		return fmt.Errorf("%w: turn duration must be positive, got %d", ErrInvalidConfig, c.TurnDurationSeconds)
	}
	if c.TotalRounds < 0 {
		return fmt.Errorf("%w: total rounds must not be negative, got %d", ErrInvalidConfig, c.TotalRounds)
	}
	return nil
}

func (c DebateConfig) TurnDuration() time.Duration {
	return time.Duration(c.TurnDurationSeconds) * time.Second
}

// normalized returns a copy with persona ids detached from the caller's slice
// and capped at MaxPersonas.
func (c DebateConfig) normalized() DebateConfig {
	ids := c.PersonaIDs
	if len(ids) > MaxPersonas {
		ids = ids[:MaxPersonas]
	}
	c.PersonaIDs = append([]string(nil), ids...)
	return c
}
