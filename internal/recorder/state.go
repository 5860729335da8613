package recorder

import (
	"fmt"
	"strings"
)

// State is the session lifecycle state
type State int

const (
	// StateIdle has no recording in progress
	StateIdle State = iota
	// StateActive has a capture handle open
	StateActive
	// StatePaused has a segment log but no open handle
	StatePaused
	// StateFinalizing is composing the output in the background
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cause tags why a session was paused. Only CauseCall accrues silence.
type Cause int

const (
	// CauseDefault covers app lifecycle and audio session interruptions
	CauseDefault Cause = iota
	// CauseCall is a phone call
	CauseCall
)

func (c Cause) String() string {
	switch c {
	case CauseDefault:
		return "default"
	case CauseCall:
		return "call"
	default:
		return fmt.Sprintf("Cause(%d)", int(c))
	}
}

// ParseCause parses "call" or "default" (the empty string is default)
func ParseCause(s string) (Cause, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return CauseDefault, nil
	case "call":
		return CauseCall, nil
	default:
		return CauseDefault, fmt.Errorf("unknown pause cause %q", s)
	}
}
