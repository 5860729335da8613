package recorder

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Signal is an interruption event delivered to the session
type Signal int

const (
	SignalCallBegan Signal = iota + 1
	SignalCallEnded
	SignalAppBackgrounded
	SignalAppForegrounded
	SignalSessionInterruptionBegan
	SignalSessionInterruptionEnded
)

var signalNames = map[Signal]string{
	SignalCallBegan:                "call_began",
	SignalCallEnded:                "call_ended",
	SignalAppBackgrounded:          "app_backgrounded",
	SignalAppForegrounded:          "app_foregrounded",
	SignalSessionInterruptionBegan: "session_interruption_began",
	SignalSessionInterruptionEnded: "session_interruption_ended",
}

// signalAliases are the short forms accepted on the console, MQTT and HTTP
var signalAliases = map[string]Signal{
	"call":               SignalCallBegan,
	"call_begin":         SignalCallBegan,
	"call_end":           SignalCallEnded,
	"hangup":             SignalCallEnded,
	"bg":                 SignalAppBackgrounded,
	"background":         SignalAppBackgrounded,
	"fg":                 SignalAppForegrounded,
	"foreground":         SignalAppForegrounded,
	"int":                SignalSessionInterruptionBegan,
	"interruption":       SignalSessionInterruptionBegan,
	"interruption_began": SignalSessionInterruptionBegan,
	"int_end":            SignalSessionInterruptionEnded,
	"interruption_ended": SignalSessionInterruptionEnded,
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// IsBegin reports whether the signal starts an interruption
func (s Signal) IsBegin() bool {
	switch s {
	case SignalCallBegan, SignalAppBackgrounded, SignalSessionInterruptionBegan:
		return true
	default:
		return false
	}
}

// Cause returns the pause cause the signal maps to
func (s Signal) Cause() Cause {
	if s == SignalCallBegan || s == SignalCallEnded {
		return CauseCall
	}
	return CauseDefault
}

// ParseSignal accepts snake_case names, their kebab or camel forms and short aliases
func ParseSignal(name string) (Signal, error) {
	key := normalizeSignalName(name)
	for sig, n := range signalNames {
		if n == key {
			return sig, nil
		}
	}
	if sig, ok := signalAliases[key]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}

func normalizeSignalName(name string) string {
	var b strings.Builder
	var prev rune
	for _, r := range strings.TrimSpace(name) {
		out := r
		switch {
		case r == '-' || r == ' ' || r == '.':
			out = '_'
		case unicode.IsUpper(r):
			// CallBegan -> call_began
			if unicode.IsLower(prev) {
				b.WriteByte('_')
			}
			out = unicode.ToLower(r)
		}
		b.WriteRune(out)
		prev = r
	}
	return b.String()
}

// HandleSignal applies sig to the session. Begin signals pause with the
// signal's cause. End signals resume only a session paused by the same
// cause, so the first interruption owns the pause. Failures never reach
// the caller: they are logged and drop the session to Idle.
func (s *Session) HandleSignal(sig Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("signal received", fieldSignal(sig), fieldState(s.state))

	var err error
	operation := "signal_pause"
	if sig.IsBegin() {
		err = s.pauseLocked(sig.Cause())
	} else {
		operation = "signal_resume"
		if s.state != StatePaused || s.cause != sig.Cause() {
			s.log.Debug("resume signal ignored",
				fieldSignal(sig), fieldState(s.state), fieldCause(s.cause))
			return
		}
		err = s.recordLocked()
	}

	if err != nil {
		s.failLocked(operation, err)
	}
}

// Run delivers signals to the session until ctx is done or signals is closed
func (s *Session) Run(ctx context.Context, signals <-chan Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			s.HandleSignal(sig)
		}
	}
}
