package record

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/tphakala/seamless-recorder/internal/recorder"
)

const consoleHelp = `Commands:
  pause            pause (no silence is added)
  resume, record   resume or start recording
  call, call-end   phone call began / ended
  bg, fg           app backgrounded / foregrounded
  int, int-end     audio session interruption began / ended
  status           show the session state
  stop             finish and save the recording`

// consoleSession is the part of the session the console drives
type consoleSession interface {
	Record() error
	Pause(cause recorder.Cause) error
	Status() recorder.Status
}

// Console reads line commands and applies them to the session. Interruption
// commands go through the signal channel like every other input.
type Console struct {
	session consoleSession
	signals chan<- recorder.Signal
	out     io.Writer
	stopped atomic.Bool
}

// Stopped reports whether a stop command was read
func (c *Console) Stopped() bool {
	return c.stopped.Load()
}

// Run reads commands from in until stop, EOF or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if done := c.Handle(ctx, scanner.Text()); done {
			return nil
		}
	}
	return scanner.Err()
}

// Handle applies one command line and reports whether the console is done
func (c *Console) Handle(ctx context.Context, line string) bool {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return false
	case "stop", "quit", "exit":
		c.stopped.Store(true)
		return true
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "status":
		st := c.session.Status()
		fmt.Fprintf(c.out, "state=%s segments=%d", st.State, st.Segments)
		if st.LastOutput != "" {
			fmt.Fprintf(c.out, " last=%s", st.LastOutput)
		}
		fmt.Fprintln(c.out)
	case "pause":
		c.report(c.session.Pause(recorder.CauseDefault))
	case "resume", "record":
		c.report(c.session.Record())
	default:
		sig, err := recorder.ParseSignal(cmd)
		if err != nil {
			fmt.Fprintf(c.out, "unknown command %q, type \"help\"\n", line)
			return false
		}
		select {
		case c.signals <- sig:
		case <-ctx.Done():
			return true
		}
	}
	return false
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}
