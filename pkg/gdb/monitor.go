package gdb

import (
	"fmt"
	"io"
)

// HandleMonitor serves the free-text monitor channel ("monitor <cmd>" on
// the debugger side). Replies are written to out. Runs between protocol
// packets, so it must never block the event loop.
func (t *Target) HandleMonitor(cmd string, out io.Writer) {
	switch cmd {
	case "":
		fmt.Fprintln(out, "Sorry, didn't catch that. Try `monitor ping`!")
	case "ping":
		fmt.Fprintln(out, "pong!")
	case "cores":
		for i := 0; i < t.registry.Count(); i++ {
			ix := CoreIndex(i)
			state, err := t.CoreState(ix)
			if err != nil {
				fmt.Fprintf(out, "core %d (thread %d): state query failed: %v\n", ix, ix.ThreadID(), err)
				continue
			}
			fmt.Fprintf(out, "core %d (thread %d): %s\n", ix, ix.ThreadID(), state)
		}
	case "breakpoints":
		bps := t.breakpoints.List()
		if len(bps) == 0 {
			fmt.Fprintln(out, "no breakpoints installed")
			return
		}
		for _, bp := range bps {
			fmt.Fprintf(out, "breakpoint[%d] addr:%#x, triggers:%d\n", bp.ID, bp.Addr, len(bp.triggers))
		}
	default:
		fmt.Fprintf(out, "I don't know how to handle '%s'\n", cmd)
	}
}
