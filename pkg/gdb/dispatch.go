package gdb

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// RunEventKind classifies the outcome of one WaitForEvent invocation.
type RunEventKind int

const (
	// EventIncomingData means debugger bytes are pending on the
	// connection. Input always wins over hardware polling.
	EventIncomingData RunEventKind = iota
	// EventCoreStopped means a core was found halted or in debug state.
	EventCoreStopped
	// EventCoreFault means a core reported a state outside the documented
	// set, or the state query itself failed. Never treated as Running.
	EventCoreFault
)

// RunEvent is the reportable outcome of the dispatch loop.
type RunEvent struct {
	Kind  RunEventKind
	Core  CoreIndex
	State mcd.CoreState
	Err   error
}

// DefaultPollInterval bounds the hardware polling rate so an idle loop does
// not saturate the probe link.
const DefaultPollInterval = 2 * time.Millisecond

// Dispatcher is the blocking wait primitive of the coordinator: it
// multiplexes pending debugger input against polling the cores for a
// stop-worthy state. Single-threaded and cooperative; the calling
// goroutine blocks until something is reportable.
type Dispatcher struct {
	reg          *CoreRegistry
	pollInterval time.Duration
	log          *logrus.Entry
}

// NewDispatcher creates a dispatcher over the registry's cores.
// A pollInterval of zero selects the default.
func NewDispatcher(reg *CoreRegistry, pollInterval time.Duration, log *logrus.Entry) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Dispatcher{reg: reg, pollInterval: pollInterval, log: log}
}

// WaitForEvent blocks until debugger input is pending or a core reports a
// stop-worthy condition.
//
// Each iteration first runs the cheap input check: pending input returns
// immediately without touching hardware so protocol traffic (e.g. a user
// interrupt) is never starved by polling. Otherwise every core is polled
// in ascending index order and the first core found halted or in debug
// state short-circuits the scan. Running cores are skipped. A Custom or
// Unknown state, or a failing state query, is reported as a core fault.
func (d *Dispatcher) WaitForEvent(pollInput func() bool) RunEvent {
	for {
		if pollInput() {
			return RunEvent{Kind: EventIncomingData, Core: NoCore}
		}
		for i := 0; i < d.reg.Count(); i++ {
			ix := CoreIndex(i)
			info, err := d.reg.Core(ix).QueryState()
			if err != nil {
				return RunEvent{
					Kind: EventCoreFault,
					Core: ix,
					Err:  newError(KindSession, "query core state", ix, err),
				}
			}
			switch info.State {
			case mcd.StateDebug, mcd.StateHalted:
				d.log.WithFields(logrus.Fields{
					"core":  ix,
					"state": info.State,
				}).Debug("core stopped")
				return RunEvent{Kind: EventCoreStopped, Core: ix, State: info.State}
			case mcd.StateRunning:
				// keep scanning
			default:
				return RunEvent{
					Kind:  EventCoreFault,
					Core:  ix,
					State: info.State,
					Err: newError(KindSession, "query core state", ix,
						fmt.Errorf("undocumented core state %q", info.State)),
				}
			}
		}
		time.Sleep(d.pollInterval)
	}
}
