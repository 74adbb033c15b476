// Package gdb implements the multi-core debug coordinator: it maps
// debugger thread ids to physical cores, tracks per-core resume intent,
// mirrors software breakpoints onto every core and multiplexes debugger
// input against hardware state polling.
//
// The coordinator is single-threaded and cooperative. It is driven
// entirely by the protocol session's blocking calls; the only suspension
// point is the dispatcher poll loop.
package gdb

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// Options tunes a Target.
type Options struct {
	// PollInterval bounds the dispatcher's hardware polling rate.
	// Zero selects the default.
	PollInterval time.Duration
	// Logger receives the coordinator's structured logs. Nil selects the
	// logrus standard logger.
	Logger *logrus.Logger
}

// Target is the debug coordinator for one probe session. It is constructed
// with, and exclusively owns, the system and all core handles for exactly
// that session's lifetime: no handle outlives Close.
type Target struct {
	sys mcd.System

	registry    *CoreRegistry
	resume      *ResumeTable
	breakpoints *BreakpointManager
	dispatcher  *Dispatcher

	log    *logrus.Entry
	closed bool
}

// NewTarget builds the coordinator over a connected system. Every core is
// reset and left halted so the debugger observes a quiescent target.
func NewTarget(sys mcd.System, opts Options) (*Target, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "target")

	registry, err := NewCoreRegistry(sys)
	if err != nil {
		return nil, err
	}
	log.WithField("cores", registry.Count()).Debug("detected cores")

	for i := 0; i < registry.Count(); i++ {
		ix := CoreIndex(i)
		if err := registry.Core(ix).Reset(true); err != nil {
			return nil, newError(KindSession, "reset core", ix, err)
		}
	}

	return &Target{
		sys:         sys,
		registry:    registry,
		resume:      NewResumeTable(registry.Count(), logger.WithField("component", "resume")),
		breakpoints: NewBreakpointManager(registry, logger.WithField("component", "breakpoints")),
		dispatcher:  NewDispatcher(registry, opts.PollInterval, logger.WithField("component", "dispatch")),
		log:         log,
	}, nil
}

// Close removes all breakpoints and releases the session. The core handles
// are invalid afterwards.
func (t *Target) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.breakpoints.RemoveAll()
	if cerr := t.sys.Close(); cerr != nil {
		err = errors.Join(err, newError(KindSession, "close session", NoCore, cerr))
	}
	return err
}

// Threads lists the advertised thread ids.
func (t *Target) Threads() []ThreadID { return t.registry.Threads() }

// ResolveThread maps a debugger thread id to its core index.
func (t *Target) ResolveThread(tid ThreadID) (CoreIndex, error) {
	return t.registry.Resolve(tid)
}

// ReadRegisters reads the register window of the core behind tid.
func (t *Target) ReadRegisters(tid ThreadID) (*RegisterWindow, error) {
	ix, err := t.registry.Resolve(tid)
	if err != nil {
		return nil, err
	}
	return ReadWindow(t.registry.Core(ix))
}

// WriteRegisters reserves the register write slot; it fails with an
// unsupported-operation error rather than silently dropping the write.
func (t *Target) WriteRegisters(tid ThreadID, w *RegisterWindow) error {
	ix, err := t.registry.Resolve(tid)
	if err != nil {
		return err
	}
	return WriteWindow(t.registry.Core(ix), w)
}

// ReadMemory reads n bytes at addr through the core behind tid. Failures
// are memory-access faults: non-fatal, the session continues.
func (t *Target) ReadMemory(tid ThreadID, addr uint32, n int) ([]byte, error) {
	ix, err := t.registry.Resolve(tid)
	if err != nil {
		return nil, err
	}
	data, err := t.registry.Core(ix).ReadBytes(uint64(addr), n)
	if err != nil {
		return nil, newError(KindMemoryAccess, "read memory", ix, err)
	}
	return data, nil
}

// WriteMemory writes data at addr through the core behind tid.
func (t *Target) WriteMemory(tid ThreadID, addr uint32, data []byte) error {
	ix, err := t.registry.Resolve(tid)
	if err != nil {
		return err
	}
	if err := t.registry.Core(ix).Write(uint64(addr), data); err != nil {
		return newError(KindMemoryAccess, "write memory", ix, err)
	}
	return nil
}

// SetResumeAction records the pending resume intent for one thread.
func (t *Target) SetResumeAction(tid ThreadID, action ResumeAction) error {
	ix, err := t.registry.Resolve(tid)
	if err != nil {
		return err
	}
	return t.resume.Set(ix, action)
}

// ClearResumeActions resets every slot to the given action. Distinct from
// Resume: applying does not clear the table.
func (t *Target) ClearResumeActions(action ResumeAction) {
	t.resume.ClearAllTo(action)
}

// ResumeAction reports the recorded intent for one core.
func (t *Target) ResumeAction(ix CoreIndex) ResumeAction { return t.resume.Get(ix) }

// Resume applies the resume-action table to the hardware, visiting cores
// in ascending order with per-core fault isolation.
func (t *Target) Resume() []CoreOutcome {
	return t.resume.Apply(t.registry)
}

// WaitForEvent blocks until debugger input is pending or a core stops.
func (t *Target) WaitForEvent(pollInput func() bool) RunEvent {
	return t.dispatcher.WaitForEvent(pollInput)
}

// StopAll halts every core, continuing past per-core failures. Used when
// the user interrupts a running target.
func (t *Target) StopAll() error {
	var errs []error
	for i := 0; i < t.registry.Count(); i++ {
		ix := CoreIndex(i)
		if err := t.registry.Core(ix).Stop(); err != nil {
			errs = append(errs, newError(KindSession, "stop core", ix, err))
		}
	}
	return errors.Join(errs...)
}

// InsertBreakpoint installs a software breakpoint on every core.
func (t *Target) InsertBreakpoint(addr uint32) (bool, error) {
	return t.breakpoints.Insert(addr)
}

// RemoveBreakpoint removes a software breakpoint from every core.
func (t *Target) RemoveBreakpoint(addr uint32) (bool, error) {
	return t.breakpoints.Remove(addr)
}

// Breakpoints lists the installed breakpoints ordered by address.
func (t *Target) Breakpoints() []*Breakpoint { return t.breakpoints.List() }

// CoreCount reports the fixed number of cores of this session.
func (t *Target) CoreCount() int { return t.registry.Count() }

// CoreState queries the current execution state of one core.
func (t *Target) CoreState(ix CoreIndex) (mcd.CoreState, error) {
	if ix < 0 || int(ix) >= t.registry.Count() {
		return mcd.StateUnknown, newError(KindInvalidCore, "query core state", ix, nil)
	}
	info, err := t.registry.Core(ix).QueryState()
	if err != nil {
		return mcd.StateUnknown, newError(KindSession, "query core state", ix, err)
	}
	return info.State, nil
}
