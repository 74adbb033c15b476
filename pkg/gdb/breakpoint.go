package gdb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
	"go.uber.org/atomic"
)

var bpSeqNo = atomic.NewUint64(0)

// breakpointKind is the fixed access width of an instruction-address
// trigger on this architecture.
const breakpointKind = 4

// Breakpoint is one software breakpoint, mirrored onto every core: while
// installed it holds exactly one live trigger handle per core.
type Breakpoint struct {
	ID       uint64
	Addr     uint32
	triggers []mcd.Trigger
}

// BreakpointManager maps breakpoint addresses to their per-core trigger
// sets. A breakpoint is either active on all cores or not installed at all;
// the map never holds a partial breakpoint.
type BreakpointManager struct {
	reg         *CoreRegistry
	breakpoints map[uint32]*Breakpoint
	log         *logrus.Entry
}

// NewBreakpointManager creates an empty manager over the registry's cores.
func NewBreakpointManager(reg *CoreRegistry, log *logrus.Entry) *BreakpointManager {
	return &BreakpointManager{
		reg:         reg,
		breakpoints: map[uint32]*Breakpoint{},
		log:         log,
	}
}

// Insert installs an instruction-address breakpoint on every core.
// Re-inserting an installed address is idempotent and succeeds without
// creating new triggers. On the first per-core failure every trigger
// already created for this address is rolled back and the map is left
// untouched.
func (m *BreakpointManager) Insert(addr uint32) (bool, error) {
	if _, ok := m.breakpoints[addr]; ok {
		m.log.WithField("addr", fmt.Sprintf("%#x", addr)).Debug("breakpoint already installed")
		return true, nil
	}

	bp := &Breakpoint{
		ID:       bpSeqNo.Add(1),
		Addr:     addr,
		triggers: make([]mcd.Trigger, 0, m.reg.Count()),
	}

	for i := 0; i < m.reg.Count(); i++ {
		ix := CoreIndex(i)
		core := m.reg.Core(ix)

		trig, err := core.CreateTrigger(mcd.TriggerIP, uint64(addr), breakpointKind)
		if err != nil {
			m.rollback(bp, addr)
			return false, newError(KindBreakpoint, "create trigger", ix, err)
		}
		// the trigger is not live until the core commits it
		if err := core.DownloadTriggers(); err != nil {
			_ = trig.Remove()
			m.rollback(bp, addr)
			return false, newError(KindBreakpoint, "download triggers", ix, err)
		}
		bp.triggers = append(bp.triggers, trig)
	}

	m.breakpoints[addr] = bp
	m.log.WithFields(logrus.Fields{
		"addr": fmt.Sprintf("%#x", addr),
		"id":   bp.ID,
	}).Debug("breakpoint installed on all cores")
	return true, nil
}

// rollback undoes the triggers created so far for a failed insert.
func (m *BreakpointManager) rollback(bp *Breakpoint, addr uint32) {
	for i, trig := range bp.triggers {
		if err := trig.Remove(); err != nil {
			m.log.WithFields(logrus.Fields{
				"addr": fmt.Sprintf("%#x", addr),
				"core": i,
			}).WithError(err).Warn("rollback of partial breakpoint failed")
		}
	}
	bp.triggers = nil
}

// Remove uninstalls the breakpoint at addr from every core. A never
// installed address reports (false, nil). A removal failure on one core is
// surfaced but removal continues for the remaining cores, and the map entry
// is dropped either way so no stale handles are retained.
func (m *BreakpointManager) Remove(addr uint32) (bool, error) {
	bp, ok := m.breakpoints[addr]
	if !ok {
		return false, nil
	}
	delete(m.breakpoints, addr)

	var errs []error
	for i, trig := range bp.triggers {
		if err := trig.Remove(); err != nil {
			errs = append(errs, newError(KindBreakpoint, "remove trigger", CoreIndex(i), err))
		}
	}
	if len(errs) > 0 {
		return true, errors.Join(errs...)
	}
	m.log.WithField("addr", fmt.Sprintf("%#x", addr)).Debug("breakpoint removed")
	return true, nil
}

// RemoveAll uninstalls every breakpoint, used at session teardown.
func (m *BreakpointManager) RemoveAll() error {
	var errs []error
	for _, bp := range m.List() {
		if _, err := m.Remove(bp.Addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the installed breakpoints ordered by address.
func (m *BreakpointManager) List() []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(m.breakpoints))
	for _, bp := range m.breakpoints {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Addr < bps[j].Addr })
	return bps
}

// TriggerCount reports how many live triggers are held for addr.
func (m *BreakpointManager) TriggerCount(addr uint32) int {
	bp, ok := m.breakpoints[addr]
	if !ok {
		return 0
	}
	return len(bp.triggers)
}
