package gdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ResumeAction is the pending intent recorded for one core until the next
// dispatch.
type ResumeAction int

const (
	// ActionUnchanged leaves the core's run state exactly as the hardware
	// reports it.
	ActionUnchanged ResumeAction = iota
	// ActionRun resumes the core.
	ActionRun
	// ActionStep single-steps the core.
	ActionStep
)

func (a ResumeAction) String() string {
	switch a {
	case ActionRun:
		return "run"
	case ActionStep:
		return "step"
	default:
		return "unchanged"
	}
}

// CoreOutcome records what Apply did to one core.
type CoreOutcome struct {
	Core   CoreIndex
	Action ResumeAction
	Err    error
}

// ResumeTable holds one resume action per core. It is owned by the
// coordinator and passed by reference into the dispatch path, never
// ambient state.
//
// Apply does not reset the table: the protocol layer decides when to clear,
// so a repeated resume request with no intervening clear re-issues the same
// actions.
type ResumeTable struct {
	actions []ResumeAction
	log     *logrus.Entry
}

// NewResumeTable creates a table with every slot Unchanged.
func NewResumeTable(coreCount int, log *logrus.Entry) *ResumeTable {
	return &ResumeTable{
		actions: make([]ResumeAction, coreCount),
		log:     log,
	}
}

// Set records the action for one core.
func (t *ResumeTable) Set(ix CoreIndex, action ResumeAction) error {
	if ix < 0 || int(ix) >= len(t.actions) {
		return newError(KindInvalidCore, "set resume action", ix,
			fmt.Errorf("core index outside 0..%d", len(t.actions)-1))
	}
	t.actions[ix] = action
	return nil
}

// Get returns the recorded action for one core.
func (t *ResumeTable) Get(ix CoreIndex) ResumeAction {
	if ix < 0 || int(ix) >= len(t.actions) {
		return ActionUnchanged
	}
	return t.actions[ix]
}

// ClearAllTo sets every slot to the given action.
func (t *ResumeTable) ClearAllTo(action ResumeAction) {
	for i := range t.actions {
		t.actions[i] = action
	}
}

// Apply visits the cores in ascending index order and issues the hardware
// run/step call for every Run or Step slot. A failure on one core is
// recorded in its outcome but the sweep continues: one stuck core must not
// block debugging the others.
func (t *ResumeTable) Apply(reg *CoreRegistry) []CoreOutcome {
	outcomes := make([]CoreOutcome, 0, len(t.actions))
	for i, action := range t.actions {
		ix := CoreIndex(i)
		out := CoreOutcome{Core: ix, Action: action}
		switch action {
		case ActionRun:
			if err := reg.Core(ix).Run(); err != nil {
				out.Err = newError(KindSession, "run core", ix, err)
			} else {
				t.log.WithField("core", ix).Trace("resumed core")
			}
		case ActionStep:
			if err := reg.Core(ix).Step(); err != nil {
				out.Err = newError(KindSession, "step core", ix, err)
			} else {
				t.log.WithField("core", ix).Trace("stepped core")
			}
		case ActionUnchanged:
			// leave the core exactly as the hardware reports it
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
