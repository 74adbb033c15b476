package gdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResumeFixture(t *testing.T, coreCount int) (*fakeSystem, *CoreRegistry, *ResumeTable) {
	t.Helper()
	sys := newFakeSystem(coreCount)
	reg, err := NewCoreRegistry(sys)
	require.NoError(t, err)
	return sys, reg, NewResumeTable(coreCount, testLog())
}

func TestResumeApplyStepsExactlyOnce(t *testing.T) {
	sys, reg, table := newResumeFixture(t, 3)

	require.NoError(t, table.Set(1, ActionStep))
	outcomes := table.Apply(reg)
	require.Len(t, outcomes, 3)

	// exactly one step call to core 1, nothing for the Unchanged cores
	assert.Equal(t, 0, sys.cores[0].countCalls("run")+sys.cores[0].countCalls("step"))
	assert.Equal(t, 1, sys.cores[1].countCalls("step"))
	assert.Equal(t, 0, sys.cores[1].countCalls("run"))
	assert.Equal(t, 0, sys.cores[2].countCalls("run")+sys.cores[2].countCalls("step"))

	for _, out := range outcomes {
		assert.NoError(t, out.Err)
	}
}

func TestResumeApplyFaultIsolation(t *testing.T) {
	sys, reg, table := newResumeFixture(t, 3)
	sys.cores[0].runErr = errors.New("core stuck")

	table.ClearAllTo(ActionRun)
	outcomes := table.Apply(reg)

	// the failure on core 0 is recorded but does not stop the sweep
	require.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, 1, sys.cores[1].countCalls("run"))
	assert.Equal(t, 1, sys.cores[2].countCalls("run"))
}

func TestResumeApplyAscendingOrder(t *testing.T) {
	_, reg, table := newResumeFixture(t, 3)
	table.ClearAllTo(ActionRun)

	var order []int
	outcomes := table.Apply(reg)
	for _, out := range outcomes {
		order = append(order, int(out.Core))
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestResumeApplyDoesNotReset(t *testing.T) {
	sys, reg, table := newResumeFixture(t, 2)

	require.NoError(t, table.Set(0, ActionStep))
	table.Apply(reg)
	table.Apply(reg)

	// no intervening clear: the same action is re-issued
	assert.Equal(t, 2, sys.cores[0].countCalls("step"))
	assert.Equal(t, ActionStep, table.Get(0))
}

func TestResumeClearAll(t *testing.T) {
	_, reg, table := newResumeFixture(t, 2)

	require.NoError(t, table.Set(0, ActionStep))
	require.NoError(t, table.Set(1, ActionRun))
	table.ClearAllTo(ActionUnchanged)

	assert.Equal(t, ActionUnchanged, table.Get(0))
	assert.Equal(t, ActionUnchanged, table.Get(1))

	outcomes := table.Apply(reg)
	for _, out := range outcomes {
		assert.Equal(t, ActionUnchanged, out.Action)
		assert.NoError(t, out.Err)
	}
}

func TestResumeSetOutOfRange(t *testing.T) {
	table := NewResumeTable(2, testLog())
	err := table.Set(5, ActionRun)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCore)
	err = table.Set(-1, ActionRun)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCore)
}
