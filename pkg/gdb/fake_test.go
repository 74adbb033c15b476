package gdb

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fakeSystem is a scriptable mcd.System for coordinator tests: every
// hardware call is recorded and any call can be made to fail.
type fakeSystem struct {
	cores  []*fakeCore
	closed bool
}

func newFakeSystem(coreCount int) *fakeSystem {
	s := &fakeSystem{}
	for i := 0; i < coreCount; i++ {
		s.cores = append(s.cores, newFakeCore(i))
	}
	return s
}

func (s *fakeSystem) CoreCount() int { return len(s.cores) }

func (s *fakeSystem) Core(index int) (mcd.Core, error) {
	if index < 0 || index >= len(s.cores) {
		return nil, fmt.Errorf("no core %d", index)
	}
	return s.cores[index], nil
}

func (s *fakeSystem) Close() error {
	s.closed = true
	return nil
}

type fakeCore struct {
	index int

	// scripted per-call states; once drained, state is used
	stateSeq []mcd.CoreState
	state    mcd.CoreState

	queryErr    error
	runErr      error
	stepErr     error
	stopErr     error
	resetErr    error
	createErr   error
	downloadErr error
	readMemErr  error
	writeMemErr error

	resetHalt bool
	calls     []string
	live      []*fakeTrigger

	regs        map[string]uint32
	missingRegs map[string]bool
	regReadErr  map[string]error

	mem map[uint64]byte
}

func newFakeCore(index int) *fakeCore {
	regs := map[string]uint32{}
	for _, name := range windowNames {
		regs[name] = 0
	}
	return &fakeCore{
		index:       index,
		state:       mcd.StateHalted,
		regs:        regs,
		missingRegs: map[string]bool{},
		regReadErr:  map[string]error{},
		mem:         map[uint64]byte{},
	}
}

func (c *fakeCore) record(op string) { c.calls = append(c.calls, op) }

func (c *fakeCore) countCalls(op string) int {
	n := 0
	for _, call := range c.calls {
		if call == op {
			n++
		}
	}
	return n
}

func (c *fakeCore) Reset(halt bool) error {
	c.record("reset")
	c.resetHalt = halt
	return c.resetErr
}

func (c *fakeCore) Run() error {
	c.record("run")
	if c.runErr != nil {
		return c.runErr
	}
	c.state = mcd.StateRunning
	return nil
}

func (c *fakeCore) Step() error {
	c.record("step")
	if c.stepErr != nil {
		return c.stepErr
	}
	c.state = mcd.StateDebug
	return nil
}

func (c *fakeCore) Stop() error {
	c.record("stop")
	if c.stopErr != nil {
		return c.stopErr
	}
	c.state = mcd.StateHalted
	return nil
}

func (c *fakeCore) QueryState() (mcd.CoreInfo, error) {
	c.record("query")
	if c.queryErr != nil {
		return mcd.CoreInfo{}, c.queryErr
	}
	if len(c.stateSeq) > 0 {
		next := c.stateSeq[0]
		c.stateSeq = c.stateSeq[1:]
		return mcd.CoreInfo{State: next}, nil
	}
	return mcd.CoreInfo{State: c.state}, nil
}

func (c *fakeCore) ReadBytes(addr uint64, n int) ([]byte, error) {
	c.record("read")
	if c.readMemErr != nil {
		return nil, c.readMemErr
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = c.mem[addr+uint64(i)]
	}
	return buf, nil
}

func (c *fakeCore) Write(addr uint64, data []byte) error {
	c.record("write")
	if c.writeMemErr != nil {
		return c.writeMemErr
	}
	for i, b := range data {
		c.mem[addr+uint64(i)] = b
	}
	return nil
}

func (c *fakeCore) CreateTrigger(typ mcd.TriggerType, addr uint64, size uint64) (mcd.Trigger, error) {
	c.record("create")
	if c.createErr != nil {
		return nil, c.createErr
	}
	t := &fakeTrigger{core: c, addr: addr}
	c.live = append(c.live, t)
	return t, nil
}

func (c *fakeCore) DownloadTriggers() error {
	c.record("download")
	return c.downloadErr
}

func (c *fakeCore) RegisterGroups() ([]mcd.RegisterGroup, error) {
	c.record("groups")
	return []mcd.RegisterGroup{&fakeGroup{core: c}}, nil
}

type fakeTrigger struct {
	core      *fakeCore
	addr      uint64
	removed   bool
	removeErr error
}

func (t *fakeTrigger) Remove() error {
	if t.removeErr != nil {
		return t.removeErr
	}
	t.removed = true
	for i, live := range t.core.live {
		if live == t {
			t.core.live = append(t.core.live[:i], t.core.live[i+1:]...)
			break
		}
	}
	return nil
}

type fakeGroup struct {
	core *fakeCore
}

func (g *fakeGroup) Register(name string) (mcd.Register, bool) {
	if g.core.missingRegs[name] {
		return nil, false
	}
	if _, ok := g.core.regs[name]; !ok {
		return nil, false
	}
	return &fakeRegister{core: g.core, name: name}, true
}

type fakeRegister struct {
	core *fakeCore
	name string
}

func (r *fakeRegister) Name() string { return r.name }

func (r *fakeRegister) Read() (uint32, error) {
	r.core.record("regread")
	if err := r.core.regReadErr[r.name]; err != nil {
		return 0, err
	}
	return r.core.regs[r.name], nil
}

func (r *fakeRegister) Write(value uint32) error {
	r.core.regs[r.name] = value
	return nil
}
