// Package mcdsim implements the mcd contract with an in-memory multi-core
// target. It exists so the server is runnable and testable end to end
// without vendor hardware: cores share a sparse memory, carry the TriCore
// general register window and honor instruction-address triggers.
//
// Import for side effect to register the "sim" driver:
//
//	import _ "github.com/tricore-tools/tricore-gdb/pkg/mcd/mcdsim"
package mcdsim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// ResetVector is where every simulated core starts executing.
const ResetVector = 0x8000_0000

// DefaultCoreCount matches the smaller AURIX parts.
const DefaultCoreCount = 3

func init() {
	mcd.RegisterDriver("sim", &Driver{Cores: DefaultCoreCount})
}

// Driver creates simulated systems.
type Driver struct {
	Cores int
}

func (d *Driver) ListDevices() ([]mcd.DeviceInfo, error) {
	return []mcd.DeviceInfo{
		{Index: 0, Description: fmt.Sprintf("simulated TriCore system (%d cores)", d.Cores)},
	}, nil
}

func (d *Driver) Connect(dev mcd.DeviceInfo) (mcd.System, error) {
	if dev.Index != 0 {
		return nil, fmt.Errorf("mcdsim: no device with index %d", dev.Index)
	}
	return New(d.Cores), nil
}

// System is a simulated multi-core target. All cores share one memory.
type System struct {
	mu     sync.Mutex
	mem    map[uint64]byte
	cores  []*Core
	closed bool
}

// New creates a simulated system with the given number of cores.
func New(coreCount int) *System {
	s := &System{mem: map[uint64]byte{}}
	for i := 0; i < coreCount; i++ {
		s.cores = append(s.cores, newCore(s, i))
	}
	return s
}

func (s *System) CoreCount() int { return len(s.cores) }

func (s *System) Core(index int) (mcd.Core, error) {
	if index < 0 || index >= len(s.cores) {
		return nil, fmt.Errorf("mcdsim: core index %d out of range", index)
	}
	return s.cores[index], nil
}

func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Core is one simulated execution unit.
type Core struct {
	sys   *System
	index int

	state mcd.CoreState
	regs  map[string]uint32

	// register group handles go stale on every state change and are
	// refreshed by a state query, mirroring the probe firmware quirk
	// the register access layer depends on.
	regsFresh bool

	pending []*Trigger
	live    map[uint64]*Trigger
}

var windowNames = []string{
	"A0", "A1", "A2", "A3", "A4", "A5", "A6", "A7",
	"A8", "A9", "A10", "A11", "A12", "A13", "A14", "A15",
	"D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7",
	"D8", "D9", "D10", "D11", "D12", "D13", "D14", "D15",
	"PC", "PCXI", "PSW",
}

func newCore(sys *System, index int) *Core {
	c := &Core{sys: sys, index: index, live: map[uint64]*Trigger{}}
	c.resetRegs()
	c.state = mcd.StateHalted
	return c
}

func (c *Core) resetRegs() {
	c.regs = make(map[string]uint32, len(windowNames))
	for _, name := range windowNames {
		c.regs[name] = 0
	}
	c.regs["PC"] = ResetVector
}

func (c *Core) Reset(halt bool) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.resetRegs()
	c.regsFresh = false
	if halt {
		c.state = mcd.StateHalted
	} else {
		c.state = mcd.StateRunning
	}
	return nil
}

// Run resumes the core. Execution is instantaneous: if a committed trigger
// lies at or beyond the current PC the core lands on it in debug state,
// otherwise it keeps running until stopped.
func (c *Core) Run() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.regsFresh = false
	pc := uint64(c.regs["PC"])
	if hit, ok := c.nextTrigger(pc); ok {
		c.regs["PC"] = uint32(hit)
		c.state = mcd.StateDebug
		return nil
	}
	c.state = mcd.StateRunning
	return nil
}

func (c *Core) nextTrigger(pc uint64) (uint64, bool) {
	addrs := make([]uint64, 0, len(c.live))
	for addr := range c.live {
		if addr >= pc {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return 0, false
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs[0], true
}

func (c *Core) Step() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.regsFresh = false
	// shortest TriCore instruction encoding
	c.regs["PC"] += 2
	c.state = mcd.StateDebug
	return nil
}

func (c *Core) Stop() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.regsFresh = false
	c.state = mcd.StateHalted
	return nil
}

func (c *Core) QueryState() (mcd.CoreInfo, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return mcd.CoreInfo{}, err
	}
	c.regsFresh = true
	return mcd.CoreInfo{State: c.state}, nil
}

func (c *Core) ReadBytes(addr uint64, n int) ([]byte, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = c.sys.mem[addr+uint64(i)]
	}
	return buf, nil
}

func (c *Core) Write(addr uint64, data []byte) error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	for i, b := range data {
		c.sys.mem[addr+uint64(i)] = b
	}
	return nil
}

func (c *Core) CreateTrigger(typ mcd.TriggerType, addr uint64, size uint64) (mcd.Trigger, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if typ != mcd.TriggerIP {
		return nil, fmt.Errorf("mcdsim: trigger type %d not supported", typ)
	}
	t := &Trigger{core: c, addr: addr, size: size}
	c.pending = append(c.pending, t)
	return t, nil
}

func (c *Core) DownloadTriggers() error {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, t := range c.pending {
		c.live[t.addr] = t
	}
	c.pending = nil
	return nil
}

func (c *Core) RegisterGroups() ([]mcd.RegisterGroup, error) {
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return []mcd.RegisterGroup{&registerGroup{core: c}}, nil
}

func (c *Core) checkOpen() error {
	if c.sys.closed {
		return fmt.Errorf("mcdsim: core %d used after session close", c.index)
	}
	return nil
}

// Trigger is a simulated instruction-address trigger.
type Trigger struct {
	core *Core
	addr uint64
	size uint64
}

func (t *Trigger) Remove() error {
	t.core.sys.mu.Lock()
	defer t.core.sys.mu.Unlock()
	if err := t.core.checkOpen(); err != nil {
		return err
	}
	delete(t.core.live, t.addr)
	for i, p := range t.core.pending {
		if p == t {
			t.core.pending = append(t.core.pending[:i], t.core.pending[i+1:]...)
			break
		}
	}
	return nil
}

type registerGroup struct {
	core *Core
}

func (g *registerGroup) Register(name string) (mcd.Register, bool) {
	if _, ok := g.core.regs[name]; !ok {
		return nil, false
	}
	return &register{core: g.core, name: name}, true
}

type register struct {
	core *Core
	name string
}

func (r *register) Name() string { return r.name }

func (r *register) Read() (uint32, error) {
	r.core.sys.mu.Lock()
	defer r.core.sys.mu.Unlock()
	if err := r.core.checkOpen(); err != nil {
		return 0, err
	}
	if !r.core.regsFresh {
		return 0, fmt.Errorf("mcdsim: register cache of core %d is stale, query the core state first", r.core.index)
	}
	return r.core.regs[r.name], nil
}

func (r *register) Write(value uint32) error {
	r.core.sys.mu.Lock()
	defer r.core.sys.mu.Unlock()
	if err := r.core.checkOpen(); err != nil {
		return err
	}
	r.core.regs[r.name] = value
	return nil
}
