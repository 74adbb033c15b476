// Package mcd defines the contract between the debug coordinator and the
// vendor probe-access layer. The names follow the multi-core debug (MCD)
// vocabulary used by hardware debug probes: a connected System exposes a
// fixed set of Cores, each core can carry hardware Triggers and publishes
// its registers in named groups.
//
// Implementations are registered as drivers, see driver.go.
package mcd

import "fmt"

// CoreState is the execution state a core reports on each state query.
// The coordinator only observes these values, it never owns them.
type CoreState int

const (
	// StateUnknown is reported by some firmware revisions while the core
	// transitions between states. It is not equivalent to Running.
	StateUnknown CoreState = iota
	// StateRunning means the core is executing instructions.
	StateRunning
	// StateHalted means the core is halted, e.g. after reset-and-halt.
	StateHalted
	// StateDebug means the core stopped on a debug event such as a trigger.
	StateDebug
	// StateCustom is a vendor-specific state outside the documented set.
	StateCustom
)

func (s CoreState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateDebug:
		return "debug"
	case StateCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// TriggerType selects the condition a hardware trigger fires on.
type TriggerType int

const (
	// TriggerIP fires when the instruction pointer matches the trigger range.
	TriggerIP TriggerType = iota
	// TriggerReadWrite fires on a data access within the trigger range.
	TriggerReadWrite
)

// CoreInfo is the result of a state query.
type CoreInfo struct {
	State CoreState
}

// Trigger is a live hardware trigger resource on one core. A trigger is only
// active after DownloadTriggers has committed it to the core.
type Trigger interface {
	// Remove frees the hardware trigger resource.
	Remove() error
}

// Register is a single named architectural register.
type Register interface {
	Name() string
	Read() (uint32, error)
	Write(value uint32) error
}

// RegisterGroup is a named set of registers. Group 0 holds the general
// purpose window on every supported device.
type RegisterGroup interface {
	// Register looks up a register by its architectural name, e.g. "PC".
	Register(name string) (Register, bool)
}

// Core is one physical execution unit of the connected system.
type Core interface {
	// Reset resets the core. With halt set, the core stays halted at the
	// reset vector instead of running.
	Reset(halt bool) error
	Run() error
	Step() error
	Stop() error
	// QueryState reports the current execution state. Beware: on several
	// firmware revisions this call also refreshes the register group
	// handles as a side effect.
	QueryState() (CoreInfo, error)
	ReadBytes(addr uint64, n int) ([]byte, error)
	Write(addr uint64, data []byte) error
	// CreateTrigger allocates a hardware trigger. The trigger is not live
	// until DownloadTriggers commits it.
	CreateTrigger(typ TriggerType, addr uint64, size uint64) (Trigger, error)
	// DownloadTriggers commits all pending trigger changes to the core.
	DownloadTriggers() error
	RegisterGroups() ([]RegisterGroup, error)
}

// System is one connected probe session. The core count is fixed for the
// lifetime of the session; core handles become invalid once the system is
// closed and must not be retained past Close.
type System interface {
	CoreCount() int
	Core(index int) (Core, error)
	Close() error
}

// DeviceInfo describes one attachable probe/device pair found during a scan.
type DeviceInfo struct {
	Index       int
	Description string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("device %d: %s", d.Index, d.Description)
}
