package gdb

import (
	"encoding/binary"
	"fmt"

	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// RegisterWindow is the fixed register subset exposed to the debugger:
// the upper address registers, the upper data registers, program counter,
// previous context information and status word. Windows are read as a
// batch, never partially.
type RegisterWindow struct {
	A10, A11, A12, A13, A14, A15         uint32
	D8, D9, D10, D11, D12, D13, D14, D15 uint32
	PC, PCXI, PSW                        uint32
}

// windowNames lists the window registers in wire order.
var windowNames = []string{
	"A10", "A11", "A12", "A13", "A14", "A15",
	"D8", "D9", "D10", "D11", "D12", "D13", "D14", "D15",
	"PC", "PCXI", "PSW",
}

// WindowSize is the RSP 'g' packet payload size for one window.
const WindowSize = 17 * 4

// ReadWindow reads the register window of one core.
//
// The state query before the group lookup is mandatory: on the supported
// firmware revisions the register-group handle is only refreshed as a side
// effect of a state query. The state result itself is discarded.
func ReadWindow(core mcd.Core) (*RegisterWindow, error) {
	_, _ = core.QueryState()

	groups, err := core.RegisterGroups()
	if err != nil {
		return nil, newError(KindRegisterAccess, "read register groups", NoCore, err)
	}
	if len(groups) == 0 {
		return nil, newError(KindRegisterAccess, "read register groups", NoCore,
			fmt.Errorf("no register groups reported"))
	}
	group := groups[0]

	w := &RegisterWindow{}
	for _, name := range windowNames {
		reg, ok := group.Register(name)
		if !ok {
			return nil, newError(KindRegisterAccess, "locate register "+name, NoCore,
				fmt.Errorf("register %s not present in group 0", name))
		}
		value, err := reg.Read()
		if err != nil {
			return nil, newError(KindRegisterAccess, "read register "+name, NoCore, err)
		}
		w.set(name, value)
	}
	return w, nil
}

// WriteWindow reserves the register write slot. It is intentionally not
// implemented and fails loudly instead of silently dropping the write.
func WriteWindow(core mcd.Core, w *RegisterWindow) error {
	return newError(KindUnsupported, "write register window", NoCore, nil)
}

func (w *RegisterWindow) set(name string, value uint32) {
	switch name {
	case "A10":
		w.A10 = value
	case "A11":
		w.A11 = value
	case "A12":
		w.A12 = value
	case "A13":
		w.A13 = value
	case "A14":
		w.A14 = value
	case "A15":
		w.A15 = value
	case "D8":
		w.D8 = value
	case "D9":
		w.D9 = value
	case "D10":
		w.D10 = value
	case "D11":
		w.D11 = value
	case "D12":
		w.D12 = value
	case "D13":
		w.D13 = value
	case "D14":
		w.D14 = value
	case "D15":
		w.D15 = value
	case "PC":
		w.PC = value
	case "PCXI":
		w.PCXI = value
	case "PSW":
		w.PSW = value
	}
}

func (w *RegisterWindow) get(name string) uint32 {
	switch name {
	case "A10":
		return w.A10
	case "A11":
		return w.A11
	case "A12":
		return w.A12
	case "A13":
		return w.A13
	case "A14":
		return w.A14
	case "A15":
		return w.A15
	case "D8":
		return w.D8
	case "D9":
		return w.D9
	case "D10":
		return w.D10
	case "D11":
		return w.D11
	case "D12":
		return w.D12
	case "D13":
		return w.D13
	case "D14":
		return w.D14
	case "D15":
		return w.D15
	case "PC":
		return w.PC
	case "PCXI":
		return w.PCXI
	case "PSW":
		return w.PSW
	}
	return 0
}

// Bytes encodes the window in wire order, each register little-endian.
func (w *RegisterWindow) Bytes() []byte {
	buf := make([]byte, 0, WindowSize)
	for _, name := range windowNames {
		buf = binary.LittleEndian.AppendUint32(buf, w.get(name))
	}
	return buf
}

// ParseWindow decodes a wire-order window payload.
func ParseWindow(data []byte) (*RegisterWindow, error) {
	if len(data) != WindowSize {
		return nil, newError(KindRegisterAccess, "parse register window", NoCore,
			fmt.Errorf("payload is %d bytes, want %d", len(data), WindowSize))
	}
	w := &RegisterWindow{}
	for i, name := range windowNames {
		w.set(name, binary.LittleEndian.Uint32(data[i*4:]))
	}
	return w, nil
}
