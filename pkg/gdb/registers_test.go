package gdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWindowValues(t *testing.T) {
	core := newFakeCore(0)
	core.regs["PC"] = 0x8000_0040
	core.regs["A10"] = 0x7000_1000
	core.regs["D15"] = 0xdead_beef
	core.regs["PSW"] = 0x0000_0b80

	w, err := ReadWindow(core)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8000_0040), w.PC)
	assert.Equal(t, uint32(0x7000_1000), w.A10)
	assert.Equal(t, uint32(0xdead_beef), w.D15)
	assert.Equal(t, uint32(0x0000_0b80), w.PSW)
}

func TestReadWindowQueriesStateFirst(t *testing.T) {
	core := newFakeCore(0)

	_, err := ReadWindow(core)
	require.NoError(t, err)

	// the state query must precede every register read: the firmware only
	// refreshes the group handle as a side effect of the query
	require.NotEmpty(t, core.calls)
	assert.Equal(t, "query", core.calls[0])
	for _, call := range core.calls {
		if call == "regread" {
			return
		}
	}
	t.Fatal("no register was read")
}

func TestReadWindowMissingRegisterIsFatal(t *testing.T) {
	core := newFakeCore(0)
	core.missingRegs["PCXI"] = true

	_, err := ReadWindow(core)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegisterAccess)
}

func TestReadWindowReadFailureIsFatal(t *testing.T) {
	core := newFakeCore(0)
	core.regReadErr["D9"] = errors.New("bus fault")

	_, err := ReadWindow(core)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegisterAccess)
}

func TestWriteWindowUnsupported(t *testing.T) {
	core := newFakeCore(0)
	err := WriteWindow(core, &RegisterWindow{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWindowWireRoundTrip(t *testing.T) {
	w := &RegisterWindow{
		A10: 0x1000_0001, A11: 0x1000_0002, A12: 0x1000_0003,
		A13: 0x1000_0004, A14: 0x1000_0005, A15: 0x1000_0006,
		D8: 0x2000_0001, D9: 0x2000_0002, D10: 0x2000_0003,
		D11: 0x2000_0004, D12: 0x2000_0005, D13: 0x2000_0006,
		D14: 0x2000_0007, D15: 0x2000_0008,
		PC: 0x8000_0040, PCXI: 0x3000_0001, PSW: 0x0000_0b80,
	}

	data := w.Bytes()
	require.Len(t, data, WindowSize)

	got, err := ParseWindow(data)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestParseWindowRejectsWrongSize(t *testing.T) {
	_, err := ParseWindow(make([]byte, WindowSize-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegisterAccess)
}
