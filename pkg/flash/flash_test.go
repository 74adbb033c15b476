package flash

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd/mcdsim"
)

// writeTestImage builds a minimal ELF32 LSB TriCore executable with one
// loadable segment at paddr.
func writeTestImage(t *testing.T, paddr uint32, payload []byte) string {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian

	ident := make([]byte, 16)
	copy(ident, "\x7fELF")
	ident[4] = 1 // ELFCLASS32
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	buf.Write(ident)

	const (
		ehSize = 52
		phSize = 32
	)
	w16 := func(v uint16) { require.NoError(t, binary.Write(&buf, le, v)) }
	w32 := func(v uint32) { require.NoError(t, binary.Write(&buf, le, v)) }

	w16(2)  // e_type ET_EXEC
	w16(44) // e_machine EM_TRICORE
	w32(1)  // e_version
	w32(paddr)
	w32(ehSize) // e_phoff
	w32(0)      // e_shoff
	w32(0)      // e_flags
	w16(ehSize)
	w16(phSize)
	w16(1) // e_phnum
	w16(0) // e_shentsize
	w16(0) // e_shnum
	w16(0) // e_shstrndx

	w32(1)               // p_type PT_LOAD
	w32(ehSize + phSize) // p_offset
	w32(paddr)           // p_vaddr
	w32(paddr)           // p_paddr
	w32(uint32(len(payload)))
	w32(uint32(len(payload)))
	w32(5) // p_flags R+X
	w32(4) // p_align
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "image.elf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testLog() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestProgramWritesSegmentAndResets(t *testing.T) {
	payload := []byte{0x91, 0x00, 0x00, 0xf8, 0x3c, 0x01}
	path := writeTestImage(t, mcdsim.ResetVector, payload)

	sys := mcdsim.New(2)
	core0, _ := sys.Core(0)
	require.NoError(t, core0.Run())

	require.NoError(t, Program(sys, path, testLog()))

	got, err := core0.ReadBytes(mcdsim.ResetVector, len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// every core ends up reset and halted
	for i := 0; i < sys.CoreCount(); i++ {
		c, err := sys.Core(i)
		require.NoError(t, err)
		info, err := c.QueryState()
		require.NoError(t, err)
		assert.Equal(t, mcd.StateHalted, info.State)
	}
}

func TestProgramRejectsMissingFile(t *testing.T) {
	sys := mcdsim.New(1)
	err := Program(sys, filepath.Join(t.TempDir(), "nope.elf"), testLog())
	assert.Error(t, err)
}

func TestProgramRejectsForeignMachine(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	path := writeTestImage(t, mcdsim.ResetVector, payload)

	// flip e_machine to x86
	img, err := os.ReadFile(path)
	require.NoError(t, err)
	img[18] = 3
	img[19] = 0
	require.NoError(t, os.WriteFile(path, img, 0o644))

	err = Program(mcdsim.New(1), path, testLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine")
}

func TestProgramRejectsTruncatedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.elf")
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF"), 0o644))

	err := Program(mcdsim.New(1), path, testLog())
	assert.Error(t, err)
}
