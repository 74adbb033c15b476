// Package flash programs an ELF image into target memory over the debug
// session and prepares the cores for a debugger attach.
package flash

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// maxChunk bounds a single device write. Probe transports cap the payload
// of one memory transaction.
const maxChunk = 4096

// Program writes every PT_LOAD segment of the image at path into target
// memory through core 0, then resets every core and leaves it halted so
// execution starts from a clean state at attach.
func Program(sys mcd.System, path string, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "flash")

	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	if err := checkImage(f); err != nil {
		return fmt.Errorf("image %s: %w", path, err)
	}

	core, err := sys.Core(0)
	if err != nil {
		return fmt.Errorf("flash: %w", err)
	}
	// writes need a stopped core
	if err := core.Stop(); err != nil {
		return fmt.Errorf("halt core 0 before flashing: %w", err)
	}

	var total uint64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		log.WithFields(logrus.Fields{
			"paddr": fmt.Sprintf("%#x", prog.Paddr),
			"size":  prog.Filesz,
		}).Info("writing segment")
		if err := writeSegment(core, prog); err != nil {
			return fmt.Errorf("write segment at %#x: %w", prog.Paddr, err)
		}
		total += prog.Filesz
	}
	log.WithField("bytes", total).Info("image written")

	// reset-and-halt every core so the debugger attaches to a target
	// that has not started executing the fresh image
	for i := 0; i < sys.CoreCount(); i++ {
		c, err := sys.Core(i)
		if err != nil {
			return fmt.Errorf("flash: %w", err)
		}
		if err := c.Reset(true); err != nil {
			return fmt.Errorf("reset core %d after flashing: %w", i, err)
		}
	}
	return nil
}

func checkImage(f *elf.File) error {
	if f.Machine != elf.EM_TRICORE && f.Machine != elf.EM_NONE {
		return fmt.Errorf("unexpected machine type %v, want TriCore", f.Machine)
	}
	if f.Class != elf.ELFCLASS32 {
		return fmt.Errorf("unexpected class %v, want ELFCLASS32", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("unexpected byte order %v, want little endian", f.Data)
	}
	return nil
}

// writeSegment streams one loadable segment to the device. The physical
// address is used: load-time placement, not the runtime mapping.
func writeSegment(core mcd.Core, prog *elf.Prog) error {
	r := prog.Open()
	addr := prog.Paddr
	remaining := prog.Filesz
	buf := make([]byte, maxChunk)
	for remaining > 0 {
		n := uint64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fmt.Errorf("read image data: %w", err)
		}
		if err := core.Write(addr, buf[:n]); err != nil {
			return err
		}
		addr += n
		remaining -= n
	}
	return nil
}
