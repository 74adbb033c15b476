package gdb

import (
	"fmt"

	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

// CoreIndex identifies a physical core, 0-based, bounded by the core count
// the system reported at startup.
type CoreIndex int

// ThreadID is the identifier advertised to the debugger: 1-based, never
// zero, bijective with CoreIndex.
type ThreadID int

// ThreadID returns the external id for this core.
func (ix CoreIndex) ThreadID() ThreadID { return ThreadID(ix + 1) }

// CoreRegistry owns the live core handles and the thread-id mapping.
// It is built once, right after the system reports its core count, and is
// immutable afterwards.
type CoreRegistry struct {
	cores []mcd.Core
}

// NewCoreRegistry enumerates every core of the system in discovery order.
func NewCoreRegistry(sys mcd.System) (*CoreRegistry, error) {
	count := sys.CoreCount()
	if count == 0 {
		return nil, newError(KindSession, "enumerate cores", NoCore,
			fmt.Errorf("system reports zero cores"))
	}
	cores := make([]mcd.Core, 0, count)
	for i := 0; i < count; i++ {
		core, err := sys.Core(i)
		if err != nil {
			return nil, newError(KindSession, "enumerate cores", CoreIndex(i), err)
		}
		cores = append(cores, core)
	}
	return &CoreRegistry{cores: cores}, nil
}

// Count returns the number of registered cores.
func (r *CoreRegistry) Count() int { return len(r.cores) }

// Resolve maps a debugger thread id to a core index. Ids outside the
// advertised range fail with an invalid-core error, they are never clamped.
func (r *CoreRegistry) Resolve(tid ThreadID) (CoreIndex, error) {
	if tid < 1 || int(tid) > len(r.cores) {
		return NoCore, newError(KindInvalidCore, "resolve thread", NoCore,
			fmt.Errorf("thread id %d outside 1..%d", tid, len(r.cores)))
	}
	return CoreIndex(tid - 1), nil
}

// Core returns the handle for a registry-issued index.
func (r *CoreRegistry) Core(ix CoreIndex) mcd.Core { return r.cores[ix] }

// Threads lists the advertised thread ids in core discovery order.
func (r *CoreRegistry) Threads() []ThreadID {
	tids := make([]ThreadID, len(r.cores))
	for i := range r.cores {
		tids[i] = CoreIndex(i).ThreadID()
	}
	return tids
}
