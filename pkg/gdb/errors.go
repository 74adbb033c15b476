package gdb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies adapter-level failures. The protocol layer collapses
// these to its much coarser reply vocabulary; the structured form is kept
// for logs and tests.
type ErrorKind int

const (
	// KindInvalidCore marks a thread id outside the registered core range.
	KindInvalidCore ErrorKind = iota
	// KindRegisterAccess marks a named register that could not be located
	// or read.
	KindRegisterAccess
	// KindMemoryAccess marks a read/write outside accessible ranges or a
	// transport fault. Non-fatal: the session continues.
	KindMemoryAccess
	// KindBreakpoint marks trigger creation, download or removal failing
	// on some core.
	KindBreakpoint
	// KindUnsupported marks an operation intentionally not implemented.
	// Never a silent no-op.
	KindUnsupported
	// KindSession marks a hardware-session fault, e.g. probe disconnect.
	// Fatal: the session ends.
	KindSession
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCore:
		return "invalid core reference"
	case KindRegisterAccess:
		return "register access failure"
	case KindMemoryAccess:
		return "memory access failure"
	case KindBreakpoint:
		return "breakpoint operation failure"
	case KindUnsupported:
		return "unsupported operation"
	case KindSession:
		return "session failure"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// NoCore marks an error not attributable to a single core.
const NoCore = CoreIndex(-1)

// Error is the structured adapter error. Kind drives the collapse at the
// protocol boundary, Op and Core identify the failed operation, Err keeps
// the original cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Core CoreIndex
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Core != NoCore {
		msg = fmt.Sprintf("%s (core %d)", msg, e.Core)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Core == NoCore && t.Err == nil
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidCore    = &Error{Kind: KindInvalidCore, Core: NoCore}
	ErrRegisterAccess = &Error{Kind: KindRegisterAccess, Core: NoCore}
	ErrMemoryAccess   = &Error{Kind: KindMemoryAccess, Core: NoCore}
	ErrBreakpoint     = &Error{Kind: KindBreakpoint, Core: NoCore}
	ErrUnsupported    = &Error{Kind: KindUnsupported, Core: NoCore}
	ErrSession        = &Error{Kind: KindSession, Core: NoCore}
)

func newError(kind ErrorKind, op string, core CoreIndex, cause error) *Error {
	return &Error{Kind: kind, Op: op, Core: core, Err: cause}
}

// KindOf reports the kind of err. Errors that did not originate in this
// package count as session failures, the fatal default.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSession
}
