package rsp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tricore-tools/tricore-gdb/pkg/gdb"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
)

const (
	sigInt  = 2
	sigTrap = 5

	// maxMemoryChunk bounds a single m/M transfer, matching the
	// advertised PacketSize.
	maxMemoryChunk = 0x800
)

// Server drives one RSP debugging session over a connection, translating
// protocol requests into coordinator operations and coordinator events
// into stop replies.
type Server struct {
	target *gdb.Target
	log    *logrus.Entry

	noAck bool
	// thread selected by Hg, used for register and memory requests
	currentThread gdb.ThreadID
	// thread selected by Hc, used by the legacy step packet
	continueThread gdb.ThreadID
	lastStop       string
}

// New creates a session server for a coordinator. A nil logger selects the
// logrus standard logger.
func New(target *gdb.Target, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		target:         target,
		log:            logger.WithField("component", "rsp"),
		currentThread:  1,
		continueThread: 1,
		lastStop:       fmt.Sprintf("S%02x", sigTrap),
	}
}

// Serve runs the session until the debugger detaches, the connection
// drops, or a fatal target error occurs. Non-fatal request failures are
// reported to the debugger and the session continues.
func (s *Server) Serve(nc net.Conn) error {
	c := newConn(nc)
	for {
		pkt, err := c.readPacket()
		if errors.Is(err, errInterrupt) {
			// interrupt while already stopped, nothing to do
			continue
		}
		if errors.Is(err, errBadChecksum) {
			s.log.WithError(err).Warn("dropping corrupt packet")
			if aerr := c.writeAck(false); aerr != nil {
				return aerr
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info("debugger disconnected")
				return nil
			}
			return err
		}
		if !s.noAck {
			if err := c.writeAck(true); err != nil {
				return err
			}
		}

		reply, done, err := s.dispatch(c, pkt)
		if err != nil {
			s.log.WithError(err).Error("fatal target error, ending session")
			return err
		}
		if err := c.writePacket(reply); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// dispatch handles one packet. A returned error is fatal and ends the
// session; done signals an orderly detach after the reply is sent.
func (s *Server) dispatch(c *conn, pkt string) (reply string, done bool, err error) {
	s.log.WithField("packet", pkt).Trace("dispatching")

	switch {
	case pkt == "?":
		return s.lastStop, false, nil

	case strings.HasPrefix(pkt, "qSupported"):
		return "PacketSize=1000;QStartNoAckMode+;vContSupported+;swbreak+;qXfer:features:read+", false, nil

	case pkt == "QStartNoAckMode":
		s.noAck = true
		return "OK", false, nil

	case strings.HasPrefix(pkt, "qAttached"):
		return "1", false, nil

	case pkt == "qC":
		return fmt.Sprintf("QC%x", s.currentThread), false, nil

	case pkt == "qfThreadInfo":
		tids := make([]string, 0, s.target.CoreCount())
		for _, tid := range s.target.Threads() {
			tids = append(tids, strconv.FormatInt(int64(tid), 16))
		}
		return "m" + strings.Join(tids, ","), false, nil

	case pkt == "qsThreadInfo":
		return "l", false, nil

	case pkt == "qOffsets":
		return "Text=0;Data=0;Bss=0", false, nil

	case strings.HasPrefix(pkt, "qXfer:features:read:target.xml:"):
		return qxferChunk(targetXML(), pkt[strings.LastIndexByte(pkt, ':')+1:]), false, nil

	case strings.HasPrefix(pkt, "qRcmd,"):
		return s.handleMonitor(pkt[len("qRcmd,"):]), false, nil

	case strings.HasPrefix(pkt, "T"):
		return s.handleThreadAlive(pkt[1:])

	case strings.HasPrefix(pkt, "H"):
		return s.handleThreadSelect(pkt[1:])

	case pkt == "g":
		return s.handleReadRegisters()

	case strings.HasPrefix(pkt, "G"):
		return s.handleWriteRegisters(pkt[1:])

	case strings.HasPrefix(pkt, "m"):
		return s.handleReadMemory(pkt[1:])

	case strings.HasPrefix(pkt, "M"):
		return s.handleWriteMemory(pkt[1:])

	case strings.HasPrefix(pkt, "Z0,"):
		return s.handleInsertBreakpoint(pkt[3:])

	case strings.HasPrefix(pkt, "z0,"):
		return s.handleRemoveBreakpoint(pkt[3:])

	case strings.HasPrefix(pkt, "Z"), strings.HasPrefix(pkt, "z"):
		// only software breakpoints are exposed at this layer
		return "", false, nil

	case pkt == "vCont?":
		return "vCont;c;C;s;S", false, nil

	case strings.HasPrefix(pkt, "vCont;"):
		if reply, ok := s.recordVContActions(pkt[len("vCont;"):]); !ok {
			return reply, false, nil
		}
		return s.runLoop(c)

	case strings.HasPrefix(pkt, "c"):
		// legacy continue resumes every core; the optional resume
		// address is not supported and ignored
		s.target.ClearResumeActions(gdb.ActionRun)
		return s.runLoop(c)

	case strings.HasPrefix(pkt, "s"):
		// legacy step single-steps the selected thread and lets the
		// other cores run, like a vCont;s:<tid>;c
		s.target.ClearResumeActions(gdb.ActionRun)
		if err := s.target.SetResumeAction(s.stepThread(), gdb.ActionStep); err != nil {
			return s.collapse("set step action", err)
		}
		return s.runLoop(c)

	case pkt == "!":
		return "OK", false, nil

	case pkt == "D":
		s.log.Info("debugger detached")
		return "OK", true, nil

	case pkt == "k":
		s.log.Info("debugger sent kill request")
		return "OK", true, nil

	case strings.HasPrefix(pkt, "vMustReplyEmpty"):
		return "", false, nil

	default:
		// unhandled packets get the RSP empty reply
		return "", false, nil
	}
}

func (s *Server) stepThread() gdb.ThreadID {
	if s.continueThread >= 1 {
		return s.continueThread
	}
	return 1
}

// collapse maps a structured coordinator error onto the protocol's coarse
// reply vocabulary. Memory, register, reference, breakpoint and
// unsupported faults stay request-local; everything else is fatal and
// ends the session. The rich error is logged before the detail is lost.
func (s *Server) collapse(op string, err error) (string, bool, error) {
	kind := gdb.KindOf(err)
	s.log.WithField("op", op).WithError(err).Warn(kind.String())
	switch kind {
	case gdb.KindMemoryAccess:
		return "E14", false, nil
	case gdb.KindInvalidCore:
		return "E02", false, nil
	case gdb.KindRegisterAccess:
		return "E03", false, nil
	case gdb.KindBreakpoint:
		return "E05", false, nil
	case gdb.KindUnsupported:
		return "E01", false, nil
	default:
		return "", false, err
	}
}

// runLoop applies the resume-action table and blocks until a reportable
// event, translating it into a stop reply.
func (s *Server) runLoop(c *conn) (string, bool, error) {
	for _, out := range s.target.Resume() {
		if out.Err != nil {
			// per-core fault isolation: a stuck core must not block
			// debugging the others
			s.log.WithField("core", out.Core).WithError(out.Err).Warn("resume action failed")
		}
	}

	for {
		ev := s.target.WaitForEvent(c.InputPending)
		switch ev.Kind {
		case gdb.EventIncomingData:
			b, err := c.readByte()
			if err != nil {
				return "", false, err
			}
			if b != interruptByte {
				s.log.WithField("byte", b).Debug("unexpected byte while running")
				continue
			}
			if err := s.target.StopAll(); err != nil {
				s.log.WithError(err).Warn("halting cores after interrupt")
			}
			s.lastStop = fmt.Sprintf("T%02xthread:%x;", sigInt, s.currentThread)
			return s.lastStop, false, nil

		case gdb.EventCoreStopped:
			tid := ev.Core.ThreadID()
			s.currentThread = tid
			if ev.State == mcd.StateDebug {
				s.lastStop = fmt.Sprintf("T%02xthread:%x;swbreak:;", sigTrap, tid)
			} else {
				s.lastStop = fmt.Sprintf("T%02xthread:%x;", sigTrap, tid)
			}
			return s.lastStop, false, nil

		case gdb.EventCoreFault:
			return "", false, ev.Err
		}
	}
}

// recordVContActions fills the resume-action table from a vCont body like
// "c:1;s:2". The leftmost action wins per thread; threads without an
// action stay unchanged. Returns ok=false with an error reply when the
// body is malformed.
func (s *Server) recordVContActions(body string) (string, bool) {
	s.target.ClearResumeActions(gdb.ActionUnchanged)
	assigned := make(map[gdb.ThreadID]bool)

	for _, part := range strings.Split(body, ";") {
		if part == "" {
			continue
		}
		var action gdb.ResumeAction
		switch part[0] {
		case 'c', 'C':
			action = gdb.ActionRun
		case 's', 'S':
			action = gdb.ActionStep
		default:
			return "E01", false
		}

		spec := part[1:]
		// C/S carry a signal number before the thread suffix; the
		// signal itself is not supported and dropped
		if part[0] == 'C' || part[0] == 'S' {
			if i := strings.IndexByte(spec, ':'); i >= 0 {
				spec = spec[i:]
			} else {
				spec = ""
			}
		}

		if strings.HasPrefix(spec, ":") {
			tid, err := parseThreadID(spec[1:])
			if err != nil {
				return "E01", false
			}
			if tid < 1 {
				s.assignRemaining(action, assigned)
				continue
			}
			if !assigned[tid] {
				if err := s.target.SetResumeAction(tid, action); err != nil {
					return "E02", false
				}
				assigned[tid] = true
			}
			continue
		}
		s.assignRemaining(action, assigned)
	}
	return "", true
}

func (s *Server) assignRemaining(action gdb.ResumeAction, assigned map[gdb.ThreadID]bool) {
	for _, tid := range s.target.Threads() {
		if !assigned[tid] {
			_ = s.target.SetResumeAction(tid, action)
			assigned[tid] = true
		}
	}
}

func (s *Server) handleThreadAlive(spec string) (string, bool, error) {
	tid, err := parseThreadID(spec)
	if err != nil {
		return "E01", false, nil
	}
	if _, err := s.target.ResolveThread(tid); err != nil {
		return s.collapse("thread alive", err)
	}
	return "OK", false, nil
}

func (s *Server) handleThreadSelect(spec string) (string, bool, error) {
	if len(spec) < 2 {
		return "E01", false, nil
	}
	op := spec[0]
	tid, err := parseThreadID(spec[1:])
	if err != nil {
		return "E01", false, nil
	}
	if tid < 1 {
		// 0 means "any", -1 means "all": both fall back to the first core
		tid = 1
	}
	if _, err := s.target.ResolveThread(tid); err != nil {
		return s.collapse("select thread", err)
	}
	switch op {
	case 'g':
		s.currentThread = tid
	case 'c':
		s.continueThread = tid
	default:
		return "E01", false, nil
	}
	return "OK", false, nil
}

func (s *Server) handleReadRegisters() (string, bool, error) {
	w, err := s.target.ReadRegisters(s.currentThread)
	if err != nil {
		return s.collapse("read registers", err)
	}
	return hex.EncodeToString(w.Bytes()), false, nil
}

func (s *Server) handleWriteRegisters(body string) (string, bool, error) {
	data, err := hex.DecodeString(body)
	if err != nil {
		return "E01", false, nil
	}
	w, err := gdb.ParseWindow(data)
	if err != nil {
		return s.collapse("parse register window", err)
	}
	// register writes are intentionally unsupported; this must fail
	// loudly, never silently no-op
	if err := s.target.WriteRegisters(s.currentThread, w); err != nil {
		return s.collapse("write registers", err)
	}
	return "OK", false, nil
}

func (s *Server) handleReadMemory(body string) (string, bool, error) {
	addr, n, ok := parseAddrLen(body)
	if !ok || n > maxMemoryChunk {
		return "E01", false, nil
	}
	data, err := s.target.ReadMemory(s.currentThread, addr, int(n))
	if err != nil {
		return s.collapse("read memory", err)
	}
	return hex.EncodeToString(data), false, nil
}

func (s *Server) handleWriteMemory(body string) (string, bool, error) {
	idx := strings.IndexByte(body, ':')
	if idx < 0 {
		return "E01", false, nil
	}
	addr, n, ok := parseAddrLen(body[:idx])
	if !ok || n > maxMemoryChunk {
		return "E01", false, nil
	}
	data, err := hex.DecodeString(body[idx+1:])
	if err != nil || uint64(len(data)) != n {
		return "E01", false, nil
	}
	if err := s.target.WriteMemory(s.currentThread, addr, data); err != nil {
		return s.collapse("write memory", err)
	}
	return "OK", false, nil
}

func (s *Server) handleInsertBreakpoint(body string) (string, bool, error) {
	addr, ok := parseBreakpointAddr(body)
	if !ok {
		return "E01", false, nil
	}
	if _, err := s.target.InsertBreakpoint(addr); err != nil {
		return s.collapse("insert breakpoint", err)
	}
	return "OK", false, nil
}

func (s *Server) handleRemoveBreakpoint(body string) (string, bool, error) {
	addr, ok := parseBreakpointAddr(body)
	if !ok {
		return "E01", false, nil
	}
	found, err := s.target.RemoveBreakpoint(addr)
	if err != nil {
		return s.collapse("remove breakpoint", err)
	}
	if !found {
		s.log.WithField("addr", fmt.Sprintf("%#x", addr)).Debug("remove of uninstalled breakpoint")
	}
	return "OK", false, nil
}

func (s *Server) handleMonitor(hexCmd string) string {
	raw, err := hex.DecodeString(hexCmd)
	if err != nil {
		return "E01"
	}
	var out bytes.Buffer
	s.target.HandleMonitor(string(raw), &out)
	if out.Len() == 0 {
		return "OK"
	}
	return hex.EncodeToString(out.Bytes())
}

func parseThreadID(spec string) (gdb.ThreadID, error) {
	v, err := strconv.ParseInt(spec, 16, 32)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return gdb.ThreadID(v), nil
}

func parseAddrLen(body string) (uint32, uint64, bool) {
	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	addr, err1 := strconv.ParseUint(parts[0], 16, 32)
	n, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint32(addr), n, true
}

func parseBreakpointAddr(body string) (uint32, bool) {
	parts := strings.SplitN(body, ",", 2)
	addr, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(addr), true
}
