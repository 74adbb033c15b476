// Package rsp implements the server side of the GDB Remote Serial
// Protocol: packet framing, the session dispatch loop and the translation
// of coordinator events into stop replies.
package rsp

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"
)

// interruptByte is sent by the debugger outside packet framing to request
// a target interrupt.
const interruptByte = 0x03

// conn wraps the duplex byte stream to the debugger. It adds buffered
// packet framing and the cheap, non-blocking input probe the dispatcher
// needs.
type conn struct {
	nc net.Conn
	r  *bufio.Reader
}

func newConn(nc net.Conn) *conn {
	return &conn{nc: nc, r: bufio.NewReader(nc)}
}

// inputProbeWindow bounds how long InputPending may wait for a byte. It
// must stay positive: an already-expired deadline makes some transports
// fail the read before even looking at pending data.
const inputProbeWindow = time.Millisecond

// InputPending reports whether at least one byte can be read soon. It is
// a peek, not a read: no byte is consumed. Transport errors count as
// pending so the session loop observes them on its next read instead of
// spinning on the hardware poll.
func (c *conn) InputPending() bool {
	if c.r.Buffered() > 0 {
		return true
	}
	if err := c.nc.SetReadDeadline(time.Now().Add(inputProbeWindow)); err != nil {
		return true
	}
	_, err := c.r.Peek(1)
	_ = c.nc.SetReadDeadline(time.Time{})
	if err == nil {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return false
	}
	return true
}

func (c *conn) readByte() (byte, error) {
	return c.r.ReadByte()
}

// readPacket consumes one framed packet $payload#xx, verifying the
// checksum. Interrupt bytes encountered between packets are reported as
// errInterrupt so the caller can synthesize a stop. Other bytes outside
// framing (e.g. stale acks) are skipped.
var (
	errInterrupt   = errors.New("rsp: interrupt request")
	errBadChecksum = errors.New("rsp: bad checksum")
)

func (c *conn) readPacket() (string, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == interruptByte {
			return "", errInterrupt
		}
		if b == '$' {
			break
		}
	}
	payload := make([]byte, 0, 256)
	sum := byte(0)
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '#' {
			break
		}
		sum += b
		payload = append(payload, b)
	}
	csum := make([]byte, 2)
	for i := 0; i < 2; i++ {
		b, err := c.r.ReadByte()
		if err != nil {
			return "", err
		}
		csum[i] = b
	}
	want := fmt.Sprintf("%02x", sum)
	if string(csum) != want {
		return "", fmt.Errorf("%w %q for packet %q, want %q", errBadChecksum, csum, payload, want)
	}
	return string(payload), nil
}

func (c *conn) writeAck(ok bool) error {
	b := byte('+')
	if !ok {
		b = '-'
	}
	_, err := c.nc.Write([]byte{b})
	return err
}

func (c *conn) writePacket(payload string) error {
	sum := byte(0)
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	_, err := fmt.Fprintf(c.nc, "$%s#%02x", payload, sum)
	return err
}
