// Package netpkt wraps a *net.UDPConn with the deadline and buffer-sizing
// conventions shared by the sender and receiver state machines: blocking
// reads are bounded by an explicit deadline unless ClearDeadline has
// removed it, and socket buffers are sized
// up front to absorb a full window of in-flight datagrams without kernel
// drops.
package netpkt

import (
	"net"
	"time"

	rerrors "github.com/devraj-patil/reliudp/internal/errors"
)

// socketBufferBytes is the requested SO_RCVBUF/SO_SNDBUF size. It comfortably
// covers a full window of the largest legal packet size (8000) plus framing
// overhead, even at the maximum window size (10).
const socketBufferBytes = 1 << 20 // 1 MiB

// Conn wraps a UDP socket bound to either a local listen address (receiver)
// or a remote peer address (sender), applying read deadlines and wrapping
// socket failures in the typed errors of internal/errors.
type Conn struct {
	uc *net.UDPConn
}

// Listen binds a UDP socket on addr for receiver-side use. The socket's
// buffers are enlarged to socketBufferBytes.
func Listen(addr string) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, rerrors.NewBindFailed(addr, err)
	}
	uc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, rerrors.NewBindFailed(addr, err)
	}
	sizeBuffers(uc)
	return &Conn{uc: uc}, nil
}

// Dial binds an ephemeral local UDP socket and records peer as the default
// destination for sender-side use. UDP is connectionless; Dial only fixes
// the peer address so Write/Read can omit it on every call.
func Dial(peer string) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return nil, rerrors.NewBindFailed(peer, err)
	}
	uc, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, rerrors.NewBindFailed(peer, err)
	}
	sizeBuffers(uc)
	return &Conn{uc: uc}, nil
}

func sizeBuffers(uc *net.UDPConn) {
	_ = uc.SetReadBuffer(socketBufferBytes)
	_ = uc.SetWriteBuffer(socketBufferBytes)
}

// SetDeadline applies d as both the read and write deadline, per the
// handshake convention of bounding every blocking call explicitly rather
// than relying on an inherited or absent deadline.
func (c *Conn) SetDeadline(d time.Duration) error {
	if err := c.uc.SetDeadline(time.Now().Add(d)); err != nil {
		return rerrors.NewIoError("set deadline", err)
	}
	return nil
}

// ClearDeadline removes any deadline, letting subsequent reads block
// indefinitely. Used once the handshake completes and RECEIVING begins,
// which has no per-packet timeout of its own.
func (c *Conn) ClearDeadline() error {
	if err := c.uc.SetDeadline(time.Time{}); err != nil {
		return rerrors.NewIoError("clear deadline", err)
	}
	return nil
}

// ReadFrom reads one datagram into buf, returning the number of bytes read
// and the sender's address. A deadline expiry surfaces as a
// *HandshakeTimeoutError wrapping the net.Error, any other failure as an
// *IoError; callers classify with errors.IsTimeout.
func (c *Conn) ReadFrom(buf []byte) (int, net.Addr, error) {
	n, addr, err := c.uc.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, addr, rerrors.NewHandshakeTimeout("read", err)
		}
		return n, addr, rerrors.NewIoError("read", err)
	}
	return n, addr, nil
}

// WriteTo sends b to addr. When the Conn was created with Dial, addr may be
// nil and the pre-connected peer is used.
func (c *Conn) WriteTo(b []byte, addr net.Addr) error {
	var err error
	if addr == nil {
		_, err = c.uc.Write(b)
	} else {
		_, err = c.uc.WriteTo(b, addr)
	}
	if err != nil {
		return rerrors.NewIoError("write", err)
	}
	return nil
}

// LocalAddr reports the socket's bound local address.
func (c *Conn) LocalAddr() net.Addr { return c.uc.LocalAddr() }

// Close releases the underlying socket.
func (c *Conn) Close() error { return c.uc.Close() }
