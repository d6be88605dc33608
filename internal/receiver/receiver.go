// Package receiver implements the receiver-side state machine:
// LISTENING -> SYN_ACK_SENT -> RECEIVING.
package receiver

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devraj-patil/reliudp/internal/bufpool"
	rerrors "github.com/devraj-patil/reliudp/internal/errors"
	"github.com/devraj-patil/reliudp/internal/frame"
	"github.com/devraj-patil/reliudp/internal/metrics"
	"github.com/devraj-patil/reliudp/internal/netpkt"
	"github.com/devraj-patil/reliudp/internal/session"
)

// Config bundles everything one Receive call needs.
type Config struct {
	ListenAddr string
	SaveDir    string
	// HandshakeTimeout.Timeout bounds the wait for the first SYN and for the
	// ACK that completes the handshake. The SYN carries no timeout, and the
	// data phase has none: once the handshake completes, reads block until
	// a datagram arrives. Receive copies Timeout and MaxRetries into the
	// session parameters it builds from the SYN; it does not use MaxRetries.
	HandshakeTimeout session.Params
	SessionID        string
	Log              func(string)
	Metrics          metrics.Recorder
}

func (c *Config) log(msg string) {
	if c.Log != nil {
		c.Log(msg)
	}
}

func (c *Config) metrics() metrics.Recorder {
	if c.Metrics != nil {
		return c.Metrics
	}
	return metrics.NoOp{}
}

// Receive listens on cfg.ListenAddr for exactly one incoming transfer,
// completes the handshake, and writes the reassembled file under
// cfg.SaveDir. It returns once the sender's END marker arrives or a fatal
// error occurs.
//
// The socket deadline is set before LISTENING begins and again before the
// handshake ACK wait, so a peer that never sends SYN (or never completes the
// handshake) cannot block this call forever. The deadline is cleared once
// RECEIVING starts.
func Receive(cfg Config) error {
	conn, err := netpkt.Listen(cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	pool := bufpool.New()

	cfg.log("Receiver started on " + cfg.ListenAddr + ", waiting for SYN...")

	params, peer, err := awaitSyn(conn, &cfg, pool)
	if err != nil {
		return err
	}

	if err := sendSynAck(conn, &cfg, peer); err != nil {
		return err
	}

	if err := awaitHandshakeAck(conn, &cfg, &params, pool); err != nil {
		return err
	}

	savePath := filepath.Join(cfg.SaveDir, params.Filename)
	cfg.log("Handshake done, preparing to save file as '" + savePath + "'")

	// RECEIVING has no timeout of its own (spec: the receiver blocks on
	// receive indefinitely once past the handshake); only the handshake
	// phase above is deadline-bounded.
	if err := conn.ClearDeadline(); err != nil {
		return err
	}

	if err := receiveData(conn, &cfg, params, peer, savePath, pool); err != nil {
		return err
	}

	cfg.log("File transfer completed. FILE SAVED AS: " + savePath)
	return nil
}

// sessionParams is the subset of session.Params learned from the sender's
// SYN, plus the filename carried alongside it.
type sessionParams struct {
	session.Params
	Filename string
}

func awaitSyn(conn *netpkt.Conn, cfg *Config, pool *bufpool.Pool) (sessionParams, net.Addr, error) {
	if err := conn.SetDeadline(cfg.HandshakeTimeout.Timeout); err != nil {
		return sessionParams{}, nil, err
	}
	buf := pool.Get(2048)
	defer pool.Put(buf)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if rerrors.IsTimeout(err) {
				return sessionParams{}, nil, rerrors.NewHandshakeTimeout("await SYN", err)
			}
			return sessionParams{}, nil, err
		}
		f, perr := frame.Parse(buf[:n])
		if perr != nil {
			continue
		}
		syn, ok := f.(frame.Syn)
		if !ok {
			continue
		}
		// The wire filename is attacker/peer controlled: reject any name that
		// carries a path separator and take only the basename, so a SYN can
		// never write outside cfg.SaveDir.
		filename := filepath.Base(syn.Filename)
		if strings.ContainsRune(syn.Filename, '/') || strings.ContainsRune(syn.Filename, os.PathSeparator) || filename == "." || filename == ".." {
			cfg.log("SYN rejected: unsafe filename '" + syn.Filename + "'")
			continue
		}
		cfg.log("SYN received for file '" + filename + "', size=" + strconv.FormatInt(syn.Filesize, 10))
		params := sessionParams{
			Params: session.Params{
				Filesize:   syn.Filesize,
				PacketSize: syn.PacketSize,
				WindowSize: syn.WindowSize,
				StartSeq:   0,
				Timeout:    cfg.HandshakeTimeout.Timeout,
				MaxRetries: cfg.HandshakeTimeout.MaxRetries,
			},
			Filename: filename,
		}
		return params, addr, nil
	}
}

func sendSynAck(conn *netpkt.Conn, cfg *Config, peer net.Addr) error {
	sa := frame.SynAck{StartSeq: 0}
	if err := conn.WriteTo(sa.Encode(), peer); err != nil {
		return err
	}
	cfg.log("SYN-ACK sent")
	return nil
}

func awaitHandshakeAck(conn *netpkt.Conn, cfg *Config, params *sessionParams, pool *bufpool.Pool) error {
	if err := conn.SetDeadline(cfg.HandshakeTimeout.Timeout); err != nil {
		return err
	}
	buf := pool.Get(1024)
	defer pool.Put(buf)

	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return rerrors.NewHandshakeTimeout("await ACK", err)
		}
		return err
	}
	f, perr := frame.Parse(buf[:n])
	if perr != nil {
		return rerrors.NewHandshakeRejected("await ACK", string(buf[:n]))
	}
	if _, ok := f.(frame.HandshakeAck); !ok {
		return rerrors.NewHandshakeRejected("await ACK", string(buf[:n]))
	}
	cfg.log("ACK received, handshake complete")
	return nil
}

func receiveData(conn *netpkt.Conn, cfg *Config, params sessionParams, peer net.Addr, savePath string, pool *bufpool.Pool) error {
	out, err := os.Create(savePath)
	if err != nil {
		return rerrors.NewIoError("create output file", err)
	}
	defer out.Close()

	readSize := params.PacketSize + 100
	buf := pool.Get(readSize)
	defer pool.Put(buf)

	expectedSeq := params.StartSeq

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if addr != nil {
			peer = addr
		}
		f, perr := frame.Parse(buf[:n])
		if perr != nil {
			continue
		}

		switch v := f.(type) {
		case frame.End:
			return nil
		case frame.Data:
			cfg.log("Packet " + strconv.FormatInt(v.Seq, 10) + " received")
			switch {
			case v.Seq == expectedSeq:
				if _, err := out.Write(v.Payload); err != nil {
					return rerrors.NewIoError("write output file", err)
				}
				cfg.metrics().AddBytesTransferred(cfg.SessionID, len(v.Payload))
				expectedSeq++
				ack := frame.DataAck{Seq: v.Seq}
				_ = conn.WriteTo(ack.Encode(), peer)
				cfg.log("In-order packet " + strconv.FormatInt(v.Seq, 10) + " written, expected_seq updated to " + strconv.FormatInt(expectedSeq, 10))
			case v.Seq < expectedSeq:
				ack := frame.DataAck{Seq: v.Seq}
				_ = conn.WriteTo(ack.Encode(), peer)
				cfg.log("Duplicate packet " + strconv.FormatInt(v.Seq, 10) + " received, re-ACK sent")
			default:
				lastInOrder := expectedSeq - 1
				ack := frame.DataAck{Seq: lastInOrder}
				_ = conn.WriteTo(ack.Encode(), peer)
				cfg.log("Out-of-order packet " + strconv.FormatInt(v.Seq, 10) + " received, re-ACK last in-order " + strconv.FormatInt(lastInOrder, 10))
			}
		}
	}
}
