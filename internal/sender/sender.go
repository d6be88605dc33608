// Package sender implements the sender-side Go-Back-N state machine:
// INIT -> SYN_SENT -> HANDSHAKE_ACK -> SENDING -> TERMINATE.
package sender

import (
	"os"
	"path/filepath"
	"strconv"

	rerrors "github.com/devraj-patil/reliudp/internal/errors"
	"github.com/devraj-patil/reliudp/internal/frame"
	"github.com/devraj-patil/reliudp/internal/metrics"
	"github.com/devraj-patil/reliudp/internal/netpkt"
	"github.com/devraj-patil/reliudp/internal/session"
)

// Config bundles everything one Send call needs. Log and Metrics default to
// no-ops when left nil/zero by the caller.
type Config struct {
	FilePath  string
	TargetAddr string
	Params    session.Params
	SessionID string
	Log       func(string)
	Metrics   metrics.Recorder
	// Cancel, when non-nil, is polled once per send/wait iteration; a closed
	// channel aborts the transfer with a *CancelledError.
	Cancel <-chan struct{}
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

func (c *Config) cancelled() bool {
	if c.Cancel == nil {
		return false
	}
	select {
	case <-c.Cancel:
		return true
	default:
		return false
	}
}

// Send runs one complete file transfer: handshake, Go-Back-N bulk transfer,
// and the unacknowledged END marker. It blocks until the transfer completes,
// fails, or is cancelled.
func Send(cfg Config) error {
	if err := cfg.Params.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(cfg.FilePath)
	if err != nil || info.IsDir() {
		return rerrors.NewFileNotFound(cfg.FilePath, err)
	}
	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		return rerrors.NewFileNotFound(cfg.FilePath, err)
	}

	cfg.Params.Filesize = int64(len(data))
	chunks := splitChunks(data, cfg.Params.PacketSize)

	conn, err := netpkt.Dial(cfg.TargetAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg.log("Initializing connection to " + cfg.TargetAddr + "...")

	startSeq, err := handshake(conn, &cfg)
	if err != nil {
		return err
	}
	cfg.Params.StartSeq = startSeq

	if err := sendWindow(conn, &cfg, chunks); err != nil {
		return err
	}

	if err := conn.WriteTo(frame.End{}.Encode(), nil); err != nil {
		return err
	}
	cfg.log("File sent successfully")
	return nil
}

// splitChunks partitions data into packetSize-sized pieces, the last one
// possibly shorter. A zero-length file yields zero chunks.
func splitChunks(data []byte, packetSize int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	n := (len(data) + packetSize - 1) / packetSize
	chunks := make([][]byte, 0, n)
	for off := 0; off < len(data); off += packetSize {
		end := off + packetSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// handshake performs SYN -> SYN-ACK -> ACK and returns the negotiated
// start sequence number.
func handshake(conn *netpkt.Conn, cfg *Config) (int64, error) {
	syn := frame.Syn{
		Filename:   filepath.Base(cfg.FilePath),
		Filesize:   cfg.Params.Filesize,
		PacketSize: cfg.Params.PacketSize,
		WindowSize: cfg.Params.WindowSize,
	}
	if err := conn.WriteTo(syn.Encode(), nil); err != nil {
		return 0, err
	}
	cfg.log("SYN sent")

	if err := conn.SetDeadline(cfg.Params.Timeout); err != nil {
		return 0, err
	}
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		if rerrors.IsTimeout(err) {
			return 0, rerrors.NewHandshakeTimeout("await SYN-ACK", err)
		}
		return 0, err
	}
	f, perr := frame.Parse(buf[:n])
	if perr != nil {
		return 0, rerrors.NewHandshakeRejected("await SYN-ACK", string(buf[:n]))
	}
	sa, ok := f.(frame.SynAck)
	if !ok {
		return 0, rerrors.NewHandshakeRejected("await SYN-ACK", string(buf[:n]))
	}
	cfg.log("SYN-ACK received, start_seq=" + strconv.FormatInt(sa.StartSeq, 10))

	ack := frame.HandshakeAck{StartSeq: sa.StartSeq}
	if err := conn.WriteTo(ack.Encode(), nil); err != nil {
		return 0, err
	}
	cfg.log("ACK sent, handshake complete")
	return sa.StartSeq, nil
}

// sendWindow runs the Go-Back-N bulk-transfer loop over chunks, starting at
// cfg.Params.StartSeq.
func sendWindow(conn *netpkt.Conn, cfg *Config, chunks [][]byte) error {
	startSeq := cfg.Params.StartSeq
	windowSize := cfg.Params.WindowSize
	total := len(chunks)
	baseChunk := 0
	nextChunk := 0
	retries := 0
	sentPackets := make(map[int64][]byte, windowSize)

	sendChunk := func(idx int) {
		seq := startSeq + int64(idx)
		packet := frame.Data{Seq: seq, Payload: chunks[idx]}.Encode()
		_ = conn.WriteTo(packet, nil)
		sentPackets[seq] = packet
		cfg.metrics().IncPacketsSent(cfg.SessionID)
		cfg.metrics().AddBytesTransferred(cfg.SessionID, len(chunks[idx]))
		cfg.log("Packet " + strconv.FormatInt(seq, 10) + " sent")
	}

	ackBuf := make([]byte, 1024)
	for baseChunk < total {
		if cfg.cancelled() {
			return rerrors.NewCancelled("sending")
		}

		for nextChunk < total && (nextChunk-baseChunk) < windowSize {
			sendChunk(nextChunk)
			nextChunk++
		}
		cfg.metrics().SetWindowOccupancy(cfg.SessionID, nextChunk-baseChunk)

		if err := conn.SetDeadline(cfg.Params.Timeout); err != nil {
			return err
		}
		n, _, err := conn.ReadFrom(ackBuf)
		if err != nil {
			if !rerrors.IsTimeout(err) {
				return err
			}
			retries++
			cfg.metrics().IncRetries(cfg.SessionID)
			cfg.log("Timeout waiting for ACK, retry " + strconv.Itoa(retries))
			if retries >= cfg.Params.MaxRetries {
				return rerrors.NewRetriesExhausted(cfg.Params.MaxRetries, baseChunk, nextChunk)
			}
			for idx := baseChunk; idx < nextChunk; idx++ {
				seq := startSeq + int64(idx)
				packet, ok := sentPackets[seq]
				if !ok {
					packet = frame.Data{Seq: seq, Payload: chunks[idx]}.Encode()
					sentPackets[seq] = packet
				}
				_ = conn.WriteTo(packet, nil)
				cfg.metrics().IncPacketsResent(cfg.SessionID)
				cfg.log("Packet " + strconv.FormatInt(seq, 10) + " resent")
			}
			continue
		}

		f, perr := frame.Parse(ackBuf[:n])
		if perr != nil {
			continue
		}
		da, ok := f.(frame.DataAck)
		if !ok {
			continue
		}
		cfg.metrics().IncAcksReceived(cfg.SessionID)
		ackIndex := int(da.Seq - startSeq)
		if ackIndex >= baseChunk {
			baseChunk = ackIndex + 1
			retries = 0
			cfg.log("ACK " + strconv.FormatInt(da.Seq, 10) + " received, sliding window base_chunk to " + strconv.Itoa(baseChunk))
			for seq := range sentPackets {
				if seq <= da.Seq {
					delete(sentPackets, seq)
				}
			}
		}
	}
	return nil
}

