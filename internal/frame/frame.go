// Package frame implements the on-wire textual framing shared by the
// reliudp sender and receiver: a single Parse entry point and an exhaustive
// Frame variant type, replacing prefix-sniffing at each call site with a
// type switch (see spec "Variant framing" design note).
//
// All six frame shapes use a textual prefix delimited by '|' (0x7C). DATA
// frames split at the FIRST '|' only — payload bytes may contain any byte
// value, including '|'. Integers are ASCII decimal, no sign, no leading
// zeros. Decode failures are never fatal to a session: callers treat a
// non-nil error as "ignore this datagram and keep waiting."
package frame

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Frame is implemented by every decodable wire shape.
type Frame interface {
	// Encode renders the frame back to its wire bytes.
	Encode() []byte
}

// Syn is the sender's connection request: S -> R.
type Syn struct {
	Filename   string
	Filesize   int64
	PacketSize int
	WindowSize int
}

// SynAck is the receiver's handshake response carrying the negotiated
// starting sequence number: R -> S.
type SynAck struct {
	StartSeq int64
}

// HandshakeAck completes the handshake: S -> R.
type HandshakeAck struct {
	StartSeq int64
}

// Data carries one chunk's payload: S -> R.
type Data struct {
	Seq     int64
	Payload []byte
}

// DataAck cumulatively acknowledges sequence Seq: R -> S.
type DataAck struct {
	Seq int64
}

// End is the unacknowledged termination marker: S -> R.
type End struct{}

func (f Syn) Encode() []byte {
	return []byte("SYN|" + f.Filename + "|" +
		strconv.FormatInt(f.Filesize, 10) + "|" +
		strconv.Itoa(f.PacketSize) + "|" +
		strconv.Itoa(f.WindowSize))
}

func (f SynAck) Encode() []byte {
	return []byte("SYN-ACK|" + strconv.FormatInt(f.StartSeq, 10))
}

func (f HandshakeAck) Encode() []byte {
	return []byte("ACK|" + strconv.FormatInt(f.StartSeq, 10))
}

func (f Data) Encode() []byte {
	buf := make([]byte, 0, 20+len(f.Payload))
	buf = strconv.AppendInt(buf, f.Seq, 10)
	buf = append(buf, '|')
	buf = append(buf, f.Payload...)
	return buf
}

func (f DataAck) Encode() []byte {
	return []byte("ack" + strconv.FormatInt(f.Seq, 10))
}

func (End) Encode() []byte { return []byte("END") }

// ErrMalformed is returned (possibly wrapped) for any datagram that does not
// match one of the six recognized shapes. It is never fatal: callers are
// expected to discard the datagram and continue.
var ErrMalformed = errors.New("frame: malformed datagram")

// Parse decodes a single datagram into its Frame variant. A non-nil error
// means the datagram should be ignored by the caller, not that the session
// has failed.
func Parse(b []byte) (Frame, error) {
	switch {
	case string(b) == "END":
		return End{}, nil
	case bytes.HasPrefix(b, []byte("SYN-ACK|")):
		return parseSynAck(b)
	case bytes.HasPrefix(b, []byte("SYN|")):
		return parseSyn(b)
	case bytes.HasPrefix(b, []byte("ACK|")):
		return parseHandshakeAck(b)
	case bytes.HasPrefix(b, []byte("ack")):
		return parseDataAck(b)
	default:
		return parseData(b)
	}
}

func parseSyn(b []byte) (Frame, error) {
	parts := strings.Split(string(b), "|")
	if len(parts) != 5 {
		return nil, ErrMalformed
	}
	filesize, err := parseDecimal(parts[2])
	if err != nil {
		return nil, ErrMalformed
	}
	packetSize, err := parseDecimal(parts[3])
	if err != nil {
		return nil, ErrMalformed
	}
	windowSize, err := parseDecimal(parts[4])
	if err != nil {
		return nil, ErrMalformed
	}
	if parts[1] == "" {
		return nil, ErrMalformed
	}
	return Syn{
		Filename:   parts[1],
		Filesize:   filesize,
		PacketSize: int(packetSize),
		WindowSize: int(windowSize),
	}, nil
}

func parseSynAck(b []byte) (Frame, error) {
	parts := strings.SplitN(string(b), "|", 2)
	if len(parts) != 2 {
		return nil, ErrMalformed
	}
	seq, err := parseDecimal(parts[1])
	if err != nil {
		return nil, ErrMalformed
	}
	return SynAck{StartSeq: seq}, nil
}

func parseHandshakeAck(b []byte) (Frame, error) {
	parts := strings.SplitN(string(b), "|", 2)
	if len(parts) != 2 {
		return nil, ErrMalformed
	}
	seq, err := parseDecimal(parts[1])
	if err != nil {
		return nil, ErrMalformed
	}
	return HandshakeAck{StartSeq: seq}, nil
}

func parseDataAck(b []byte) (Frame, error) {
	rest := string(b[len("ack"):])
	seq, err := parseDecimal(rest)
	if err != nil {
		return nil, ErrMalformed
	}
	return DataAck{Seq: seq}, nil
}

func parseData(b []byte) (Frame, error) {
	idx := bytes.IndexByte(b, '|')
	if idx < 0 {
		return nil, ErrMalformed
	}
	seq, err := parseDecimal(string(b[:idx]))
	if err != nil {
		return nil, ErrMalformed
	}
	payload := make([]byte, len(b)-idx-1)
	copy(payload, b[idx+1:])
	return Data{Seq: seq, Payload: payload}, nil
}

// parseDecimal parses an unsigned ASCII-decimal integer with no sign and no
// leading zeros (other than the literal "0"), per the wire format spec.
func parseDecimal(s string) (int64, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, ErrMalformed
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformed
		}
	}
	n, err := strconv.ParseInt(s, 10, 63)
	if err != nil {
		return 0, ErrMalformed
	}
	return n, nil
}
