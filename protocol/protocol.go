// Package protocol implements the binary frame format spoken by the remote
// messenger.
//
// It solves TCP's sticky packet problem with a fixed-size 16-byte header
// followed by the channel name and a variable-length body. The receiver
// reads the header first to learn both lengths, then reads exactly that many
// bytes.
//
// Frame format:
//
//	0      3  4  5  6         10     12        16
//	┌──────┬──┬──┬──┬─────────┬──────┬─────────┬──────────┬───────────────┐
//	│magic │v │ft│fl│   seq   │nameLn│ bodyLen │ channel  │    body ...   │
//	│ fpc  │01│  │  │ uint32  │uint16│ uint32  │ nameLn B │  bodyLen B    │
//	└──────┴──┴──┴──┴─────────┴──────┴─────────┴──────────┴───────────────┘
//
// The has-body flag exists because an absent body is meaningful: a reply
// frame without a body tells the caller no handler was registered, which is
// not the same as a zero-length reply.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "fpc" (framed platform channel).
// Used to quickly reject non-protocol connections.
const (
	MagicNumber byte = 0x66 // 'f'
	MagicByte2  byte = 0x70 // 'p'
	MagicByte3  byte = 0x63 // 'c'
	Version     byte = 0x01
	HeaderSize  int  = 16 // 3 (magic) + 1 (version) + 1 (frameType) + 1 (flags) + 4 (seq) + 2 (nameLen) + 4 (bodyLen)
)

// FrameType distinguishes message, reply, and heartbeat frames.
type FrameType byte

const (
	FrameMessage   FrameType = 0 // Named-channel message expecting a reply
	FrameReply     FrameType = 1 // Reply to a message, matched by seq
	FrameHeartbeat FrameType = 2 // KeepAlive probe (no channel, no body)
)

// FlagHasBody marks a frame whose body is present. A reply frame without it
// is the absent reply.
const FlagHasBody byte = 1 << 0

// Header is the fixed 16-byte frame header plus the channel name that
// immediately follows it on the wire.
type Header struct {
	Type    FrameType
	Flags   byte
	Seq     uint32 // Matches message ↔ reply
	Channel string // Empty for replies and heartbeats
}

// HasBody reports whether the frame carries a body. An absent body and a
// zero-length body are distinct states on the wire.
func (h *Header) HasBody() bool {
	return h.Flags&FlagHasBody != 0
}

// Encode writes a complete frame (header + channel name + body) to w.
// The caller must hold a write lock if multiple goroutines share the same
// writer, otherwise frames will interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	name := []byte(h.Channel)
	buf := make([]byte, HeaderSize, HeaderSize+len(name)+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.Type)
	buf[5] = h.Flags
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(name)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(body)))

	// Single write keeps header, name and body contiguous.
	buf = append(buf, name...)
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// Decode reads a complete frame from r. It validates the magic number,
// version, and frame type. io.ReadFull guarantees exactly N bytes are read,
// preventing partial reads.
//
// The returned body is nil when the has-body flag is clear, even though the
// wire length is zero in both cases.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}
	frameType := FrameType(headerBuf[4])
	if frameType != FrameMessage && frameType != FrameReply && frameType != FrameHeartbeat {
		return nil, nil, fmt.Errorf("unsupported frame type: %d", headerBuf[4])
	}

	flags := headerBuf[5]
	seq := binary.BigEndian.Uint32(headerBuf[6:10])
	nameLen := binary.BigEndian.Uint16(headerBuf[10:12])
	bodyLen := binary.BigEndian.Uint32(headerBuf[12:16])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, nil, err
	}

	var body []byte
	if flags&FlagHasBody != 0 {
		body = make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	} else if bodyLen != 0 {
		return nil, nil, fmt.Errorf("absent body with non-zero length: %d", bodyLen)
	}

	return &Header{
		Type:    frameType,
		Flags:   flags,
		Seq:     seq,
		Channel: string(name),
	}, body, nil
}
