package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Wire constants
const (
	Magic      uint32 = 0x56545231 // 'VTR1'
	Version    uint16 = 1
	HeaderSize        = 12 // magic(4) + version(2) + type(2) + length(4)

	// ALPN is the TLS application protocol for VTR1 over QUIC
	ALPN = "vtr1"

	// MaxPayloadSize is the largest length the u32 header field can declare
	MaxPayloadSize = math.MaxUint32
)

// MessageType identifies the payload carried by a message
type MessageType uint16

// Message type codes
const (
	MsgHello        MessageType = 1
	MsgHelloAck     MessageType = 2
	MsgConfigure    MessageType = 3
	MsgConfigureAck MessageType = 4
	MsgFrame        MessageType = 5
	MsgPacket       MessageType = 6
	MsgFlush        MessageType = 7
	MsgDone         MessageType = 8
	MsgError        MessageType = 9
	MsgPing         MessageType = 10
	MsgPong         MessageType = 11
)

var (
	// ErrMalformedHeader is returned when the stream ends before a full header arrives
	ErrMalformedHeader = errors.New("malformed header")

	// ErrProtocolMismatch is returned for a bad magic, version or oversized length
	ErrProtocolMismatch = errors.New("protocol mismatch")

	// ErrShortPayload is returned when the stream ends inside a declared payload
	ErrShortPayload = errors.New("short payload")
)

// String returns the wire name of the message type
func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgHelloAck:
		return "HELLO_ACK"
	case MsgConfigure:
		return "CONFIGURE"
	case MsgConfigureAck:
		return "CONFIGURE_ACK"
	case MsgFrame:
		return "FRAME"
	case MsgPacket:
		return "PACKET"
	case MsgFlush:
		return "FLUSH"
	case MsgDone:
		return "DONE"
	case MsgError:
		return "ERROR"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// Header is the fixed 12-byte prefix of every message
type Header struct {
	Magic   uint32
	Version uint16
	Type    MessageType
	Length  uint32
}

// NewHeader returns a header carrying the fixed magic and version
func NewHeader(t MessageType, length uint32) Header {
	return Header{Magic: Magic, Version: Version, Type: t, Length: length}
}

// MarshalTo writes the header into dst, which must hold at least HeaderSize bytes
func (h Header) MarshalTo(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], h.Magic)
	binary.BigEndian.PutUint16(dst[4:6], h.Version)
	binary.BigEndian.PutUint16(dst[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(dst[8:12], h.Length)
}

// Validate checks the fixed magic and version fields
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrProtocolMismatch, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrProtocolMismatch, h.Version)
	}
	return nil
}

// String returns a debug representation of the header
func (h Header) String() string {
	return fmt.Sprintf("Header{type=%s, length=%d}", h.Type, h.Length)
}

// DecodeHeader parses and validates a header from exactly HeaderSize bytes
func DecodeHeader(src []byte) (Header, error) {
	if len(src) != HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedHeader, len(src), HeaderSize)
	}
	h := Header{
		Magic:   binary.BigEndian.Uint32(src[0:4]),
		Version: binary.BigEndian.Uint16(src[4:6]),
		Type:    MessageType(binary.BigEndian.Uint16(src[6:8])),
		Length:  binary.BigEndian.Uint32(src[8:12]),
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadHeader blocks until a full header has been read from r
func ReadHeader(r io.Reader) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	return DecodeHeader(raw[:])
}

// readChunk bounds how much ReadPayload allocates ahead of received bytes
const readChunk = 4 << 20

// ReadPayload blocks until exactly h.Length bytes have been read from r.
// The buffer grows as data arrives, so a large declared length costs
// memory only once the peer actually sends it.
func ReadPayload(r io.Reader, h Header) ([]byte, error) {
	total := int(h.Length)
	payload := make([]byte, 0, min(total, readChunk))
	for len(payload) < total {
		n := min(total-len(payload), readChunk)
		start := len(payload)
		payload = append(payload, make([]byte, n)...)
		if _, err := io.ReadFull(r, payload[start:]); err != nil {
			if errors.Is(err, io.EOF) && start > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: %s needs %d bytes: %w", ErrShortPayload, h.Type, h.Length, err)
		}
	}
	return payload, nil
}

// ReadMessage reads one header and its declared payload
func ReadMessage(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	payload, err := ReadPayload(r, h)
	if err != nil {
		return Header{}, nil, err
	}
	return h, payload, nil
}

// EncodeMessage concatenates the header and payload into one wire unit
func EncodeMessage(t MessageType, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	buf := make([]byte, HeaderSize+len(payload))
	NewHeader(t, uint32(len(payload))).MarshalTo(buf)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// WriteMessage frames payload and writes it with a single Write call
func WriteMessage(w io.Writer, t MessageType, payload []byte) error {
	buf, err := EncodeMessage(t, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}
	return nil
}
