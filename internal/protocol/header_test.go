package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		typ    MessageType
		length uint32
	}{
		{name: "hello", typ: MsgHello, length: 17},
		{name: "empty flush", typ: MsgFlush, length: 0},
		{name: "large frame", typ: MsgFrame, length: 3 * 1920 * 1080},
		{name: "8K 16-bit frame", typ: MsgFrame, length: 7680 * 4320 * 2 * 3 / 2},
		{name: "max length", typ: MsgFrame, length: 0xFFFFFFFF},
		{name: "unknown type", typ: MessageType(0xBEEF), length: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := make([]byte, HeaderSize)
			NewHeader(tt.typ, tt.length).MarshalTo(raw)

			h, err := DecodeHeader(raw)
			if err != nil {
				t.Fatalf("DecodeHeader() error = %v", err)
			}
			if h.Type != tt.typ {
				t.Errorf("type = %v, want %v", h.Type, tt.typ)
			}
			if h.Length != tt.length {
				t.Errorf("length = %d, want %d", h.Length, tt.length)
			}
			if h.Magic != Magic || h.Version != Version {
				t.Errorf("magic/version = 0x%08x/%d, want 0x%08x/%d", h.Magic, h.Version, Magic, Version)
			}
		})
	}
}

func TestEncodeMessageLayout(t *testing.T) {
	buf, err := EncodeMessage(MsgPing, nil)
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	want := []byte{
		0x56, 0x54, 0x52, 0x31, // VTR1
		0x00, 0x01, // version
		0x00, 0x0A, // PING
		0x00, 0x00, 0x00, 0x00, // length
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("EncodeMessage(PING) = % x, want % x", buf, want)
	}

	buf, err = EncodeMessage(MsgError, []byte("abc"))
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	if len(buf) != HeaderSize+3 {
		t.Fatalf("len = %d, want %d", len(buf), HeaderSize+3)
	}
	if !bytes.Equal(buf[HeaderSize:], []byte("abc")) {
		t.Errorf("payload = %q, want %q", buf[HeaderSize:], "abc")
	}
}

func TestDecodeHeaderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *Header)
	}{
		{name: "bad magic", mutate: func(h *Header) { h.Magic = 0x56545232 }},
		{name: "bad version", mutate: func(h *Header) { h.Version = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeader(MsgHello, 4)
			tt.mutate(&h)
			raw := make([]byte, HeaderSize)
			h.MarshalTo(raw)

			_, err := DecodeHeader(raw)
			if !errors.Is(err, ErrProtocolMismatch) {
				t.Errorf("DecodeHeader() error = %v, want ErrProtocolMismatch", err)
			}
		})
	}
}

func TestReadHeaderShortStream(t *testing.T) {
	raw := make([]byte, HeaderSize)
	NewHeader(MsgHello, 0).MarshalTo(raw)

	for _, n := range []int{0, 1, 11} {
		_, err := ReadHeader(bytes.NewReader(raw[:n]))
		if !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("ReadHeader(%d bytes) error = %v, want ErrMalformedHeader", n, err)
		}
	}

	_, err := ReadHeader(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Errorf("ReadHeader(empty) error = %v, want wrapped io.EOF", err)
	}
}

func TestReadMessage(t *testing.T) {
	var stream bytes.Buffer
	if err := WriteMessage(&stream, MsgConfigure, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if err := WriteMessage(&stream, MsgFlush, nil); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	h, payload, err := ReadMessage(&stream)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if h.Type != MsgConfigure || !bytes.Equal(payload, []byte{1, 2, 3, 4}) {
		t.Errorf("first message = %v % x", h, payload)
	}

	h, payload, err = ReadMessage(&stream)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if h.Type != MsgFlush || len(payload) != 0 {
		t.Errorf("second message = %v % x", h, payload)
	}

	if _, _, err := ReadMessage(&stream); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("ReadMessage(exhausted) error = %v, want ErrMalformedHeader", err)
	}
}

func TestReadPayloadShort(t *testing.T) {
	h := NewHeader(MsgFrame, 10)
	_, err := ReadPayload(bytes.NewReader([]byte{1, 2, 3}), h)
	if !errors.Is(err, ErrShortPayload) {
		t.Errorf("ReadPayload() error = %v, want ErrShortPayload", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadPayload() error = %v, want wrapped io.ErrUnexpectedEOF", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want string
	}{
		{MsgHello, "HELLO"},
		{MsgConfigureAck, "CONFIGURE_ACK"},
		{MsgPong, "PONG"},
		{MessageType(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", uint16(tt.typ), got, tt.want)
		}
	}
}

func TestReadPayloadAcrossChunks(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, readChunk+17)
	got, err := ReadPayload(bytes.NewReader(data), NewHeader(MsgFrame, uint32(len(data))))
	if err != nil {
		t.Fatalf("ReadPayload() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadPayload() returned %d bytes, want %d", len(got), len(data))
	}

	// the stream ends exactly on a chunk boundary
	_, err = ReadPayload(bytes.NewReader(data[:readChunk]), NewHeader(MsgFrame, 0xFFFFFFFF))
	if !errors.Is(err, ErrShortPayload) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadPayload(short) error = %v, want ErrShortPayload wrapping io.ErrUnexpectedEOF", err)
	}
}
