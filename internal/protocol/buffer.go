package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrTruncated is returned when a field extends past the end of the payload
	ErrTruncated = errors.New("payload truncated")

	// ErrTrailingBytes is returned when a decoder leaves declared bytes unread
	ErrTrailingBytes = errors.New("trailing payload bytes")

	// ErrInvalidString is returned for strings that are not valid UTF-8
	ErrInvalidString = errors.New("invalid utf-8 string")
)

// Reader is a bounds-checked cursor over a single message payload.
// Decoders advance it field by field and call Done to assert that every
// declared byte was consumed.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a cursor positioned at the start of payload
func NewReader(payload []byte) *Reader {
	return &Reader{buf: payload}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Offset returns the number of bytes consumed so far
func (r *Reader) Offset() int {
	return r.pos
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
			ErrTruncated, field, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads one byte
func (r *Reader) U8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a big-endian uint16
func (r *Reader) U16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a big-endian uint32
func (r *Reader) U32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// I64 reads a big-endian two's complement int64
func (r *Reader) I64(field string) (int64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Bytes reads n raw bytes. The returned slice aliases the payload.
func (r *Reader) Bytes(n int, field string) ([]byte, error) {
	return r.take(n, field)
}

// Skip advances the cursor by n bytes without inspecting them
func (r *Reader) Skip(n int, field string) error {
	_, err := r.take(n, field)
	return err
}

// String reads a u16 length-prefixed UTF-8 string
func (r *Reader) String(field string) (string, error) {
	n, err := r.U16(field + " length")
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n), field)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s", ErrInvalidString, field)
	}
	return string(b), nil
}

// Done fails if any declared payload bytes remain unread
func (r *Reader) Done() error {
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d of %d bytes unread", ErrTrailingBytes, n, len(r.buf))
	}
	return nil
}

// Writer accumulates a big-endian payload
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with capacity preallocated
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// U8 appends one byte
func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

// U16 appends a big-endian uint16
func (w *Writer) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// U32 appends a big-endian uint32
func (w *Writer) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// I64 appends a big-endian int64
func (w *Writer) I64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

// Raw appends b verbatim
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// String appends a u16 length-prefixed string
func (w *Writer) String(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes (max %d)", len(s), math.MaxUint16)
	}
	w.U16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// Bytes returns the accumulated payload
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the accumulated payload size
func (w *Writer) Len() int {
	return len(w.buf)
}
