package protocol

import (
	"fmt"
	"math"
)

// HelloAck status codes
const (
	StatusOK         uint8 = 0
	StatusAuthFailed uint8 = 2
)

// Frame and packet flag bits
const (
	FlagKeyframe uint32 = 0x1
)

// ErrorNotice codes
const (
	ErrCodeBadFirstMessage uint32 = 3
	ErrCodeUnexpected      uint32 = 5
	ErrCodeUnknownMessage  uint32 = 7
)

// DefaultNALLengthSize is the NAL length prefix size advertised in HELLO_ACK
const DefaultNALLengthSize uint16 = 4

// helloAckTrailer is the reserved word following nal_length_size
const helloAckTrailer uint16 = 1

// SupportedCodecs is the fixed codec list advertised in HELLO_ACK, in order
var SupportedCodecs = []string{"h264", "hevc"}

// HelloRequest (type 1) opens a session
type HelloRequest struct {
	Token          string
	RequestedCodec string
	ClientName     string
	ClientBuild    string
}

// Encode serializes the request payload
func (m *HelloRequest) Encode() ([]byte, error) {
	w := NewWriter(8 + len(m.Token) + len(m.RequestedCodec) + len(m.ClientName) + len(m.ClientBuild))
	for _, s := range []string{m.Token, m.RequestedCodec, m.ClientName, m.ClientBuild} {
		if err := w.String(s); err != nil {
			return nil, fmt.Errorf("encode HELLO: %w", err)
		}
	}
	return w.Bytes(), nil
}

// DecodeHelloRequest parses a HELLO payload
func DecodeHelloRequest(payload []byte) (*HelloRequest, error) {
	r := NewReader(payload)
	m := &HelloRequest{}
	var err error
	if m.Token, err = r.String("token"); err != nil {
		return nil, fmt.Errorf("decode HELLO: %w", err)
	}
	if m.RequestedCodec, err = r.String("requested_codec"); err != nil {
		return nil, fmt.Errorf("decode HELLO: %w", err)
	}
	if m.ClientName, err = r.String("client_name"); err != nil {
		return nil, fmt.Errorf("decode HELLO: %w", err)
	}
	if m.ClientBuild, err = r.String("client_build"); err != nil {
		return nil, fmt.Errorf("decode HELLO: %w", err)
	}
	// Newer clients may append fields; they are ignored
	_ = r.Skip(r.Remaining(), "hello_extension")
	return m, nil
}

// HelloAck (type 2) answers a HELLO
//
// Layout:
//
//	status u8 | reserved u16 | reserved u16 | codec_count u8 | codecs str... |
//	nal_length_size u16 | reserved u16
type HelloAck struct {
	Status          uint8
	SupportedCodecs []string
	NALLengthSize   uint16
}

// NewHelloAck returns the fixed acknowledgement for the given status
func NewHelloAck(status uint8) *HelloAck {
	return &HelloAck{
		Status:          status,
		SupportedCodecs: SupportedCodecs,
		NALLengthSize:   DefaultNALLengthSize,
	}
}

// Encode serializes the acknowledgement payload
func (m *HelloAck) Encode() ([]byte, error) {
	if len(m.SupportedCodecs) > math.MaxUint8 {
		return nil, fmt.Errorf("encode HELLO_ACK: %d codecs (max %d)", len(m.SupportedCodecs), math.MaxUint8)
	}
	w := NewWriter(32)
	w.U8(m.Status)
	w.U16(0)
	w.U16(0)
	w.U8(uint8(len(m.SupportedCodecs)))
	for _, c := range m.SupportedCodecs {
		if err := w.String(c); err != nil {
			return nil, fmt.Errorf("encode HELLO_ACK: %w", err)
		}
	}
	w.U16(m.NALLengthSize)
	w.U16(helloAckTrailer)
	return w.Bytes(), nil
}

// DecodeHelloAck parses a HELLO_ACK payload
func DecodeHelloAck(payload []byte) (*HelloAck, error) {
	r := NewReader(payload)
	m := &HelloAck{}
	var err error
	if m.Status, err = r.U8("status"); err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	if err := r.Skip(4, "reserved"); err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	count, err := r.U8("codec_count")
	if err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	m.SupportedCodecs = make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		c, err := r.String(fmt.Sprintf("codec[%d]", i))
		if err != nil {
			return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
		}
		m.SupportedCodecs = append(m.SupportedCodecs, c)
	}
	if m.NALLengthSize, err = r.U16("nal_length_size"); err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	if err := r.Skip(2, "reserved"); err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	return m, nil
}

// Rational is a num/den pair such as a time base or frame rate
type Rational struct {
	Num uint32
	Den uint32
}

func (q Rational) String() string {
	return fmt.Sprintf("%d/%d", q.Num, q.Den)
}

// Option is one key/value entry of the CONFIGURE options map
type Option struct {
	Key   string
	Value string
}

// ConfigureRequest (type 3) sets up the encoder
//
// Layout:
//
//	width u32 | height u32 | pixel_format u8 | time_base num/den u32 |
//	frame_rate num/den u32 | [option_count u16 | (key str, value str)...] |
//	[extradata_len u32 | extradata]
//
// The bracketed trailer is optional and decoded best-effort.
type ConfigureRequest struct {
	Width       uint32
	Height      uint32
	PixelFormat uint8
	TimeBase    Rational
	FrameRate   Rational
	Options     []Option
	Extradata   []byte
}

// configureFixedSize is the size of the mandatory CONFIGURE fields
const configureFixedSize = 4 + 4 + 1 + 4*4

// Option returns the value for key and whether it was present
func (m *ConfigureRequest) Option(key string) (string, bool) {
	for _, o := range m.Options {
		if o.Key == key {
			return o.Value, true
		}
	}
	return "", false
}

// Encode serializes the request payload including the options trailer
func (m *ConfigureRequest) Encode() ([]byte, error) {
	if len(m.Options) > math.MaxUint16 {
		return nil, fmt.Errorf("encode CONFIGURE: %d options (max %d)", len(m.Options), math.MaxUint16)
	}
	w := NewWriter(configureFixedSize + 6 + len(m.Extradata))
	w.U32(m.Width)
	w.U32(m.Height)
	w.U8(m.PixelFormat)
	w.U32(m.TimeBase.Num)
	w.U32(m.TimeBase.Den)
	w.U32(m.FrameRate.Num)
	w.U32(m.FrameRate.Den)
	w.U16(uint16(len(m.Options)))
	for _, o := range m.Options {
		if err := w.String(o.Key); err != nil {
			return nil, fmt.Errorf("encode CONFIGURE option key: %w", err)
		}
		if err := w.String(o.Value); err != nil {
			return nil, fmt.Errorf("encode CONFIGURE option %q: %w", o.Key, err)
		}
	}
	w.U32(uint32(len(m.Extradata)))
	w.Raw(m.Extradata)
	return w.Bytes(), nil
}

// DecodeConfigureRequest parses a CONFIGURE payload. The fixed fields are
// mandatory; the trailer is parsed when well formed and otherwise skipped, so
// the whole declared payload is always consumed.
func DecodeConfigureRequest(payload []byte) (*ConfigureRequest, error) {
	r := NewReader(payload)
	m := &ConfigureRequest{}
	var err error
	if m.Width, err = r.U32("width"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.Height, err = r.U32("height"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.PixelFormat, err = r.U8("pixel_format"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.TimeBase.Num, err = r.U32("time_base.num"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.TimeBase.Den, err = r.U32("time_base.den"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.FrameRate.Num, err = r.U32("frame_rate.num"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	if m.FrameRate.Den, err = r.U32("frame_rate.den"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}

	trailer, _ := r.Bytes(r.Remaining(), "options")
	m.Options, m.Extradata = decodeConfigureTrailer(trailer)

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE: %w", err)
	}
	return m, nil
}

// decodeConfigureTrailer returns whatever options and extradata parse cleanly
func decodeConfigureTrailer(trailer []byte) ([]Option, []byte) {
	r := NewReader(trailer)
	if r.Remaining() < 2 {
		return nil, nil
	}
	count, _ := r.U16("option_count")
	options := make([]Option, 0, count)
	for i := 0; i < int(count); i++ {
		k, err := r.String("option key")
		if err != nil {
			return options, nil
		}
		v, err := r.String("option value")
		if err != nil {
			return options, nil
		}
		options = append(options, Option{Key: k, Value: v})
	}
	if r.Remaining() < 4 {
		return options, nil
	}
	n, _ := r.U32("extradata_len")
	extradata, err := r.Bytes(int(n), "extradata")
	if err != nil || n == 0 {
		return options, nil
	}
	return options, extradata
}

// ConfigureAck (type 4) answers a CONFIGURE
//
// Layout: status u8 | extradata_len u16 | extradata | pixel_format u8 | warning_count u8
type ConfigureAck struct {
	Status       uint8
	Extradata    []byte
	PixelFormat  uint8
	WarningCount uint8
}

// Encode serializes the acknowledgement payload
func (m *ConfigureAck) Encode() ([]byte, error) {
	if len(m.Extradata) > math.MaxUint16 {
		return nil, fmt.Errorf("encode CONFIGURE_ACK: extradata %d bytes (max %d)", len(m.Extradata), math.MaxUint16)
	}
	w := NewWriter(5 + len(m.Extradata))
	w.U8(m.Status)
	w.U16(uint16(len(m.Extradata)))
	w.Raw(m.Extradata)
	w.U8(m.PixelFormat)
	w.U8(m.WarningCount)
	return w.Bytes(), nil
}

// DecodeConfigureAck parses a CONFIGURE_ACK payload
func DecodeConfigureAck(payload []byte) (*ConfigureAck, error) {
	r := NewReader(payload)
	m := &ConfigureAck{}
	var err error
	if m.Status, err = r.U8("status"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	n, err := r.U16("extradata_len")
	if err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	if m.Extradata, err = r.Bytes(int(n), "extradata"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	if m.PixelFormat, err = r.U8("pixel_format"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	if m.WarningCount, err = r.U8("warning_count"); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode CONFIGURE_ACK: %w", err)
	}
	return m, nil
}

// Plane is one component of a submitted frame
type Plane struct {
	Stride uint32
	Height uint32
	Data   []byte
}

// SideData is one typed attachment carried after a frame's planes
// (e.g. type 2 for A/53 closed captions)
type SideData struct {
	Type uint32
	Data []byte
}

// FrameSubmission (type 5) carries one raw frame
//
// Layout:
//
//	pts i64 | duration i64 | flags u32 | plane_count u8 |
//	(stride u32 | height u32 | data_len u32 | data)... |
//	[side_data_count u8 | (type u32 | size u32 | data)...]
//
// The side-data section is present only when the payload continues past
// the last plane.
type FrameSubmission struct {
	PTS      int64
	Duration int64
	Flags    uint32
	Planes   []Plane
	SideData []SideData
}

// ForceKeyframe reports whether the submission requested a keyframe
func (m *FrameSubmission) ForceKeyframe() bool {
	return m.Flags&FlagKeyframe != 0
}

// PayloadSize returns the exact encoded size of the submission
func (m *FrameSubmission) PayloadSize() int {
	n := 8 + 8 + 4 + 1
	for _, p := range m.Planes {
		n += 12 + len(p.Data)
	}
	if len(m.SideData) > 0 {
		n++
		for _, sd := range m.SideData {
			n += 8 + len(sd.Data)
		}
	}
	return n
}

// Encode serializes the submission payload
func (m *FrameSubmission) Encode() ([]byte, error) {
	if len(m.Planes) > math.MaxUint8 {
		return nil, fmt.Errorf("encode FRAME: %d planes (max %d)", len(m.Planes), math.MaxUint8)
	}
	if len(m.SideData) > math.MaxUint8 {
		return nil, fmt.Errorf("encode FRAME: %d side data entries (max %d)", len(m.SideData), math.MaxUint8)
	}
	w := NewWriter(m.PayloadSize())
	w.I64(m.PTS)
	w.I64(m.Duration)
	w.U32(m.Flags)
	w.U8(uint8(len(m.Planes)))
	for _, p := range m.Planes {
		w.U32(p.Stride)
		w.U32(p.Height)
		w.U32(uint32(len(p.Data)))
		w.Raw(p.Data)
	}
	if len(m.SideData) > 0 {
		w.U8(uint8(len(m.SideData)))
		for _, sd := range m.SideData {
			w.U32(sd.Type)
			w.U32(uint32(len(sd.Data)))
			w.Raw(sd.Data)
		}
	}
	return w.Bytes(), nil
}

// DecodeFrameSubmission parses a FRAME payload. Every plane and side-data
// entry is walked so the cursor crosses all declared bytes; bytes left after
// the side-data section are an error.
func DecodeFrameSubmission(payload []byte) (*FrameSubmission, error) {
	r := NewReader(payload)
	m := &FrameSubmission{}
	var err error
	if m.PTS, err = r.I64("pts"); err != nil {
		return nil, fmt.Errorf("decode FRAME: %w", err)
	}
	if m.Duration, err = r.I64("duration"); err != nil {
		return nil, fmt.Errorf("decode FRAME: %w", err)
	}
	if m.Flags, err = r.U32("flags"); err != nil {
		return nil, fmt.Errorf("decode FRAME: %w", err)
	}
	count, err := r.U8("plane_count")
	if err != nil {
		return nil, fmt.Errorf("decode FRAME: %w", err)
	}
	m.Planes = make([]Plane, 0, count)
	for i := 0; i < int(count); i++ {
		var p Plane
		if p.Stride, err = r.U32(fmt.Sprintf("plane[%d].stride", i)); err != nil {
			return nil, fmt.Errorf("decode FRAME: %w", err)
		}
		if p.Height, err = r.U32(fmt.Sprintf("plane[%d].height", i)); err != nil {
			return nil, fmt.Errorf("decode FRAME: %w", err)
		}
		n, err := r.U32(fmt.Sprintf("plane[%d].data_len", i))
		if err != nil {
			return nil, fmt.Errorf("decode FRAME: %w", err)
		}
		if uint64(n) > uint64(r.Remaining()) {
			return nil, fmt.Errorf("decode FRAME: %w: plane[%d] declares %d bytes, %d left",
				ErrTruncated, i, n, r.Remaining())
		}
		if p.Data, err = r.Bytes(int(n), fmt.Sprintf("plane[%d].data", i)); err != nil {
			return nil, fmt.Errorf("decode FRAME: %w", err)
		}
		m.Planes = append(m.Planes, p)
	}
	if r.Remaining() > 0 {
		if m.SideData, err = decodeSideData(r); err != nil {
			return nil, fmt.Errorf("decode FRAME: %w", err)
		}
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode FRAME: %w", err)
	}
	return m, nil
}

func decodeSideData(r *Reader) ([]SideData, error) {
	count, err := r.U8("side_data_count")
	if err != nil {
		return nil, err
	}
	entries := make([]SideData, 0, count)
	for i := 0; i < int(count); i++ {
		var sd SideData
		if sd.Type, err = r.U32(fmt.Sprintf("side_data[%d].type", i)); err != nil {
			return nil, err
		}
		n, err := r.U32(fmt.Sprintf("side_data[%d].size", i))
		if err != nil {
			return nil, err
		}
		if uint64(n) > uint64(r.Remaining()) {
			return nil, fmt.Errorf("%w: side_data[%d] declares %d bytes, %d left", ErrTruncated, i, n, r.Remaining())
		}
		if sd.Data, err = r.Bytes(int(n), fmt.Sprintf("side_data[%d].data", i)); err != nil {
			return nil, err
		}
		entries = append(entries, sd)
	}
	return entries, nil
}

// Packet (type 6) carries one compressed access unit
//
// Layout: pts i64 | dts i64 | duration i64 | flags u32 | data_len u32 | data
type Packet struct {
	PTS      int64
	DTS      int64
	Duration int64
	Flags    uint32
	Data     []byte
}

// Keyframe reports whether the packet is independently decodable
func (m *Packet) Keyframe() bool {
	return m.Flags&FlagKeyframe != 0
}

// Encode serializes the packet payload
func (m *Packet) Encode() ([]byte, error) {
	w := NewWriter(32 + len(m.Data))
	w.I64(m.PTS)
	w.I64(m.DTS)
	w.I64(m.Duration)
	w.U32(m.Flags)
	w.U32(uint32(len(m.Data)))
	w.Raw(m.Data)
	return w.Bytes(), nil
}

// DecodePacket parses a PACKET payload
func DecodePacket(payload []byte) (*Packet, error) {
	r := NewReader(payload)
	m := &Packet{}
	var err error
	if m.PTS, err = r.I64("pts"); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	if m.DTS, err = r.I64("dts"); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	if m.Duration, err = r.I64("duration"); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	if m.Flags, err = r.U32("flags"); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	n, err := r.U32("data_len")
	if err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("decode PACKET: %w: data declares %d bytes, %d left", ErrTruncated, n, r.Remaining())
	}
	if m.Data, err = r.Bytes(int(n), "data"); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode PACKET: %w", err)
	}
	return m, nil
}

// ErrorNotice (type 9) reports a fatal condition before the server closes
//
// Layout: code u32 | message (remaining payload bytes)
type ErrorNotice struct {
	Code    uint32
	Message string
}

// Encode serializes the notice payload
func (m *ErrorNotice) Encode() ([]byte, error) {
	w := NewWriter(4 + len(m.Message))
	w.U32(m.Code)
	w.Raw([]byte(m.Message))
	return w.Bytes(), nil
}

// DecodeErrorNotice parses an ERROR payload
func DecodeErrorNotice(payload []byte) (*ErrorNotice, error) {
	r := NewReader(payload)
	code, err := r.U32("code")
	if err != nil {
		return nil, fmt.Errorf("decode ERROR: %w", err)
	}
	msg, _ := r.Bytes(r.Remaining(), "message")
	return &ErrorNotice{Code: code, Message: string(msg)}, nil
}

func (m *ErrorNotice) Error() string {
	return fmt.Sprintf("server error %d: %s", m.Code, m.Message)
}
