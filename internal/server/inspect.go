package server

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/muurk/vtremote-mock/internal/protocol"
)

// ReadCapture parses a session capture file. Blank lines are skipped.
func ReadCapture(r io.Reader) ([]CaptureRecord, error) {
	var records []CaptureRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*maxCapturedPayload+64*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var rec CaptureRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return records, nil
}

// Truncated reports whether the payload was cut at maxCapturedPayload
func (r *CaptureRecord) Truncated() bool {
	return len(r.PayloadHex)/2 < r.Length
}

// Describe decodes the captured payload into a one-line summary
func (r *CaptureRecord) Describe() string {
	if r.Truncated() {
		return fmt.Sprintf("%d bytes (truncated)", r.Length)
	}
	payload, err := hex.DecodeString(r.PayloadHex)
	if err != nil {
		return fmt.Sprintf("bad payload hex: %v", err)
	}

	desc, err := describePayload(protocol.MessageType(r.TypeCode), payload)
	if err != nil {
		return err.Error()
	}
	return desc
}

func describePayload(t protocol.MessageType, payload []byte) (string, error) {
	switch t {
	case protocol.MsgHello:
		m, err := protocol.DecodeHelloRequest(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("codec=%q client=%q build=%q token=%t",
			m.RequestedCodec, m.ClientName, m.ClientBuild, m.Token != ""), nil
	case protocol.MsgHelloAck:
		m, err := protocol.DecodeHelloAck(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("status=%d codecs=%s nal_length_size=%d",
			m.Status, strings.Join(m.SupportedCodecs, ","), m.NALLengthSize), nil
	case protocol.MsgConfigure:
		m, err := protocol.DecodeConfigureRequest(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%dx%d pix=%d time_base=%s frame_rate=%s options=%d extradata=%d",
			m.Width, m.Height, m.PixelFormat, m.TimeBase, m.FrameRate, len(m.Options), len(m.Extradata)), nil
	case protocol.MsgConfigureAck:
		m, err := protocol.DecodeConfigureAck(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("status=%d pix=%d extradata=%d warnings=%d",
			m.Status, m.PixelFormat, len(m.Extradata), m.WarningCount), nil
	case protocol.MsgFrame:
		m, err := protocol.DecodeFrameSubmission(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("pts=%d duration=%d keyframe=%t planes=%d",
			m.PTS, m.Duration, m.ForceKeyframe(), len(m.Planes)), nil
	case protocol.MsgPacket:
		m, err := protocol.DecodePacket(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("pts=%d dts=%d duration=%d keyframe=%t data=%d",
			m.PTS, m.DTS, m.Duration, m.Keyframe(), len(m.Data)), nil
	case protocol.MsgError:
		m, err := protocol.DecodeErrorNotice(payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("code=%d message=%q", m.Code, m.Message), nil
	default:
		if len(payload) == 0 {
			return "", nil
		}
		return fmt.Sprintf("%d bytes", len(payload)), nil
	}
}
