package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/vtremote-mock/internal/logging"
	"github.com/muurk/vtremote-mock/internal/protocol"
)

// CaptureRecord is one captured message in a session capture file
type CaptureRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Session      string    `json:"session"`
	Direction    string    `json:"direction"`
	Type         string    `json:"type"`
	TypeCode     uint16    `json:"type_code"`
	Length       int       `json:"length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii,omitempty"`
}

// maxCapturedPayload caps the payload bytes written per record; FRAME planes
// can be many megabytes
const maxCapturedPayload = 4096

// Capture appends every message of every session to <dir>/session-<id>.jsonl.
// It is safe for concurrent use by many sessions.
type Capture struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewCapture creates the capture directory if needed
func NewCapture(dir string) (*Capture, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &Capture{dir: dir, now: time.Now}, nil
}

// Path returns the capture file for a session
func (c *Capture) Path(sessionID string) string {
	return filepath.Join(c.dir, fmt.Sprintf("session-%s.jsonl", sessionID))
}

// Record implements session.Recorder. Failures are logged and never
// interrupt the session.
func (c *Capture) Record(sessionID string, direction string, t protocol.MessageType, payload []byte) {
	shown := payload
	if len(shown) > maxCapturedPayload {
		shown = shown[:maxCapturedPayload]
	}
	rec := CaptureRecord{
		Timestamp:    c.now(),
		Session:      sessionID,
		Direction:    direction,
		Type:         t.String(),
		TypeCode:     uint16(t),
		Length:       len(payload),
		PayloadHex:   hex.EncodeToString(shown),
		PayloadASCII: toASCII(shown),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal capture record", zap.Error(err))
		return
	}

	filename := c.Path(sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture record",
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
