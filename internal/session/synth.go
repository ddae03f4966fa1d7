package session

import "github.com/muurk/vtremote-mock/internal/protocol"

// stubAccessUnit stands in for a compressed access unit: an Annex B start code
// followed by an IDR slice NAL header. It is frame-shaped but not decodable.
var stubAccessUnit = []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}

// SynthesizePacket builds the PACKET answering a FRAME. The result depends only
// on timing and flags, never on plane content. No reordering is modeled, so
// dts always equals pts.
func SynthesizePacket(frame *protocol.FrameSubmission) *protocol.Packet {
	var flags uint32
	if frame.ForceKeyframe() {
		flags = protocol.FlagKeyframe
	}
	data := make([]byte, len(stubAccessUnit))
	copy(data, stubAccessUnit)
	return &protocol.Packet{
		PTS:      frame.PTS,
		DTS:      frame.PTS,
		Duration: frame.Duration,
		Flags:    flags,
		Data:     data,
	}
}
