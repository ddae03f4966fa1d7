// Package protocol implements the VTR1 remote encoding wire format.
//
// This package handles framing, parsing, and construction of the binary
// messages exchanged between an encoder client and the vtremote mock server.
// It is stateless; message sequencing lives in the session package.
//
// # Framing
//
// Every message is a fixed 12-byte header followed by exactly Length payload
// bytes. All integers are big-endian:
//
//	[0-3]   0x56545231     Magic ('VTR1')
//	[4-5]   0x0001         Version
//	[6-7]   type           MessageType
//	[8-11]  length         Payload length
//	[12+]   payload        Message payload
//
// A magic or version mismatch is fatal for the connection and yields
// ErrProtocolMismatch. A stream that ends inside a header yields
// ErrMalformedHeader, inside a payload ErrShortPayload.
//
// # Message Types
//
//	1 HELLO        2 HELLO_ACK     3 CONFIGURE    4 CONFIGURE_ACK
//	5 FRAME        6 PACKET        7 FLUSH        8 DONE
//	9 ERROR       10 PING         11 PONG
//
// FLUSH, DONE, PING and PONG carry empty payloads.
//
// # Payload Encoding
//
// Strings are a u16 length followed by UTF-8 bytes with no terminator.
// Timestamps (pts, dts, duration) are signed 64-bit. Decoders run on a Reader
// cursor bounded by the declared length and call Reader.Done before
// returning, so a decoder that reads too little or too much fails instead of
// desynchronizing the stream.
//
// # Usage Example
//
//	hdr, payload, err := protocol.ReadMessage(conn)
//	if err != nil {
//	    return err
//	}
//	if hdr.Type == protocol.MsgFrame {
//	    frame, err := protocol.DecodeFrameSubmission(payload)
//	    ...
//	}
//
//	body, _ := protocol.NewHelloAck(protocol.StatusOK).Encode()
//	err = protocol.WriteMessage(conn, protocol.MsgHelloAck, body)
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use. Reader and Writer
// values must not be shared between goroutines.
package protocol
