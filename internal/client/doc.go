// Package client implements the encoder side of VTR1.
//
// It is used by the probe command to exercise a running mock, and by tests
// to drive the server end to end. A Client wraps one stream (TCP, WebSocket
// or QUIC) and offers one method per request/response pair:
//
//	c, err := client.Dial(ctx, client.NetworkTCP, "127.0.0.1:5555")
//	ack, err := c.Hello(&protocol.HelloRequest{Token: "s3cret", RequestedCodec: "h264"})
//	cfgAck, err := c.Configure(&protocol.ConfigureRequest{Width: 1920, Height: 1080})
//	pkt, err := c.Encode(&protocol.FrameSubmission{PTS: 0, Duration: 1})
//	err = c.Flush()
//
// An ERROR reply surfaces as a *protocol.ErrorNotice error. Probe runs the
// whole sequence and returns a ProbeResult for display.
package client
