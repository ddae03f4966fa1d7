// Package transport adapts the non-TCP carriers of the VTR1 byte stream.
//
// A session only needs an io.ReadWriter, optionally with SetReadDeadline.
// This package provides that view over two carriers:
//
//   - WSConn: a gorilla/websocket connection. Every Write is sent as one
//     binary message; reads concatenate binary messages.
//   - QUICStream: the first bidirectional stream of a quic-go connection,
//     negotiated with ALPN "vtr1" over a self-signed TLS 1.3 certificate.
//
// Both the server and the probe client use these adapters, so the same
// session and codec code runs over TCP, WebSocket and QUIC.
package transport
