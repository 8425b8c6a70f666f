// Package wsserver serves the shortcut command surface over a local
// WebSocket so that in-process UIs can issue commands without the IPC
// socket.
//
// # Frame protocol
//
// Every client frame is a text message holding one JSON request:
//
//	{"id":"1","method":"pin","args":{"label":"Trips","filters":["2024"]}}
//
// The id is required and is echoed in the response frame:
//
//	{"id":"1","ok":true,"result":true}
//	{"id":"1","ok":false,"error":{"code":"pin-args","message":"..."}}
//
// Requests run concurrently, so responses may arrive out of order.
package wsserver

import (
	"errors"
	"fmt"

	"homepin/internal/ipc"
)

// decodeFrame parses a client text frame.
func decodeFrame(msg []byte) (ipc.Request, error) {
	req, err := ipc.DecodeRequest(msg)
	if err != nil {
		return ipc.Request{}, fmt.Errorf("wsserver: decode frame: %w", err)
	}
	if req.ID == "" {
		return ipc.Request{}, errors.New("wsserver: decode frame: missing id")
	}
	return req, nil
}

// encodeFrame serialises a response frame.
func encodeFrame(resp ipc.Response) ([]byte, error) {
	raw, err := ipc.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("wsserver: encode frame: %w", err)
	}
	return raw, nil
}
