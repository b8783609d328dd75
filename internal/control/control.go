// Package control implements the inbound control channel for pipwatch: a
// unix-socket frame protocol, namespaced to this component, over which
// rendered overlay buttons and compositor hooks deliver discrete events.
package control

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// Control frame opcodes.
const (
	opEvent = 0
	opReply = 1
	opClose = 2
)

// Actions carried by control requests.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionToggle   = "toggle"
	ActionPinned   = "pinned"
	ActionUnpinned = "unpinned"
)

// Request is one control event sent to the daemon. ID is a caller-chosen
// correlation id echoed back in the reply.
type Request struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	AppID  string `json:"app_id,omitempty"`
}

// Reply acknowledges a Request
type Reply struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SocketPath returns the control socket location. Prefers XDG_RUNTIME_DIR
// so the socket is per-user and cleaned up on logout.
func SocketPath() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "pipwatch", "control.sock")
}

// writeFrame sends a control frame: [opcode LE u32][length LE u32][payload]
func writeFrame(conn net.Conn, opcode uint32, payload []byte) error {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], opcode)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// readFrame reads a control frame, allocating a buffer of the exact size
// declared in the header
func readFrame(conn net.Conn) (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, err
	}
	opcode := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	if length > maxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return opcode, payload, nil
}

// Control payloads are tiny JSON objects; anything larger is garbage.
const maxFrameSize = 64 * 1024

func marshalRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}
