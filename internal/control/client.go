package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client sends control events to a running pipwatch daemon
type Client struct {
	conn net.Conn
}

// Dial connects to the control socket at path
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to dial control socket (is the daemon running?): %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send delivers one event and waits for the daemon's acknowledgement
func (c *Client) Send(action, appID string) error {
	req := Request{
		ID:     uuid.NewString(),
		Action: action,
		AppID:  appID,
	}
	payload, err := marshalRequest(req)
	if err != nil {
		return err
	}
	if err := writeFrame(c.conn, opEvent, payload); err != nil {
		return fmt.Errorf("failed to send control event: %w", err)
	}

	opcode, data, err := readFrame(c.conn)
	if err != nil {
		return fmt.Errorf("failed to read control reply: %w", err)
	}
	if opcode != opReply {
		return fmt.Errorf("unexpected reply opcode %d", opcode)
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("daemon rejected %s: %s", action, reply.Error)
	}
	return nil
}

// Close notifies the daemon and closes the connection
func (c *Client) Close() error {
	_ = writeFrame(c.conn, opClose, []byte("{}"))
	return c.conn.Close()
}
