package protocol

import (
	"fmt"
	"net"

	"swarmring/internal/wire"
)

// Channel is one framed connection with an enforced
// next_expected_message state machine. Receipt of any tag other than
// the one(s) currently expected is fatal, matching spec.md §4.2.
type Channel struct {
	Conn net.Conn
	Name string

	r *wire.Reader
	w *wire.Writer
}

// NewChannel wraps conn as a protocol channel.
func NewChannel(conn net.Conn, name string) *Channel {
	return &Channel{
		Conn: conn,
		Name: name,
		r:    wire.NewReader(conn),
		w:    wire.NewWriter(conn),
	}
}

// Send writes a pre-encoded message payload.
func (c *Channel) Send(payload []byte) error {
	if err := c.w.WriteFrame(payload); err != nil {
		return fmt.Errorf("%s: send: %w", c.Name, err)
	}
	return nil
}

// Expect blocks for the next frame and verifies its tag is one of want.
// Any other tag — or a read failure — is fatal for this channel per
// spec.md §4.2/§7.
func (c *Channel) Expect(want ...Tag) ([]byte, Tag, error) {
	payload, err := c.r.ReadFrame()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read: %w", c.Name, err)
	}
	tag, err := PayloadTag(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", c.Name, err)
	}
	for _, t := range want {
		if tag == t {
			return payload, tag, nil
		}
	}
	return nil, tag, fmt.Errorf("%s: unexpected message %s, wanted one of %v", c.Name, tag, want)
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.Conn.Close()
}
