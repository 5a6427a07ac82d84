package ws

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"antigravity.world/internal/protocol"
)

// Client is a room connection from the client side: an ordered, framed
// duplex stream of protocol envelopes. Writes are serialized; reads are
// pumped to a channel so a single runtime loop can own all state.
type Client struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to a room relay. host is "host:port"; the scheme is chosen
// like the reference client: plain ws for local hosts, wss otherwise.
func Dial(host, room, id string) (*Client, error) {
	if id == "" {
		id = uuid.NewString()
	}
	u := url.URL{
		Scheme:   scheme(host),
		Host:     host,
		Path:     "/room/" + room + "/ws",
		RawQuery: "id=" + url.QueryEscape(id),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c := &Client{
		ID:      id,
		conn:    conn,
		inbound: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

func scheme(host string) string {
	switch {
	case hasPrefixAny(host, "localhost", "127.0.0.1", "host.docker.internal"):
		return "ws"
	default:
		return "wss"
	}
}

func hasPrefixAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func (c *Client) readPump() {
	defer close(c.inbound)
	defer c.Close()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.inbound <- msg:
		case <-c.closed:
			return
		}
	}
}

// Inbound returns the ordered stream of raw envelopes from the relay. The
// channel is closed when the connection dies.
func (c *Client) Inbound() <-chan []byte { return c.inbound }

// Closed is closed when the transport is gone.
func (c *Client) Closed() <-chan struct{} { return c.closed }

// Send marshals and writes one envelope. Sending on a closed transport is a
// no-op, not an error: outbound state is advisory and will be re-sent by the
// keep-alive cadence after a reconnect.
func (c *Client) Send(v any) error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.Close()
		return nil
	}
	return nil
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
