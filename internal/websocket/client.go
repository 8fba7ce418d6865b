package websocket

import (
	"context"
	"fmt"
	"strings"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Entities a client may subscribe to.
var Entities = []string{EntityTicket, EntityItem, EntityList, EntityGlossary, EntityHistory}

// Client is one listening browser session. A client with no entity filter
// receives every change notice.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	entities map[string]struct{}
}

// NewClient creates a Client subscribed to the given entities; none means
// all of them.
func NewClient(hub *Hub, conn *ws.Conn, entities []string) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if len(entities) > 0 {
		c.entities = make(map[string]struct{}, len(entities))
		for _, e := range entities {
			c.entities[e] = struct{}{}
		}
	}
	return c
}

// ParseEntities reads a subscription filter from query values such as
// ["ticket,list", "history"]. Unknown entities are an error.
func ParseEntities(values []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e == "" || seen[e] {
				continue
			}
			if !knownEntity(e) {
				return nil, fmt.Errorf("unknown entity %q", e)
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func knownEntity(e string) bool {
	for _, k := range Entities {
		if k == e {
			return true
		}
	}
	return false
}

// Wants reports whether the client subscribed to entity.
func (c *Client) Wants(entity string) bool {
	if c.entities == nil {
		return true
	}
	_, ok := c.entities[entity]
	return ok
}

// Run registers the client and writes change notices until the peer goes
// away or the hub shuts down. Clients never send; CloseRead discards any
// frames and cancels ctx when the connection closes.
func (c *Client) Run(ctx context.Context) {
	ctx = c.conn.CloseRead(ctx)
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.hub.logger.Debug("websocket write", "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
