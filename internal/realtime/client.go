package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

const writeWait = 5 * time.Second

// Client is one live connection. Inbound frames are read only to process
// control messages; the channel is push-only.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     xid.New().String(),
		userID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.opts.SendBuffer),
	}
}

func (c *Client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(ctx)
		// unblocks readPump
		_ = c.conn.Close()
	}()

	c.readPump(cancel)
	wg.Wait()
}

// readPump exits once no pong arrives within one ping interval plus the
// ping timeout.
func (c *Client) readPump(cancel context.CancelFunc) {
	timeout := c.hub.opts.PingInterval + c.hub.opts.PingTimeout
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug().Err(err).Str("conn_id", c.id).Msg("live read error")
			}
			cancel()
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug().Err(err).Str("conn_id", c.id).Msg("live write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.hub.log.Debug().Err(err).Str("conn_id", c.id).Msg("live ping failed")
				return
			}
		}
	}
}
