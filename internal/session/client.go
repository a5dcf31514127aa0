package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 8 * 1024 * 1024 // pasted images travel inline as data URIs
)

// Client is one websocket connection to a session.
type Client struct {
	id      string
	session *Session
	conn    *websocket.Conn
	send    chan []byte
	log     *slog.Logger
}

func newClient(session *Session, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		id:      id,
		session: session,
		conn:    conn,
		send:    make(chan []byte, 256),
		log:     session.log.With("client", id),
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.session.removeClient(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			c.log.Debug("read error", "error", err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			continue
		}

		c.session.handle(c, &msg)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
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

// Send queues a message, dropping it if the client cannot keep up. The
// next scene state broadcast repairs anything a dropped frame missed.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}
