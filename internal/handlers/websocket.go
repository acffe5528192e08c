package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pcapfile/internal/engine"
	"pcapfile/internal/models"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 512 // buffered channel size, drops when full
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient wraps a WebSocket connection and implements engine.Client.
type WSClient struct {
	conn   *websocket.Conn
	eng    *engine.Engine
	sendCh chan models.WSMessage
	done   chan struct{}
}

// NewWSClient creates a WSClient and registers it with the engine.
func NewWSClient(conn *websocket.Conn, eng *engine.Engine) *WSClient {
	c := &WSClient{
		conn:   conn,
		eng:    eng,
		sendCh: make(chan models.WSMessage, sendBuffer),
		done:   make(chan struct{}),
	}
	eng.RegisterClient(c)
	go c.writeLoop()
	return c
}

// errClientClosed is returned when sending to a client whose connection
// has gone away.
var errClientClosed = errors.New("websocket client closed")

// SendMessage queues a message for async delivery. Non-blocking: packets are
// dropped when the buffer is full, control messages displace an old packet.
func (c *WSClient) SendMessage(msg models.WSMessage) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
	}
	if msg.Type == models.TypePacket {
		return nil
	}
	select {
	case <-c.sendCh:
	default:
	}
	select {
	case c.sendCh <- msg:
	default:
	}
	return nil
}

// writeLoop drains the send channel and writes to the WebSocket.
func (c *WSClient) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

			// Drain and batch-send any queued messages in a single write burst
			n := len(c.sendCh)
			for i := 0; i < n; i++ {
				msg = <-c.sendCh
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(msg); err != nil {
					return
				}
			}
		case <-c.done:
			return
		}
	}
}

// ReadLoop reads messages from the client and dispatches commands.
func (c *WSClient) ReadLoop() {
	defer func() {
		c.eng.UnregisterClient(c)
		close(c.done)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg models.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.handleCommand(msg)
	}
}

func (c *WSClient) handleCommand(msg models.WSMessage) {
	switch msg.Type {
	case models.CmdGetSummary:
		payload, _ := json.Marshal(c.eng.Summary())
		c.SendMessage(models.WSMessage{Type: models.TypeSummary, Payload: payload})

	case models.CmdGetFlows:
		payload, _ := json.Marshal(c.eng.Flows())
		c.SendMessage(models.WSMessage{Type: models.TypeFlows, Payload: payload})

	default:
		c.sendError("unknown command: " + msg.Type)
	}
}

func (c *WSClient) sendError(message string) {
	payload, _ := json.Marshal(models.ErrorPayload{Message: message})
	c.SendMessage(models.WSMessage{Type: models.TypeError, Payload: payload})
}

// HandleWebSocket is the HTTP handler for WebSocket upgrades.
func HandleWebSocket(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("WebSocket upgrade failed")
			return
		}
		client := NewWSClient(conn, eng)
		client.ReadLoop()
	}
}
