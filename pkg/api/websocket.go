package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // Message type: "evaluate", "cube", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string      `json:"type"`              // Response type: "result", "error", "pong"
	ID      string      `json:"id,omitempty"`      // Request ID
	Payload interface{} `json:"payload,omitempty"` // Response data
	Error   string      `json:"error,omitempty"`   // Error message if any
	Code    string      `json:"code,omitempty"`    // Error code if any
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	ctx      context.Context
	sendChan chan WSResponse
}

// WebSocket handles GET /ws. Requests on one connection are answered in
// the order they arrive.
func (h *Handlers) WebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	client := &WSClient{
		conn:     conn,
		handlers: h,
		ctx:      c.Request().Context(),
		sendChan: make(chan WSResponse, 256),
	}
	go client.writePump()
	client.readPump()
	return nil
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() { close(c.sendChan); c.conn.Close() }()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "evaluate":
		var req EvaluateRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.sendError(msg.ID, "invalid payload", "INVALID_JSON")
			return
		}
		resp, err := c.handlers.evaluate(c.ctx, &req)
		c.reply(msg.ID, resp, err)
	case "cube":
		var req CubeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.sendError(msg.ID, "invalid payload", "INVALID_JSON")
			return
		}
		resp, err := c.handlers.cube(c.ctx, &req)
		c.reply(msg.ID, resp, err)
	case "ping":
		c.sendChan <- WSResponse{Type: "pong", ID: msg.ID}
	default:
		c.sendError(msg.ID, "unknown message type", "UNKNOWN_TYPE")
	}
}

func (c *WSClient) reply(id string, payload interface{}, err error) {
	if err != nil {
		_, body := errorStatus(err)
		c.sendError(id, body.Error, body.Code)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: id, Payload: payload}
}

func (c *WSClient) sendError(id, msg, code string) {
	c.sendChan <- WSResponse{Type: "error", ID: id, Error: msg, Code: code}
}
