package websocket

import (
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/config"
	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// sendBuffer is the number of snapshots queued per client before the hub
// drops it as slow
const sendBuffer = 16

// limits are the per-connection timeouts taken from config
type limits struct {
	readLimit  int64
	pongWait   time.Duration
	pingPeriod time.Duration
	writeWait  time.Duration
}

func limitsFrom(cfg *config.Config) limits {
	return limits{
		readLimit:  cfg.MaxMessageSize,
		pongWait:   cfg.PongWait,
		pingPeriod: cfg.PingPeriod,
		writeWait:  cfg.WriteWait,
	}
}

// Client is one live feed connection of a console user
type Client struct {
	id       string
	username string

	hub  *Hub
	conn *websocket.Conn

	// encoded snapshots, already filtered for username
	send chan []byte

	limits limits
	logger zerolog.Logger
}

// NewClient creates a Client for username on conn
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger, username string) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		limits:   limitsFrom(cfg),
		logger: logger.With().
			Str("client_id", id).
			Str("username", username).
			Logger(),
	}
}

// readPump decodes client messages (refresh requests) and hands them to the
// hub. It is the only reader of conn.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.limits.readLimit)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		var msg types.ClientMessage
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			return
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring malformed client message")
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

func (c *Client) extendReadDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(c.limits.pongWait))
}

// writePump writes queued snapshots and keepalive pings. It is the only
// writer of conn.
func (c *Client) writePump() {
	ping := time.NewTicker(c.limits.pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snapshot, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.limits.writeWait))
			if !ok {
				// dropped by the hub
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one snapshot per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
				c.logger.Debug().Err(err).Msg("snapshot write failed")
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.limits.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
