package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kasuganosora/arenacore/game/player"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
	maxMessage    = 8 << 10
)

// Packet is the WS message envelope in both directions.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conn is one WebSocket attached to a loaded character session.
type Conn struct {
	Session *player.Session

	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newConn(s *player.Session, ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		Session: s,
		ws:      ws,
		send:    make(chan []byte, sendChanBuf),
		done:    make(chan struct{}),
		logger:  logger.With(zap.Int64("char_id", s.CharID)),
	}
}

// Close stops the write pump. Safe to call twice.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	case <-c.Session.Done:
		return true
	default:
		return false
	}
}

// Send encodes pkt and queues it without blocking. Drops when the queue is full.
func (c *Conn) Send(pkt Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	c.SendRaw(data, pkt.Type)
}

// SendRaw queues an already encoded packet.
func (c *Conn) SendRaw(data []byte, typ string) {
	if c.closed() {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("send channel full, dropping packet", zap.String("type", typ))
	}
}

// writePump drains the send queue and pings the peer. It exits when the
// connection or the session closes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.ws.Close()
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("ws write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Session.Done:
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) setReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
}
