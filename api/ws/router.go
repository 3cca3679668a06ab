package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	mw "github.com/kasuganosora/arenacore/middleware"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded payload. A non-nil result is sent back as
// the <type>_result packet; an error becomes a failed result.
type HandlerFunc func(ctx context.Context, c *Conn, payload json.RawMessage) (any, error)

// ErrBadPayload is returned by handlers for undecodable payloads.
var ErrBadPayload = errors.New("bad_payload")

// Failure is the result body of a refused input.
type Failure struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// Router dispatches incoming WS packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given message type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch decodes raw bytes, validates seq, invokes the handler and replies.
func (r *Router) Dispatch(c *Conn, raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet",
			zap.Int64("char_id", c.Session.CharID),
			zap.Error(err))
		return
	}

	// Monotonic seq check (anti-replay). Seq == 0 means no seq tracking.
	if !c.Session.AcceptSeq(pkt.Seq) {
		r.logger.Warn("replayed or out-of-order packet",
			zap.Int64("char_id", c.Session.CharID),
			zap.Uint64("seq", pkt.Seq))
		return
	}

	traceID := uuid.NewString()
	ctx := mw.WithTraceID(context.Background(), traceID)
	reply := Packet{Seq: pkt.Seq, Type: pkt.Type + "_result"}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.Int64("char_id", c.Session.CharID))
		r.reply(c, reply, Failure{Reason: "unknown_type"})
		return
	}

	out, err := fn(ctx, c, pkt.Payload)
	if err != nil {
		r.logger.Debug("handler error",
			zap.String("type", pkt.Type),
			zap.Int64("char_id", c.Session.CharID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		out = Failure{Reason: err.Error()}
	}
	if out == nil {
		return
	}
	r.reply(c, reply, out)
}

func (r *Router) reply(c *Conn, pkt Packet, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		r.logger.Error("encode reply", zap.String("type", pkt.Type), zap.Error(err))
		return
	}
	pkt.Payload = payload
	c.Send(pkt)
}
