package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kasuganosora/arenacore/game/character"
	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/item"
	"github.com/kasuganosora/arenacore/game/player"
	"github.com/kasuganosora/arenacore/game/skill"
	"github.com/kasuganosora/arenacore/game/world"
	mw "github.com/kasuganosora/arenacore/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

func newArena() *player.Arena {
	return &player.Arena{
		Enemies:  world.NewRegistry(),
		Items:    item.DefaultCatalog(),
		Resolver: combat.NewResolver(nil),
		Roll:     func() float64 { return 1 },
	}
}

// newTestConn wraps a fresh level-1 character in a Conn with no socket.
func newTestConn(arena *player.Arena) *Conn {
	c := character.New("Hero", "#fff", skill.DefaultSkills())
	c.SetID(7)
	return newConn(player.NewSession(1, c, arena, nil), nil, nop())
}

func makePacket(t *testing.T, seq uint64, msgType string, payload interface{}) []byte {
	t.Helper()
	p, _ := json.Marshal(payload)
	if payload == nil {
		p = nil
	}
	b, err := json.Marshal(Packet{Seq: seq, Type: msgType, Payload: p})
	require.NoError(t, err)
	return b
}

// next pops the next queued packet.
func next(t *testing.T, c *Conn) Packet {
	t.Helper()
	select {
	case data := <-c.send:
		var pkt Packet
		require.NoError(t, json.Unmarshal(data, &pkt))
		return pkt
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected a packet within 200ms")
		return Packet{}
	}
}

func assertQuiet(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected packet %s", data)
	default:
	}
}

func body(t *testing.T, pkt Packet) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(pkt.Payload, &out))
	return out
}

func TestRouter_DispatchReplies(t *testing.T) {
	r := NewRouter(nop())
	r.On("ping", func(ctx context.Context, c *Conn, payload json.RawMessage) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})
	c := newTestConn(newArena())
	r.Dispatch(c, makePacket(t, 1, "ping", nil))

	pkt := next(t, c)
	assert.Equal(t, "ping_result", pkt.Type)
	assert.Equal(t, uint64(1), pkt.Seq)
	assert.Equal(t, "yes", body(t, pkt)["ok"])
}

func TestRouter_MalformedJSON(t *testing.T) {
	r := NewRouter(nop())
	c := newTestConn(newArena())
	r.Dispatch(c, []byte("not json"))
	assertQuiet(t, c)
}

func TestRouter_UnknownType(t *testing.T) {
	r := NewRouter(nop())
	c := newTestConn(newArena())
	r.Dispatch(c, makePacket(t, 1, "teleport", nil))
	pkt := next(t, c)
	assert.Equal(t, "teleport_result", pkt.Type)
	assert.Equal(t, false, body(t, pkt)["success"])
	assert.Equal(t, "unknown_type", body(t, pkt)["reason"])
}

func TestRouter_AntiReplay(t *testing.T) {
	r := NewRouter(nop())
	var calls int
	r.On("msg", func(_ context.Context, _ *Conn, _ json.RawMessage) (any, error) {
		calls++
		return nil, nil
	})
	c := newTestConn(newArena())

	r.Dispatch(c, makePacket(t, 5, "msg", nil))
	r.Dispatch(c, makePacket(t, 5, "msg", nil))
	r.Dispatch(c, makePacket(t, 3, "msg", nil))
	assert.Equal(t, 1, calls)

	r.Dispatch(c, makePacket(t, 6, "msg", nil))
	r.Dispatch(c, makePacket(t, 100, "msg", nil))
	assert.Equal(t, 3, calls)

	// seq 0 bypasses the check
	r.Dispatch(c, makePacket(t, 0, "msg", nil))
	r.Dispatch(c, makePacket(t, 0, "msg", nil))
	assert.Equal(t, 5, calls)
}

func TestRouter_HandlerErrorBecomesFailure(t *testing.T) {
	r := NewRouter(nop())
	r.On("boom", func(_ context.Context, _ *Conn, _ json.RawMessage) (any, error) {
		return nil, ErrBadPayload
	})
	c := newTestConn(newArena())
	r.Dispatch(c, makePacket(t, 1, "boom", nil))
	out := body(t, next(t, c))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "bad_payload", out["reason"])
}

func TestRouter_TraceIDOnContext(t *testing.T) {
	r := NewRouter(nop())
	var ids []string
	r.On("trace", func(ctx context.Context, _ *Conn, _ json.RawMessage) (any, error) {
		ids = append(ids, mw.TraceIDFrom(ctx))
		return nil, nil
	})
	c := newTestConn(newArena())
	r.Dispatch(c, makePacket(t, 1, "trace", nil))
	r.Dispatch(c, makePacket(t, 2, "trace", nil))
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRouter_ReplaceHandler(t *testing.T) {
	r := NewRouter(nop())
	var calls []string
	r.On("msg", func(_ context.Context, _ *Conn, _ json.RawMessage) (any, error) {
		calls = append(calls, "first")
		return nil, nil
	})
	r.On("msg", func(_ context.Context, _ *Conn, _ json.RawMessage) (any, error) {
		calls = append(calls, "second")
		return nil, nil
	})
	r.Dispatch(newTestConn(newArena()), makePacket(t, 1, "msg", nil))
	assert.Equal(t, []string{"second"}, calls)
}

func TestConn_SendAfterClose(t *testing.T) {
	c := newTestConn(newArena())
	c.Close()
	c.Close()
	c.Send(Packet{Type: "fx"})
	assertQuiet(t, c)

	c = newTestConn(newArena())
	c.Session.Close()
	c.Send(Packet{Type: "fx"})
	assertQuiet(t, c)
}

func TestConn_SendDropsWhenFull(t *testing.T) {
	c := newTestConn(newArena())
	for i := 0; i < sendChanBuf+10; i++ {
		c.Send(Packet{Type: "fx"})
	}
	assert.Len(t, c.send, sendChanBuf)
}
