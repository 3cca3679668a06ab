package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/item"
	"go.uber.org/zap"
)

// SessionHandlers turns WS input messages into session actions.
type SessionHandlers struct {
	logger *zap.Logger
}

// NewSessionHandlers creates SessionHandlers.
func NewSessionHandlers(logger *zap.Logger) *SessionHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandlers{logger: logger}
}

// RegisterHandlers registers every input type on r.
func (h *SessionHandlers) RegisterHandlers(r *Router) {
	r.On("ping", h.HandlePing)
	r.On("pose", h.HandlePose)
	r.On("activate_skill", h.HandleActivateSkill)
	r.On("activate_slot", h.HandleActivateSlot)
	r.On("upgrade", h.HandleUpgrade)
	r.On("use_item", h.HandleUseItem)
	r.On("equip", h.HandleEquip)
	r.On("unequip", h.HandleUnequip)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrBadPayload
	}
	return nil
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing echoes the client timestamp with the server time.
func (h *SessionHandlers) HandlePing(_ context.Context, _ *Conn, raw json.RawMessage) (any, error) {
	var req pingPayload
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &req)
	}
	return map[string]any{"ts": req.TS, "server_ts": time.Now().UnixMilli()}, nil
}

// HandlePose records the client pose. Pose updates are frequent, so no
// reply is sent on success.
func (h *SessionHandlers) HandlePose(_ context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var pose combat.Pose
	if err := decodePayload(raw, &pose); err != nil {
		return nil, err
	}
	c.Session.SetPose(pose)
	return nil, nil
}

type skillPayload struct {
	SkillID string       `json:"skill_id"`
	Pose    *combat.Pose `json:"pose,omitempty"`
}

// HandleActivateSkill activates skill_id, optionally from a fresh pose.
func (h *SessionHandlers) HandleActivateSkill(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req skillPayload
	if err := decodePayload(raw, &req); err != nil || req.SkillID == "" {
		return nil, ErrBadPayload
	}
	if req.Pose != nil {
		c.Session.SetPose(*req.Pose)
	}
	return c.Session.ActivateSkill(ctx, req.SkillID), nil
}

type slotPayload struct {
	Slot *int         `json:"slot"`
	Pose *combat.Pose `json:"pose,omitempty"`
}

// HandleActivateSlot activates the hot-bar slot.
func (h *SessionHandlers) HandleActivateSlot(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req slotPayload
	if err := decodePayload(raw, &req); err != nil || req.Slot == nil {
		return nil, ErrBadPayload
	}
	if req.Pose != nil {
		c.Session.SetPose(*req.Pose)
	}
	return c.Session.ActivateSlot(ctx, *req.Slot), nil
}

// HandleUpgrade spends a skill point on skill_id.
func (h *SessionHandlers) HandleUpgrade(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req skillPayload
	if err := decodePayload(raw, &req); err != nil || req.SkillID == "" {
		return nil, ErrBadPayload
	}
	if !c.Session.UpgradeSkill(ctx, req.SkillID) {
		return Failure{Reason: "cannot upgrade"}, nil
	}
	return map[string]any{
		"success":      true,
		"skill_id":     req.SkillID,
		"skill_points": c.Session.Record().SkillPoints,
	}, nil
}

type itemPayload struct {
	Index *int   `json:"index"`
	Slot  string `json:"slot"`
}

// HandleUseItem consumes the bag item at index.
func (h *SessionHandlers) HandleUseItem(_ context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req itemPayload
	if err := decodePayload(raw, &req); err != nil || req.Index == nil {
		return nil, ErrBadPayload
	}
	it, ok := c.Session.UseItem(*req.Index)
	if !ok {
		return Failure{Reason: "cannot use item"}, nil
	}
	return itemResult(it), nil
}

// HandleEquip moves the bag item at index into slot.
func (h *SessionHandlers) HandleEquip(_ context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req itemPayload
	if err := decodePayload(raw, &req); err != nil || req.Index == nil || req.Slot == "" {
		return nil, ErrBadPayload
	}
	if !c.Session.Equip(*req.Index, req.Slot) {
		return Failure{Reason: "cannot equip"}, nil
	}
	return map[string]any{"success": true, "equipment": c.Session.Record().Equipment}, nil
}

// HandleUnequip moves the item in slot back to the bag.
func (h *SessionHandlers) HandleUnequip(_ context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var req itemPayload
	if err := decodePayload(raw, &req); err != nil || req.Slot == "" {
		return nil, ErrBadPayload
	}
	if !c.Session.Unequip(req.Slot) {
		return Failure{Reason: "cannot unequip"}, nil
	}
	return map[string]any{"success": true, "equipment": c.Session.Record().Equipment}, nil
}

func itemResult(it item.Item) map[string]any {
	return map[string]any{"success": true, "item": it}
}
