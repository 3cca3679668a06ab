package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/kasuganosora/arenacore/game/combat"
	"github.com/kasuganosora/arenacore/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, e *env, name string) (string, int64) {
	t.Helper()
	acct := e.login(t, name)
	id := e.createCharacter(t, acct, name)
	return e.openSession(t, acct, id), id
}

func TestSession_OpenRequiresOwnership(t *testing.T) {
	e := newEnv(t)
	owner := e.login(t, "owner")
	id := e.createCharacter(t, owner, "Owner")
	other := e.login(t, "other")

	w := doJSON(e.r, http.MethodPost, "/api/sessions", map[string]int64{"character_id": id}, other)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(e.r, http.MethodPost, "/api/sessions", map[string]string{}, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.svc.Sessions.Count())
}

func TestSession_AccountTokenCannotAct(t *testing.T) {
	e := newEnv(t)
	acct := e.login(t, "plain")
	w := doJSON(e.r, http.MethodGet, "/api/session", nil, acct)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_HUDAndPose(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "hud")

	w := doJSON(e.r, http.MethodGet, "/api/session", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	hud := decode(t, w)
	assert.Equal(t, float64(id), hud["char_id"])
	assert.Len(t, hud["skills"], 5)

	pose := combat.Pose{Position: combat.Vec3{X: 1, Z: 2}, Facing: combat.Vec3{X: 1}}
	w = doJSON(e.r, http.MethodPut, "/api/session/pose", pose, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pose, e.svc.Sessions.Get(id).Pose())

	w = doJSON(e.r, http.MethodPut, "/api/session/pose", "not a pose", tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_ActivateAndCooldown(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "slasher")
	s := e.svc.Sessions.Get(id)
	slime := world.NewEnemy(world.EnemyTemplate{ID: "slime", Name: "Slime", MaxHealth: 5, LootChance: 1}, 0, combat.Vec3{Z: -1})
	s.SetPose(combat.Pose{})
	e.svc.Arena.Enemies.Add(slime)

	w := doJSON(e.r, http.MethodPost, "/api/session/skills/swordSlash/activate", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(1), out["result"].(map[string]interface{})["kills"])
	assert.Len(t, out["loot"], 1)

	w = doJSON(e.r, http.MethodPost, "/api/session/skills/swordSlash/activate", nil, tok)
	out = decode(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "cooldown", out["reason"])

	w = doJSON(e.r, http.MethodGet, "/api/session/skills/swordSlash/cooldown", nil, tok)
	out = decode(t, w)
	assert.Equal(t, true, out["on_cooldown"])
	assert.Positive(t, out["remaining_ms"].(float64))

	w = doJSON(e.r, http.MethodGet, "/api/session/skills/nope/cooldown", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"])

	w = doJSON(e.r, http.MethodPost, "/api/session/skills/fireball/activate", nil, tok)
	out = decode(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "level_too_low", out["reason"])
}

func TestSession_UpgradeWithoutPoints(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "upgrader")

	w := doJSON(e.r, http.MethodPost, "/api/session/skills/dash/upgrade", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"])

	require.True(t, grantLevel(e, id))
	assert.Equal(t, 2, e.svc.Sessions.Get(id).Record().Level)
	w = doJSON(e.r, http.MethodPost, "/api/session/skills/dash/upgrade", nil, tok)
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(0), out["skill_points"])
}

// grantLevel kills five weak enemies with one slash: 100 xp, one level.
func grantLevel(e *env, id int64) bool {
	s := e.svc.Sessions.Get(id)
	for i := 0; i < 5; i++ {
		e.svc.Arena.Enemies.Add(world.NewEnemy(world.EnemyTemplate{ID: "dummy", MaxHealth: 1}, 0, combat.Vec3{Z: -1}))
	}
	s.SetPose(combat.Pose{})
	out := s.ActivateSkill(context.Background(), "swordSlash")
	return out.Success && out.Result.LevelUp
}

func TestSession_Hotbar(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "hotbar")

	w := doJSON(e.r, http.MethodPut, "/api/session/hotbar/1", map[string]string{"skill_id": "swordSlash"}, tok)
	out := decode(t, w)
	require.Equal(t, true, out["success"])
	assert.Equal(t, "swordSlash", out["hotbar"].([]interface{})[1])

	w = doJSON(e.r, http.MethodPut, "/api/session/hotbar/2", map[string]string{"skill_id": "heal"}, tok)
	assert.Equal(t, false, decode(t, w)["success"], "level too low")
	w = doJSON(e.r, http.MethodPut, "/api/session/hotbar/9", map[string]string{"skill_id": "dash"}, tok)
	assert.Equal(t, false, decode(t, w)["success"], "slot out of range")
	w = doJSON(e.r, http.MethodPut, "/api/session/hotbar/x", map[string]string{"skill_id": "dash"}, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(e.r, http.MethodPost, "/api/session/hotbar/1/activate", nil, tok)
	assert.Equal(t, true, decode(t, w)["success"])
	w = doJSON(e.r, http.MethodPost, "/api/session/hotbar/3/activate", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"], "empty slot")

	w = doJSON(e.r, http.MethodDelete, "/api/session/hotbar/1", nil, tok)
	assert.Equal(t, "", decode(t, w)["hotbar"].([]interface{})[1])
	assert.Equal(t, "dash", e.svc.Sessions.Get(id).Record().ActiveSkills[0])
}

func TestSession_InventoryAndEquipment(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "bag")

	w := doJSON(e.r, http.MethodPost, "/api/session/inventory/0/use", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"], "empty bag")
	w = doJSON(e.r, http.MethodDelete, "/api/session/inventory/0", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"])
	w = doJSON(e.r, http.MethodPost, "/api/session/equipment/weapon", map[string]int{"index": 0}, tok)
	assert.Equal(t, false, decode(t, w)["success"])
	w = doJSON(e.r, http.MethodPost, "/api/session/equipment/weapon", map[string]string{}, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(e.r, http.MethodDelete, "/api/session/equipment/weapon", nil, tok)
	assert.Equal(t, false, decode(t, w)["success"], "nothing equipped")

	// a guaranteed drop puts one consumable in the bag
	e.svc.Arena.Enemies.Add(world.NewEnemy(world.EnemyTemplate{ID: "chest", MaxHealth: 1, LootChance: 1}, 0, combat.Vec3{Z: -1}))
	s := e.svc.Sessions.Get(id)
	s.SetPose(combat.Pose{})
	require.Len(t, s.ActivateSkill(context.Background(), "swordSlash").Loot, 1)

	w = doJSON(e.r, http.MethodPost, "/api/session/inventory/0/use", nil, tok)
	out := decode(t, w)
	require.Equal(t, true, out["success"])
	_, known := e.svc.Arena.Items.New(out["item"].(map[string]interface{})["id"].(string))
	assert.True(t, known)
	assert.Empty(t, s.Record().Inventory)
}

func TestSession_SaveAndClose(t *testing.T) {
	e := newEnv(t)
	tok, id := newSession(t, e, "saver")
	e.svc.Sessions.Get(id).TakeDamage(10)

	w := doJSON(e.r, http.MethodPost, "/api/session/save", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.svc.Sessions.Get(id).Dirty())

	w = doJSON(e.r, http.MethodDelete, "/api/session", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.svc.Sessions.IsOnline(id))

	w = doJSON(e.r, http.MethodGet, "/api/session", nil, tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, row, err := e.svc.Store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, string(row.Snapshot), `"currentHealth":92.5`)
}

func TestSession_ReopenRevokesOldToken(t *testing.T) {
	e := newEnv(t)
	acct := e.login(t, "twice")
	id := e.createCharacter(t, acct, "Twice")
	first := e.openSession(t, acct, id)
	second := e.openSession(t, acct, id)

	w := doJSON(e.r, http.MethodGet, "/api/session", nil, first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doJSON(e.r, http.MethodGet, "/api/session", nil, second)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.svc.Sessions.Count())
}
