package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/kasuganosora/arenacore/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanking_TopLevel(t *testing.T) {
	e := newEnv(t)
	acct := e.login(t, "ranker")
	a := e.createCharacter(t, acct, "Alpha")
	b := e.createCharacter(t, acct, "Bravo")

	// level Bravo up through a session and save it
	tok := e.openSession(t, acct, b)
	require.True(t, grantLevel(e, b))
	w := doJSON(e.r, http.MethodPost, "/api/session/save", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(e.r, http.MethodGet, "/api/ranking/level?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	ranking := decode(t, w)["ranking"].([]interface{})
	require.Len(t, ranking, 2)
	top := ranking[0].(map[string]interface{})
	assert.Equal(t, float64(b), top["char_id"])
	assert.Equal(t, "Bravo", top["char_name"])
	assert.Equal(t, float64(2), top["level"])
	assert.Equal(t, float64(a), ranking[1].(map[string]interface{})["char_id"])

	// falls back to the DB once the sorted set is gone
	require.NoError(t, e.cache.Del(context.Background(), player.RankingKey))
	w = doJSON(e.r, http.MethodGet, "/api/ranking/level?limit=1", nil, "")
	ranking = decode(t, w)["ranking"].([]interface{})
	require.Len(t, ranking, 1)
	assert.Equal(t, float64(b), ranking[0].(map[string]interface{})["char_id"])
}

func TestRanking_Character(t *testing.T) {
	e := newEnv(t)
	acct := e.login(t, "single")
	id := e.createCharacter(t, acct, "Solo")

	w := doJSON(e.r, http.MethodGet, fmt.Sprintf("/api/ranking/level/%d", id), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(1), body["level"])
	assert.Equal(t, float64(0), body["exp"])

	w = doJSON(e.r, http.MethodGet, "/api/ranking/level/999999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(e.r, http.MethodGet, "/api/ranking/level/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
