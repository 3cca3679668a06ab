package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/arenacore/app"
	"github.com/kasuganosora/arenacore/config"
	"github.com/kasuganosora/arenacore/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// AdminKey is the admin key every test server accepts.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server wired by app.New.
type TestServer struct {
	App    *app.App
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
}

// TestConfig returns the configuration integration servers start from.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.AdminKey = AdminKey
	cfg.Server.AdminIPs = nil
	cfg.Security.JWTSecret = "integration-test-secret"
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 2000
	cfg.Security.AllowedOrigins = nil
	cfg.Game.DataDir = ""
	return cfg
}

// NewTestServer starts a server on the built-in game data.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return NewTestServerWithConfig(t, TestConfig())
}

// NewTestServerWithConfig starts a fully wired server on an in-memory
// database and local cache.
func NewTestServerWithConfig(t *testing.T, cfg *config.Config) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)

	a, err := app.New(cfg, db, c, pubsub, zap.NewNop())
	require.NoError(t, err, "app.New")

	server := httptest.NewServer(a.Engine)
	url := server.URL
	return &TestServer{
		App:    a,
		Server: server,
		URL:    url,
		WSURL:  "ws" + url[len("http"):] + "/ws",
	}
}

// WriteDataDir writes game data files into a temp dir and returns its path.
func WriteDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

// Close shuts down the HTTP server and all game systems.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.App.Shutdown(ctx)
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with JSON body and optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, body, token)
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, token)
}

// Admin sends an admin request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, "", "X-Admin-Key", AdminKey)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

// CreateCharacter creates a character and returns its ID.
func (ts *TestServer) CreateCharacter(t *testing.T, token, name string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/characters", map[string]interface{}{
		"name":  name,
		"color": "#3498db",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return int64(result["id"].(float64))
}

// OpenSession loads charID and returns the session token bound to it.
func (ts *TestServer) OpenSession(t *testing.T, token string, charID int64) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/sessions", map[string]int64{"character_id": charID}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return result["token"].(string)
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop keeps read deadlines off the connection.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult

	// pending holds packets RecvType skipped, oldest first.
	pending []map[string]interface{}
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the WS endpoint with a session token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a packet with the next sequence number.
func (wc *WSClient) Send(msgType string, payload interface{}) {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	data, err := json.Marshal(map[string]interface{}{
		"seq":     seq,
		"type":    msgType,
		"payload": json.RawMessage(payloadJSON),
	})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvAny returns the oldest skipped packet, or reads one, returning an
// error on timeout or read failure.
func (wc *WSClient) RecvAny(timeout time.Duration) (map[string]interface{}, error) {
	if len(wc.pending) > 0 {
		pkt := wc.pending[0]
		wc.pending = wc.pending[1:]
		return pkt, nil
	}
	return wc.read(timeout)
}

func (wc *WSClient) read(timeout time.Duration) (map[string]interface{}, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return nil, res.err
		}
		var pkt map[string]interface{}
		if err := json.Unmarshal(res.data, &pkt); err != nil {
			return nil, err
		}
		return pkt, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("read timeout after %s", timeout)
	}
}

// RecvType returns the first packet of msgType, keeping the others for
// later calls.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) map[string]interface{} {
	wc.t.Helper()
	return wc.recvMatch(msgType, timeout, func(pkt map[string]interface{}) bool {
		return pkt["type"] == msgType
	})
}

func (wc *WSClient) recvMatch(what string, timeout time.Duration, match func(map[string]interface{}) bool) map[string]interface{} {
	wc.t.Helper()
	for i, pkt := range wc.pending {
		if match(pkt) {
			wc.pending = append(wc.pending[:i], wc.pending[i+1:]...)
			return pkt
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out waiting for %s", what)
			return nil
		}
		pkt, err := wc.read(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %s: %v", what, err)
		}
		if match(pkt) {
			return pkt
		}
		wc.pending = append(wc.pending, pkt)
	}
}

// RecvFX returns the payload of the first fx push of eventType.
func (wc *WSClient) RecvFX(eventType string, timeout time.Duration) map[string]interface{} {
	wc.t.Helper()
	pkt := wc.recvMatch("fx "+eventType, timeout, func(pkt map[string]interface{}) bool {
		if pkt["type"] != "fx" {
			return false
		}
		p, _ := pkt["payload"].(map[string]interface{})
		return p["type"] == eventType
	})
	return PayloadMap(wc.t, pkt)
}

// WaitClosed drains the connection until the server closes it.
func (wc *WSClient) WaitClosed(timeout time.Duration) error {
	wc.pending = nil
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := wc.read(time.Until(deadline)); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
	}
	return fmt.Errorf("connection still open after %s", timeout)
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

// PayloadMap extracts the payload from a received WS packet as a map.
func PayloadMap(t *testing.T, pkt map[string]interface{}) map[string]interface{} {
	t.Helper()
	switch v := pkt["payload"].(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return v
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}
}

// --- Composite helper ---

// LoginAndConnect logs in, creates a character, opens its session and dials
// the WS endpoint. It returns the session token, the character ID and the client.
func (ts *TestServer) LoginAndConnect(t *testing.T, username, charName string) (string, int64, *WSClient) {
	t.Helper()
	token, _ := ts.Login(t, username, username+"pass")
	charID := ts.CreateCharacter(t, token, charName)
	sessToken := ts.OpenSession(t, token, charID)
	return sessToken, charID, ts.ConnectWS(t, sessToken)
}

var testCounter uint64

// UniqueID returns a short unique string suitable for usernames/character names.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s%d%d", prefix, time.Now().UnixNano()%100000, n)
}
