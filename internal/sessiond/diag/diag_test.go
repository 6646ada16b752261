package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingmark/pingmark/internal/common/middleware"
	"github.com/pingmark/pingmark/internal/sessiond/config"
	"github.com/pingmark/pingmark/internal/sessiond/server"
	"github.com/pingmark/pingmark/internal/sessiond/session"
)

func executeTestRequest(t *testing.T, req *http.Request, store *session.Store, workers func() int) *httptest.ResponseRecorder {
	config.TestInit()

	s, err := CreateNewServer(store, workers)
	require.NoError(t, err, "create new server")

	// Mount Handlers
	s.MountHandlers()

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	return rr
}

func checkHeader(t *testing.T, h http.Header) {
	expected := "application/json"
	got := h.Get("Content-Type")
	assert.Equal(t, expected, got, "Content-Type expected %s, got %s", expected, got)
	assert.NotEmpty(t, h.Get(middleware.RequestIDHeader), "No Request Id")
}

func compareJson(t *testing.T, expected any, actual string) {
	j, err := json.Marshal(expected)
	require.NoError(t, err, "json marshal")
	assert.JSONEq(t, string(j), actual, "Expected: %v\nGot: %v\n", expected, actual)
}

func TestGetVersion(t *testing.T) {
	store := session.NewStore(0)
	// Create a New Request
	req, _ := http.NewRequest("GET", "/version", nil)
	// Execute Request
	response := executeTestRequest(t, req, store, nil)

	// Check the response code
	require.Equal(t, http.StatusOK, response.Code)

	// Check headers
	checkHeader(t, response.Result().Header)

	compareJson(t,
		&GetVersionRsp{
			ServerVersion: "Pingmark Session Server: " + server.Version,
			ApiVersion:    Version,
		}, response.Body.String())
}

func TestGetVersionClientCompatibility(t *testing.T) {
	store := session.NewStore(0)

	cases := []struct {
		client     string
		compatible bool
	}{
		{server.Version, true},
		{"0.2.0", false},
		{"not-a-version", false},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest("GET", "/version?client="+tc.client, nil)
		response := executeTestRequest(t, req, store, nil)
		require.Equal(t, http.StatusOK, response.Code)

		rsp := &GetVersionRsp{}
		require.NoError(t, json.Unmarshal(response.Body.Bytes(), rsp))
		require.NotNil(t, rsp.Compatible, "client %q", tc.client)
		assert.Equal(t, tc.compatible, *rsp.Compatible, "client %q", tc.client)
	}
}

func TestGetReadiness(t *testing.T) {
	store := session.NewStore(0)
	store.Create("127.0.0.1:50001")
	store.Create("127.0.0.1:50002")

	// Create a New Request
	req, _ := http.NewRequest("GET", "/ready", nil)
	// Execute Request
	response := executeTestRequest(t, req, store, func() int { return 3 })

	// Check the response code
	require.Equal(t, http.StatusOK, response.Code)

	// Check headers
	checkHeader(t, response.Result().Header)

	// Check response body
	compareJson(t, map[string]any{
		"status":         "ready",
		"activeSessions": 2,
		"activeWorkers":  3,
	}, response.Body.String())
}

func TestGetReadinessWithoutWorkerGauge(t *testing.T) {
	store := session.NewStore(0)

	req, _ := http.NewRequest("GET", "/ready", nil)
	response := executeTestRequest(t, req, store, nil)

	require.Equal(t, http.StatusOK, response.Code)
	compareJson(t, map[string]any{
		"status":         "ready",
		"activeSessions": 0,
	}, response.Body.String())
}

func TestGetSessions(t *testing.T) {
	store := session.NewStore(0)
	id1 := store.Create("127.0.0.1:50001")
	id2 := store.Create("127.0.0.1:50002")
	id3 := store.Create("127.0.0.1:50003")
	require.True(t, store.UpdateData(id2, "last_ping", "hello"))

	// Create a New Request
	req, _ := http.NewRequest("GET", "/sessions", nil)
	// Execute Request
	response := executeTestRequest(t, req, store, nil)

	// Check the response code
	require.Equal(t, http.StatusOK, response.Code)

	// Check headers
	checkHeader(t, response.Result().Header)

	rsp := &GetSessionsRsp{}
	err := json.Unmarshal(response.Body.Bytes(), rsp)
	require.NoError(t, err, "Failed to unmarshal sessions response")
	require.Equal(t, 3, rsp.Count)
	require.Len(t, rsp.Sessions, 3)

	seen := map[string]SessionInfo{}
	for _, info := range rsp.Sessions {
		seen[info.SessionID] = info
		assert.GreaterOrEqual(t, info.AgeSeconds, 0.0)
		assert.False(t, info.CreatedAt.IsZero())
	}
	require.Contains(t, seen, id1)
	require.Contains(t, seen, id2)
	require.Contains(t, seen, id3)
	assert.Equal(t, "127.0.0.1:50001", seen[id1].RemoteAddr)
	assert.Equal(t, map[string]string{"last_ping": "hello"}, seen[id2].Data)
	assert.Empty(t, seen[id3].Data)
}

func TestGetSessionsLimit(t *testing.T) {
	store := session.NewStore(0)
	for i := 0; i < 5; i++ {
		store.Create("127.0.0.1:50001")
	}

	req, _ := http.NewRequest("GET", "/sessions?limit=2", nil)
	response := executeTestRequest(t, req, store, nil)

	require.Equal(t, http.StatusOK, response.Code)

	rsp := &GetSessionsRsp{}
	err := json.Unmarshal(response.Body.Bytes(), rsp)
	require.NoError(t, err, "Failed to unmarshal sessions response")
	require.Equal(t, 2, rsp.Count)
	require.Len(t, rsp.Sessions, 2)
}

func TestGetSessionsBadLimit(t *testing.T) {
	store := session.NewStore(0)

	req, _ := http.NewRequest("GET", "/sessions?limit=nope", nil)
	response := executeTestRequest(t, req, store, nil)

	require.Equal(t, http.StatusBadRequest, response.Code)
	compareJson(t, map[string]any{
		"result": 0,
		"error":  "limit must be a non-negative integer",
	}, response.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	store := session.NewStore(0)

	req, _ := http.NewRequest("POST", "/version", nil)
	response := executeTestRequest(t, req, store, nil)

	require.Equal(t, http.StatusMethodNotAllowed, response.Code)
	compareJson(t, map[string]any{
		"result": 0,
		"error":  "request method not supported",
	}, response.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	config.TestInit()
	config.Config().Diag.HandleCORS = true

	store := session.NewStore(0)
	s, err := CreateNewServer(store, nil)
	require.NoError(t, err, "create new server")
	s.MountHandlers()

	req, _ := http.NewRequest("GET", "/ready", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Result().Header.Get("Access-Control-Allow-Origin"))
}
