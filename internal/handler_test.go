package internal_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/koopa0/system-design/14-group-chat/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // 測試伺服器位址
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// TestHandler_Health 測試健康檢查
func TestHandler_Health(t *testing.T) {
	ts := newTestServer(t, nil)

	var body map[string]any
	resp := getJSON(t, ts.srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "healthy", body["status"])
	assert.NotZero(t, body["time"])
}

// TestHandler_GroupStatus 測試群組摘要
func TestHandler_GroupStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	var summary internal.GroupSummary
	resp := getJSON(t, ts.srv.URL+"/api/v1/group/status", &summary)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, summary.HasHost)

	conn := ts.dial(t, nil)
	joinAsHost(t, conn, "alice")

	getJSON(t, ts.srv.URL+"/api/v1/group/status", &summary)
	assert.Equal(t, internal.GroupSummary{
		HasHost:      true,
		HostUsername: "alice",
		MemberCount:  1,
	}, summary)
}

// TestHandler_Stats 測試統計資訊
func TestHandler_Stats(t *testing.T) {
	ts := newTestServer(t, nil)

	conn := ts.dial(t, nil)
	joinAsHost(t, conn, "alice")

	var body struct {
		Metrics     internal.MetricsSnapshot `json:"metrics"`
		Connections int                      `json:"connections"`
		Group       internal.GroupSummary    `json:"group"`
	}
	resp := getJSON(t, ts.srv.URL+"/stats", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Connections)
	assert.Equal(t, int64(1), body.Metrics.ConnectionsTotal)
	assert.Equal(t, int64(1), body.Metrics.ConnectionsActive)
	assert.Equal(t, int64(1), body.Metrics.GroupsCreated)
	assert.True(t, body.Group.HasHost)
}

// TestHandler_Metrics 測試 Prometheus 文字格式
func TestHandler_Metrics(t *testing.T) {
	ts := newTestServer(t, nil)

	conn := ts.dial(t, nil)
	joinAsHost(t, conn, "alice")

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, text, "# TYPE groupchat_connections_active gauge")
	assert.Contains(t, text, "groupchat_connections_active 1\n")
	assert.Contains(t, text, "groupchat_group_has_host 1\n")
	assert.Contains(t, text, "groupchat_members 1\n")
	assert.Contains(t, text, "# TYPE groupchat_groups_created_total counter")
	assert.Contains(t, text, "groupchat_groups_created_total 1\n")
	assert.Contains(t, text, "# TYPE groupchat_uptime_seconds gauge")
}

// TestHandler_CORS 測試跨來源設定
func TestHandler_CORS(t *testing.T) {
	tests := []struct {
		name     string
		allowed  string
		origin   string
		expected string
	}{
		{name: "wildcard", allowed: "*", origin: "http://any.example", expected: "*"},
		{name: "listed origin echoed", allowed: "http://a.example,http://b.example", origin: "http://b.example", expected: "http://b.example"},
		{name: "unlisted origin", allowed: "http://a.example", origin: "http://evil.example", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, func(cfg *internal.Config) {
				cfg.Server.AllowedOrigin = tt.allowed
			})

			req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/health", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.expected, resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

// TestHandler_ErrorHandling 測試錯誤路由
func TestHandler_ErrorHandling(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/api/v1/rooms", expectedStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/health", expectedStatus: http.StatusMethodNotAllowed},
		{name: "plain http on websocket endpoint", method: http.MethodGet, path: "/ws", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.srv.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}
