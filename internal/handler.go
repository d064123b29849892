package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Handler HTTP 請求處理器
type Handler struct {
	group         *Group
	hub           *WebSocketHub
	metrics       *Metrics
	allowedOrigin string
	logger        *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(group *Group, hub *WebSocketHub, metrics *Metrics, allowedOrigin string, logger *slog.Logger) *Handler {
	return &Handler{
		group:         group,
		hub:           hub,
		metrics:       metrics,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(h.cors(handler)))
	}

	// WebSocket（不經過 loggerMiddleware，避免包裝 ResponseWriter 影響 Hijack）
	mux.HandleFunc("GET /ws", h.recoverer(h.hub.ServeWS))

	mux.HandleFunc("GET /api/v1/group/status", wrap(h.groupStatus))

	// 健康檢查與監控
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))
	mux.HandleFunc("GET /metrics", wrap(h.prometheus))

	return mux
}

// groupStatus 群組摘要
func (h *Handler) groupStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.group.Summary(), http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"metrics":     h.metrics.Snapshot(),
		"connections": h.hub.ConnectionCount(),
		"group":       h.group.Summary(),
	}, http.StatusOK)
}

// prometheus 以 Prometheus 文字格式輸出指標
func (h *Handler) prometheus(w http.ResponseWriter, r *http.Request) {
	s := h.metrics.Snapshot()
	g := h.group.Summary()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	hasHost := int64(0)
	if g.HasHost {
		hasHost = 1
	}

	write("groupchat_uptime_seconds", "Server uptime in seconds.", "gauge", s.UptimeSeconds)
	write("groupchat_connections_active", "Current websocket connections.", "gauge", s.ConnectionsActive)
	write("groupchat_connections_total", "Websocket connections accepted.", "counter", s.ConnectionsTotal)
	write("groupchat_group_has_host", "Whether a group currently exists.", "gauge", hasHost)
	write("groupchat_members", "Current group members.", "gauge", int64(g.MemberCount))
	write("groupchat_pending_requests", "Join requests awaiting the host.", "gauge", int64(g.PendingCount))
	write("groupchat_groups_created_total", "Groups created.", "counter", s.GroupsCreated)
	write("groupchat_direct_joins_total", "Joins with the correct password.", "counter", s.DirectJoins)
	write("groupchat_join_requests_total", "Join requests sent to the host.", "counter", s.JoinRequests)
	write("groupchat_approvals_total", "Join requests approved.", "counter", s.Approvals)
	write("groupchat_rejections_total", "Join requests rejected.", "counter", s.Rejections)
	write("groupchat_wrong_passwords_total", "Join attempts with a wrong password.", "counter", s.WrongPasswords)
	write("groupchat_validation_errors_total", "Join attempts failing validation.", "counter", s.ValidationErrors)
	write("groupchat_group_resets_total", "Groups reset by host disconnect.", "counter", s.GroupResets)
	write("groupchat_messages_relayed_total", "Chat messages relayed.", "counter", s.MessagesRelayed)
	write("groupchat_events_dropped_total", "Inbound events ignored.", "counter", s.EventsDropped)
	write("groupchat_rate_limited_total", "Inbound events over the rate limit.", "counter", s.RateLimited)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// cors 跨來源設定
func (h *Handler) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := h.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		next(w, r)
	}
}

// allowOrigin 回傳要寫入 Access-Control-Allow-Origin 的值，空字串表示不寫
func (h *Handler) allowOrigin(origin string) string {
	allowed := strings.TrimSpace(h.allowedOrigin)
	if allowed == "" || allowed == "*" {
		return "*"
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return origin
		}
	}
	return ""
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
