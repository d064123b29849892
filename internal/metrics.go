package internal

import (
	"sync/atomic"
	"time"
)

// Metrics 服務運行統計，全部使用原子操作
type Metrics struct {
	startTime time.Time

	// 連線
	ConnectionsTotal  atomic.Int64
	ConnectionsActive atomic.Int64
	RateLimited       atomic.Int64 // 因速率限制而丟棄的事件

	// 加入流程
	GroupsCreated    atomic.Int64
	DirectJoins      atomic.Int64
	JoinRequests     atomic.Int64
	Approvals        atomic.Int64
	Rejections       atomic.Int64
	WrongPasswords   atomic.Int64
	ValidationErrors atomic.Int64
	GroupResets      atomic.Int64

	// 訊息
	MessagesRelayed atomic.Int64
	EventsDropped   atomic.Int64 // 無法解析或不符合身份的事件
}

// NewMetrics 創建統計物件
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot 某一時間點的統計
type MetricsSnapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	ConnectionsTotal  int64 `json:"connections_total"`
	ConnectionsActive int64 `json:"connections_active"`
	RateLimited       int64 `json:"rate_limited"`

	GroupsCreated    int64 `json:"groups_created"`
	DirectJoins      int64 `json:"direct_joins"`
	JoinRequests     int64 `json:"join_requests"`
	Approvals        int64 `json:"approvals"`
	Rejections       int64 `json:"rejections"`
	WrongPasswords   int64 `json:"wrong_passwords"`
	ValidationErrors int64 `json:"validation_errors"`
	GroupResets      int64 `json:"group_resets"`

	MessagesRelayed int64 `json:"messages_relayed"`
	EventsDropped   int64 `json:"events_dropped"`
}

// Snapshot 取得統計快照
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:     int64(m.Uptime().Seconds()),
		ConnectionsTotal:  m.ConnectionsTotal.Load(),
		ConnectionsActive: m.ConnectionsActive.Load(),
		RateLimited:       m.RateLimited.Load(),
		GroupsCreated:     m.GroupsCreated.Load(),
		DirectJoins:       m.DirectJoins.Load(),
		JoinRequests:      m.JoinRequests.Load(),
		Approvals:         m.Approvals.Load(),
		Rejections:        m.Rejections.Load(),
		WrongPasswords:    m.WrongPasswords.Load(),
		ValidationErrors:  m.ValidationErrors.Load(),
		GroupResets:       m.GroupResets.Load(),
		MessagesRelayed:   m.MessagesRelayed.Load(),
		EventsDropped:     m.EventsDropped.Load(),
	}
}

// Uptime 運行時間
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
