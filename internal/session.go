package internal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// 系統設計問題：
//   單一房間、無持久化的群組聊天，如何維護「誰是房主、誰是成員、誰在等待審核」？
//
// 核心挑戰：
//   1. 唯一性：使用者名稱不分大小寫唯一
//   2. 互斥：同一連線只能是成員或等待者之一
//   3. 房主離線：整個群組硬重置，不做房主轉移
//
// 設計方案：
//   ✅ Session 只保存狀態與不變量，不處理鎖
//   ✅ 鎖與廣播由擁有者 Group 負責（一次操作持有一次鎖）
//   ✅ 連線層的旗標（是否房主、是否等待中）放在這張表，不掛在連線物件上

// Member 已加入的成員
type Member struct {
	ConnID   string    `json:"conn_id"`
	Username string    `json:"username"`
	IsHost   bool      `json:"is_host"`
	JoinedAt time.Time `json:"joined_at"`
}

// PendingRequest 等待房主審核的加入請求
type PendingRequest struct {
	ConnID      string    `json:"conn_id"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requested_at"`
}

// Session 群組狀態
//
// 非併發安全，必須由 Group 持鎖操作。
type Session struct {
	host         string // 空字串表示尚無群組
	hostUsername string

	members map[string]*Member
	order   []string // 成員連線 ID，按加入順序

	typing []string // 輸入中的使用者名稱，按開始順序

	pending map[string]*PendingRequest
}

// NewSession 創建空的群組狀態
func NewSession() *Session {
	return &Session{
		members: make(map[string]*Member),
		pending: make(map[string]*PendingRequest),
	}
}

// HasHost 是否已有房主
func (s *Session) HasHost() bool {
	return s.host != ""
}

// Host 回傳房主連線 ID 與名稱
func (s *Session) Host() (connID, username string) {
	return s.host, s.hostUsername
}

// IsHost 連線是否為房主
func (s *Session) IsHost(connID string) bool {
	return connID != "" && s.host == connID
}

// Member 查詢成員
func (s *Session) Member(connID string) (*Member, bool) {
	m, ok := s.members[connID]
	return m, ok
}

// Pending 查詢等待中的請求
func (s *Session) Pending(connID string) (*PendingRequest, bool) {
	p, ok := s.pending[connID]
	return p, ok
}

// UsernameTaken 名稱是否已被成員使用（不分大小寫）
//
// 等待者不佔用名稱；同意加入時再檢查一次。
func (s *Session) UsernameTaken(username string) bool {
	for _, m := range s.members {
		if strings.EqualFold(m.Username, username) {
			return true
		}
	}
	return false
}

// AddMember 加入成員；isHost 為 true 時同時設定房主
func (s *Session) AddMember(connID, username string, isHost bool, now time.Time) (*Member, error) {
	if _, exists := s.members[connID]; exists {
		return nil, fmt.Errorf("連線已是成員: %s", connID)
	}
	if _, exists := s.pending[connID]; exists {
		return nil, fmt.Errorf("連線仍在等待審核: %s", connID)
	}
	if isHost && s.HasHost() {
		return nil, fmt.Errorf("群組已有房主: %s", s.hostUsername)
	}

	m := &Member{
		ConnID:   connID,
		Username: username,
		IsHost:   isHost,
		JoinedAt: now,
	}
	s.members[connID] = m
	s.order = append(s.order, connID)

	if isHost {
		s.host = connID
		s.hostUsername = username
	}

	return m, nil
}

// RemoveMember 移除成員（不處理房主，房主離開走 Reset）
func (s *Session) RemoveMember(connID string) (*Member, bool) {
	m, ok := s.members[connID]
	if !ok {
		return nil, false
	}

	delete(s.members, connID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == connID })
	return m, true
}

// AddPending 建立加入請求
func (s *Session) AddPending(connID, username string, now time.Time) (*PendingRequest, error) {
	if _, exists := s.members[connID]; exists {
		return nil, fmt.Errorf("連線已是成員: %s", connID)
	}

	p := &PendingRequest{
		ConnID:      connID,
		Username:    username,
		RequestedAt: now,
	}
	s.pending[connID] = p
	return p, nil
}

// RemovePending 移除加入請求
func (s *Session) RemovePending(connID string) (*PendingRequest, bool) {
	p, ok := s.pending[connID]
	if !ok {
		return nil, false
	}
	delete(s.pending, connID)
	return p, true
}

// Usernames 按加入順序回傳成員名稱
func (s *Session) Usernames() []string {
	names := make([]string, 0, len(s.order))
	for _, id := range s.order {
		names = append(names, s.members[id].Username)
	}
	return names
}

// PendingCount 等待中的請求數量
func (s *Session) PendingCount() int {
	return len(s.pending)
}

// MemberCount 成員數量
func (s *Session) MemberCount() int {
	return len(s.members)
}

// StartTyping 標記輸入中，回傳狀態是否改變
func (s *Session) StartTyping(username string) bool {
	if slices.Contains(s.typing, username) {
		return false
	}
	s.typing = append(s.typing, username)
	return true
}

// StopTyping 取消輸入中，回傳狀態是否改變
func (s *Session) StopTyping(username string) bool {
	i := slices.Index(s.typing, username)
	if i < 0 {
		return false
	}
	s.typing = slices.Delete(s.typing, i, i+1)
	return true
}

// IsTyping 使用者是否輸入中
func (s *Session) IsTyping(username string) bool {
	return slices.Contains(s.typing, username)
}

// TypingUsernames 回傳輸入中的使用者名稱（副本）
func (s *Session) TypingUsernames() []string {
	return append([]string{}, s.typing...)
}

// Reset 清空整個群組
func (s *Session) Reset() {
	s.host = ""
	s.hostUsername = ""
	s.members = make(map[string]*Member)
	s.order = nil
	s.typing = nil
	s.pending = make(map[string]*PendingRequest)
}

// SessionSnapshot 群組狀態的唯讀副本
type SessionSnapshot struct {
	HostConnID   string           `json:"host_conn_id,omitempty"`
	HostUsername string           `json:"host_username,omitempty"`
	Members      []Member         `json:"members"`
	Pending      []PendingRequest `json:"pending"`
	Typing       []string         `json:"typing"`
}

// Snapshot 複製目前狀態
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		HostConnID:   s.host,
		HostUsername: s.hostUsername,
		Members:      make([]Member, 0, len(s.order)),
		Pending:      make([]PendingRequest, 0, len(s.pending)),
		Typing:       s.TypingUsernames(),
	}
	for _, id := range s.order {
		snap.Members = append(snap.Members, *s.members[id])
	}
	for _, p := range s.pending {
		snap.Pending = append(snap.Pending, *p)
	}
	slices.SortFunc(snap.Pending, func(a, b PendingRequest) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})
	return snap
}

// CheckInvariants 檢查群組不變量，違反時回傳第一個錯誤
func (s *Session) CheckInvariants() error {
	hosts := 0
	seen := make(map[string]string, len(s.members))

	for id, m := range s.members {
		if m.IsHost {
			hosts++
			if id != s.host {
				return fmt.Errorf("房主旗標與房主 ID 不一致: %s != %s", id, s.host)
			}
		}
		key := strings.ToLower(m.Username)
		if other, dup := seen[key]; dup {
			return fmt.Errorf("使用者名稱重複: %s (%s, %s)", m.Username, other, id)
		}
		seen[key] = id

		if _, both := s.pending[id]; both {
			return fmt.Errorf("連線同時是成員與等待者: %s", id)
		}
	}

	if hosts > 1 {
		return fmt.Errorf("房主數量異常: %d", hosts)
	}

	if s.host != "" {
		m, ok := s.members[s.host]
		if !ok || !m.IsHost || s.hostUsername == "" || m.Username != s.hostUsername {
			return fmt.Errorf("房主記錄不一致: %s", s.host)
		}
	} else if s.hostUsername != "" || hosts != 0 {
		return fmt.Errorf("無房主但仍有房主資料")
	}

	if len(s.order) != len(s.members) {
		return fmt.Errorf("成員順序表長度不一致: %d != %d", len(s.order), len(s.members))
	}

	for _, name := range s.typing {
		if _, ok := seen[strings.ToLower(name)]; !ok {
			return fmt.Errorf("輸入中的使用者不是成員: %s", name)
		}
	}

	return nil
}
