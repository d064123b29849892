package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// 客戶端 → 服務器事件名稱
const (
	EventJoinWithPassword  = "joinWithPassword"
	EventHandleJoinRequest = "handleJoinRequest"
	EventGetGroupStatus    = "getGroupStatus"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
	EventSendMessage       = "sendMessage"
	EventHeartbeat         = "heartbeat"
)

// 服務器 → 客戶端事件名稱
const (
	EventJoinSuccess    = "join:success"
	EventJoinError      = "join:error"
	EventJoinPending    = "join:pending"
	EventJoinRejected   = "join:rejected"
	EventJoinRequest    = "join:request"
	EventJoinAlert      = "join:alert"
	EventRequestHandled = "request:handled"
	EventGroupStatus    = "group:status"
	EventUsersUpdate    = "users:update"
	EventTypingUpdate   = "typing:update"
	EventMessageNew     = "message:new"
	EventGroupReset     = "group:reset"
	EventHeartbeatAck   = "heartbeat:ack"
)

// handleJoinRequest 的 action
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Event 線路上的事件框（雙向共用）
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// InboundEvent 客戶端事件（封閉集合，只有本檔案定義的型別實作）
type InboundEvent interface {
	inbound() string
}

// JoinWithPassword 加入 / 建立群組
type JoinWithPassword struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleJoinRequest 房主處理加入請求
type HandleJoinRequest struct {
	SocketID string `json:"socketId"`
	Action   string `json:"action"`
}

// GetGroupStatus 查詢群組狀態
type GetGroupStatus struct{}

// Typing 開始輸入
type Typing struct{}

// StopTyping 停止輸入
type StopTyping struct{}

// SendMessage 聊天訊息，原樣轉發
type SendMessage struct {
	ID       json.RawMessage `json:"id,omitempty"`
	Text     string          `json:"text"`
	Username string          `json:"username"`
	Time     string          `json:"time"`
}

// Heartbeat 應用層心跳
type Heartbeat struct{}

func (JoinWithPassword) inbound() string  { return EventJoinWithPassword }
func (HandleJoinRequest) inbound() string { return EventHandleJoinRequest }
func (GetGroupStatus) inbound() string    { return EventGetGroupStatus }
func (Typing) inbound() string            { return EventTyping }
func (StopTyping) inbound() string        { return EventStopTyping }
func (SendMessage) inbound() string       { return EventSendMessage }
func (Heartbeat) inbound() string         { return EventHeartbeat }

// EventName 回傳事件的線路名稱
func EventName(ev InboundEvent) string {
	return ev.inbound()
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeInbound 解析客戶端送來的文字框
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("解析事件框失敗: %w", err)
	}

	var ev InboundEvent
	switch frame.Event {
	case EventJoinWithPassword:
		var p JoinWithPassword
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case EventHandleJoinRequest:
		var p HandleJoinRequest
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case EventSendMessage:
		var p SendMessage
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case EventGetGroupStatus:
		ev = GetGroupStatus{}
	case EventTyping:
		ev = Typing{}
	case EventStopTyping:
		ev = StopTyping{}
	case EventHeartbeat:
		ev = Heartbeat{}
	default:
		return nil, fmt.Errorf("未知事件類型: %q", frame.Event)
	}

	return ev, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析事件內容失敗: %w", err)
	}
	return nil
}

// 服務器事件內容

// JoinSuccess join:success
type JoinSuccess struct {
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
	Message  string `json:"message"`
}

// JoinError join:error
type JoinError struct {
	Message string `json:"message"`
}

// JoinPending join:pending
type JoinPending struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// JoinRejected join:rejected
type JoinRejected struct {
	HostUsername string `json:"hostUsername"`
	Message      string `json:"message"`
}

// JoinRequest join:request（只發給房主）
type JoinRequest struct {
	SocketID  string `json:"socketId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"` // Unix 毫秒
}

// 房主提示類型
const (
	AlertSuccess = "success"
	AlertWarning = "warning"
)

// JoinAlert join:alert（只發給房主）
type JoinAlert struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

// RequestHandled request:handled
type RequestHandled struct {
	SocketID string `json:"socketId"`
	Action   string `json:"action"`
}

// GroupStatus group:status
type GroupStatus struct {
	HasHost      bool   `json:"hasHost"`
	HostUsername string `json:"hostUsername"` // 無房主時為空字串
}

// UsersUpdate users:update，按加入順序
type UsersUpdate struct {
	Usernames []string `json:"usernames"`
}

// TypingUpdate typing:update
type TypingUpdate struct {
	Usernames []string `json:"usernames"`
}

// MessageNew message:new
type MessageNew struct {
	ID       any    `json:"id"`
	Text     string `json:"text"`
	Username string `json:"username"`
	Sender   string `json:"sender"`
	Time     string `json:"time"`
}

// GroupReset group:reset
type GroupReset struct {
	Message      string `json:"message"`
	HostUsername string `json:"hostUsername"`
}

// HeartbeatAck heartbeat:ack
type HeartbeatAck struct{}

// 系統訊息的發送者
const (
	SystemUsername = "System"
	SystemSender   = "system"
)

// systemMessage 建立系統訊息
func systemMessage(now time.Time, text string) MessageNew {
	return MessageNew{
		ID:       now.UnixMilli(),
		Text:     text,
		Username: SystemUsername,
		Sender:   SystemSender,
		Time:     now.Format("15:04"),
	}
}
