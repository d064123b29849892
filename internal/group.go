package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/koopa0/system-design/14-group-chat/pkg/errors"
)

// Group 群組狀態的唯一擁有者
//
// 系統設計考量：
//
//  1. 並發控制（單一 Mutex）：
//     問題：多個連線同時送出加入請求，「檢查名稱唯一 → 寫入」必須是原子操作
//     方案：每個操作從驗證、修改到廣播全程持有同一把鎖
//     注意：廣播只是把訊息放進各連線的緩衝 channel，不會阻塞
//
//  2. 鎖順序：
//     Group.mu → WebSocketHub.mu，Hub 絕不在持有自己的鎖時呼叫 Group
//
//  3. 唯一的延遲動作：
//     拒絕加入後等待一小段時間再關閉連線（讓拒絕訊息先送達），
//     排程後不可取消，即使連線在計時器觸發前狀態已改變
type Group struct {
	mu      sync.Mutex
	session *Session
	out     *Broadcaster

	password string
	grace    time.Duration

	metrics *Metrics
	logger  *slog.Logger
}

// NewGroup 創建群組
func NewGroup(cfg GroupConfig, dir Directory, metrics *Metrics, logger *slog.Logger) *Group {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Group{
		session:  NewSession(),
		out:      NewBroadcaster(dir),
		password: cfg.DefaultPassword,
		grace:    cfg.RejectGracePeriod,
		metrics:  metrics,
		logger:   logger,
	}
}

// Join 處理 joinWithPassword：無房主時建立群組，否則嘗試加入
func (g *Group) Join(connID, username, password string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.session.HasHost() {
		return g.createAsHost(connID, username, password)
	}
	if err := g.prepareJoin(connID); err != nil {
		return OutcomeInvalid, err
	}
	return g.attemptJoin(connID, username, password)
}

// CreateAsHost 建立群組並成為房主（群組必須尚未存在）
func (g *Group) CreateAsHost(connID, username, password string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.HasHost() {
		return OutcomeInvalid, apperrors.ErrGroupExists
	}
	return g.createAsHost(connID, username, password)
}

// AttemptJoin 加入既有群組（群組必須已存在）
func (g *Group) AttemptJoin(connID, username, password string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.session.HasHost() {
		return OutcomeInvalid, apperrors.ErrNoGroup
	}
	if err := g.prepareJoin(connID); err != nil {
		return OutcomeInvalid, err
	}
	return g.attemptJoin(connID, username, password)
}

// prepareJoin 成員不可重複加入
func (g *Group) prepareJoin(connID string) error {
	if _, ok := g.session.Member(connID); ok {
		err := apperrors.New(apperrors.ErrCodeAlreadyJoined, "You have already joined the group")
		g.rejectInput(connID, err)
		return err
	}
	return nil
}

// withdrawPending 等待中的連線以新的嘗試取代舊請求（只在新嘗試成立時呼叫）
func (g *Group) withdrawPending(connID string) {
	if p, ok := g.session.RemovePending(connID); ok {
		g.logger.Info("撤回舊的加入請求", "conn_id", connID, "username", p.Username)
	}
}

func (g *Group) createAsHost(connID, username, password string) (Outcome, error) {
	name, err := ValidateUsername(username, g.session.UsernameTaken)
	if err != nil {
		g.rejectInput(connID, err)
		return OutcomeInvalid, err
	}

	d := Authorize(false, password, g.password)
	if d.Outcome != OutcomeBecomeHost {
		g.rejectInput(connID, d.Err)
		return d.Outcome, d.Err
	}

	if _, err := g.session.AddMember(connID, name, true, time.Now()); err != nil {
		return OutcomeInvalid, apperrors.Wrap(err, apperrors.ErrCodeConflict, "無法建立群組")
	}
	g.metrics.GroupsCreated.Add(1)

	g.out.ToConn(connID, EventJoinSuccess, JoinSuccess{
		Username: name,
		IsHost:   true,
		Message:  "You created the group as host!",
	})
	g.out.Users(g.session.Usernames())

	g.logger.Info("群組已建立", "conn_id", connID, "host", name)
	return OutcomeBecomeHost, nil
}

func (g *Group) attemptJoin(connID, username, password string) (Outcome, error) {
	name, err := ValidateUsername(username, g.session.UsernameTaken)
	if err != nil {
		g.rejectInput(connID, err)
		return OutcomeInvalid, err
	}

	hostID, _ := g.session.Host()
	now := time.Now()
	d := Authorize(true, password, g.password)

	switch d.Outcome {
	case OutcomeDirectJoin:
		g.withdrawPending(connID)
		if _, err := g.session.AddMember(connID, name, false, now); err != nil {
			return OutcomeInvalid, apperrors.Wrap(err, apperrors.ErrCodeConflict, "無法加入群組")
		}
		g.metrics.DirectJoins.Add(1)

		g.out.ToConn(connID, EventJoinSuccess, JoinSuccess{
			Username: name,
			IsHost:   false,
			Message:  "You joined the chat!",
		})
		g.out.Users(g.session.Usernames())
		g.out.System(systemMessage(now, name+" joined the chat"))
		g.out.ToConn(hostID, EventJoinAlert, JoinAlert{
			Username: name,
			Message:  name + " joined the group with password",
			Type:     AlertSuccess,
		})

		g.logger.Info("成員以密碼直接加入", "conn_id", connID, "username", name)

	case OutcomePendingRequest:
		g.withdrawPending(connID)
		req, err := g.session.AddPending(connID, name, now)
		if err != nil {
			return OutcomeInvalid, apperrors.Wrap(err, apperrors.ErrCodeConflict, "無法建立加入請求")
		}
		g.metrics.JoinRequests.Add(1)

		g.out.ToConn(hostID, EventJoinRequest, JoinRequest{
			SocketID:  connID,
			Username:  name,
			Timestamp: req.RequestedAt.UnixMilli(),
		})
		g.out.ToConn(connID, EventJoinPending, JoinPending{
			Username: name,
			Message:  "Join request sent to host. Waiting for approval...",
		})

		g.logger.Info("加入請求等待房主審核", "conn_id", connID, "username", name)

	case OutcomeWrongPassword:
		// 只通知，不建立請求、不加入成員，既有的等待請求保留
		g.metrics.WrongPasswords.Add(1)

		g.out.ToConn(hostID, EventJoinAlert, JoinAlert{
			Username: name,
			Message:  name + " tried to join with wrong password",
			Type:     AlertWarning,
		})
		g.out.JoinError(connID, apperrors.Message(d.Err))

		g.logger.Info("密碼錯誤的加入嘗試", "conn_id", connID, "username", name)
		return OutcomeWrongPassword, d.Err

	default:
		g.rejectInput(connID, d.Err)
		return d.Outcome, d.Err
	}

	return d.Outcome, nil
}

// rejectInput 以 join:error 回報驗證錯誤
func (g *Group) rejectInput(connID string, err error) {
	g.metrics.ValidationErrors.Add(1)
	g.out.JoinError(connID, apperrors.Message(err))
	g.logger.Info("加入驗證失敗", "conn_id", connID, "error", err)
}

// HandleJoinRequest 房主審核加入請求
func (g *Group) HandleJoinRequest(hostConnID, targetConnID, action string) error {
	switch action {
	case ActionApprove:
		return g.Approve(hostConnID, targetConnID)
	case ActionReject:
		return g.Reject(hostConnID, targetConnID)
	default:
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown action %q", action)
	}
}

// Approve 同意加入請求
func (g *Group) Approve(hostConnID, targetConnID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.takeRequest(hostConnID, targetConnID)
	if err != nil {
		return err
	}

	if !g.out.Connected(targetConnID) {
		g.logger.Info("請求者已離線，忽略同意", "conn_id", targetConnID, "username", req.Username)
		return nil
	}

	if g.session.UsernameTaken(req.Username) {
		// 等待期間同名成員已直接加入，請求作廢
		err := apperrors.New(apperrors.ErrCodeUsernameTaken, "Username already taken")
		g.rejectInput(targetConnID, err)
		g.out.ToConn(hostConnID, EventRequestHandled, RequestHandled{
			SocketID: targetConnID,
			Action:   "rejected",
		})
		return err
	}

	now := time.Now()
	if _, err := g.session.AddMember(targetConnID, req.Username, false, now); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, "無法加入群組")
	}
	g.metrics.Approvals.Add(1)

	g.out.ToConn(targetConnID, EventJoinSuccess, JoinSuccess{
		Username: req.Username,
		IsHost:   false,
		Message:  "Host approved your join request!",
	})
	g.out.Users(g.session.Usernames())
	g.out.System(systemMessage(now, req.Username+" joined the chat (approved by host)"))
	g.out.ToConn(hostConnID, EventRequestHandled, RequestHandled{
		SocketID: targetConnID,
		Action:   "approved",
	})

	g.logger.Info("房主同意加入", "conn_id", targetConnID, "username", req.Username)
	return nil
}

// Reject 拒絕加入請求，寬限期後關閉請求者連線
func (g *Group) Reject(hostConnID, targetConnID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.takeRequest(hostConnID, targetConnID)
	if err != nil {
		return err
	}
	g.metrics.Rejections.Add(1)

	_, hostName := g.session.Host()
	if g.out.Connected(targetConnID) {
		g.out.ToConn(targetConnID, EventJoinRejected, JoinRejected{
			HostUsername: hostName,
			Message:      "Host rejected your join request",
		})
		g.scheduleClose(targetConnID)
	}

	g.out.ToConn(hostConnID, EventRequestHandled, RequestHandled{
		SocketID: targetConnID,
		Action:   "rejected",
	})
	g.out.ToConn(hostConnID, EventMessageNew,
		systemMessage(time.Now(), "You rejected "+req.Username+"'s join request"))

	g.logger.Info("房主拒絕加入", "conn_id", targetConnID, "username", req.Username)
	return nil
}

// takeRequest 驗證房主身份並取出請求
func (g *Group) takeRequest(hostConnID, targetConnID string) (*PendingRequest, error) {
	if !g.session.IsHost(hostConnID) {
		return nil, apperrors.ErrNotHost
	}
	req, ok := g.session.RemovePending(targetConnID)
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	return req, nil
}

// scheduleClose 一次性延遲關閉，排程後不可取消
func (g *Group) scheduleClose(connID string) {
	time.AfterFunc(g.grace, func() {
		g.out.Close(connID)
		g.logger.Debug("已關閉被拒絕的連線", "conn_id", connID)
	})
}

// Status 群組狀態（group:status 內容）
func (g *Group) Status() GroupStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status()
}

func (g *Group) status() GroupStatus {
	_, hostName := g.session.Host()
	return GroupStatus{
		HasHost:      g.session.HasHost(),
		HostUsername: hostName,
	}
}

// SendStatus 回應 getGroupStatus
func (g *Group) SendStatus(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out.ToConn(connID, EventGroupStatus, g.status())
}

// Relay 轉發聊天訊息給所有連線（含發送者），只有成員可以發送
func (g *Group) Relay(connID string, msg SendMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.session.Member(connID); !ok {
		return apperrors.ErrNotMember
	}
	if msg.Username == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "message without username")
	}

	g.out.ToAll(EventMessageNew, MessageNew{
		ID:       msg.ID,
		Text:     msg.Text,
		Username: msg.Username,
		Sender:   connID,
		Time:     msg.Time,
	})
	g.metrics.MessagesRelayed.Add(1)
	return nil
}

// Heartbeat 應用層心跳，只回應不做逾時判斷
func (g *Group) Heartbeat(connID string) {
	g.out.ToConn(connID, EventHeartbeatAck, HeartbeatAck{})
}

// Snapshot 群組狀態副本
func (g *Group) Snapshot() SessionSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Snapshot()
}

// GroupSummary HTTP 狀態查詢用的摘要
type GroupSummary struct {
	HasHost      bool   `json:"has_host"`
	HostUsername string `json:"host_username,omitempty"`
	MemberCount  int    `json:"member_count"`
	PendingCount int    `json:"pending_count"`
	TypingCount  int    `json:"typing_count"`
}

// Summary 群組摘要
func (g *Group) Summary() GroupSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, hostName := g.session.Host()
	return GroupSummary{
		HasHost:      g.session.HasHost(),
		HostUsername: hostName,
		MemberCount:  g.session.MemberCount(),
		PendingCount: g.session.PendingCount(),
		TypingCount:  len(g.session.TypingUsernames()),
	}
}

// Handle 處理客戶端事件
//
// 驗證錯誤已經以 join:error 通知發起者；授權錯誤與協議違規一律靜默丟棄，
// 只記錄日誌。回傳的錯誤僅供呼叫者觀察。
func (g *Group) Handle(connID string, ev InboundEvent) error {
	var (
		err      error
		reported bool // 已以 join:error 通知發起者
	)

	switch e := ev.(type) {
	case JoinWithPassword:
		_, err = g.Join(connID, e.Username, e.Password)
		reported = apperrors.IsValidation(err)
	case HandleJoinRequest:
		err = g.HandleJoinRequest(connID, e.SocketID, e.Action)
	case GetGroupStatus:
		g.SendStatus(connID)
	case Typing:
		err = g.RecordTyping(connID)
	case StopTyping:
		err = g.ClearTyping(connID)
	case SendMessage:
		err = g.Relay(connID, e)
	case Heartbeat:
		g.Heartbeat(connID)
	default:
		err = fmt.Errorf("未處理的事件類型: %T", ev)
	}

	if err != nil && !reported {
		g.metrics.EventsDropped.Add(1)
		g.logger.Debug("忽略事件",
			"conn_id", connID,
			"event", fmt.Sprintf("%T", ev),
			"error", err)
	}

	return err
}
