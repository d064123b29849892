package internal

import "time"

// 連線狀態機：
//
//	Anonymous → Pending → Member → Disconnected
//	Anonymous → Member → Disconnected            （直接加入 / 建立群組）
//	Pending → Rejected → Disconnected            （拒絕後寬限期關閉）
//
// 房主斷線時整個群組硬重置：其他連線的傳輸層不受影響，
// 但邏輯上全部回到 Anonymous，直到有人重新建立群組。

// Connect 新連線，不修改群組狀態
func (g *Group) Connect(connID string) {
	g.metrics.ConnectionsTotal.Add(1)
	g.metrics.ConnectionsActive.Add(1)
	g.logger.Debug("新連線", "conn_id", connID)
}

// Disconnect 連線斷開
func (g *Group) Disconnect(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.metrics.ConnectionsActive.Add(-1)

	member, isMember := g.session.Member(connID)

	if isMember && g.session.StopTyping(member.Username) {
		g.out.TypingToOthers(connID, g.session.TypingUsernames())
	}

	if g.session.IsHost(connID) {
		_, hostName := g.session.Host()
		g.out.ToAll(EventGroupReset, GroupReset{
			Message:      "Host disconnected. Group is closed.",
			HostUsername: hostName,
		})
		g.reset()
		g.logger.Info("房主離線，群組已重置", "conn_id", connID, "host", hostName)
		return
	}

	g.session.RemoveMember(connID)
	if req, ok := g.session.RemovePending(connID); ok {
		g.logger.Info("等待中的請求者離線", "conn_id", connID, "username", req.Username)
	}

	if g.session.HasHost() {
		g.out.Users(g.session.Usernames())
	}

	if isMember {
		g.out.System(systemMessage(time.Now(), member.Username+" left the chat"))
		g.logger.Info("成員離開", "conn_id", connID, "username", member.Username)
	}
}

// reset 清空群組（呼叫者必須持有鎖）
func (g *Group) reset() {
	g.session.Reset()
	g.metrics.GroupResets.Add(1)
}
