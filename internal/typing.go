package internal

import (
	apperrors "github.com/koopa0/system-design/14-group-chat/pkg/errors"
)

// 輸入狀態以使用者名稱為鍵（依賴名稱唯一）。
// 服務器端沒有逾時，最後一次客戶端訊號即為狀態；
// 每次變更都把完整列表廣播給發起者以外的所有連線。

// RecordTyping 標記成員輸入中
func (g *Group) RecordTyping(connID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.session.Member(connID)
	if !ok {
		return apperrors.ErrNotMember
	}

	g.session.StartTyping(m.Username)
	g.out.TypingToOthers(connID, g.session.TypingUsernames())
	return nil
}

// ClearTyping 取消成員輸入中，重複呼叫不改變狀態
func (g *Group) ClearTyping(connID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.session.Member(connID)
	if !ok {
		return apperrors.ErrNotMember
	}

	g.session.StopTyping(m.Username)
	g.out.TypingToOthers(connID, g.session.TypingUsernames())
	return nil
}
