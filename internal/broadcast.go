package internal

// Directory 連線目錄（傳輸層提供）
//
// 以連線 ID 定位單一連線；所有發送都是 fire-and-forget，不確認、不重試。
type Directory interface {
	Send(connID string, ev Event)
	Broadcast(ev Event)
	BroadcastExcept(connID string, ev Event)
	Close(connID string)
	Connected(connID string) bool
}

// Broadcaster 把群組狀態變更翻譯成對外事件
type Broadcaster struct {
	dir Directory
}

// NewBroadcaster 創建廣播器
func NewBroadcaster(dir Directory) *Broadcaster {
	return &Broadcaster{dir: dir}
}

// ToConn 發給單一連線
func (b *Broadcaster) ToConn(connID, event string, data any) {
	b.dir.Send(connID, Event{Type: event, Data: data})
}

// ToAll 發給所有連線
func (b *Broadcaster) ToAll(event string, data any) {
	b.dir.Broadcast(Event{Type: event, Data: data})
}

// ToOthers 發給除了 connID 以外的所有連線
func (b *Broadcaster) ToOthers(connID, event string, data any) {
	b.dir.BroadcastExcept(connID, Event{Type: event, Data: data})
}

// JoinError 通知驗證錯誤
func (b *Broadcaster) JoinError(connID, message string) {
	b.ToConn(connID, EventJoinError, JoinError{Message: message})
}

// Users 廣播成員列表
func (b *Broadcaster) Users(usernames []string) {
	b.ToAll(EventUsersUpdate, UsersUpdate{Usernames: usernames})
}

// TypingToOthers 廣播輸入中列表（不含發起者）
func (b *Broadcaster) TypingToOthers(connID string, usernames []string) {
	b.ToOthers(connID, EventTypingUpdate, TypingUpdate{Usernames: usernames})
}

// System 廣播系統訊息
func (b *Broadcaster) System(msg MessageNew) {
	b.ToAll(EventMessageNew, msg)
}

// Close 關閉連線
func (b *Broadcaster) Close(connID string) {
	b.dir.Close(connID)
}

// Connected 連線是否仍存在
func (b *Broadcaster) Connected(connID string) bool {
	return b.dir.Connected(connID)
}
