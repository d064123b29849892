// Package groupchat 提供單一房間、以密碼把關的即時群組聊天服務器。
//
// 服務器同一時間只承載一個群組，沒有任何持久化：
// 第一個輸入正確密碼的連線成為房主並建立群組，房主離線時群組整個重置。
//
// # 加入流程
//
// 加入結果取決於「群組是否存在」與「提交的密碼」：
//   - 無群組 + 正確密碼：成為房主
//   - 有群組 + 正確密碼：直接加入
//   - 有群組 + 空白密碼：送出加入請求，由房主同意或拒絕
//   - 有群組 + 錯誤密碼：通知房主，不建立請求
//
// 使用者名稱至少 3 個字元、只允許英數字，且在成員間不分大小寫唯一
// （房主同意加入時會再檢查一次）。
//
// # WebSocket 通訊
//
// 所有事件都以同一種 JSON 框傳遞：
//
//	{"event": "joinWithPassword", "data": {"username": "alice", "password": "12345"}}
//
// 傳輸層以 Ping/Pong 檢測死連線；應用層 heartbeat 只回 heartbeat:ack。
// 每條連線有 token bucket 速率限制，超出的事件直接丟棄。
//
// # 併發安全設計
//
// 群組狀態由單一 Mutex 保護，每個操作從驗證、修改到廣播全程持鎖，
// 廣播只寫入各連線的緩衝 channel，不阻塞。
// 鎖順序固定為 Group → Hub，Hub 不在持鎖時回呼群組。
//
// # HTTP 端點
//
//   - GET /ws：WebSocket 連線
//   - GET /api/v1/group/status：群組摘要
//   - GET /health：健康檢查
//   - GET /stats：JSON 統計
//   - GET /metrics：Prometheus 文字格式
//
// # 配置選項
//
// 預設值 → YAML 配置檔 → 環境變數 → 命令行參數，後者覆蓋前者：
//   - -config：YAML 配置檔路徑
//   - -port / PORT：服務監聽端口（預設 3000）
//   - -log-level / LOG_LEVEL：日誌級別（debug/info/warn/error）
//   - -log-format / LOG_FORMAT：日誌格式（text/json）
//   - DEFAULT_PASSWORD：群組密碼（預設 12345）
//   - CORS_ORIGIN：允許的來源，逗號分隔，"*" 表示不限制
//
// # 使用範例
//
//	go run ./cmd/server -port 3000 -log-level debug
package groupchat
