package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Group     GroupConfig     `yaml:"group"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP 服務配置
type ServerConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	AllowedOrigin string        `yaml:"allowed_origin"` // "*" 或空字串表示不限制
}

// GroupConfig 群組配置
type GroupConfig struct {
	DefaultPassword   string        `yaml:"default_password"`
	RejectGracePeriod time.Duration `yaml:"reject_grace_period"` // 拒絕通知送出後多久關閉連線
}

// WebSocketConfig 連線配置
type WebSocketConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	RateLimit      float64       `yaml:"rate_limit"` // 每秒事件數，0 表示不限制
	RateBurst      int           `yaml:"rate_burst"`
}

// LogConfig 日誌配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig 預設配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:          3000,
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			AllowedOrigin: "*",
		},
		Group: GroupConfig{
			DefaultPassword:   "12345",
			RejectGracePeriod: 100 * time.Millisecond,
		},
		WebSocket: WebSocketConfig{
			PingInterval:   54 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			MaxMessageSize: 64 * 1024,
			SendBuffer:     256,
			RateLimit:      20,
			RateBurst:      40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig 載入配置
//
// 順序：預設值 → YAML 檔案（path 非空時）→ 環境變數 → 驗證。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // 路徑來自命令列參數
		if err != nil {
			return Config{}, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("解析配置檔失敗: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv 環境變數覆蓋（部署環境常用）
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DEFAULT_PASSWORD"); ok && v != "" {
		c.Group.DefaultPassword = v
	}
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.Server.AllowedOrigin = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("無效的 PORT: %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Group.DefaultPassword) == "" {
		return fmt.Errorf("群組密碼不能為空")
	}
	if c.Group.RejectGracePeriod < 0 {
		return fmt.Errorf("reject_grace_period 不能為負數")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("端口必須在 1-65535 之間: %d", c.Server.Port)
	}
	if c.WebSocket.PongWait <= 0 || c.WebSocket.PingInterval <= 0 || c.WebSocket.WriteWait <= 0 {
		return fmt.Errorf("websocket 時間設定必須大於 0")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("ping_interval (%s) 必須小於 pong_wait (%s)", c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size 必須大於 0")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer 必須大於 0")
	}
	if c.WebSocket.RateLimit < 0 {
		return fmt.Errorf("rate_limit 不能為負數")
	}
	if c.WebSocket.RateLimit > 0 && c.WebSocket.RateBurst <= 0 {
		return fmt.Errorf("啟用 rate_limit 時 rate_burst 必須大於 0")
	}
	return nil
}

// Addr 監聽位址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
