package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-group-chat/internal"
	"github.com/koopa0/system-design/14-group-chat/pkg/logger"
)

func main() {
	// 解析命令行參數（非零值覆蓋配置檔與環境變數）
	var (
		configPath = flag.String("config", "", "配置檔路徑 (YAML)")
		port       = flag.Int("port", 0, "服務器端口")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.New("error", "text", os.Stderr).Error("載入配置失敗", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		logger.New("error", "text", os.Stderr).Error("配置無效", "error", err)
		os.Exit(1)
	}

	// 設置日誌
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	metrics := internal.NewMetrics()

	// Hub 與群組互相引用：先建 Hub，再以 Hub 作為連線目錄建立群組
	wsHub := internal.NewWebSocketHub(cfg.WebSocket, cfg.Server.AllowedOrigin, metrics, log)
	group := internal.NewGroup(cfg.Group, wsHub, metrics, log)
	wsHub.Bind(group)

	// 創建 HTTP 處理器
	handler := internal.NewHandler(group, wsHub, metrics, cfg.Server.AllowedOrigin, log)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		log.Info("群組聊天服務器啟動",
			"port", cfg.Server.Port,
			"allowed_origin", cfg.Server.AllowedOrigin,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		log.Error("服務器關閉失敗", "error", err)
	}

	// 關閉所有 WebSocket 連接（群組狀態隨行程結束消失）
	wsHub.Stop()

	log.Info("服務器已關閉", "stats", metrics.Snapshot())
}
