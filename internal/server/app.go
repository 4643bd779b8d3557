package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gas-station/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App 进程骨架: HTTP 服务 + 后台 worker (outbox relay, indexer)。
type App struct {
	httpServer *http.Server
	workers    []func(ctx context.Context)

	cancel context.CancelFunc
}

func New(httpPort string, httpHandler *gin.Engine) *App {
	return &App{
		httpServer: &http.Server{
			Addr:    ":" + httpPort,
			Handler: httpHandler,
		},
	}
}

// AddWorker 注册一个后台任务，随 App 启动，ctx 取消时退出
func (a *App) AddWorker(fn func(ctx context.Context)) {
	a.workers = append(a.workers, fn)
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	for _, w := range a.workers {
		go w(ctx)
	}

	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP Server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 先停 worker，再优雅关闭 HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited properly")
}
