package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crew/internal/api"
	"crew/internal/app"
	"crew/internal/metrics"
	"crew/internal/middleware"
	"crew/internal/websocket"
	"crew/pkg/config"
	"crew/pkg/db"
	"crew/pkg/logger"
	"crew/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.ProductionMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Log.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库连接
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		logger.L.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close(gdb)

	hub, err := websocket.CreateHub(cfg.Messaging, cfg.WebSocket)
	if err != nil {
		logger.L.Fatal("Failed to create hub", zap.Error(err))
	}
	if err := websocket.StartHub(hub); err != nil {
		logger.L.Fatal("Failed to start hub", zap.Error(err))
	}

	svc := app.NewServices(gdb, cfg.Hierarchy, hub)
	tokens := utils.NewTokenManager(cfg.JWT)

	router := api.SetupRouter(api.Handlers{
		Group:       api.NewGroupHandler(svc.Groups, svc.Vacancies, svc.History),
		Membership:  api.NewMembershipHandler(svc.Memberships, svc.History),
		Vacancy:     api.NewVacancyHandler(svc.Vacancies),
		UserRequest: api.NewUserRequestHandler(svc.UserRequests),
		WS:          api.NewWSHandler(hub, cfg.WebSocket),
	}, middleware.AuthMiddleware(tokens, svc.UserRepo))

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.L.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Fatal("Server failed", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.L.Info("Metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.L.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.L.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.L.Error("Server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.L.Error("Metrics shutdown failed", zap.Error(err))
		}
	}
	if err := hub.Close(); err != nil {
		logger.L.Error("Hub close failed", zap.Error(err))
	}
}
