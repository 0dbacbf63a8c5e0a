package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/logger"
	"github.com/Prakash617/mobilepoint-backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init()

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	zap.L().Info("admin server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr)); err != nil {
		zap.L().Fatal("failed to run admin server", zap.Error(err))
	}
}
