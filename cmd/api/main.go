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
	// .env 不存在时忽略，配置仍可来自 config.yaml 和环境变量
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init()

	app := iris.New()
	server.RegisterRoutes(app, cfg)

	addr := cfg.Server.Addr()
	zap.L().Info("api server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr)); err != nil {
		zap.L().Fatal("failed to run api server", zap.Error(err))
	}
}
