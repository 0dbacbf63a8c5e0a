package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/mq"
	"github.com/Prakash617/mobilepoint-backend/internal/logger"
	"github.com/Prakash617/mobilepoint-backend/internal/repository/mysql"
	"github.com/Prakash617/mobilepoint-backend/internal/service"
)

func init() {
	// 初始化监控
	_ = service.GetMonitor()
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	dealRepo := mysql.NewDealRepository(db)

	ch, err := mqConn.Channel()
	if err != nil {
		zap.L().Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	queue := service.TrackingQueueName()
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		zap.L().Fatal("failed to declare queue", zap.Error(err))
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		zap.L().Fatal("failed to consume", zap.Error(err))
	}

	zap.L().Info("deal tracking worker started, waiting for messages")

	ctx := context.Background()
	for d := range msgs {
		var m service.TrackingMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			zap.L().Warn("invalid message, dropping", zap.Error(err))
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			service.GetMonitor().RecordWorkerFailed()
			continue
		}

		if err := service.ApplyTracking(ctx, dealRepo, &m); err != nil {
			zap.L().Error("apply tracking event failed",
				zap.String("kind", m.Kind),
				zap.Int64("deal_id", m.DealID),
				zap.Error(err))
			service.GetMonitor().RecordDBError()
			service.GetMonitor().RecordWorkerFailed()
			// 落库失败重新入队，等待下次消费
			_ = d.Nack(false, true)
			continue
		}

		_ = d.Ack(false)
		service.GetMonitor().RecordWorkerProcessed()
	}
}
