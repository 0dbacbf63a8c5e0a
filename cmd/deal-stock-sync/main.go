package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"

	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/redis"
	"github.com/Prakash617/mobilepoint-backend/internal/logger"
	"github.com/Prakash617/mobilepoint-backend/internal/repository/mysql"
)

const (
	redisDealStockKey = "deal:stock:%d" // dealID
	checkInterval     = 5 * time.Minute // 每5分钟检查一次
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init()

	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	dealRepo := mysql.NewDealRepository(db)

	zap.L().Info("deal stock consistency checker started", zap.Duration("interval", checkInterval))

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	// 立即执行一次
	checkAndSync(context.Background(), dealRepo, redisClient)

	// 定时执行
	for range ticker.C {
		checkAndSync(context.Background(), dealRepo, redisClient)
	}
}

func checkAndSync(ctx context.Context, dealRepo deal.Repository, redisClient radix.Client) {
	// 只校验进行中的活动，其余活动的 Redis 键随 TTL 或删除流程清理
	live := true
	deals, err := dealRepo.List(ctx, &deal.ListFilter{IsLive: &live})
	if err != nil {
		zap.L().Error("list live deals failed", zap.Error(err))
		return
	}

	inconsistent := 0
	synced := 0

	for _, d := range deals {
		stockKey := fmt.Sprintf(redisDealStockKey, d.ID)
		remaining := d.RemainingQuantity()

		var redisStock int64
		if err := redisClient.Do(radix.Cmd(&redisStock, "GET", stockKey)); err != nil {
			// Redis 里没有这个键，直接补上
			if err := redisClient.Do(radix.FlatCmd(nil, "SET", stockKey, remaining)); err != nil {
				zap.L().Warn("sync deal stock failed", zap.Int64("deal_id", d.ID), zap.Error(err))
				continue
			}
			synced++
			continue
		}

		if redisStock != remaining {
			inconsistent++
			zap.L().Warn("deal stock mismatch, resetting to db value",
				zap.Int64("deal_id", d.ID),
				zap.String("title", d.Title),
				zap.Int64("mysql", remaining),
				zap.Int64("redis", redisStock))
			if err := redisClient.Do(radix.FlatCmd(nil, "SET", stockKey, remaining)); err != nil {
				zap.L().Warn("reset deal stock failed", zap.Int64("deal_id", d.ID), zap.Error(err))
				continue
			}
			synced++
		}
	}

	zap.L().Info("stock consistency check done",
		zap.Int("live_deals", len(deals)),
		zap.Int("inconsistent", inconsistent),
		zap.Int("synced", synced))
}
