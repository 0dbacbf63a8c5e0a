package service

import (
	"context"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/order"
)

// OrderService 订单查询服务，订单的产生只走 DealService.RecordPurchase
type OrderService struct {
	repo order.Repository
}

func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// GetByID 按 ID 查询订单
func (s *OrderService) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser 用户的全部订单，按时间倒序
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListRecent 最近订单，供管理端看板使用
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}
