package service

import (
	"context"
	"time"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
)

// DealAnalytics 单个活动的分析汇总
type DealAnalytics struct {
	DealID          int64              `json:"deal_id"`
	Title           string             `json:"title"`
	TotalViews      int64              `json:"total_views"`
	TotalClicks     int64              `json:"total_clicks"`
	TotalSold       int64              `json:"total_sold"`
	ConversionRate  float64            `json:"conversion_rate"` // 售出 / 点击 * 100，保留两位
	Revenue         string             `json:"revenue"`         // 售出数量 × 折扣价
	ViewsByDay      []deal.DailyCount  `json:"views_by_day"`
	ClicksByDay     []deal.DailyCount  `json:"clicks_by_day"`
	DeviceBreakdown []deal.DeviceCount `json:"device_breakdown"`
}

// Analytics 汇总单个活动的浏览/点击/转化数据
func (s *DealService) Analytics(ctx context.Context, slugStr string) (*DealAnalytics, error) {
	d, err := s.dealRepo.GetBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}

	views, err := s.dealRepo.ViewsByDay(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	clicks, err := s.dealRepo.ClicksByDay(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	devices, err := s.dealRepo.DeviceBreakdown(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	return &DealAnalytics{
		DealID:          d.ID,
		Title:           d.Title,
		TotalViews:      d.ViewCount,
		TotalClicks:     d.ClickCount,
		TotalSold:       d.SoldQuantity,
		ConversionRate:  d.ConversionRate(),
		Revenue:         d.Revenue().StringFixed(2),
		ViewsByDay:      views,
		ClicksByDay:     clicks,
		DeviceBreakdown: devices,
	}, nil
}

// Stats 全局活动统计，供管理端看板使用
func (s *DealService) Stats(ctx context.Context) (*deal.Stats, error) {
	return s.dealRepo.Stats(ctx, time.Now())
}
