package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"github.com/gosimple/slug"
	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/order"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
)

const (
	dealTrackingQueue = "deal_tracking_queue"
	redisDealStockKey = "deal:stock:%d" // dealID，值为剩余可售数量
)

// TrackingMessage 浏览/点击事件消息，由 deal-worker 落库
type TrackingMessage struct {
	Kind       string    `json:"kind"` // "view" 或 "click"
	DealID     int64     `json:"deal_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	SessionKey string    `json:"session_key"`
	UserID     *int64    `json:"user_id"`
	Referrer   string    `json:"referrer"`
	ClickType  string    `json:"click_type"`
	DeviceType string    `json:"device_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TrackContext 一次浏览/点击的请求上下文
type TrackContext struct {
	IPAddress  string
	UserAgent  string
	SessionKey string
	Referrer   string
	UserID     *int64
}

// DealService 促销活动领域服务
// 负责：
//   - 活动的创建 / 更新 / 删除及校验
//   - 派生状态与库存配额的购买扣减（防超卖）
//   - 浏览/点击事件上报
//   - 活动查询
type DealService struct {
	db          *gorm.DB
	dealRepo    deal.Repository
	productRepo product.Repository
	variantRepo variant.Repository
	redis       radix.Client
	mqConn      *amqp.Connection
}

// NewDealService 创建活动服务。redis / mqConn 允许为 nil，此时跳过对应的加速与异步路径。
func NewDealService(
	db *gorm.DB,
	dealRepo deal.Repository,
	productRepo product.Repository,
	variantRepo variant.Repository,
	redis radix.Client,
	mqConn *amqp.Connection,
) *DealService {
	return &DealService{
		db:          db,
		dealRepo:    dealRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
		redis:       redis,
		mqConn:      mqConn,
	}
}

// DealRequest 创建/更新活动的入参
type DealRequest struct {
	ProductID           int64                  `json:"product_id"`
	VariantID           *int64                 `json:"variant_id"`
	Title               string                 `json:"title"`
	DealType            deal.DealType          `json:"deal_type"`
	Slug                string                 `json:"slug"`
	OriginalPrice       decimal.Decimal        `json:"original_price"`
	DiscountedPrice     decimal.Decimal        `json:"discounted_price"`
	StartDate           time.Time              `json:"start_date"`
	EndDate             time.Time              `json:"end_date"`
	TotalQuantity       int64                  `json:"total_quantity"`
	MaxQuantityPerOrder int64                  `json:"max_quantity_per_order"`
	FreeShipping        bool                   `json:"free_shipping"`
	ShippingMessage     string                 `json:"shipping_message"`
	FreeGift            bool                   `json:"free_gift"`
	GiftMessage         string                 `json:"gift_message"`
	BadgeText           string                 `json:"badge_text"`
	BadgeColor          string                 `json:"badge_color"`
	HighlightFeatures   deal.HighlightFeatures `json:"highlight_features"`
	Description         string                 `json:"description"`
	TermsAndConditions  string                 `json:"terms_and_conditions"`
	DisplayOrder        int                    `json:"display_order"`
	IsActive            *bool                  `json:"is_active"`
	IsFeatured          bool                   `json:"is_featured"`
}

// CreateDeal 创建活动：落库前完成全部校验，不产生部分写入
func (s *DealService) CreateDeal(ctx context.Context, req *DealRequest) (*deal.Deal, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("活动标题不能为空")
	}
	if !req.DealType.Valid() {
		return nil, fmt.Errorf("未知的活动类型: %s", req.DealType)
	}

	if _, err := s.productRepo.GetByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}

	d := &deal.Deal{
		ProductID:           req.ProductID,
		VariantID:           req.VariantID,
		Title:               req.Title,
		DealType:            req.DealType,
		Slug:                req.Slug,
		OriginalPrice:       req.OriginalPrice,
		DiscountedPrice:     req.DiscountedPrice,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		TotalQuantity:       req.TotalQuantity,
		MaxQuantityPerOrder: req.MaxQuantityPerOrder,
		FreeShipping:        req.FreeShipping,
		ShippingMessage:     req.ShippingMessage,
		FreeGift:            req.FreeGift,
		GiftMessage:         req.GiftMessage,
		BadgeText:           req.BadgeText,
		BadgeColor:          req.BadgeColor,
		HighlightFeatures:   req.HighlightFeatures,
		Description:         req.Description,
		TermsAndConditions:  req.TermsAndConditions,
		DisplayOrder:        req.DisplayOrder,
		IsActive:            true,
		IsFeatured:          req.IsFeatured,
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if d.Slug == "" {
		d.Slug = slug.Make(d.Title)
	}
	if d.MaxQuantityPerOrder <= 0 {
		d.MaxQuantityPerOrder = 5
	}
	if d.BadgeColor == "" {
		d.BadgeColor = "#FF0000"
	}

	if err := s.prepareDeal(ctx, d); err != nil {
		return nil, err
	}

	if err := s.dealRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.syncStockToRedis(d)
	return d, nil
}

// UpdateDeal 更新活动基础信息（不触碰已售计数）
func (s *DealService) UpdateDeal(ctx context.Context, id int64, req *DealRequest) (*deal.Deal, error) {
	d, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		d.Title = req.Title
	}
	if req.DealType != "" {
		if !req.DealType.Valid() {
			return nil, fmt.Errorf("未知的活动类型: %s", req.DealType)
		}
		d.DealType = req.DealType
	}
	if req.Slug != "" {
		d.Slug = req.Slug
	}
	if req.ProductID != 0 && req.ProductID != d.ProductID {
		if _, err := s.productRepo.GetByID(ctx, req.ProductID); err != nil {
			return nil, fmt.Errorf("商品不存在: %w", err)
		}
		d.ProductID = req.ProductID
	}
	if req.VariantID != nil {
		d.VariantID = req.VariantID
	}
	if !req.OriginalPrice.IsZero() {
		d.OriginalPrice = req.OriginalPrice
	}
	if !req.DiscountedPrice.IsZero() {
		d.DiscountedPrice = req.DiscountedPrice
	}
	if !req.StartDate.IsZero() {
		d.StartDate = req.StartDate
	}
	if !req.EndDate.IsZero() {
		d.EndDate = req.EndDate
	}
	if req.TotalQuantity > 0 {
		d.TotalQuantity = req.TotalQuantity
	}
	if req.MaxQuantityPerOrder > 0 {
		d.MaxQuantityPerOrder = req.MaxQuantityPerOrder
	}
	d.FreeShipping = req.FreeShipping
	d.ShippingMessage = req.ShippingMessage
	d.FreeGift = req.FreeGift
	d.GiftMessage = req.GiftMessage
	if req.BadgeText != "" {
		d.BadgeText = req.BadgeText
	}
	if req.BadgeColor != "" {
		d.BadgeColor = req.BadgeColor
	}
	if req.HighlightFeatures != nil {
		d.HighlightFeatures = req.HighlightFeatures
	}
	d.Description = req.Description
	d.TermsAndConditions = req.TermsAndConditions
	d.DisplayOrder = req.DisplayOrder
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	d.IsFeatured = req.IsFeatured

	if err := s.prepareDeal(ctx, d); err != nil {
		return nil, err
	}

	if err := s.dealRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	s.syncStockToRedis(d)
	return d, nil
}

// prepareDeal 补全派生字段并做落库前校验。
// 规格活动且价格未填时，从规格的划线价/售价取默认值（只补一次，已有值不覆盖）。
func (s *DealService) prepareDeal(ctx context.Context, d *deal.Deal) error {
	if d.VariantID != nil {
		v, err := s.variantRepo.GetByID(ctx, *d.VariantID)
		if err != nil {
			return fmt.Errorf("商品规格不存在: %w", err)
		}
		if v.ProductID != d.ProductID {
			return fmt.Errorf("规格不属于该商品")
		}
		if d.OriginalPrice.IsZero() {
			if v.CompareAtPrice != nil && !v.CompareAtPrice.IsZero() {
				d.OriginalPrice = *v.CompareAtPrice
			} else {
				d.OriginalPrice = v.Price
			}
		}
		if d.DiscountedPrice.IsZero() {
			d.DiscountedPrice = v.Price
		}
		if d.TotalQuantity > v.StockQuantity {
			return fmt.Errorf("活动配额不能超过规格库存（%d）", v.StockQuantity)
		}
	}

	if d.TotalQuantity < 1 {
		return fmt.Errorf("活动配额至少为 1")
	}
	if !d.StartDate.Before(d.EndDate) {
		return fmt.Errorf("活动结束时间必须晚于开始时间")
	}
	if d.OriginalPrice.IsZero() || d.DiscountedPrice.IsZero() {
		return fmt.Errorf("活动价格不能为空")
	}
	if d.DiscountedPrice.GreaterThanOrEqual(d.OriginalPrice) {
		return fmt.Errorf("折扣价必须低于原价")
	}

	d.RecalcDiscount()
	return nil
}

// DeleteDeal 删除活动及其事件日志
func (s *DealService) DeleteDeal(ctx context.Context, id int64) error {
	if err := s.dealRepo.Delete(ctx, id); err != nil {
		return err
	}
	if s.redis != nil {
		_ = s.redis.Do(radix.Cmd(nil, "DEL", fmt.Sprintf(redisDealStockKey, id)))
	}
	return nil
}

// GetBySlug 按 slug 查询活动
func (s *DealService) GetBySlug(ctx context.Context, slugStr string) (*deal.Deal, error) {
	return s.dealRepo.GetBySlug(ctx, slugStr)
}

// List 按条件查询活动列表
func (s *DealService) List(ctx context.Context, f *deal.ListFilter) ([]*deal.Deal, error) {
	return s.dealRepo.List(ctx, f)
}

// Featured 首页推荐位：精选且进行中的活动
func (s *DealService) Featured(ctx context.Context) ([]*deal.Deal, error) {
	live, featured := true, true
	return s.dealRepo.List(ctx, &deal.ListFilter{IsLive: &live, IsFeatured: &featured})
}

// Live 全部进行中的活动
func (s *DealService) Live(ctx context.Context) ([]*deal.Deal, error) {
	live := true
	return s.dealRepo.List(ctx, &deal.ListFilter{IsLive: &live})
}

// Upcoming 未开始的活动，按开始时间正序
func (s *DealService) Upcoming(ctx context.Context) ([]*deal.Deal, error) {
	upcoming := true
	return s.dealRepo.List(ctx, &deal.ListFilter{IsUpcoming: &upcoming})
}

// DealOfTheDay 当前的每日特惠，没有则返回 nil
func (s *DealService) DealOfTheDay(ctx context.Context) (*deal.Deal, error) {
	live, featured := true, true
	list, err := s.dealRepo.List(ctx, &deal.ListFilter{
		DealTypes:  []deal.DealType{deal.TypeDealOfDay},
		IsLive:     &live,
		IsFeatured: &featured,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// FlashSales 进行中的限时抢购
func (s *DealService) FlashSales(ctx context.Context) ([]*deal.Deal, error) {
	live := true
	return s.dealRepo.List(ctx, &deal.ListFilter{
		DealTypes: []deal.DealType{deal.TypeFlashSale},
		IsLive:    &live,
	})
}

// RecordPurchase 记录一次活动购买。
// 校验按顺序执行，第一个失败即返回；通过后在一个事务里以条件更新扣减计数，
// 任何一步失败整体回滚，活动和规格的计数都不会变化。
// 返回本次购买后的剩余配额与生成的订单。
func (s *DealService) RecordPurchase(ctx context.Context, slugStr string, userID, quantity int64) (int64, *order.Order, error) {
	GetMonitor().RecordPurchaseRequest()

	d, err := s.dealRepo.GetBySlug(ctx, slugStr)
	if err != nil {
		GetMonitor().RecordDBError()
		return 0, nil, err
	}

	// 1. 数量合法
	if quantity < 1 {
		GetMonitor().RecordPurchaseRejected()
		return 0, nil, deal.ErrInvalidQuantity
	}
	// 2. 单笔限购
	if quantity > d.MaxQuantityPerOrder {
		GetMonitor().RecordPurchaseRejected()
		return 0, nil, deal.ErrQuantityExceedsLimit
	}
	// 3. 活动必须进行中
	if !d.IsLive(time.Now()) {
		GetMonitor().RecordPurchaseRejected()
		return 0, nil, deal.ErrDealNotLive
	}
	// 4. 配额充足
	if d.RemainingQuantity() < quantity {
		GetMonitor().RecordPurchaseRejected()
		return 0, nil, deal.ErrInsufficientQuantity
	}

	// Redis 预扣，高并发下快速挡掉注定失败的请求；MySQL 仍是唯一事实来源
	preDeducted := false
	stockKey := fmt.Sprintf(redisDealStockKey, d.ID)
	if s.redis != nil {
		// 键可能丢失（Redis 重启、过期清理），先按当前余量 NX 回种，
		// 否则 DECRBY 会从 0 起扣、把正常请求误判为售罄
		if err := s.redis.Do(radix.FlatCmd(nil, "SET", stockKey, d.RemainingQuantity(), "NX")); err != nil {
			GetMonitor().RecordRedisError()
			zap.L().Warn("redis stock seed failed", zap.Error(err))
		}
		var left int64
		if err := s.redis.Do(radix.FlatCmd(&left, "DECRBY", stockKey, quantity)); err != nil {
			GetMonitor().RecordRedisError()
			zap.L().Warn("redis stock pre-deduct failed, fallback to db only", zap.Error(err))
		} else {
			preDeducted = true
			if left < 0 {
				_ = s.redis.Do(radix.FlatCmd(nil, "INCRBY", stockKey, quantity))
				GetMonitor().RecordPurchaseRejected()
				return 0, nil, deal.ErrInsufficientQuantity
			}
		}
	}

	var o *order.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 条件更新：只有配额仍然足够时这条 UPDATE 才会命中，
		// 并发购买由此在存储层串行化，sold_quantity 永远不会越过 total_quantity。
		res := tx.Model(&deal.Deal{}).
			Where("id = ? AND sold_quantity + ? <= total_quantity", d.ID, quantity).
			UpdateColumn("sold_quantity", gorm.Expr("sold_quantity + ?", quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return deal.ErrInsufficientQuantity
		}

		// 规格活动还要同步扣减规格自身的库存
		if d.VariantID != nil {
			res = tx.Model(&variant.ProductVariant{}).
				Where("id = ? AND stock_quantity >= ?", *d.VariantID, quantity).
				UpdateColumns(map[string]interface{}{
					"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
					"sold_quantity":  gorm.Expr("sold_quantity + ?", quantity),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return deal.ErrInsufficientVariantStock
			}
		}

		o = &order.Order{
			OrderNumber: uuid.NewString(),
			UserID:      userID,
			DealID:      d.ID,
			ProductID:   d.ProductID,
			VariantID:   d.VariantID,
			Quantity:    quantity,
			UnitPrice:   d.DiscountedPrice,
			Total:       d.DiscountedPrice.Mul(decimal.NewFromInt(quantity)),
			Status:      order.StatusConfirmed,
		}
		return tx.Create(o).Error
	})
	if err != nil {
		if preDeducted {
			_ = s.redis.Do(radix.FlatCmd(nil, "INCRBY", stockKey, quantity))
		}
		if errors.Is(err, deal.ErrInsufficientQuantity) || errors.Is(err, deal.ErrInsufficientVariantStock) {
			GetMonitor().RecordPurchaseRejected()
		} else {
			GetMonitor().RecordDBError()
		}
		return 0, nil, err
	}

	GetMonitor().RecordPurchaseSuccess()

	fresh, err := s.dealRepo.GetByID(ctx, d.ID)
	if err != nil {
		// 扣减已经成功，读剩余失败只影响返回值
		zap.L().Warn("reload deal after purchase failed", zap.Int64("deal_id", d.ID), zap.Error(err))
		return d.TotalQuantity - d.SoldQuantity - quantity, o, nil
	}
	return fresh.RemainingQuantity(), o, nil
}

// TrackView 上报一次浏览：事件经 MQ 异步落库，MQ 不可用时直接写库兜底
func (s *DealService) TrackView(ctx context.Context, d *deal.Deal, tc *TrackContext) {
	msg := &TrackingMessage{
		Kind:       "view",
		DealID:     d.ID,
		IPAddress:  tc.IPAddress,
		UserAgent:  tc.UserAgent,
		SessionKey: tc.SessionKey,
		UserID:     tc.UserID,
		Referrer:   tc.Referrer,
		DeviceType: deal.DeviceTypeFromUserAgent(tc.UserAgent),
		OccurredAt: time.Now(),
	}
	s.dispatchTracking(ctx, msg)
}

// TrackClick 上报一次点击，clickType 为空时默认 view_detail
func (s *DealService) TrackClick(ctx context.Context, d *deal.Deal, clickType string, tc *TrackContext) {
	if clickType == "" {
		clickType = "view_detail"
	}
	msg := &TrackingMessage{
		Kind:       "click",
		DealID:     d.ID,
		IPAddress:  tc.IPAddress,
		UserAgent:  tc.UserAgent,
		SessionKey: tc.SessionKey,
		UserID:     tc.UserID,
		ClickType:  clickType,
		DeviceType: deal.DeviceTypeFromUserAgent(tc.UserAgent),
		OccurredAt: time.Now(),
	}
	s.dispatchTracking(ctx, msg)
}

func (s *DealService) dispatchTracking(ctx context.Context, msg *TrackingMessage) {
	GetMonitor().RecordTrackingEvent()
	if s.mqConn != nil {
		err := s.publishTracking(ctx, msg)
		if err == nil {
			return
		}
		GetMonitor().RecordMQError()
		zap.L().Warn("publish tracking event failed, writing directly", zap.Error(err))
	}
	if err := ApplyTracking(ctx, s.dealRepo, msg); err != nil {
		GetMonitor().RecordDBError()
		zap.L().Error("write tracking event failed", zap.Int64("deal_id", msg.DealID), zap.Error(err))
	}
}

func (s *DealService) publishTracking(ctx context.Context, msg *TrackingMessage) error {
	ch, err := s.mqConn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(dealTrackingQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(
		ctx,
		"",
		dealTrackingQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// ApplyTracking 把一条事件消息落成事件行并推进计数，worker 和直写兜底共用
func ApplyTracking(ctx context.Context, repo deal.Repository, msg *TrackingMessage) error {
	switch msg.Kind {
	case "view":
		v := &deal.View{
			DealID:     msg.DealID,
			IPAddress:  msg.IPAddress,
			UserAgent:  msg.UserAgent,
			SessionKey: msg.SessionKey,
			UserID:     msg.UserID,
			Referrer:   msg.Referrer,
			DeviceType: msg.DeviceType,
			ViewedAt:   msg.OccurredAt,
		}
		if err := repo.CreateView(ctx, v); err != nil {
			return err
		}
		return repo.IncrementViewCount(ctx, msg.DealID)
	case "click":
		c := &deal.Click{
			DealID:     msg.DealID,
			IPAddress:  msg.IPAddress,
			SessionKey: msg.SessionKey,
			UserID:     msg.UserID,
			ClickType:  msg.ClickType,
			DeviceType: msg.DeviceType,
			ClickedAt:  msg.OccurredAt,
		}
		if err := repo.CreateClick(ctx, c); err != nil {
			return err
		}
		return repo.IncrementClickCount(ctx, msg.DealID)
	default:
		return fmt.Errorf("unknown tracking kind: %s", msg.Kind)
	}
}

// TrackingQueueName deal-worker 消费的队列名
func TrackingQueueName() string {
	return dealTrackingQueue
}

func (s *DealService) syncStockToRedis(d *deal.Deal) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisDealStockKey, d.ID)
	if err := s.redis.Do(radix.FlatCmd(nil, "SET", key, d.RemainingQuantity())); err != nil {
		GetMonitor().RecordRedisError()
		zap.L().Warn("sync deal stock to redis failed", zap.Int64("deal_id", d.ID), zap.Error(err))
	}
}
