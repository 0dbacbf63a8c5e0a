package mysql

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
)

type dealRepo struct {
	db *gorm.DB
}

// NewDealRepository 创建活动仓储
func NewDealRepository(db *gorm.DB) deal.Repository {
	return &dealRepo{db: db}
}

func (r *dealRepo) Create(ctx context.Context, d *deal.Deal) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *dealRepo) GetByID(ctx context.Context, id int64) (*deal.Deal, error) {
	var d deal.Deal
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dealRepo) GetBySlug(ctx context.Context, slug string) (*deal.Deal, error) {
	var d deal.Deal
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dealRepo) List(ctx context.Context, f *deal.ListFilter) ([]*deal.Deal, error) {
	if f == nil {
		f = &deal.ListFilter{}
	}
	q := r.db.WithContext(ctx).Model(&deal.Deal{}).Select("deals.*")

	// 分类/品牌/搜索需要联商品表
	if f.CategorySlug != "" || f.BrandSlug != "" || f.Search != "" {
		q = q.Joins("INNER JOIN products ON products.id = deals.product_id")
	}
	if f.CategorySlug != "" {
		q = q.Joins("INNER JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", f.CategorySlug)
	}
	if f.BrandSlug != "" {
		q = q.Joins("INNER JOIN brands ON brands.id = products.brand_id").
			Where("brands.slug = ?", f.BrandSlug)
	}
	if f.Search != "" {
		kw := "%" + f.Search + "%"
		q = q.Where("deals.title LIKE ? OR products.name LIKE ?", kw, kw)
	}

	if len(f.DealTypes) > 0 {
		q = q.Where("deals.deal_type IN ?", f.DealTypes)
	}
	if f.IsActive != nil {
		q = q.Where("deals.is_active = ?", *f.IsActive)
	}
	if f.IsFeatured != nil {
		q = q.Where("deals.is_featured = ?", *f.IsFeatured)
	}
	if f.FreeShipping != nil {
		q = q.Where("deals.free_shipping = ?", *f.FreeShipping)
	}
	if f.MinPrice != nil {
		q = q.Where("deals.discounted_price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("deals.discounted_price <= ?", *f.MaxPrice)
	}
	if f.MinDiscount != nil {
		q = q.Where("deals.discount_percentage >= ?", *f.MinDiscount)
	}
	if f.IsLive != nil && *f.IsLive {
		now := time.Now()
		q = q.Where(
			"deals.is_active = ? AND deals.start_date <= ? AND deals.end_date >= ? AND deals.sold_quantity < deals.total_quantity",
			true, now, now,
		)
	}

	if f.IsUpcoming != nil && *f.IsUpcoming {
		q = q.Where("deals.is_active = ? AND deals.start_date > ?", true, time.Now()).
			Order("deals.start_date ASC")
	} else {
		q = q.Order("deals.is_featured DESC").
			Order("deals.display_order ASC").
			Order("deals.created_at DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var list []*deal.Deal
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *dealRepo) Update(ctx context.Context, d *deal.Deal) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *dealRepo) Delete(ctx context.Context, id int64) error {
	// 先清理事件日志，再删活动
	if err := r.db.WithContext(ctx).Where("deal_id = ?", id).Delete(&deal.View{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("deal_id = ?", id).Delete(&deal.Click{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&deal.Deal{}, id).Error
}

func (r *dealRepo) CreateView(ctx context.Context, v *deal.View) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *dealRepo) CreateClick(ctx context.Context, c *deal.Click) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *dealRepo) IncrementViewCount(ctx context.Context, dealID int64) error {
	return r.db.WithContext(ctx).Model(&deal.Deal{}).
		Where("id = ?", dealID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

func (r *dealRepo) IncrementClickCount(ctx context.Context, dealID int64) error {
	return r.db.WithContext(ctx).Model(&deal.Deal{}).
		Where("id = ?", dealID).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1)).Error
}

func (r *dealRepo) ViewsByDay(ctx context.Context, dealID int64) ([]deal.DailyCount, error) {
	var out []deal.DailyCount
	// substr 取日期前缀，MySQL 和 SQLite（测试）行为一致
	err := r.db.WithContext(ctx).Model(&deal.View{}).
		Select("substr(viewed_at, 1, 10) AS day, COUNT(*) AS count").
		Where("deal_id = ?", dealID).
		Group("substr(viewed_at, 1, 10)").
		Order("day").
		Scan(&out).Error
	return out, err
}

func (r *dealRepo) ClicksByDay(ctx context.Context, dealID int64) ([]deal.DailyCount, error) {
	var out []deal.DailyCount
	err := r.db.WithContext(ctx).Model(&deal.Click{}).
		Select("substr(clicked_at, 1, 10) AS day, COUNT(*) AS count").
		Where("deal_id = ?", dealID).
		Group("substr(clicked_at, 1, 10)").
		Order("day").
		Scan(&out).Error
	return out, err
}

func (r *dealRepo) DeviceBreakdown(ctx context.Context, dealID int64) ([]deal.DeviceCount, error) {
	var out []deal.DeviceCount
	err := r.db.WithContext(ctx).Model(&deal.View{}).
		Select("device_type, COUNT(*) AS count").
		Where("deal_id = ?", dealID).
		Group("device_type").
		Order("device_type").
		Scan(&out).Error
	return out, err
}

func (r *dealRepo) Stats(ctx context.Context, now time.Time) (*deal.Stats, error) {
	db := r.db.WithContext(ctx)
	s := &deal.Stats{}

	if err := db.Model(&deal.Deal{}).Count(&s.TotalDeals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&deal.Deal{}).Where("is_active = ?", true).Count(&s.ActiveDeals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&deal.Deal{}).
		Where("is_active = ? AND start_date <= ? AND end_date >= ? AND sold_quantity < total_quantity", true, now, now).
		Count(&s.LiveDeals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&deal.Deal{}).
		Where("is_active = ? AND start_date > ?", true, now).
		Count(&s.UpcomingDeals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&deal.Deal{}).Where("end_date < ?", now).Count(&s.ExpiredDeals).Error; err != nil {
		return nil, err
	}

	var agg struct {
		TotalRevenue float64
		TotalViews   int64
		TotalClicks  int64
		TotalSold    int64
	}
	if err := db.Model(&deal.Deal{}).
		Select("COALESCE(SUM(sold_quantity * discounted_price), 0) AS total_revenue, " +
			"COALESCE(SUM(view_count), 0) AS total_views, " +
			"COALESCE(SUM(click_count), 0) AS total_clicks, " +
			"COALESCE(SUM(sold_quantity), 0) AS total_sold").
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	s.TotalRevenue = decimal.NewFromFloat(agg.TotalRevenue).Round(2)
	s.TotalViews = agg.TotalViews
	s.TotalClicks = agg.TotalClicks
	s.TotalSold = agg.TotalSold
	if s.TotalClicks > 0 {
		s.AverageConversionRate = math.Round(float64(s.TotalSold)/float64(s.TotalClicks)*10000) / 100
	}
	return s, nil
}
