package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
)

type reviewRepo struct {
	db *gorm.DB
}

// NewReviewRepository 创建评价仓储
func NewReviewRepository(db *gorm.DB) review.Repository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) Create(ctx context.Context, pr *review.ProductReview) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

func (r *reviewRepo) GetByID(ctx context.Context, id int64) (*review.ProductReview, error) {
	var pr review.ProductReview
	if err := r.db.WithContext(ctx).First(&pr, id).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *reviewRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&review.ProductReview{}, id).Error
}

func (r *reviewRepo) ListApprovedByProduct(ctx context.Context, productID int64) ([]*review.ProductReview, error) {
	var list []*review.ProductReview
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_approved = ?", productID, true).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reviewRepo) SummaryForProduct(ctx context.Context, productID int64) (*review.RatingSummary, error) {
	var agg struct {
		Average float64
		Count   int64
	}
	if err := r.db.WithContext(ctx).Model(&review.ProductReview{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ? AND is_approved = ?", productID, true).
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	return &review.RatingSummary{
		Average: decimal.NewFromFloat(agg.Average).Round(2),
		Count:   agg.Count,
	}, nil
}
