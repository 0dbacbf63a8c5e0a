package review

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductReview 商品评价，同一用户对同一商品只允许一条
type ProductReview struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	ProductID  int64     `gorm:"uniqueIndex:idx_review_product_user;not null" json:"product_id"`
	UserID     *int64    `gorm:"uniqueIndex:idx_review_product_user" json:"user_id"`
	Rating     int       `gorm:"not null" json:"rating"` // 1-5
	Title      string    `gorm:"size:255" json:"title"`
	Comment    string    `gorm:"type:text" json:"comment"`
	IsApproved bool      `gorm:"index;not null;default:false" json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ProductReview) TableName() string {
	return "product_reviews"
}

// RatingSummary 商品已审核评价的均分与条数
type RatingSummary struct {
	Average decimal.Decimal
	Count   int64
}

// Repository 评价仓储接口
type Repository interface {
	Create(ctx context.Context, r *ProductReview) error
	GetByID(ctx context.Context, id int64) (*ProductReview, error)
	Delete(ctx context.Context, id int64) error
	ListApprovedByProduct(ctx context.Context, productID int64) ([]*ProductReview, error)
	// SummaryForProduct 只统计已审核的评价
	SummaryForProduct(ctx context.Context, productID int64) (*RatingSummary, error)
}
