package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Category 商品分类，例如手机、平板、配件
type Category struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *int64    `gorm:"index" json:"parent_id"`
	IsFeatured  bool      `gorm:"not null;default:false" json:"is_featured"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}

// Brand 品牌
type Brand struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	IsFeatured  bool      `gorm:"not null;default:false" json:"is_featured"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (Brand) TableName() string {
	return "brands"
}

// Product 商品基础模型，价格和库存由各规格承载
type Product struct {
	ID               int64            `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"size:300;not null" json:"name"`
	Slug             string           `gorm:"size:300;uniqueIndex;not null" json:"slug"`
	Description      string           `gorm:"type:text" json:"description"`
	ShortDescription string           `gorm:"type:text" json:"short_description"`
	CategoryID       int64            `gorm:"index;not null" json:"category_id"`
	BrandID          *int64           `gorm:"index" json:"brand_id"`
	BasePrice        *decimal.Decimal `gorm:"type:decimal(10,2)" json:"base_price"`
	MetaTitle        string           `gorm:"size:200" json:"meta_title"`
	MetaDescription  string           `gorm:"type:text" json:"meta_description"`
	IsActive         bool             `gorm:"index;not null;default:true" json:"is_active"`
	IsFeatured       bool             `gorm:"not null;default:false" json:"is_featured"`

	// 评价汇总，由评价服务在评价增删时重算
	AverageRating decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0" json:"average_rating"`
	ReviewCount   int64           `gorm:"not null;default:0" json:"review_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// IsNew 创建两周以内的商品视为新品
func (p *Product) IsNew(now time.Time) bool {
	return !now.After(p.CreatedAt.Add(14 * 24 * time.Hour))
}

// RecentlyViewed 用户最近浏览记录，同一用户同一商品只保留一条
type RecentlyViewed struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_recent_user_product;not null" json:"user_id"`
	ProductID int64     `gorm:"uniqueIndex:idx_recent_user_product;not null" json:"product_id"`
	ViewedAt  time.Time `gorm:"index" json:"viewed_at"`
}

// TableName 指定表名
func (RecentlyViewed) TableName() string {
	return "recently_viewed_products"
}

// Repository 商品及分类/品牌仓储接口
type Repository interface {
	// 商品
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	ListActive(ctx context.Context) ([]*Product, error)
	ListFeatured(ctx context.Context) ([]*Product, error)
	ListByCategorySlug(ctx context.Context, slug string) ([]*Product, error)
	ListByBrandSlug(ctx context.Context, slug string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error

	// 分类/品牌
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)
	ListBrands(ctx context.Context) ([]*Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (*Brand, error)

	// 最近浏览
	TouchRecentlyViewed(ctx context.Context, userID, productID int64, at time.Time) error
	ListRecentlyViewed(ctx context.Context, userID int64, limit int) ([]*RecentlyViewed, error)
}
