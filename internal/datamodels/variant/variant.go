package variant

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductVariant 商品规格（具体 SKU），承载价格与库存
type ProductVariant struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	ProductID int64  `gorm:"index;not null" json:"product_id"`
	SKU       string `gorm:"size:100;uniqueIndex;not null" json:"sku"`

	// Price 为实际售价，CompareAtPrice 为划线价（可为空）
	Price          decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	CompareAtPrice *decimal.Decimal `gorm:"type:decimal(10,2)" json:"compare_at_price"`

	// 库存，活动购买按规格扣减
	StockQuantity     int64 `gorm:"not null;default:0" json:"stock_quantity"`
	SoldQuantity      int64 `gorm:"not null;default:0" json:"sold_quantity"`
	LowStockThreshold int64 `gorm:"not null;default:5" json:"low_stock_threshold"`

	IsActive  bool `gorm:"index;not null;default:true" json:"is_active"`
	IsDefault bool `gorm:"not null;default:false" json:"is_default"` // 商品默认展示的规格

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}

// IsInStock 是否有库存
func (v *ProductVariant) IsInStock() bool {
	return v.StockQuantity > 0
}

// IsLowStock 库存是否低于预警线
func (v *ProductVariant) IsLowStock() bool {
	return v.StockQuantity > 0 && v.StockQuantity <= v.LowStockThreshold
}

// Repository 规格仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*ProductVariant, error)
	GetBySKU(ctx context.Context, sku string) (*ProductVariant, error)
	ListByProduct(ctx context.Context, productID int64) ([]*ProductVariant, error)
	ListActiveByProduct(ctx context.Context, productID int64) ([]*ProductVariant, error)
	Create(ctx context.Context, v *ProductVariant) error
	Update(ctx context.Context, v *ProductVariant) error
	Delete(ctx context.Context, id int64) error
}
