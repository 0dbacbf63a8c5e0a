package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 订单状态
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Order 活动购买产生的订单
type Order struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"size:64;uniqueIndex;not null" json:"order_number"`
	UserID      int64  `gorm:"index;not null" json:"user_id"`
	DealID      int64  `gorm:"index;not null" json:"deal_id"`
	ProductID   int64  `gorm:"index;not null" json:"product_id"`
	VariantID   *int64 `gorm:"index" json:"variant_id"`

	Quantity  int64           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"` // 成交时的活动折扣价
	Total     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`

	Status    string    `gorm:"size:20;index;not null;default:confirmed" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
}
