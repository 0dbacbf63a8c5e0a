package wishlist

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Wishlist 用户心愿单，一人一份
type Wishlist struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Wishlist) TableName() string {
	return "wishlists"
}

// Item 心愿单条目，记录加入时价格用于降价提醒
type Item struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	WishlistID int64  `gorm:"uniqueIndex:idx_wishlist_variant;not null" json:"wishlist_id"`
	VariantID  int64  `gorm:"uniqueIndex:idx_wishlist_variant;index;not null" json:"variant_id"`
	Notes      string `gorm:"type:text" json:"notes"`

	PriceWhenAdded    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_when_added"`
	NotifyOnPriceDrop bool            `gorm:"not null;default:false" json:"notify_on_price_drop"`
	NotifyOnStock     bool            `gorm:"not null;default:true" json:"notify_on_stock"`

	AddedAt time.Time `gorm:"index" json:"added_at"`
}

// TableName 指定表名
func (Item) TableName() string {
	return "wishlist_items"
}

// Repository 心愿单仓储接口
type Repository interface {
	GetOrCreateByUser(ctx context.Context, userID int64) (*Wishlist, error)
	AddItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, wishlistID, variantID int64) error
	ListItems(ctx context.Context, wishlistID int64) ([]*Item, error)
	CountItems(ctx context.Context, wishlistID int64) (int64, error)
	HasItem(ctx context.Context, wishlistID, variantID int64) (bool, error)
}
