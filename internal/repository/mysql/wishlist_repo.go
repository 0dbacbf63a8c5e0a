package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/wishlist"
)

type wishlistRepo struct {
	db *gorm.DB
}

// NewWishlistRepository 创建心愿单仓储
func NewWishlistRepository(db *gorm.DB) wishlist.Repository {
	return &wishlistRepo{db: db}
}

func (r *wishlistRepo) GetOrCreateByUser(ctx context.Context, userID int64) (*wishlist.Wishlist, error) {
	var w wishlist.Wishlist
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = wishlist.Wishlist{UserID: userID}
	if err := r.db.WithContext(ctx).Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *wishlistRepo) AddItem(ctx context.Context, item *wishlist.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *wishlistRepo) RemoveItem(ctx context.Context, wishlistID, variantID int64) error {
	return r.db.WithContext(ctx).
		Where("wishlist_id = ? AND variant_id = ?", wishlistID, variantID).
		Delete(&wishlist.Item{}).Error
}

func (r *wishlistRepo) ListItems(ctx context.Context, wishlistID int64) ([]*wishlist.Item, error) {
	var list []*wishlist.Item
	if err := r.db.WithContext(ctx).
		Where("wishlist_id = ?", wishlistID).
		Order("added_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *wishlistRepo) CountItems(ctx context.Context, wishlistID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&wishlist.Item{}).
		Where("wishlist_id = ?", wishlistID).
		Count(&n).Error
	return n, err
}

func (r *wishlistRepo) HasItem(ctx context.Context, wishlistID, variantID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&wishlist.Item{}).
		Where("wishlist_id = ? AND variant_id = ?", wishlistID, variantID).
		Count(&n).Error
	return n > 0, err
}
