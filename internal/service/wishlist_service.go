package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/wishlist"
)

// WishlistService 心愿单服务
type WishlistService struct {
	repo        wishlist.Repository
	variantRepo variant.Repository
}

func NewWishlistService(repo wishlist.Repository, variantRepo variant.Repository) *WishlistService {
	return &WishlistService{repo: repo, variantRepo: variantRepo}
}

// Add 把规格加入用户心愿单，记录加入时价格；重复加入返回错误
func (s *WishlistService) Add(ctx context.Context, userID, variantID int64, notes string) (*wishlist.Item, error) {
	v, err := s.variantRepo.GetByID(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("商品规格不存在: %w", err)
	}

	w, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.HasItem(ctx, w.ID, variantID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("该规格已在心愿单中")
	}

	item := &wishlist.Item{
		WishlistID:     w.ID,
		VariantID:      variantID,
		Notes:          notes,
		PriceWhenAdded: v.Price,
		AddedAt:        time.Now(),
		NotifyOnStock:  true,
	}
	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove 从用户心愿单移除规格
func (s *WishlistService) Remove(ctx context.Context, userID, variantID int64) error {
	w, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.RemoveItem(ctx, w.ID, variantID)
}

// List 用户心愿单全部条目
func (s *WishlistService) List(ctx context.Context, userID int64) ([]*wishlist.Item, error) {
	w, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, w.ID)
}

// Count 用户心愿单条目数
func (s *WishlistService) Count(ctx context.Context, userID int64) (int64, error) {
	w, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.repo.CountItems(ctx, w.ID)
}
