package service

import (
	"context"
	"fmt"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
)

// ReviewService 商品评价服务，评价增删后重算商品的均分和条数
type ReviewService struct {
	repo        review.Repository
	productRepo product.Repository
}

func NewReviewService(repo review.Repository, productRepo product.Repository) *ReviewService {
	return &ReviewService{repo: repo, productRepo: productRepo}
}

// Create 新增评价，需审核后才计入汇总
func (s *ReviewService) Create(ctx context.Context, r *review.ProductReview) error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("评分必须在 1 到 5 之间")
	}
	if _, err := s.productRepo.GetByID(ctx, r.ProductID); err != nil {
		return fmt.Errorf("商品不存在: %w", err)
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return err
	}
	return s.recalcProductRating(ctx, r.ProductID)
}

// Delete 删除评价并重算商品汇总
func (s *ReviewService) Delete(ctx context.Context, id int64) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.recalcProductRating(ctx, r.ProductID)
}

// ListApproved 商品的已审核评价
func (s *ReviewService) ListApproved(ctx context.Context, productID int64) ([]*review.ProductReview, error) {
	return s.repo.ListApprovedByProduct(ctx, productID)
}

// Summary 商品已审核评价的均分与条数
func (s *ReviewService) Summary(ctx context.Context, productID int64) (*review.RatingSummary, error) {
	return s.repo.SummaryForProduct(ctx, productID)
}

func (s *ReviewService) recalcProductRating(ctx context.Context, productID int64) error {
	summary, err := s.repo.SummaryForProduct(ctx, productID)
	if err != nil {
		return err
	}
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	p.AverageRating = summary.Average.Round(2)
	p.ReviewCount = summary.Count
	return s.productRepo.Update(ctx, p)
}
