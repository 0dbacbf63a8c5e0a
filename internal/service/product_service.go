package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
)

// ProductService 商品目录服务：商品、分类、品牌、规格与最近浏览
type ProductService struct {
	repo        product.Repository
	variantRepo variant.Repository
}

func NewProductService(repo product.Repository, variantRepo variant.Repository) *ProductService {
	return &ProductService{repo: repo, variantRepo: variantRepo}
}

// CreateProduct 创建商品，slug 缺省时按名称生成
func (s *ProductService) CreateProduct(ctx context.Context, p *product.Product) error {
	if p.Name == "" {
		return fmt.Errorf("商品名称不能为空")
	}
	if p.CategoryID == 0 {
		return fmt.Errorf("商品必须归属一个分类")
	}
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	}
	return s.repo.Create(ctx, p)
}

// UpdateProduct 更新商品
func (s *ProductService) UpdateProduct(ctx context.Context, p *product.Product) error {
	if p.ID == 0 {
		return fmt.Errorf("商品 ID 不能为空")
	}
	if p.Slug == "" && p.Name != "" {
		p.Slug = slug.Make(p.Name)
	}
	return s.repo.Update(ctx, p)
}

// DeleteProduct 删除商品
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// GetBySlug 按 slug 查询商品
func (s *ProductService) GetBySlug(ctx context.Context, slugStr string) (*product.Product, error) {
	return s.repo.GetBySlug(ctx, slugStr)
}

// GetByID 按 ID 查询商品
func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive 全部上架商品
func (s *ProductService) ListActive(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListActive(ctx)
}

// ListFeatured 精选商品
func (s *ProductService) ListFeatured(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListFeatured(ctx)
}

// ListByCategory 按分类 slug 查询商品
func (s *ProductService) ListByCategory(ctx context.Context, categorySlug string) ([]*product.Product, error) {
	if _, err := s.repo.GetCategoryBySlug(ctx, categorySlug); err != nil {
		return nil, fmt.Errorf("分类不存在: %w", err)
	}
	return s.repo.ListByCategorySlug(ctx, categorySlug)
}

// ListByBrand 按品牌 slug 查询商品
func (s *ProductService) ListByBrand(ctx context.Context, brandSlug string) ([]*product.Product, error) {
	if _, err := s.repo.GetBrandBySlug(ctx, brandSlug); err != nil {
		return nil, fmt.Errorf("品牌不存在: %w", err)
	}
	return s.repo.ListByBrandSlug(ctx, brandSlug)
}

// ListCategories 全部分类
func (s *ProductService) ListCategories(ctx context.Context) ([]*product.Category, error) {
	return s.repo.ListCategories(ctx)
}

// ListBrands 全部品牌
func (s *ProductService) ListBrands(ctx context.Context) ([]*product.Brand, error) {
	return s.repo.ListBrands(ctx)
}

// Variants 商品的在售规格
func (s *ProductService) Variants(ctx context.Context, productID int64) ([]*variant.ProductVariant, error) {
	return s.variantRepo.ListActiveByProduct(ctx, productID)
}

// CreateVariant 创建规格
func (s *ProductService) CreateVariant(ctx context.Context, v *variant.ProductVariant) error {
	if v.SKU == "" {
		return fmt.Errorf("规格 SKU 不能为空")
	}
	if _, err := s.repo.GetByID(ctx, v.ProductID); err != nil {
		return fmt.Errorf("商品不存在: %w", err)
	}
	return s.variantRepo.Create(ctx, v)
}

// UpdateVariant 更新规格
func (s *ProductService) UpdateVariant(ctx context.Context, v *variant.ProductVariant) error {
	if v.ID == 0 {
		return fmt.Errorf("规格 ID 不能为空")
	}
	return s.variantRepo.Update(ctx, v)
}

// DeleteVariant 删除规格
func (s *ProductService) DeleteVariant(ctx context.Context, id int64) error {
	return s.variantRepo.Delete(ctx, id)
}

// TouchRecentlyViewed 记录用户浏览商品，重复浏览只刷新时间
func (s *ProductService) TouchRecentlyViewed(ctx context.Context, userID, productID int64) error {
	return s.repo.TouchRecentlyViewed(ctx, userID, productID, time.Now())
}

// RecentlyViewed 用户最近浏览的商品
func (s *ProductService) RecentlyViewed(ctx context.Context, userID int64, limit int) ([]*product.Product, error) {
	records, err := s.repo.ListRecentlyViewed(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	products := make([]*product.Product, 0, len(records))
	for _, r := range records {
		p, err := s.repo.GetByID(ctx, r.ProductID)
		if err != nil {
			continue // 商品可能已被删除
		}
		products = append(products, p)
	}
	return products, nil
}
