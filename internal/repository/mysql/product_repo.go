package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/wishlist"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListActive(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListFeatured(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_featured = ?", true, true).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListByCategorySlug(ctx context.Context, slug string) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).Model(&product.Product{}).Select("products.*").
		Joins("INNER JOIN categories ON categories.id = products.category_id").
		Where("categories.slug = ? AND products.is_active = ?", slug, true).
		Order("products.created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) ListByBrandSlug(ctx context.Context, slug string) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).Model(&product.Product{}).Select("products.*").
		Joins("INNER JOIN brands ON brands.id = products.brand_id").
		Where("brands.slug = ? AND products.is_active = ?", slug, true).
		Order("products.created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) Update(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	// 删除商品时级联清理其活动（含事件日志）、规格及关联记录
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dealIDs []int64
		if err := tx.Model(&deal.Deal{}).Where("product_id = ?", id).Pluck("id", &dealIDs).Error; err != nil {
			return err
		}
		if len(dealIDs) > 0 {
			if err := tx.Where("deal_id IN ?", dealIDs).Delete(&deal.View{}).Error; err != nil {
				return err
			}
			if err := tx.Where("deal_id IN ?", dealIDs).Delete(&deal.Click{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", dealIDs).Delete(&deal.Deal{}).Error; err != nil {
				return err
			}
		}
		var variantIDs []int64
		if err := tx.Model(&variant.ProductVariant{}).Where("product_id = ?", id).Pluck("id", &variantIDs).Error; err != nil {
			return err
		}
		if len(variantIDs) > 0 {
			if err := tx.Where("variant_id IN ?", variantIDs).Delete(&wishlist.Item{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Delete(&variant.ProductVariant{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("product_id = ?", id).Delete(&review.ProductReview{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&product.RecentlyViewed{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product.Product{}, id).Error
	})
}

func (r *productRepo) ListCategories(ctx context.Context) ([]*product.Category, error) {
	var list []*product.Category
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) GetCategoryBySlug(ctx context.Context, slug string) (*product.Category, error) {
	var c product.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *productRepo) ListBrands(ctx context.Context) ([]*product.Brand, error) {
	var list []*product.Brand
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) GetBrandBySlug(ctx context.Context, slug string) (*product.Brand, error) {
	var b product.Brand
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *productRepo) TouchRecentlyViewed(ctx context.Context, userID, productID int64, at time.Time) error {
	rv := &product.RecentlyViewed{
		UserID:    userID,
		ProductID: productID,
		ViewedAt:  at,
	}
	// 同一用户同一商品只保留一条，重复浏览刷新时间
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"viewed_at": at}),
	}).Create(rv).Error
}

func (r *productRepo) ListRecentlyViewed(ctx context.Context, userID int64, limit int) ([]*product.RecentlyViewed, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var list []*product.RecentlyViewed
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("viewed_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
