package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
)

type variantRepo struct {
	db *gorm.DB
}

// NewVariantRepository 创建规格仓储
func NewVariantRepository(db *gorm.DB) variant.Repository {
	return &variantRepo{db: db}
}

func (r *variantRepo) GetByID(ctx context.Context, id int64) (*variant.ProductVariant, error) {
	var v variant.ProductVariant
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) GetBySKU(ctx context.Context, sku string) (*variant.ProductVariant, error) {
	var v variant.ProductVariant
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) ListByProduct(ctx context.Context, productID int64) ([]*variant.ProductVariant, error) {
	var list []*variant.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_default DESC").
		Order("price ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *variantRepo) ListActiveByProduct(ctx context.Context, productID int64) ([]*variant.ProductVariant, error) {
	var list []*variant.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("is_default DESC").
		Order("price ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *variantRepo) Create(ctx context.Context, v *variant.ProductVariant) error {
	// 每个商品只允许一个默认规格
	if v.IsDefault {
		if err := r.clearDefault(ctx, v.ProductID, 0); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *variantRepo) Update(ctx context.Context, v *variant.ProductVariant) error {
	if v.IsDefault {
		if err := r.clearDefault(ctx, v.ProductID, v.ID); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *variantRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&variant.ProductVariant{}, id).Error
}

func (r *variantRepo) clearDefault(ctx context.Context, productID, exceptID int64) error {
	return r.db.WithContext(ctx).Model(&variant.ProductVariant{}).
		Where("product_id = ? AND is_default = ? AND id <> ?", productID, true, exceptID).
		UpdateColumn("is_default", false).Error
}
