package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/wishlist"
)

func TestProductDeleteCascadesDealsAndVariants(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	ctx := context.Background()

	d := seedDeal(t, db, p.ID, "cascade-deal", nil)
	if err := db.Create(&deal.View{DealID: d.ID, DeviceType: deal.DeviceMobile, ViewedAt: time.Now()}).Error; err != nil {
		t.Fatalf("seed view: %v", err)
	}
	if err := db.Create(&deal.Click{DealID: d.ID, ClickType: "view_detail", ClickedAt: time.Now()}).Error; err != nil {
		t.Fatalf("seed click: %v", err)
	}
	v := &variant.ProductVariant{
		ProductID:     p.ID,
		SKU:           "POCO-X6-8-256",
		Price:         decimal.NewFromInt(300),
		StockQuantity: 20,
		IsActive:      true,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	wl := &wishlist.Wishlist{UserID: 1}
	if err := db.Create(wl).Error; err != nil {
		t.Fatalf("seed wishlist: %v", err)
	}
	item := &wishlist.Item{
		WishlistID:     wl.ID,
		VariantID:      v.ID,
		PriceWhenAdded: decimal.NewFromInt(300),
		AddedAt:        time.Now(),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed wishlist item: %v", err)
	}
	if err := db.Create(&review.ProductReview{ProductID: p.ID, Rating: 5, IsApproved: true}).Error; err != nil {
		t.Fatalf("seed review: %v", err)
	}

	repo := NewProductRepository(db)
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	counts := map[string]interface{}{
		"deals":           &deal.Deal{},
		"deal_views":      &deal.View{},
		"deal_clicks":     &deal.Click{},
		"variants":        &variant.ProductVariant{},
		"wishlist_items":  &wishlist.Item{},
		"product_reviews": &review.ProductReview{},
	}
	for name, model := range counts {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("after product delete %s count = %d, want 0", name, n)
		}
	}

	if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByID after delete = %v, want ErrRecordNotFound", err)
	}

	dealRepo := NewDealRepository(db)
	list, err := dealRepo.List(ctx, &deal.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deal list after product delete = %v, want empty", slugs(list))
	}
}
