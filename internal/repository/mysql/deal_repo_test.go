package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) (*product.Category, *product.Brand, *product.Product) {
	t.Helper()

	cat := &product.Category{Name: "手机", Slug: "phones", IsActive: true}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	brand := &product.Brand{Name: "Xiaomi", Slug: "xiaomi", IsActive: true}
	if err := db.Create(brand).Error; err != nil {
		t.Fatalf("seed brand: %v", err)
	}
	p := &product.Product{
		Name:       "Poco X6 Pro",
		Slug:       "poco-x6-pro",
		CategoryID: cat.ID,
		BrandID:    &brand.ID,
		IsActive:   true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return cat, brand, p
}

func seedDeal(t *testing.T, db *gorm.DB, productID int64, slug string, mutate func(d *deal.Deal)) *deal.Deal {
	t.Helper()

	now := time.Now()
	d := &deal.Deal{
		ProductID:           productID,
		Title:               "测试活动 " + slug,
		DealType:            deal.TypeFlashSale,
		Slug:                slug,
		OriginalPrice:       decimal.NewFromInt(200),
		DiscountedPrice:     decimal.NewFromInt(100),
		DiscountPercentage:  50,
		StartDate:           now.Add(-time.Hour),
		EndDate:             now.Add(time.Hour),
		TotalQuantity:       10,
		MaxQuantityPerOrder: 5,
		IsActive:            true,
	}
	if mutate != nil {
		mutate(d)
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed deal %s: %v", slug, err)
	}
	return d
}

func TestListLiveExcludesSoldOutAndWindow(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	ctx := context.Background()
	now := time.Now()

	seedDeal(t, db, p.ID, "live", nil)
	seedDeal(t, db, p.ID, "sold-out", func(d *deal.Deal) { d.SoldQuantity = 10 })
	seedDeal(t, db, p.ID, "expired", func(d *deal.Deal) {
		d.StartDate = now.Add(-48 * time.Hour)
		d.EndDate = now.Add(-24 * time.Hour)
	})
	seedDeal(t, db, p.ID, "future", func(d *deal.Deal) {
		d.StartDate = now.Add(24 * time.Hour)
		d.EndDate = now.Add(48 * time.Hour)
	})
	seedDeal(t, db, p.ID, "disabled", func(d *deal.Deal) { d.IsActive = false })

	live := true
	list, err := repo.List(ctx, &deal.ListFilter{IsLive: &live})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "live" {
		t.Fatalf("live list = %v, want only 'live'", slugs(list))
	}
}

func TestListUpcomingOrderedByStart(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	now := time.Now()

	seedDeal(t, db, p.ID, "later", func(d *deal.Deal) {
		d.StartDate = now.Add(72 * time.Hour)
		d.EndDate = now.Add(96 * time.Hour)
	})
	seedDeal(t, db, p.ID, "sooner", func(d *deal.Deal) {
		d.StartDate = now.Add(24 * time.Hour)
		d.EndDate = now.Add(48 * time.Hour)
	})
	seedDeal(t, db, p.ID, "running", nil)

	upcoming := true
	list, err := repo.List(context.Background(), &deal.ListFilter{IsUpcoming: &upcoming})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := slugs(list)
	if len(got) != 2 || got[0] != "sooner" || got[1] != "later" {
		t.Fatalf("upcoming list = %v, want [sooner later]", got)
	}
}

func TestListFilters(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	ctx := context.Background()

	seedDeal(t, db, p.ID, "flash", nil)
	seedDeal(t, db, p.ID, "daily", func(d *deal.Deal) {
		d.DealType = deal.TypeDealOfDay
		d.DiscountedPrice = decimal.NewFromInt(180)
		d.DiscountPercentage = 10
	})

	list, err := repo.List(ctx, &deal.ListFilter{DealTypes: []deal.DealType{deal.TypeDealOfDay}})
	if err != nil {
		t.Fatalf("type filter: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "daily" {
		t.Fatalf("type filter = %v, want [daily]", slugs(list))
	}

	minDiscount := 30
	list, err = repo.List(ctx, &deal.ListFilter{MinDiscount: &minDiscount})
	if err != nil {
		t.Fatalf("discount filter: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "flash" {
		t.Fatalf("discount filter = %v, want [flash]", slugs(list))
	}

	maxPrice := decimal.NewFromInt(150)
	list, err = repo.List(ctx, &deal.ListFilter{MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("price filter: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "flash" {
		t.Fatalf("price filter = %v, want [flash]", slugs(list))
	}

	// 分类/品牌过滤走商品表联查
	list, err = repo.List(ctx, &deal.ListFilter{CategorySlug: "phones"})
	if err != nil {
		t.Fatalf("category filter: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("category filter = %v, want both", slugs(list))
	}
	list, err = repo.List(ctx, &deal.ListFilter{CategorySlug: "tablets"})
	if err != nil {
		t.Fatalf("missing category filter: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("unknown category = %v, want empty", slugs(list))
	}

	list, err = repo.List(ctx, &deal.ListFilter{Search: "Poco"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("search by product name = %v, want both", slugs(list))
	}
}

func TestViewsByDayGroupsByDate(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	ctx := context.Background()
	d := seedDeal(t, db, p.ID, "analytics", nil)

	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 21, 30, 0, 0, time.UTC)
	for _, at := range []time.Time{day1, day1.Add(2 * time.Hour), day1.Add(5 * time.Hour), day2} {
		if err := repo.CreateView(ctx, &deal.View{
			DealID:     d.ID,
			DeviceType: deal.DeviceMobile,
			ViewedAt:   at,
		}); err != nil {
			t.Fatalf("create view: %v", err)
		}
	}
	if err := repo.CreateView(ctx, &deal.View{
		DealID:     d.ID,
		DeviceType: deal.DeviceDesktop,
		ViewedAt:   day2,
	}); err != nil {
		t.Fatalf("create view: %v", err)
	}

	days, err := repo.ViewsByDay(ctx, d.ID)
	if err != nil {
		t.Fatalf("ViewsByDay: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("got %d day buckets, want 2", len(days))
	}
	if days[0].Day != "2025-06-01" || days[0].Count != 3 {
		t.Fatalf("day1 = %+v, want 2025-06-01/3", days[0])
	}
	if days[1].Day != "2025-06-02" || days[1].Count != 2 {
		t.Fatalf("day2 = %+v, want 2025-06-02/2", days[1])
	}

	devices, err := repo.DeviceBreakdown(ctx, d.ID)
	if err != nil {
		t.Fatalf("DeviceBreakdown: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d device buckets, want 2", len(devices))
	}
	// 按设备名排序：desktop 在 mobile 前
	if devices[0].DeviceType != deal.DeviceDesktop || devices[0].Count != 1 {
		t.Fatalf("desktop bucket = %+v", devices[0])
	}
	if devices[1].DeviceType != deal.DeviceMobile || devices[1].Count != 4 {
		t.Fatalf("mobile bucket = %+v", devices[1])
	}
}

func TestStatsAggregates(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	now := time.Now()

	seedDeal(t, db, p.ID, "live", func(d *deal.Deal) {
		d.SoldQuantity = 4
		d.ViewCount = 100
		d.ClickCount = 20
	})
	seedDeal(t, db, p.ID, "old", func(d *deal.Deal) {
		d.StartDate = now.Add(-48 * time.Hour)
		d.EndDate = now.Add(-24 * time.Hour)
		d.SoldQuantity = 6
		d.DiscountedPrice = decimal.NewFromInt(50)
		d.ViewCount = 50
		d.ClickCount = 30
	})
	seedDeal(t, db, p.ID, "future", func(d *deal.Deal) {
		d.StartDate = now.Add(24 * time.Hour)
		d.EndDate = now.Add(48 * time.Hour)
	})

	s, err := repo.Stats(context.Background(), now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TotalDeals != 3 || s.ActiveDeals != 3 {
		t.Fatalf("totals = %d/%d, want 3/3", s.TotalDeals, s.ActiveDeals)
	}
	if s.LiveDeals != 1 || s.UpcomingDeals != 1 || s.ExpiredDeals != 1 {
		t.Fatalf("live/upcoming/expired = %d/%d/%d, want 1/1/1", s.LiveDeals, s.UpcomingDeals, s.ExpiredDeals)
	}
	if s.TotalSold != 10 || s.TotalViews != 150 || s.TotalClicks != 50 {
		t.Fatalf("sold/views/clicks = %d/%d/%d", s.TotalSold, s.TotalViews, s.TotalClicks)
	}
	// 4×100 + 6×50 = 700
	if !s.TotalRevenue.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("revenue = %s, want 700", s.TotalRevenue)
	}
	// 10 / 50 = 20%
	if s.AverageConversionRate != 20.0 {
		t.Fatalf("conversion = %v, want 20", s.AverageConversionRate)
	}
}

func TestDeleteCleansEvents(t *testing.T) {
	db := testDB(t)
	_, _, p := seedCatalog(t, db)
	repo := NewDealRepository(db)
	ctx := context.Background()
	d := seedDeal(t, db, p.ID, "doomed", nil)

	if err := repo.CreateView(ctx, &deal.View{DealID: d.ID, ViewedAt: time.Now()}); err != nil {
		t.Fatalf("create view: %v", err)
	}
	if err := repo.CreateClick(ctx, &deal.Click{DealID: d.ID, ClickedAt: time.Now()}); err != nil {
		t.Fatalf("create click: %v", err)
	}

	if err := repo.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var views, clicks int64
	if err := db.Model(&deal.View{}).Where("deal_id = ?", d.ID).Count(&views).Error; err != nil {
		t.Fatalf("count views: %v", err)
	}
	if err := db.Model(&deal.Click{}).Where("deal_id = ?", d.ID).Count(&clicks).Error; err != nil {
		t.Fatalf("count clicks: %v", err)
	}
	if views != 0 || clicks != 0 {
		t.Fatalf("events left behind: %d views, %d clicks", views, clicks)
	}
}

func slugs(list []*deal.Deal) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.Slug)
	}
	return out
}
