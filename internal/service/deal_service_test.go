package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/order"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/repository/mysql"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// 单连接串行化，内存库在并发写时也不会互相干扰
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := mysql.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db      *gorm.DB
	svc     *DealService
	product *product.Product
	variant *variant.ProductVariant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testDB(t)
	dealRepo := mysql.NewDealRepository(db)
	productRepo := mysql.NewProductRepository(db)
	variantRepo := mysql.NewVariantRepository(db)

	cat := &product.Category{Name: "手机", Slug: "phones", IsActive: true}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	p := &product.Product{Name: "Redmi Note 13", Slug: "redmi-note-13", CategoryID: cat.ID, IsActive: true}
	if err := productRepo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	v := &variant.ProductVariant{
		ProductID:     p.ID,
		SKU:           "RN13-8-256",
		Price:         decimal.NewFromInt(300),
		StockQuantity: 50,
		IsActive:      true,
		IsDefault:     true,
	}
	if err := variantRepo.Create(context.Background(), v); err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	return &fixture{
		db:      db,
		svc:     NewDealService(db, dealRepo, productRepo, variantRepo, nil, nil),
		product: p,
		variant: v,
	}
}

func (f *fixture) seedDeal(t *testing.T, mutate func(d *deal.Deal)) *deal.Deal {
	t.Helper()

	now := time.Now()
	d := &deal.Deal{
		ProductID:           f.product.ID,
		Title:               "红米闪购",
		DealType:            deal.TypeFlashSale,
		Slug:                "redmi-flash",
		OriginalPrice:       decimal.NewFromInt(400),
		DiscountedPrice:     decimal.NewFromInt(300),
		StartDate:           now.Add(-time.Hour),
		EndDate:             now.Add(time.Hour),
		TotalQuantity:       10,
		MaxQuantityPerOrder: 5,
		IsActive:            true,
	}
	if mutate != nil {
		mutate(d)
	}
	d.RecalcDiscount()
	if err := f.db.Create(d).Error; err != nil {
		t.Fatalf("seed deal: %v", err)
	}
	return d
}

func TestRecordPurchaseSuccess(t *testing.T) {
	f := newFixture(t)
	d := f.seedDeal(t, nil)
	ctx := context.Background()

	remaining, o, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 3)
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("remaining = %d, want 7", remaining)
	}
	if o == nil || o.ID == 0 {
		t.Fatal("expected a persisted order")
	}
	if !o.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("order total = %s, want 900", o.Total)
	}
	if o.Status != order.StatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", o.Status)
	}

	var got deal.Deal
	if err := f.db.First(&got, d.ID).Error; err != nil {
		t.Fatalf("reload deal: %v", err)
	}
	if got.SoldQuantity != 3 {
		t.Fatalf("sold_quantity = %d, want 3", got.SoldQuantity)
	}
}

func TestRecordPurchasePreconditionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 已结束且配额不足的活动：数量校验仍然排在最前面
	d := f.seedDeal(t, func(d *deal.Deal) {
		d.EndDate = time.Now().Add(-time.Minute)
		d.SoldQuantity = 10
	})

	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 0); !errors.Is(err, deal.ErrInvalidQuantity) {
		t.Fatalf("quantity=0: got %v, want ErrInvalidQuantity", err)
	}
	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 6); !errors.Is(err, deal.ErrQuantityExceedsLimit) {
		t.Fatalf("quantity=6: got %v, want ErrQuantityExceedsLimit", err)
	}
	// 数量合法后才轮到状态校验
	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 2); !errors.Is(err, deal.ErrDealNotLive) {
		t.Fatalf("expired deal: got %v, want ErrDealNotLive", err)
	}

	// 未开始的活动即使有库存也不能买
	future := f.seedDeal(t, func(d *deal.Deal) {
		d.Slug = "future-deal"
		d.StartDate = time.Now().Add(24 * time.Hour)
		d.EndDate = time.Now().Add(48 * time.Hour)
	})
	if _, _, err := f.svc.RecordPurchase(ctx, future.Slug, 1, 2); !errors.Is(err, deal.ErrDealNotLive) {
		t.Fatalf("upcoming deal: got %v, want ErrDealNotLive", err)
	}
}

func TestRecordPurchaseQuantityBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDeal(t, nil) // 限购 5

	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 5); err != nil {
		t.Fatalf("quantity at limit should pass: %v", err)
	}
	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 6); !errors.Is(err, deal.ErrQuantityExceedsLimit) {
		t.Fatalf("quantity=limit+1: got %v, want ErrQuantityExceedsLimit", err)
	}
}

func TestRecordPurchaseInsufficientQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDeal(t, func(d *deal.Deal) {
		d.SoldQuantity = 8 // 剩 2 件
	})

	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 3); !errors.Is(err, deal.ErrInsufficientQuantity) {
		t.Fatalf("got %v, want ErrInsufficientQuantity", err)
	}
	// 剩余 2 件仍可一次买完
	remaining, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 2)
	if err != nil {
		t.Fatalf("remaining units purchase: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}

	var got deal.Deal
	if err := f.db.First(&got, d.ID).Error; err != nil {
		t.Fatalf("reload deal: %v", err)
	}
	if status := got.StatusAt(time.Now()); status != deal.StatusSoldOut {
		t.Fatalf("status = %s, want sold_out", status)
	}
}

func TestRecordPurchaseVariantRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 规格库存只剩 2，但活动配额充足
	f.variant.StockQuantity = 2
	if err := f.db.Save(f.variant).Error; err != nil {
		t.Fatalf("update variant: %v", err)
	}
	d := f.seedDeal(t, func(d *deal.Deal) {
		d.VariantID = &f.variant.ID
	})

	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 3); !errors.Is(err, deal.ErrInsufficientVariantStock) {
		t.Fatalf("got %v, want ErrInsufficientVariantStock", err)
	}

	// 整个事务回滚：活动计数和订单都不能有残留
	var got deal.Deal
	if err := f.db.First(&got, d.ID).Error; err != nil {
		t.Fatalf("reload deal: %v", err)
	}
	if got.SoldQuantity != 0 {
		t.Fatalf("sold_quantity = %d after rollback, want 0", got.SoldQuantity)
	}
	var orderCount int64
	if err := f.db.Model(&order.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("orders = %d after rollback, want 0", orderCount)
	}
}

func TestRecordPurchaseVariantDecrement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDeal(t, func(d *deal.Deal) {
		d.VariantID = &f.variant.ID
	})

	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 4); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	var v variant.ProductVariant
	if err := f.db.First(&v, f.variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if v.StockQuantity != 46 {
		t.Fatalf("variant stock = %d, want 46", v.StockQuantity)
	}
	if v.SoldQuantity != 4 {
		t.Fatalf("variant sold = %d, want 4", v.SoldQuantity)
	}
}

func TestRecordPurchaseConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDeal(t, func(d *deal.Deal) {
		d.TotalQuantity = 5
		d.MaxQuantityPerOrder = 1
	})

	const buyers = 12
	var wg sync.WaitGroup
	results := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, _, err := f.svc.RecordPurchase(ctx, d.Slug, userID, 1)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, deal.ErrInsufficientQuantity):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 5 || rejected != 7 {
		t.Fatalf("ok=%d rejected=%d, want 5/7", ok, rejected)
	}

	var got deal.Deal
	if err := f.db.First(&got, d.ID).Error; err != nil {
		t.Fatalf("reload deal: %v", err)
	}
	if got.SoldQuantity != 5 {
		t.Fatalf("sold_quantity = %d, want exactly 5", got.SoldQuantity)
	}
	var orderCount int64
	if err := f.db.Model(&order.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 5 {
		t.Fatalf("orders = %d, want 5", orderCount)
	}
}

func TestTrackingDirectFallback(t *testing.T) {
	// 不配置 MQ 时事件直接写库
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDeal(t, nil)

	f.svc.TrackView(ctx, d, &TrackContext{
		IPAddress:  "10.0.0.1",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0) Mobile/15E148",
		SessionKey: "sess-1",
	})
	f.svc.TrackClick(ctx, d, "", &TrackContext{
		IPAddress:  "10.0.0.1",
		SessionKey: "sess-1",
	})

	var got deal.Deal
	if err := f.db.First(&got, d.ID).Error; err != nil {
		t.Fatalf("reload deal: %v", err)
	}
	if got.ViewCount != 1 || got.ClickCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", got.ViewCount, got.ClickCount)
	}

	var v deal.View
	if err := f.db.First(&v).Error; err != nil {
		t.Fatalf("load view event: %v", err)
	}
	if v.DeviceType != deal.DeviceMobile {
		t.Fatalf("view device = %s, want mobile", v.DeviceType)
	}
	var c deal.Click
	if err := f.db.First(&c).Error; err != nil {
		t.Fatalf("load click event: %v", err)
	}
	if c.ClickType != "view_detail" {
		t.Fatalf("click type = %s, want view_detail", c.ClickType)
	}
}

func TestCreateDealValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	base := func() *DealRequest {
		return &DealRequest{
			ProductID:       f.product.ID,
			Title:           "促销",
			DealType:        deal.TypeLimitedTime,
			OriginalPrice:   decimal.NewFromInt(400),
			DiscountedPrice: decimal.NewFromInt(300),
			StartDate:       now,
			EndDate:         now.Add(24 * time.Hour),
			TotalQuantity:   10,
		}
	}

	if _, err := f.svc.CreateDeal(ctx, base()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	req := base()
	req.EndDate = req.StartDate.Add(-time.Hour)
	if _, err := f.svc.CreateDeal(ctx, req); err == nil {
		t.Fatal("end before start must fail")
	}

	req = base()
	req.DiscountedPrice = decimal.NewFromInt(500)
	if _, err := f.svc.CreateDeal(ctx, req); err == nil {
		t.Fatal("discounted above original must fail")
	}

	req = base()
	req.DealType = deal.DealType("mystery")
	if _, err := f.svc.CreateDeal(ctx, req); err == nil {
		t.Fatal("unknown deal type must fail")
	}

	req = base()
	req.TotalQuantity = 0
	if _, err := f.svc.CreateDeal(ctx, req); err == nil {
		t.Fatal("zero quota must fail")
	}

	// 规格活动：配额不能超过规格库存
	req = base()
	req.Slug = "variant-deal"
	req.VariantID = &f.variant.ID
	req.TotalQuantity = f.variant.StockQuantity + 1
	if _, err := f.svc.CreateDeal(ctx, req); err == nil {
		t.Fatal("quota above variant stock must fail")
	}
}

func TestCreateDealDefaultsFromVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	compareAt := decimal.NewFromInt(360)
	f.variant.CompareAtPrice = &compareAt
	if err := f.db.Save(f.variant).Error; err != nil {
		t.Fatalf("update variant: %v", err)
	}

	d, err := f.svc.CreateDeal(ctx, &DealRequest{
		ProductID:     f.product.ID,
		VariantID:     &f.variant.ID,
		Title:         "规格默认价",
		DealType:      deal.TypeClearance,
		StartDate:     now,
		EndDate:       now.Add(time.Hour),
		TotalQuantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateDeal: %v", err)
	}
	if !d.OriginalPrice.Equal(compareAt) {
		t.Fatalf("original = %s, want 360 from compare_at", d.OriginalPrice)
	}
	if !d.DiscountedPrice.Equal(f.variant.Price) {
		t.Fatalf("discounted = %s, want variant price", d.DiscountedPrice)
	}
	// 360 -> 300 约 17%
	if d.DiscountPercentage != 17 {
		t.Fatalf("discount = %d, want 17", d.DiscountPercentage)
	}
	if d.Slug == "" {
		t.Fatal("slug must be auto generated")
	}
}

// 内存版 Redis，按命令回放语义，足够覆盖预扣路径
func stubRedis(store map[string]int64) radix.Conn {
	return radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		switch strings.ToUpper(args[0]) {
		case "SET":
			if len(args) >= 4 && strings.EqualFold(args[3], "NX") {
				if _, ok := store[args[1]]; ok {
					return nil
				}
			}
			n, _ := strconv.ParseInt(args[2], 10, 64)
			store[args[1]] = n
			return "OK"
		case "DECRBY":
			n, _ := strconv.ParseInt(args[2], 10, 64)
			store[args[1]] -= n
			return store[args[1]]
		case "INCRBY":
			n, _ := strconv.ParseInt(args[2], 10, 64)
			store[args[1]] += n
			return store[args[1]]
		case "DEL":
			delete(store, args[1])
			return int64(1)
		}
		return nil
	})
}

func TestRecordPurchaseReseedsMissingStockKey(t *testing.T) {
	f := newFixture(t)
	d := f.seedDeal(t, nil)
	ctx := context.Background()

	// 库存键缺失（如 Redis 重启后未预热）
	store := map[string]int64{}
	f.svc.redis = stubRedis(store)

	remaining, o, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 3)
	if err != nil {
		t.Fatalf("RecordPurchase with missing stock key: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("remaining = %d, want 7", remaining)
	}
	if o == nil || o.ID == 0 {
		t.Fatal("expected a persisted order")
	}
	stockKey := fmt.Sprintf(redisDealStockKey, d.ID)
	if got := store[stockKey]; got != 7 {
		t.Fatalf("stock key = %d, want 7 after reseed and deduct", got)
	}

	// 键已存在时不再回种，正常递减
	if _, _, err := f.svc.RecordPurchase(ctx, d.Slug, 1, 5); err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if got := store[stockKey]; got != 2 {
		t.Fatalf("stock key = %d, want 2", got)
	}
}
