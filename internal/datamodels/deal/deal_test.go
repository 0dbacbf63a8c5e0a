package deal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func baseDeal() *Deal {
	return &Deal{
		ID:              1,
		Title:           "iPhone 15 闪购",
		DealType:        TypeFlashSale,
		OriginalPrice:   decimal.NewFromInt(1000),
		DiscountedPrice: decimal.NewFromInt(750),
		StartDate:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		TotalQuantity:   100,
		SoldQuantity:    0,
		IsActive:        true,
	}
}

func TestStatusAt(t *testing.T) {
	inWindow := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(d *Deal)
		now    time.Time
		want   Status
	}{
		{
			name:   "窗口内且启用",
			mutate: func(d *Deal) {},
			now:    inWindow,
			want:   StatusLive,
		},
		{
			name:   "未开始",
			mutate: func(d *Deal) {},
			now:    time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
			want:   StatusUpcoming,
		},
		{
			name:   "已结束",
			mutate: func(d *Deal) {},
			now:    time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
			want:   StatusExpired,
		},
		{
			name:   "结束时刻整点仍算进行中",
			mutate: func(d *Deal) {},
			now:    time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
			want:   StatusLive,
		},
		{
			name:   "窗口内但停用",
			mutate: func(d *Deal) { d.IsActive = false },
			now:    inWindow,
			want:   StatusInactive,
		},
		{
			name:   "售罄优先于进行中",
			mutate: func(d *Deal) { d.SoldQuantity = 100 },
			now:    inWindow,
			want:   StatusSoldOut,
		},
		{
			name:   "售罄优先于已结束",
			mutate: func(d *Deal) { d.SoldQuantity = 100 },
			now:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			want:   StatusSoldOut,
		},
		{
			name:   "售罄优先于停用",
			mutate: func(d *Deal) { d.SoldQuantity = 120; d.IsActive = false },
			now:    inWindow,
			want:   StatusSoldOut,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := baseDeal()
			tc.mutate(d)
			if got := d.StatusAt(tc.now); got != tc.want {
				t.Fatalf("StatusAt() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestIsLive(t *testing.T) {
	d := baseDeal()
	inWindow := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	if !d.IsLive(inWindow) {
		t.Fatal("expected deal to be live inside window")
	}

	d.SoldQuantity = d.TotalQuantity
	if d.IsLive(inWindow) {
		t.Fatal("sold out deal must not be live")
	}
}

func TestRecalcDiscount(t *testing.T) {
	cases := []struct {
		name       string
		original   string
		discounted string
		want       int
	}{
		{"普通折扣", "1000", "750", 25},
		{"四舍五入", "999", "333", 67},
		{"零原价兜底", "0", "100", 0},
		{"折扣价高于原价收敛到0", "100", "150", 0},
		{"免费收敛到100", "100", "0", 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := baseDeal()
			d.OriginalPrice, _ = decimal.NewFromString(tc.original)
			d.DiscountedPrice, _ = decimal.NewFromString(tc.discounted)
			d.RecalcDiscount()
			if d.DiscountPercentage != tc.want {
				t.Fatalf("DiscountPercentage = %d, want %d", d.DiscountPercentage, tc.want)
			}
		})
	}
}

func TestRemainingAndProgress(t *testing.T) {
	d := baseDeal()
	d.SoldQuantity = 25

	if got := d.RemainingQuantity(); got != 75 {
		t.Fatalf("RemainingQuantity = %d, want 75", got)
	}
	if got := d.ProgressPercentage(); got != 25.0 {
		t.Fatalf("ProgressPercentage = %v, want 25", got)
	}

	// 脏数据：已售超过配额也不返回负数
	d.SoldQuantity = 130
	if got := d.RemainingQuantity(); got != 0 {
		t.Fatalf("RemainingQuantity = %d, want 0", got)
	}

	d = baseDeal()
	d.TotalQuantity = 0
	if got := d.ProgressPercentage(); got != 0 {
		t.Fatalf("ProgressPercentage with zero quota = %v, want 0", got)
	}
}

func TestConversionRateAndRevenue(t *testing.T) {
	d := baseDeal()
	d.SoldQuantity = 7
	d.ClickCount = 40

	if got := d.ConversionRate(); got != 17.5 {
		t.Fatalf("ConversionRate = %v, want 17.5", got)
	}
	if got := d.Revenue(); !got.Equal(decimal.NewFromInt(5250)) {
		t.Fatalf("Revenue = %s, want 5250", got)
	}

	d.ClickCount = 0
	if got := d.ConversionRate(); got != 0 {
		t.Fatalf("ConversionRate with zero clicks = %v, want 0", got)
	}
}

func TestDeviceTypeFromUserAgent(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", DeviceTablet},
		// iPad Safari 同时带 iPad 和 Mobile，按 mobile 归类
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) Mobile/15E148 Safari/604.1", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 13; Tablet)", DeviceMobile}, // mobile 优先于 tablet
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0) Mobile/15E148", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 13; Pixel 7)", DeviceMobile},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", DeviceDesktop},
		{"", DeviceDesktop},
	}

	for _, tc := range cases {
		if got := DeviceTypeFromUserAgent(tc.ua); got != tc.want {
			t.Fatalf("DeviceTypeFromUserAgent(%q) = %s, want %s", tc.ua, got, tc.want)
		}
	}
}

func TestDealTypeValid(t *testing.T) {
	for _, typ := range []DealType{TypeDealOfDay, TypeFlashSale, TypeClearance, TypeSeasonal, TypeBundle, TypeLimitedTime} {
		if !typ.Valid() {
			t.Fatalf("expected %s to be valid", typ)
		}
	}
	if DealType("mystery").Valid() {
		t.Fatal("unknown type must be invalid")
	}
}
