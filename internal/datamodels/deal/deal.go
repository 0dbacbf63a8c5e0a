package deal

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DealType 活动类型
type DealType string

const (
	TypeDealOfDay   DealType = "deal_of_day"  // 每日特惠
	TypeFlashSale   DealType = "flash_sale"   // 限时抢购
	TypeClearance   DealType = "clearance"    // 清仓
	TypeSeasonal    DealType = "seasonal"     // 季节性促销
	TypeBundle      DealType = "bundle"       // 套装优惠
	TypeLimitedTime DealType = "limited_time" // 限时优惠
)

// Valid 判断活动类型是否合法
func (t DealType) Valid() bool {
	switch t {
	case TypeDealOfDay, TypeFlashSale, TypeClearance, TypeSeasonal, TypeBundle, TypeLimitedTime:
		return true
	}
	return false
}

// Status 活动派生状态（不落库，读取时根据时间和计数实时计算）
type Status string

const (
	StatusSoldOut  Status = "sold_out" // 已售罄
	StatusExpired  Status = "expired"  // 已结束
	StatusUpcoming Status = "upcoming" // 未开始
	StatusLive     Status = "live"     // 进行中
	StatusInactive Status = "inactive" // 已下线（在时间窗口内但被停用）
)

// 购买校验错误，按校验顺序定义，第一个失败即返回
var (
	ErrInvalidQuantity          = errors.New("购买数量必须大于 0")
	ErrQuantityExceedsLimit     = errors.New("超过单笔订单限购数量")
	ErrDealNotLive              = errors.New("活动当前不可购买")
	ErrInsufficientQuantity     = errors.New("活动库存不足")
	ErrInsufficientVariantStock = errors.New("商品规格库存不足")
)

// HighlightFeature 活动页展示的卖点，例如 {"label": "Display", "value": "6.67 inches"}
type HighlightFeature struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// HighlightFeatures 以 JSON 形式存储的卖点列表
type HighlightFeatures []HighlightFeature

func (f HighlightFeatures) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *HighlightFeatures) Scan(src interface{}) error {
	if src == nil {
		*f = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for highlight features: %T", src)
	}
	if len(raw) == 0 {
		*f = nil
		return nil
	}
	return json.Unmarshal(raw, f)
}

// Deal 促销活动模型
// 活动关联到商品；VariantID 为空时作用于该商品的全部在售规格，否则只作用于指定规格。
type Deal struct {
	ID        int64    `gorm:"primaryKey" json:"id"`
	ProductID int64    `gorm:"index:idx_deal_product_variant;not null" json:"product_id"`
	VariantID *int64   `gorm:"index:idx_deal_product_variant" json:"variant_id"`
	Title     string   `gorm:"size:255;not null" json:"title"`
	DealType  DealType `gorm:"size:50;index:idx_deal_type_active;not null" json:"deal_type"`
	Slug      string   `gorm:"size:300;uniqueIndex;not null" json:"slug"`

	// 价格，DiscountPercentage 每次保存时由两个价格重新推导
	OriginalPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"original_price"`
	DiscountedPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discounted_price"`
	DiscountPercentage int             `gorm:"not null" json:"discount_percentage"`

	// 活动时间窗口
	StartDate time.Time `gorm:"index:idx_deal_window" json:"start_date"`
	EndDate   time.Time `gorm:"index:idx_deal_window" json:"end_date"`

	// 活动库存配额
	TotalQuantity       int64 `gorm:"not null" json:"total_quantity"`
	SoldQuantity        int64 `gorm:"not null;default:0" json:"sold_quantity"`
	MaxQuantityPerOrder int64 `gorm:"not null;default:5" json:"max_quantity_per_order"`

	// 物流/赠品
	FreeShipping    bool   `gorm:"not null;default:false" json:"free_shipping"`
	ShippingMessage string `gorm:"size:100" json:"shipping_message"`
	FreeGift        bool   `gorm:"not null;default:false" json:"free_gift"`
	GiftMessage     string `gorm:"size:100" json:"gift_message"`

	// 展示配置
	BadgeText          string            `gorm:"size:50" json:"badge_text"`
	BadgeColor         string            `gorm:"size:7;default:#FF0000" json:"badge_color"`
	HighlightFeatures  HighlightFeatures `gorm:"type:json" json:"highlight_features"`
	Description        string            `gorm:"type:text" json:"description"`
	TermsAndConditions string            `gorm:"type:text" json:"terms_and_conditions"`
	DisplayOrder       int               `gorm:"not null;default:0" json:"display_order"`
	IsActive           bool              `gorm:"index:idx_deal_type_active;not null;default:true" json:"is_active"`
	IsFeatured         bool              `gorm:"index;not null;default:false" json:"is_featured"`

	// 统计计数，只增不减
	ViewCount  int64 `gorm:"not null;default:0" json:"view_count"`
	ClickCount int64 `gorm:"not null;default:0" json:"click_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Deal) TableName() string {
	return "deals"
}

// RemainingQuantity 活动剩余可售数量
func (d *Deal) RemainingQuantity() int64 {
	if r := d.TotalQuantity - d.SoldQuantity; r > 0 {
		return r
	}
	return 0
}

// ProgressPercentage 已售进度百分比，保留两位小数
func (d *Deal) ProgressPercentage() float64 {
	if d.TotalQuantity == 0 {
		return 0
	}
	return math.Round(float64(d.SoldQuantity)/float64(d.TotalQuantity)*10000) / 100
}

// IsSoldOut 是否已售罄（与时间窗口无关）
func (d *Deal) IsSoldOut() bool {
	return d.SoldQuantity >= d.TotalQuantity
}

// StatusAt 按优先级推导活动状态：
// 售罄 > 已结束 > 未开始 > 进行中 > 已下线。
// 售罄优先于过期，便于区分“卖完了”和“没卖完但时间到了”。
func (d *Deal) StatusAt(now time.Time) Status {
	switch {
	case d.IsSoldOut():
		return StatusSoldOut
	case now.After(d.EndDate):
		return StatusExpired
	case now.Before(d.StartDate):
		return StatusUpcoming
	case d.IsActive:
		return StatusLive
	default:
		return StatusInactive
	}
}

// IsLive 活动是否正在进行（启用、在窗口内且未售罄）
func (d *Deal) IsLive(now time.Time) bool {
	return d.StatusAt(now) == StatusLive
}

// RecalcDiscount 由两个价格重新推导折扣百分比，并收敛到 [0,100]。
// 正常流程里创建/更新校验已保证折扣价低于原价，这里的收敛只兜底脏数据。
func (d *Deal) RecalcDiscount() {
	if d.OriginalPrice.IsZero() {
		d.DiscountPercentage = 0
		return
	}
	pct := d.OriginalPrice.Sub(d.DiscountedPrice).
		Div(d.OriginalPrice).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	d.DiscountPercentage = int(pct)
}

// ConversionRate 点击到成交的转化率（百分比，两位小数）
func (d *Deal) ConversionRate() float64 {
	if d.ClickCount == 0 {
		return 0
	}
	return math.Round(float64(d.SoldQuantity)/float64(d.ClickCount)*10000) / 100
}

// Revenue 活动成交额 = 已售数量 × 折扣价
func (d *Deal) Revenue() decimal.Decimal {
	return d.DiscountedPrice.Mul(decimal.NewFromInt(d.SoldQuantity))
}

// 设备类型，由 User-Agent 子串匹配推导
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// DeviceTypeFromUserAgent 根据 User-Agent 粗分设备类型
func DeviceTypeFromUserAgent(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	// mobile 优先：iPad Safari 的 UA 同时带 iPad 和 Mobile
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android"):
		return DeviceMobile
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// View 浏览事件，只追加不修改
type View struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	DealID     int64     `gorm:"index:idx_deal_view_time;not null" json:"deal_id"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	UserAgent  string    `gorm:"size:512" json:"user_agent"`
	SessionKey string    `gorm:"size:64" json:"session_key"`
	UserID     *int64    `gorm:"index" json:"user_id"`
	Referrer   string    `gorm:"size:512" json:"referrer"`
	DeviceType string    `gorm:"size:10" json:"device_type"`
	ViewedAt   time.Time `gorm:"index:idx_deal_view_time" json:"viewed_at"`
}

// TableName 指定表名
func (View) TableName() string {
	return "deal_views"
}

// Click 点击事件，只追加不修改
type Click struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	DealID     int64     `gorm:"index:idx_deal_click_time;not null" json:"deal_id"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	SessionKey string    `gorm:"size:64" json:"session_key"`
	UserID     *int64    `gorm:"index" json:"user_id"`
	ClickType  string    `gorm:"size:32" json:"click_type"`
	DeviceType string    `gorm:"size:10" json:"device_type"`
	ClickedAt  time.Time `gorm:"index:idx_deal_click_time" json:"clicked_at"`
}

// TableName 指定表名
func (Click) TableName() string {
	return "deal_clicks"
}

// ListFilter 活动列表查询条件，零值字段表示不过滤
type ListFilter struct {
	DealTypes    []DealType
	IsLive       *bool
	IsUpcoming   *bool // 只看未开始的活动，按开始时间正序
	IsFeatured   *bool
	IsActive     *bool
	FreeShipping *bool
	MinPrice     *decimal.Decimal // 按折扣价过滤
	MaxPrice     *decimal.Decimal
	MinDiscount  *int
	CategorySlug string
	BrandSlug    string
	Search       string // 标题/商品名模糊匹配
	Limit        int
	Offset       int
}

// DailyCount 按自然日聚合的事件数
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// DeviceCount 按设备类型聚合的浏览数
type DeviceCount struct {
	DeviceType string `json:"device_type"`
	Count      int64  `json:"count"`
}

// Stats 活动整体统计
type Stats struct {
	TotalDeals            int64           `json:"total_deals"`
	ActiveDeals           int64           `json:"active_deals"`
	LiveDeals             int64           `json:"live_deals"`
	UpcomingDeals         int64           `json:"upcoming_deals"`
	ExpiredDeals          int64           `json:"expired_deals"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	TotalViews            int64           `json:"total_views"`
	TotalClicks           int64           `json:"total_clicks"`
	TotalSold             int64           `json:"total_sold"`
	AverageConversionRate float64         `json:"average_conversion_rate"`
}

// Repository 活动仓储接口
type Repository interface {
	Create(ctx context.Context, d *Deal) error
	GetByID(ctx context.Context, id int64) (*Deal, error)
	GetBySlug(ctx context.Context, slug string) (*Deal, error)
	List(ctx context.Context, f *ListFilter) ([]*Deal, error)
	Update(ctx context.Context, d *Deal) error
	Delete(ctx context.Context, id int64) error

	// 事件日志
	CreateView(ctx context.Context, v *View) error
	CreateClick(ctx context.Context, c *Click) error
	IncrementViewCount(ctx context.Context, dealID int64) error
	IncrementClickCount(ctx context.Context, dealID int64) error

	// 分析聚合
	ViewsByDay(ctx context.Context, dealID int64) ([]DailyCount, error)
	ClicksByDay(ctx context.Context, dealID int64) ([]DailyCount, error)
	DeviceBreakdown(ctx context.Context, dealID int64) ([]DeviceCount, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
