package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"github.com/Prakash617/mobilepoint-backend/internal/auth"
	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/mq"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/redis"
	"github.com/Prakash617/mobilepoint-backend/internal/repository/mysql"
	"github.com/Prakash617/mobilepoint-backend/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 API 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	variantRepo := mysql.NewVariantRepository(db)
	dealRepo := mysql.NewDealRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	productSvc := service.NewProductService(productRepo, variantRepo)
	dealSvc := service.NewDealService(db, dealRepo, productRepo, variantRepo, redisClient, mqConn)
	orderSvc := service.NewOrderService(orderRepo)

	// 后台全部接口都要求管理员身份
	requireAdmin := func(ctx iris.Context) {
		token := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
			return
		}
		if !claims.IsAdmin {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "需要管理员权限"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Next()
	}

	api := app.Party("/api", requireAdmin)

	// ---------- 活动管理 ----------

	// 活动列表（后台用：不过滤状态）
	api.Get("/deals", func(ctx iris.Context) {
		list, err := dealSvc.List(ctx.Request().Context(), &deal.ListFilter{})
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 创建活动
	api.Post("/deals", func(ctx iris.Context) {
		req, err := readDealRequest(ctx)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		d, err := dealSvc.CreateDeal(ctx.Request().Context(), req)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": d})
	})

	// 更新活动
	api.Put("/deals/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		req, err := readDealRequest(ctx)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		d, err := dealSvc.UpdateDeal(ctx.Request().Context(), id, req)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": d})
	})

	// 删除活动
	api.Delete("/deals/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := dealSvc.DeleteDeal(ctx.Request().Context(), id); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// 全局活动统计看板
	api.Get("/deals/stats", func(ctx iris.Context) {
		stats, err := dealSvc.Stats(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": stats})
	})

	// 导出活动明细为 Excel
	api.Get("/deals/export", func(ctx iris.Context) {
		list, err := dealSvc.List(ctx.Request().Context(), &deal.ListFilter{})
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("deals")
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}

		header := sheet.AddRow()
		for _, name := range []string{
			"ID", "标题", "类型", "状态", "原价", "折扣价", "折扣",
			"配额", "已售", "浏览", "点击", "转化率", "开始时间", "结束时间",
		} {
			header.AddCell().SetString(name)
		}

		now := time.Now()
		for _, d := range list {
			row := sheet.AddRow()
			row.AddCell().SetInt64(d.ID)
			row.AddCell().SetString(d.Title)
			row.AddCell().SetString(string(d.DealType))
			row.AddCell().SetString(string(d.StatusAt(now)))
			row.AddCell().SetString(d.OriginalPrice.StringFixed(2))
			row.AddCell().SetString(d.DiscountedPrice.StringFixed(2))
			row.AddCell().SetString(fmt.Sprintf("%d%%", d.DiscountPercentage))
			row.AddCell().SetInt64(d.TotalQuantity)
			row.AddCell().SetInt64(d.SoldQuantity)
			row.AddCell().SetInt64(d.ViewCount)
			row.AddCell().SetInt64(d.ClickCount)
			row.AddCell().SetString(fmt.Sprintf("%.2f%%", d.ConversionRate()))
			row.AddCell().SetString(d.StartDate.Format("2006-01-02 15:04:05"))
			row.AddCell().SetString(d.EndDate.Format("2006-01-02 15:04:05"))
		}

		ctx.Header("Content-Disposition", `attachment; filename="deals.xlsx"`)
		ctx.ContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(ctx.ResponseWriter()); err != nil {
			ctx.Application().Logger().Errorf("导出活动 Excel 失败: %v", err)
		}
	})

	// 单个活动的分析数据
	api.Get("/deals/{slug:string}/analytics", func(ctx iris.Context) {
		data, err := dealSvc.Analytics(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "活动不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": data})
	})

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListActive(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/products", func(ctx iris.Context) {
		var p product.Product
		if err := ctx.ReadJSON(&p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p.IsActive = true
		if err := productSvc.CreateProduct(ctx.Request().Context(), &p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		if err := ctx.ReadJSON(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p.ID = id
		if err := productSvc.UpdateProduct(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := productSvc.DeleteProduct(ctx.Request().Context(), id); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 规格管理 ----------

	api.Get("/products/{id:int64}/variants", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		list, err := productSvc.Variants(ctx.Request().Context(), id)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/variants", func(ctx iris.Context) {
		var v variant.ProductVariant
		if err := ctx.ReadJSON(&v); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		v.IsActive = true
		if err := productSvc.CreateVariant(ctx.Request().Context(), &v); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": v})
	})

	api.Put("/variants/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var v variant.ProductVariant
		if err := ctx.ReadJSON(&v); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		v.ID = id
		if err := productSvc.UpdateVariant(ctx.Request().Context(), &v); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": v})
	})

	api.Delete("/variants/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := productSvc.DeleteVariant(ctx.Request().Context(), id); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 订单 / 用户 ----------

	// 最近订单列表
	api.Get("/orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 20)
		list, err := orderSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/users", func(ctx iris.Context) {
		list, err := userRepo.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		type row struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
			IsAdmin  bool   `json:"is_admin"`
		}
		rows := make([]row, 0, len(list))
		for _, u := range list {
			rows = append(rows, row{ID: u.ID, Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin})
		}
		ctx.JSON(iris.Map{"code": 0, "data": rows})
	})

	// ---------- 运行监控 ----------

	api.Get("/monitor", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}

// ---- 辅助结构与函数 ----

type adminDealRequest struct {
	ProductID           int64                  `json:"product_id"`
	VariantID           *int64                 `json:"variant_id"`
	Title               string                 `json:"title"`
	DealType            string                 `json:"deal_type"`
	Slug                string                 `json:"slug"`
	OriginalPrice       string                 `json:"original_price"`
	DiscountedPrice     string                 `json:"discounted_price"`
	StartDate           string                 `json:"start_date"`
	EndDate             string                 `json:"end_date"`
	TotalQuantity       int64                  `json:"total_quantity"`
	MaxQuantityPerOrder int64                  `json:"max_quantity_per_order"`
	FreeShipping        bool                   `json:"free_shipping"`
	ShippingMessage     string                 `json:"shipping_message"`
	FreeGift            bool                   `json:"free_gift"`
	GiftMessage         string                 `json:"gift_message"`
	BadgeText           string                 `json:"badge_text"`
	BadgeColor          string                 `json:"badge_color"`
	HighlightFeatures   deal.HighlightFeatures `json:"highlight_features"`
	Description         string                 `json:"description"`
	TermsAndConditions  string                 `json:"terms_and_conditions"`
	DisplayOrder        int                    `json:"display_order"`
	IsActive            *bool                  `json:"is_active"`
	IsFeatured          bool                   `json:"is_featured"`
}

func readDealRequest(ctx iris.Context) (*service.DealRequest, error) {
	var raw adminDealRequest
	if err := ctx.ReadJSON(&raw); err != nil {
		return nil, err
	}

	req := &service.DealRequest{
		ProductID:           raw.ProductID,
		VariantID:           raw.VariantID,
		Title:               raw.Title,
		DealType:            deal.DealType(raw.DealType),
		Slug:                raw.Slug,
		TotalQuantity:       raw.TotalQuantity,
		MaxQuantityPerOrder: raw.MaxQuantityPerOrder,
		FreeShipping:        raw.FreeShipping,
		ShippingMessage:     raw.ShippingMessage,
		FreeGift:            raw.FreeGift,
		GiftMessage:         raw.GiftMessage,
		BadgeText:           raw.BadgeText,
		BadgeColor:          raw.BadgeColor,
		HighlightFeatures:   raw.HighlightFeatures,
		Description:         raw.Description,
		TermsAndConditions:  raw.TermsAndConditions,
		DisplayOrder:        raw.DisplayOrder,
		IsActive:            raw.IsActive,
		IsFeatured:          raw.IsFeatured,
	}

	if raw.OriginalPrice != "" {
		p, err := decimal.NewFromString(raw.OriginalPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid original_price: %w", err)
		}
		req.OriginalPrice = p
	}
	if raw.DiscountedPrice != "" {
		p, err := decimal.NewFromString(raw.DiscountedPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid discounted_price: %w", err)
		}
		req.DiscountedPrice = p
	}
	if raw.StartDate != "" {
		t, err := parseAdminTime(raw.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date: %w", err)
		}
		req.StartDate = t
	}
	if raw.EndDate != "" {
		t, err := parseAdminTime(raw.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date: %w", err)
		}
		req.EndDate = t
	}
	return req, nil
}

// 支持多种常见时间格式，精确到秒
func parseAdminTime(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", v)
}
