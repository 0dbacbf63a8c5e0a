package server

import (
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"github.com/Prakash617/mobilepoint-backend/internal/auth"
	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/mq"
	"github.com/Prakash617/mobilepoint-backend/internal/infra/redis"
	"github.com/Prakash617/mobilepoint-backend/internal/middleware"
	"github.com/Prakash617/mobilepoint-backend/internal/repository/mysql"
	"github.com/Prakash617/mobilepoint-backend/internal/service"
)

// dealPayload 活动详情响应，附带实时派生的状态字段
func dealPayload(d *deal.Deal, now time.Time) iris.Map {
	return iris.Map{
		"deal":                d,
		"status":              d.StatusAt(now),
		"remaining_quantity":  d.RemainingQuantity(),
		"progress_percentage": d.ProgressPercentage(),
		"is_sold_out":         d.IsSoldOut(),
		"time_remaining":      int64(d.EndDate.Sub(now).Seconds()),
	}
}

// RegisterRoutes 注册面向用户的全部 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
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
	reviewRepo := mysql.NewReviewRepository(db)
	wishlistRepo := mysql.NewWishlistRepository(db)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo, variantRepo)
	dealSvc := service.NewDealService(db, dealRepo, productRepo, variantRepo, redisClient, mqConn)
	orderSvc := service.NewOrderService(orderRepo)
	reviewSvc := service.NewReviewService(reviewRepo, productRepo)
	wishlistSvc := service.NewWishlistService(wishlistRepo, variantRepo)

	// JWT 解析结果缓存，按一致性哈希分摊到各鉴权节点
	ring := auth.NewRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	// 购买接口限流
	purchaseBucket := middleware.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)

	bearerToken := func(ctx iris.Context) string {
		return strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	}

	// resolveClaims 解析 token，优先走缓存
	resolveClaims := func(ctx iris.Context, token string) (*auth.Claims, error) {
		rctx := ctx.Request().Context()
		if claims, hit, err := tokenCache.Get(rctx, token); err != nil {
			service.GetMonitor().RecordRedisError()
		} else if hit {
			return claims, nil
		}
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err != nil {
			return nil, err
		}
		_ = tokenCache.Set(rctx, token, claims)
		return claims, nil
	}

	// optionalUserID 未登录也可访问的接口里尽力取出用户 ID，用于事件归属
	optionalUserID := func(ctx iris.Context) *int64 {
		token := bearerToken(ctx)
		if token == "" {
			return nil
		}
		claims, err := resolveClaims(ctx, token)
		if err != nil {
			return nil
		}
		return &claims.UserID
	}

	trackContext := func(ctx iris.Context) *service.TrackContext {
		return &service.TrackContext{
			IPAddress:  ctx.RemoteAddr(),
			UserAgent:  ctx.GetHeader("User-Agent"),
			SessionKey: ctx.GetHeader("X-Session-Key"),
			Referrer:   ctx.GetHeader("Referer"),
			UserID:     optionalUserID(ctx),
		}
	}

	requireAuth := func(ctx iris.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, err := resolveClaims(ctx, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Values().Set("is_admin", claims.IsAdmin)
		ctx.Next()
	}

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Email, req.Password)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
		}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, u, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"token":    token,
			"username": u.Username,
			"is_admin": u.IsAdmin,
		}})
	})

	// ---------------- 活动 ----------------

	deals := api.Party("/deals")

	// 活动列表，零值参数表示不过滤
	deals.Get("/", func(ctx iris.Context) {
		f := &deal.ListFilter{
			CategorySlug: ctx.URLParam("category"),
			BrandSlug:    ctx.URLParam("brand"),
			Search:       ctx.URLParam("q"),
			Limit:        ctx.URLParamIntDefault("limit", 0),
			Offset:       ctx.URLParamIntDefault("offset", 0),
		}
		if t := ctx.URLParam("deal_type"); t != "" {
			f.DealTypes = []deal.DealType{deal.DealType(t)}
		}
		if v, err := ctx.URLParamBool("is_live"); err == nil {
			f.IsLive = &v
		}
		if v, err := ctx.URLParamBool("is_featured"); err == nil {
			f.IsFeatured = &v
		}
		if v, err := ctx.URLParamBool("free_shipping"); err == nil {
			f.FreeShipping = &v
		}
		if raw := ctx.URLParam("min_price"); raw != "" {
			if p, err := decimal.NewFromString(raw); err == nil {
				f.MinPrice = &p
			}
		}
		if raw := ctx.URLParam("max_price"); raw != "" {
			if p, err := decimal.NewFromString(raw); err == nil {
				f.MaxPrice = &p
			}
		}
		if v, err := ctx.URLParamInt("min_discount"); err == nil {
			f.MinDiscount = &v
		}
		list, err := dealSvc.List(ctx.Request().Context(), f)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 固定栏目
	deals.Get("/featured", func(ctx iris.Context) {
		list, err := dealSvc.Featured(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	deals.Get("/live", func(ctx iris.Context) {
		list, err := dealSvc.Live(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	deals.Get("/upcoming", func(ctx iris.Context) {
		list, err := dealSvc.Upcoming(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	deals.Get("/deal_of_the_day", func(ctx iris.Context) {
		d, err := dealSvc.DealOfTheDay(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		if d == nil {
			ctx.JSON(iris.Map{"code": 0, "data": nil})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": dealPayload(d, time.Now())})
	})

	// 活动整体统计
	deals.Get("/stats", func(ctx iris.Context) {
		stats, err := dealSvc.Stats(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": stats})
	})

	deals.Get("/flash_sales", func(ctx iris.Context) {
		list, err := dealSvc.FlashSales(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 活动详情，每次访问都记一条浏览事件
	deals.Get("/{slug:string}", func(ctx iris.Context) {
		d, err := dealSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "活动不存在"})
			return
		}
		dealSvc.TrackView(ctx.Request().Context(), d, trackContext(ctx))
		ctx.JSON(iris.Map{"code": 0, "data": dealPayload(d, time.Now())})
	})

	// 点击上报
	deals.Post("/{slug:string}/track_click", func(ctx iris.Context) {
		d, err := dealSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "活动不存在"})
			return
		}
		var req struct {
			ClickType string `json:"click_type"`
		}
		_ = ctx.ReadJSON(&req) // 允许空 body
		dealSvc.TrackClick(ctx.Request().Context(), d, req.ClickType, trackContext(ctx))
		ctx.JSON(iris.Map{"code": 0, "msg": "recorded"})
	})

	// 单个活动的分析数据
	deals.Get("/{slug:string}/analytics", func(ctx iris.Context) {
		data, err := dealSvc.Analytics(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "活动不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": data})
	})

	// 购买：需要登录，且整体限流
	deals.Post("/{slug:string}/purchase", middleware.RateLimit(purchaseBucket), requireAuth, func(ctx iris.Context) {
		var req struct {
			Quantity int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		remaining, o, err := dealSvc.RecordPurchase(ctx.Request().Context(), ctx.Params().Get("slug"), userID, req.Quantity)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"order":              o,
			"remaining_quantity": remaining,
		}})
	})

	// ---------------- 商品目录 ----------------

	api.Get("/products", func(ctx iris.Context) {
		rctx := ctx.Request().Context()
		category := ctx.URLParam("category")
		brand := ctx.URLParam("brand")
		featured, _ := ctx.URLParamBool("is_featured")

		var (
			list interface{}
			err  error
		)
		switch {
		case category != "":
			list, err = productSvc.ListByCategory(rctx, category)
		case brand != "":
			list, err = productSvc.ListByBrand(rctx, brand)
		case featured:
			list, err = productSvc.ListFeatured(rctx)
		default:
			list, err = productSvc.ListActive(rctx)
		}
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{slug:string}", func(ctx iris.Context) {
		p, err := productSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"product": p,
			"is_new":  p.IsNew(time.Now()),
		}})
	})

	api.Get("/products/{slug:string}/variants", func(ctx iris.Context) {
		p, err := productSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		list, err := productSvc.Variants(ctx.Request().Context(), p.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{slug:string}/reviews", func(ctx iris.Context) {
		p, err := productSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		list, err := reviewSvc.ListApproved(ctx.Request().Context(), p.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		summary, err := reviewSvc.Summary(ctx.Request().Context(), p.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"reviews":        list,
			"average_rating": summary.Average,
			"review_count":   summary.Count,
		}})
	})

	api.Get("/categories", func(ctx iris.Context) {
		list, err := productSvc.ListCategories(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/brands", func(ctx iris.Context) {
		list, err := productSvc.ListBrands(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------------- 需要登录 ----------------

	authAPI := api.Party("/", requireAuth)

	authAPI.Get("/me", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		u, err := userSvc.GetByID(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "用户不存在"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
			"is_admin": u.IsAdmin,
		}})
	})

	authAPI.Get("/orders", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := orderSvc.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 心愿单
	authAPI.Get("/wishlist", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		items, err := wishlistSvc.List(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": items})
	})

	authAPI.Post("/wishlist", func(ctx iris.Context) {
		var req struct {
			VariantID int64  `json:"variant_id"`
			Notes     string `json:"notes"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		item, err := wishlistSvc.Add(ctx.Request().Context(), userID, req.VariantID, req.Notes)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": item})
	})

	authAPI.Delete("/wishlist/{variantID:int64}", func(ctx iris.Context) {
		variantID, _ := ctx.Params().GetInt64("variantID")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := wishlistSvc.Remove(ctx.Request().Context(), userID, variantID); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "removed"})
	})

	// 发表评价，审核通过后才对外展示
	authAPI.Post("/products/{slug:string}/reviews", func(ctx iris.Context) {
		p, err := productSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		var req struct {
			Rating  int    `json:"rating"`
			Title   string `json:"title"`
			Comment string `json:"comment"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		r := &review.ProductReview{
			ProductID: p.ID,
			UserID:    &userID,
			Rating:    req.Rating,
			Title:     req.Title,
			Comment:   req.Comment,
		}
		if err := reviewSvc.Create(ctx.Request().Context(), r); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": r})
	})

	// 最近浏览
	authAPI.Post("/products/{slug:string}/viewed", func(ctx iris.Context) {
		p, err := productSvc.GetBySlug(ctx.Request().Context(), ctx.Params().Get("slug"))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := productSvc.TouchRecentlyViewed(ctx.Request().Context(), userID, p.ID); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "recorded"})
	})

	authAPI.Get("/recently_viewed", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		limit := ctx.URLParamIntDefault("limit", 10)
		list, err := productSvc.RecentlyViewed(ctx.Request().Context(), userID, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})
}
