package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/deal"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/order"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/product"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/review"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/user"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/variant"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/wishlist"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = AutoMigrate(db); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// AutoMigrate 迁移全部业务表，测试里也会对临时库调用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&product.Category{},
		&product.Brand{},
		&product.Product{},
		&product.RecentlyViewed{},
		&variant.ProductVariant{},
		&deal.Deal{},
		&deal.View{},
		&deal.Click{},
		&order.Order{},
		&review.ProductReview{},
		&wishlist.Wishlist{},
		&wishlist.Item{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
