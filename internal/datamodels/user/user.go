package user

import (
	"context"
	"time"
)

// User 用户模型
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string    `gorm:"size:128;index" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"` // 已加密密码
	Salt      string    `gorm:"size:64" json:"-"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"` // 管理员可维护活动/商品
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
