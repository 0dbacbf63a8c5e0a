package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	uuid "github.com/google/uuid"

	"github.com/Prakash617/mobilepoint-backend/internal/auth"
	"github.com/Prakash617/mobilepoint-backend/internal/config"
	"github.com/Prakash617/mobilepoint-backend/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// Register 注册新用户，盐随机生成
func (s *UserService) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("用户名和密码不能为空")
	}
	u := &user.User{
		Username: username,
		Email:    email,
		Salt:     uuid.NewString(),
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, errors.New("用户名或密码错误")
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", nil, errors.New("用户名或密码错误")
	}
	token, err := auth.GenerateToken(s.jwt, u.ID, u.Username, u.IsAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// GetByID 按 ID 查询用户
func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}
