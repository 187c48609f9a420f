// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"insurapolis-go/internal/model"
	"insurapolis-go/internal/repository"
	"insurapolis-go/pkg/database"
	"insurapolis-go/pkg/hash"
	"insurapolis-go/pkg/token"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(email, firstname, surname, password string) (*model.User, error)
	Login(email, password string) (accessToken, refreshToken string, err error)
	GetProfile(userID uint) (*model.User, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	Logout(ctx context.Context, tokenString string) error
	IsTokenRevoked(ctx context.Context, tokenString string) bool
	// GetTotalTokens 汇总用户全部对话消耗的 token 数，没有消息时为 0。
	GetTotalTokens(userID uint) (int64, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	jwtManager  *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, messageRepo repository.MessageRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		jwtManager:  jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。用户创建后不可变。
func (s *userService) Register(email, firstname, surname, password string) (*model.User, error) {
	// 1. 检查邮箱是否已被注册
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, errors.New("邮箱已被注册")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	newUser := &model.User{
		Email:     email,
		Firstname: firstname,
		Surname:   surname,
		Password:  hashedPassword,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.New("邮箱已被注册")
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑，签发 access/refresh 两枚令牌。
func (s *userService) Login(email, password string) (accessToken, refreshToken string, err error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", errors.New("invalid credentials")
		}
		return "", "", err
	}

	if !hash.CheckPassword(password, user.Password) {
		return "", "", errors.New("invalid credentials")
	}

	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", fmt.Errorf("签发 access token 失败: %w", err)
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", fmt.Errorf("签发 refresh token 失败: %w", err)
	}
	return accessToken, refreshToken, nil
}

// GetProfile 根据用户 ID 获取用户信息。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// RefreshToken 用有效的 refresh token 换发新的令牌对。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("无效或已过期的 refresh token")
	}
	if s.IsTokenRevoked(context.Background(), refreshTokenString) {
		return "", "", errors.New("refresh token 已被吊销")
	}

	newAccessToken, err = s.jwtManager.GenerateToken(claims.UserID, claims.Email)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(claims.UserID, claims.Email)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}

// Logout 把令牌写入 Redis 黑名单，TTL 对齐令牌剩余有效期。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		// 无效令牌无需入黑名单
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	key := denylistKey(tokenString)
	if err := database.RDB.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("写入令牌黑名单失败: %w", err)
	}
	return nil
}

// IsTokenRevoked 检查令牌是否在黑名单中。Redis 异常时放行并交由签名校验兜底。
func (s *userService) IsTokenRevoked(ctx context.Context, tokenString string) bool {
	n, err := database.RDB.Exists(ctx, denylistKey(tokenString)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// GetTotalTokens 汇总用户的 token 消耗。
func (s *userService) GetTotalTokens(userID uint) (int64, error) {
	return s.messageRepo.TotalTokensByUser(userID)
}

func denylistKey(tokenString string) string {
	return "auth:denylist:" + tokenString
}
