package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

// Claims are carried by every access token.
type Claims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

type AdminAccount struct {
	Username string
	Email    string
	Password string
}

type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	Verify(token string) (*Claims, error)
	EnsureDefaultAdmin(ctx context.Context, admin AdminAccount) error
}

type authService struct {
	db       *gorm.DB
	userRepo repositories.UserRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewAuthService(db *gorm.DB, userRepo repositories.UserRepository, secret string, ttl time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		db:       db,
		userRepo: userRepo,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Login accepts either the email or the username as identifier.
func (s *authService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByIdentifier(s.db.WithContext(ctx), identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrapStorage("get user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login: bad password", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := Claims{
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{AccessToken: token, User: user}, nil
}

func (s *authService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// EnsureDefaultAdmin creates the admin account when no user exists yet.
func (s *authService) EnsureDefaultAdmin(ctx context.Context, admin AdminAccount) error {
	db := s.db.WithContext(ctx)
	n, err := s.userRepo.Count(db)
	if err != nil {
		return wrapStorage("count users", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user := &models.User{
		Name:         "Administrator",
		Email:        admin.Email,
		Username:     admin.Username,
		PasswordHash: string(hash),
		Role:         "admin",
	}
	if err := s.userRepo.Create(db, user); err != nil {
		return wrapStorage("create admin", err)
	}
	s.logger.Info("default admin created", zap.String("username", admin.Username))
	return nil
}
