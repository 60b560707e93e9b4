// Package catalog serves products, their movement history and the dashboard
// aggregates from the database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/auth"
	"github.com/painel-dev/painel/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidQuery = errors.New("invalid query")
)

// Service handles catalog and account lookups
type Service struct {
	db          *gorm.DB
	salesTarget float64
	logger      zerolog.Logger
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, salesTarget float64, logger zerolog.Logger) *Service {
	return &Service{
		db:          db,
		salesTarget: salesTarget,
		logger:      logger.With().Str("component", "catalog_service").Logger(),
	}
}

// GetProductByCode returns the product with its history ordered by date
func (s *Service) GetProductByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("date ASC")
		}).
		Where("product_code = ?", code).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &product, nil
}

// GetUserByUsername returns the account with the given username
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Authenticate returns the active user matching the credentials, or
// ErrNotFound for unknown users, wrong passwords and inactive accounts alike
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrNotFound
	}
	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// CreateUser creates an active account
func (s *Service) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if _, err := s.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", username).Msg("User created")
	return user, nil
}

// ImportUser creates an account from an existing bcrypt hash. It reports
// false, leaving the account untouched, when the username is taken.
func (s *Service) ImportUser(ctx context.Context, username, passwordHash string, active bool) (bool, error) {
	if _, err := s.GetUserByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	// is_active defaults to true, so false has to be written explicitly
	if !active {
		if err := s.SetUserActive(ctx, username, false); err != nil {
			return true, err
		}
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", username).Bool("active", active).Msg("User imported")
	return true, nil
}

// SetUserActive enables or disables an account
func (s *Service) SetUserActive(ctx context.Context, username string, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// KPIs are the general indicators of the home screen
type KPIs struct {
	CurrentMonthSales float64 `json:"vendas_mes_atual"`
	SalesTarget       float64 `json:"meta_exemplo"`
	TotalProducts     int64   `json:"total_produtos"`
	Month             string  `json:"mes"`
}

// GeneralKPIs computes the units sold in the newest month with data, the
// configured target and the number of products
func (s *Service) GeneralKPIs(ctx context.Context) (*KPIs, error) {
	db := s.db.WithContext(ctx)
	kpis := &KPIs{SalesTarget: s.salesTarget}

	if err := db.Model(&models.Product{}).Count(&kpis.TotalProducts).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var month sql.NullString
	if err := db.Model(&models.ProductHistory{}).Select("substr(max(date), 1, 7)").Row().Scan(&month); err != nil {
		return nil, fmt.Errorf("failed to find current month: %w", err)
	}
	if !month.Valid || month.String == "" {
		return kpis, nil
	}
	kpis.Month = month.String

	var sold sql.NullInt64
	if err := db.Model(&models.ProductHistory{}).
		Select("sum(sold_quantity)").
		Where("substr(date, 1, 7) = ?", kpis.Month).
		Row().Scan(&sold); err != nil {
		return nil, fmt.Errorf("failed to sum sales: %w", err)
	}
	kpis.CurrentMonthSales = float64(sold.Int64)

	return kpis, nil
}

// ListImportRuns returns the newest import runs first
func (s *Service) ListImportRuns(ctx context.Context, limit int) ([]models.ImportRun, error) {
	var runs []models.ImportRun
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}
