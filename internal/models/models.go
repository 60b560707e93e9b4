package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User represents a dashboard account
type User struct {
	BaseModel
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Product is an item whose stock is tracked month by month
type Product struct {
	BaseModel
	ProductCode string `json:"product_code" gorm:"uniqueIndex;not null"`
	ProductName string `json:"product_name" gorm:"not null"`

	// Relationships
	History []ProductHistory `json:"history,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// ProductHistory is the stock movement of a product over one period.
// Date is stored as UTC midnight.
type ProductHistory struct {
	BaseModel
	ProductID       string    `json:"product_id" gorm:"not null;index"`
	Date            time.Time `json:"date" gorm:"not null;index"`
	OpeningStock    int       `json:"opening_stock" gorm:"not null;default:0"`
	InboundQuantity int       `json:"inbound_quantity" gorm:"not null;default:0"`
	SoldQuantity    int       `json:"sold_quantity" gorm:"not null;default:0"`
	ClosingStock    int       `json:"closing_stock" gorm:"not null;default:0"`
}

// TableName keeps the table name singular, as the query builder expects
func (ProductHistory) TableName() string {
	return "product_history"
}

// ImportRunStatus represents the state of an import
type ImportRunStatus string

const (
	ImportRunPending   ImportRunStatus = "pending"
	ImportRunRunning   ImportRunStatus = "running"
	ImportRunCompleted ImportRunStatus = "completed"
	ImportRunFailed    ImportRunStatus = "failed"
)

// ImportRun records one load of the movement history
type ImportRun struct {
	BaseModel
	Source      string          `json:"source" gorm:"not null"` // "csv:<path>" or "postgres"
	Status      ImportRunStatus `json:"status" gorm:"not null;default:pending"`
	Products    int             `json:"products" gorm:"not null;default:0"`
	Records     int             `json:"records" gorm:"not null;default:0"`
	Error       string          `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&User{}, &Product{}, &ProductHistory{}, &ImportRun{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
