package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories CRM仓库集合
type Repositories struct {
	Company     *CompanyRepository
	Customer    *CustomerRepository
	Vendor      *VendorRepository
	Numbering   *NumberingRepository
	Document    *DocumentRepository
	Estimate    *EstimateRepository
	Project     *ProjectRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建CRM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Company:     NewCompanyRepository(db),
		Customer:    NewCustomerRepository(db),
		Vendor:      NewVendorRepository(db),
		Numbering:   NewNumberingRepository(db),
		Document:    NewDocumentRepository(db),
		Estimate:    NewEstimateRepository(db),
		Project:     NewProjectRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// NewID 32位主键
func NewID() string {
	return uuid.New().String()[:32]
}

// findScoped loads one tenant-owned row by id.
func findScoped[T any](ctx context.Context, db *gorm.DB, tenantID, id string) (*T, error) {
	var row T
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// existsScoped reports whether a tenant-owned row exists.
func existsScoped[T any](ctx context.Context, db *gorm.DB, tenantID, id string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(new(T)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Count(&count).Error
	return count > 0, err
}
