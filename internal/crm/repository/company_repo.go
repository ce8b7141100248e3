package repository

import (
	"context"
	"errors"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
)

// CompanyRepository 租户仓库
type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *CompanyRepository) WithTx(tx *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: tx}
}

// Create 创建租户
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// FindByID 根据ID查找租户
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*entity.Company, error) {
	var c entity.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
