package repository

import (
	"context"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
)

// CustomerRepository 客户仓库
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindAll 查询客户列表
func (r *CustomerRepository) FindAll(ctx context.Context, tenantID string, page, pageSize int, search string) ([]entity.Customer, int64, error) {
	var items []entity.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Customer{}).Where("tenant_id = ?", tenantID)
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

func (r *CustomerRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Customer, error) {
	return findScoped[entity.Customer](ctx, r.db, tenantID, id)
}

func (r *CustomerRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	return existsScoped[entity.Customer](ctx, r.db, tenantID, id)
}

func (r *CustomerRepository) Create(ctx context.Context, c *entity.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// VendorRepository 供应商仓库
type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// FindAll 查询供应商列表
func (r *VendorRepository) FindAll(ctx context.Context, tenantID string, page, pageSize int, search string) ([]entity.Vendor, int64, error) {
	var items []entity.Vendor
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Vendor{}).Where("tenant_id = ?", tenantID)
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

func (r *VendorRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Vendor, error) {
	return findScoped[entity.Vendor](ctx, r.db, tenantID, id)
}

func (r *VendorRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	return existsScoped[entity.Vendor](ctx, r.db, tenantID, id)
}

func (r *VendorRepository) Create(ctx context.Context, v *entity.Vendor) error {
	return r.db.WithContext(ctx).Create(v).Error
}
