package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
)

// DirectoryService 客户/供应商
type DirectoryService struct {
	customers *repository.CustomerRepository
	vendors   *repository.VendorRepository
}

func NewDirectoryService(customers *repository.CustomerRepository, vendors *repository.VendorRepository) *DirectoryService {
	return &DirectoryService{customers: customers, vendors: vendors}
}

type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"max=200"`
	Phone   string `json:"phone" binding:"max=50"`
	Address string `json:"address" binding:"max=500"`
}

type CreateVendorRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	ContactName string `json:"contact_name" binding:"max=100"`
	Email       string `json:"email" binding:"max=200"`
	Phone       string `json:"phone" binding:"max=50"`
}

func (s *DirectoryService) CreateCustomer(ctx context.Context, actor Actor, req *CreateCustomerRequest) (*entity.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	c := &entity.Customer{
		ID:        repository.NewID(),
		TenantID:  actor.TenantID,
		Name:      name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedBy: actor.UserID,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, classify("create customer", err)
	}
	return c, nil
}

func (s *DirectoryService) ListCustomers(ctx context.Context, tenantID string, page, pageSize int, search string) ([]entity.Customer, int64, error) {
	items, total, err := s.customers.FindAll(ctx, tenantID, page, pageSize, search)
	if err != nil {
		return nil, 0, storageErr("list customers", err)
	}
	return items, total, nil
}

func (s *DirectoryService) CreateVendor(ctx context.Context, actor Actor, req *CreateVendorRequest) (*entity.Vendor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	v := &entity.Vendor{
		ID:          repository.NewID(),
		TenantID:    actor.TenantID,
		Name:        name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		CreatedBy:   actor.UserID,
	}
	if err := s.vendors.Create(ctx, v); err != nil {
		return nil, classify("create vendor", err)
	}
	return v, nil
}

func (s *DirectoryService) ListVendors(ctx context.Context, tenantID string, page, pageSize int, search string) ([]entity.Vendor, int64, error) {
	items, total, err := s.vendors.FindAll(ctx, tenantID, page, pageSize, search)
	if err != nil {
		return nil, 0, storageErr("list vendors", err)
	}
	return items, total, nil
}

func (s *DirectoryService) GetCustomer(ctx context.Context, tenantID, id string) (*entity.Customer, error) {
	return found(s.customers.FindByID(ctx, tenantID, id))
}

func (s *DirectoryService) GetVendor(ctx context.Context, tenantID, id string) (*entity.Vendor, error) {
	return found(s.vendors.FindByID(ctx, tenantID, id))
}
