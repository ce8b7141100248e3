package repository

import (
	"context"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
)

// DocumentRepository 工单/采购订单/发票仓库
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) WithTx(tx *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// DocumentFilter list filters shared by document kinds.
type DocumentFilter struct {
	Status string
	Search string
}

func applyDocumentFilter(query *gorm.DB, f DocumentFilter) *gorm.DB {
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		query = query.Where("number ILIKE ?", "%"+f.Search+"%")
	}
	return query
}

// listScoped pages tenant-owned documents, newest first.
func listScoped[T any](ctx context.Context, db *gorm.DB, tenantID string, page, pageSize int, f DocumentFilter) ([]T, int64, error) {
	var items []T
	var total int64

	query := applyDocumentFilter(db.WithContext(ctx).Model(new(T)).Where("tenant_id = ?", tenantID), f)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// CreateWorkOrder 创建工单
func (r *DocumentRepository) CreateWorkOrder(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *DocumentRepository) FindWorkOrder(ctx context.Context, tenantID, id string) (*entity.WorkOrder, error) {
	return findScoped[entity.WorkOrder](ctx, r.db, tenantID, id)
}

func (r *DocumentRepository) WorkOrderExists(ctx context.Context, tenantID, id string) (bool, error) {
	return existsScoped[entity.WorkOrder](ctx, r.db, tenantID, id)
}

func (r *DocumentRepository) ListWorkOrders(ctx context.Context, tenantID string, page, pageSize int, f DocumentFilter) ([]entity.WorkOrder, int64, error) {
	return listScoped[entity.WorkOrder](ctx, r.db, tenantID, page, pageSize, f)
}

// CreatePurchaseOrder 创建采购订单
func (r *DocumentRepository) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *DocumentRepository) FindPurchaseOrder(ctx context.Context, tenantID, id string) (*entity.PurchaseOrder, error) {
	return findScoped[entity.PurchaseOrder](ctx, r.db, tenantID, id)
}

func (r *DocumentRepository) ListPurchaseOrders(ctx context.Context, tenantID string, page, pageSize int, f DocumentFilter) ([]entity.PurchaseOrder, int64, error) {
	return listScoped[entity.PurchaseOrder](ctx, r.db, tenantID, page, pageSize, f)
}

// CreateInvoice 创建发票
func (r *DocumentRepository) CreateInvoice(ctx context.Context, inv *entity.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *DocumentRepository) FindInvoice(ctx context.Context, tenantID, id string) (*entity.Invoice, error) {
	return findScoped[entity.Invoice](ctx, r.db, tenantID, id)
}

func (r *DocumentRepository) ListInvoices(ctx context.Context, tenantID string, page, pageSize int, f DocumentFilter) ([]entity.Invoice, int64, error) {
	return listScoped[entity.Invoice](ctx, r.db, tenantID, page, pageSize, f)
}
