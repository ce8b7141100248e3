package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AmountsInput client-supplied money fields. Totals are never accepted from
// the client; they are derived from these.
type AmountsInput struct {
	Subtotal  decimal.Decimal  `json:"subtotal"`
	TaxRate   decimal.Decimal  `json:"tax_rate"`
	TaxAmount *decimal.Decimal `json:"tax_amount"`
}

func (in AmountsInput) compute() (entity.Amounts, error) {
	if in.Subtotal.IsNegative() {
		return entity.Amounts{}, fmt.Errorf("%w: subtotal must not be negative", ErrInvalidInput)
	}
	if in.TaxRate.IsNegative() || (in.TaxAmount != nil && in.TaxAmount.IsNegative()) {
		return entity.Amounts{}, fmt.Errorf("%w: tax must not be negative", ErrInvalidInput)
	}
	return entity.ComputeAmounts(in.Subtotal, in.TaxRate, in.TaxAmount), nil
}

// CreateWorkOrderRequest 创建工单请求
type CreateWorkOrderRequest struct {
	CustomerID    string     `json:"customer_id" binding:"required,max=32"`
	Title         string     `json:"title" binding:"required,max=200"`
	Description   string     `json:"description"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	AmountsInput
}

// CreatePurchaseOrderRequest 创建采购订单请求
type CreatePurchaseOrderRequest struct {
	VendorID     string     `json:"vendor_id" binding:"required,max=32"`
	WorkOrderID  *string    `json:"work_order_id" binding:"omitempty,max=32"`
	ExpectedDate *time.Time `json:"expected_date"`
	Notes        string     `json:"notes"`
	AmountsInput
}

// CreateEstimateRequest 创建报价单请求
type CreateEstimateRequest struct {
	CustomerID  string     `json:"customer_id" binding:"required,max=32"`
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
	AmountsInput
}

// CreateInvoiceRequest 创建发票请求
type CreateInvoiceRequest struct {
	CustomerID  string     `json:"customer_id" binding:"required,max=32"`
	WorkOrderID *string    `json:"work_order_id" binding:"omitempty,max=32"`
	DueDate     *time.Time `json:"due_date"`
	Notes       string     `json:"notes"`
	AmountsInput
}

// DocumentService 单据服务：建单时在同一事务内分配编号
type DocumentService struct {
	db        *gorm.DB
	repo      *repository.DocumentRepository
	estimates *repository.EstimateRepository
	projects  *repository.ProjectRepository
	customers *repository.CustomerRepository
	vendors   *repository.VendorRepository
	logRepo   *repository.ActivityLogRepository
	numbering *NumberingService
	logger    *zap.Logger
}

func NewDocumentService(db *gorm.DB, repos *repository.Repositories, numbering *NumberingService, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		db:        db,
		repo:      repos.Document,
		estimates: repos.Estimate,
		projects:  repos.Project,
		customers: repos.Customer,
		vendors:   repos.Vendor,
		logRepo:   repos.ActivityLog,
		numbering: numbering,
		logger:    logger,
	}
}

// createNumbered allocates the next number of kind and inserts the document
// in the same transaction, so a failed insert never consumes a number.
func (s *DocumentService) createNumbered(ctx context.Context, actor Actor, kind entity.DocumentKind, docID string, insert func(tx *gorm.DB, number string) error) (string, error) {
	var number string
	var seq *entity.NumberingSequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, advanced, err := s.numbering.allocate(ctx, tx, actor, kind, nil, &docID)
		if err != nil {
			return err
		}
		if err := insert(tx, row.Number); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrNumberCollision, row.Number)
			}
			return fmt.Errorf("insert %s: %w", kind, err)
		}
		if err := s.logRepo.WithTx(tx).Create(ctx, &entity.ActivityLog{
			TenantID:   actor.TenantID,
			EntityType: string(kind),
			EntityID:   docID,
			EntityCode: row.Number,
			Action:     entity.ActionCreate,
			OperatorID: actor.UserID,
		}); err != nil {
			return err
		}
		number, seq = row.Number, advanced
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNumberCollision) {
			s.logger.Error("document number collision",
				zap.String("tenant_id", actor.TenantID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
		return "", classify("create "+string(kind), err)
	}
	s.numbering.notify(ctx, seq)
	return number, nil
}

func (s *DocumentService) requireCustomer(ctx context.Context, tenantID, id string) error {
	ok, err := s.customers.Exists(ctx, tenantID, id)
	if err != nil {
		return storageErr("check customer", err)
	}
	if !ok {
		return fmt.Errorf("%w: customer %s not found", ErrInvalidInput, id)
	}
	return nil
}

func (s *DocumentService) requireWorkOrder(ctx context.Context, tenantID string, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	ok, err := s.repo.WorkOrderExists(ctx, tenantID, *id)
	if err != nil {
		return storageErr("check work order", err)
	}
	if !ok {
		return fmt.Errorf("%w: work order %s not found", ErrInvalidInput, *id)
	}
	return nil
}

// CreateWorkOrder 创建工单
func (s *DocumentService) CreateWorkOrder(ctx context.Context, actor Actor, req *CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	amounts, err := req.compute()
	if err != nil {
		return nil, err
	}
	if err := s.requireCustomer(ctx, actor.TenantID, req.CustomerID); err != nil {
		return nil, err
	}

	wo := &entity.WorkOrder{
		ID:            repository.NewID(),
		TenantID:      actor.TenantID,
		CustomerID:    req.CustomerID,
		Title:         req.Title,
		Description:   req.Description,
		Status:        entity.WorkOrderStatusOpen,
		ScheduledDate: req.ScheduledDate,
		Amounts:       amounts,
		CreatedBy:     actor.UserID,
	}
	if wo.ScheduledDate != nil {
		wo.Status = entity.WorkOrderStatusScheduled
	}
	number, err := s.createNumbered(ctx, actor, entity.KindWorkOrder, wo.ID, func(tx *gorm.DB, number string) error {
		wo.Number = number
		return s.repo.WithTx(tx).CreateWorkOrder(ctx, wo)
	})
	if err != nil {
		return nil, err
	}
	wo.Number = number
	return wo, nil
}

// CreatePurchaseOrder 创建采购订单
func (s *DocumentService) CreatePurchaseOrder(ctx context.Context, actor Actor, req *CreatePurchaseOrderRequest) (*entity.PurchaseOrder, error) {
	amounts, err := req.compute()
	if err != nil {
		return nil, err
	}
	ok, err := s.vendors.Exists(ctx, actor.TenantID, req.VendorID)
	if err != nil {
		return nil, storageErr("check vendor", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: vendor %s not found", ErrInvalidInput, req.VendorID)
	}
	if err := s.requireWorkOrder(ctx, actor.TenantID, req.WorkOrderID); err != nil {
		return nil, err
	}

	po := &entity.PurchaseOrder{
		ID:           repository.NewID(),
		TenantID:     actor.TenantID,
		VendorID:     req.VendorID,
		WorkOrderID:  req.WorkOrderID,
		Status:       entity.POStatusDraft,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
		Amounts:      amounts,
		CreatedBy:    actor.UserID,
	}
	number, err := s.createNumbered(ctx, actor, entity.KindPurchaseOrder, po.ID, func(tx *gorm.DB, number string) error {
		po.Number = number
		return s.repo.WithTx(tx).CreatePurchaseOrder(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	po.Number = number
	return po, nil
}

// CreateEstimate 创建报价单（草稿）
func (s *DocumentService) CreateEstimate(ctx context.Context, actor Actor, req *CreateEstimateRequest) (*entity.Estimate, error) {
	amounts, err := req.compute()
	if err != nil {
		return nil, err
	}
	if err := s.requireCustomer(ctx, actor.TenantID, req.CustomerID); err != nil {
		return nil, err
	}

	est := &entity.Estimate{
		ID:          repository.NewID(),
		TenantID:    actor.TenantID,
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Description: req.Description,
		Status:      entity.EstimateStatusDraft,
		ExpiresAt:   req.ExpiresAt,
		Amounts:     amounts,
		CreatedBy:   actor.UserID,
	}
	number, err := s.createNumbered(ctx, actor, entity.KindEstimate, est.ID, func(tx *gorm.DB, number string) error {
		est.Number = number
		return s.estimates.WithTx(tx).Create(ctx, est)
	})
	if err != nil {
		return nil, err
	}
	est.Number = number
	return est, nil
}

// CreateInvoice 创建发票
func (s *DocumentService) CreateInvoice(ctx context.Context, actor Actor, req *CreateInvoiceRequest) (*entity.Invoice, error) {
	amounts, err := req.compute()
	if err != nil {
		return nil, err
	}
	if err := s.requireCustomer(ctx, actor.TenantID, req.CustomerID); err != nil {
		return nil, err
	}
	if err := s.requireWorkOrder(ctx, actor.TenantID, req.WorkOrderID); err != nil {
		return nil, err
	}

	inv := &entity.Invoice{
		ID:          repository.NewID(),
		TenantID:    actor.TenantID,
		CustomerID:  req.CustomerID,
		WorkOrderID: req.WorkOrderID,
		Status:      entity.InvoiceStatusDraft,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		Amounts:     amounts,
		CreatedBy:   actor.UserID,
	}
	number, err := s.createNumbered(ctx, actor, entity.KindInvoice, inv.ID, func(tx *gorm.DB, number string) error {
		inv.Number = number
		return s.repo.WithTx(tx).CreateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	inv.Number = number
	return inv, nil
}

// found maps a repository lookup onto the service errors.
func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load record", err)
	}
	return v, nil
}

func (s *DocumentService) GetWorkOrder(ctx context.Context, tenantID, id string) (*entity.WorkOrder, error) {
	return found(s.repo.FindWorkOrder(ctx, tenantID, id))
}

func (s *DocumentService) GetPurchaseOrder(ctx context.Context, tenantID, id string) (*entity.PurchaseOrder, error) {
	return found(s.repo.FindPurchaseOrder(ctx, tenantID, id))
}

func (s *DocumentService) GetEstimate(ctx context.Context, tenantID, id string) (*entity.Estimate, error) {
	return found(s.estimates.FindByID(ctx, tenantID, id))
}

func (s *DocumentService) GetInvoice(ctx context.Context, tenantID, id string) (*entity.Invoice, error) {
	return found(s.repo.FindInvoice(ctx, tenantID, id))
}

func (s *DocumentService) GetProject(ctx context.Context, tenantID, id string) (*entity.Project, error) {
	return found(s.projects.FindByID(ctx, tenantID, id))
}

// list wraps a paged repository listing.
func list[T any](items []T, total int64, err error) ([]T, int64, error) {
	if err != nil {
		return nil, 0, storageErr("list documents", err)
	}
	return items, total, nil
}

func (s *DocumentService) ListWorkOrders(ctx context.Context, tenantID string, page, pageSize int, f repository.DocumentFilter) ([]entity.WorkOrder, int64, error) {
	return list(s.repo.ListWorkOrders(ctx, tenantID, page, pageSize, f))
}

func (s *DocumentService) ListPurchaseOrders(ctx context.Context, tenantID string, page, pageSize int, f repository.DocumentFilter) ([]entity.PurchaseOrder, int64, error) {
	return list(s.repo.ListPurchaseOrders(ctx, tenantID, page, pageSize, f))
}

func (s *DocumentService) ListEstimates(ctx context.Context, tenantID string, page, pageSize int, f repository.DocumentFilter) ([]entity.Estimate, int64, error) {
	return list(s.estimates.FindAll(ctx, tenantID, page, pageSize, f))
}

func (s *DocumentService) ListInvoices(ctx context.Context, tenantID string, page, pageSize int, f repository.DocumentFilter) ([]entity.Invoice, int64, error) {
	return list(s.repo.ListInvoices(ctx, tenantID, page, pageSize, f))
}

// ListActivity 单据操作记录
func (s *DocumentService) ListActivity(ctx context.Context, tenantID, entityType, id string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	items, total, err := s.logRepo.FindByEntity(ctx, tenantID, entityType, id, page, pageSize)
	if err != nil {
		return nil, 0, storageErr("list activity", err)
	}
	return items, total, nil
}
