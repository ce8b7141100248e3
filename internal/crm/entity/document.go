package entity

import "time"

// WorkOrder 工单
type WorkOrder struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	TenantID      string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_work_orders_tenant_number"`
	Number        string     `json:"number" gorm:"size:64;not null;uniqueIndex:idx_work_orders_tenant_number"`
	CustomerID    string     `json:"customer_id" gorm:"size:32;not null;index"`
	Title         string     `json:"title" gorm:"size:200;not null"`
	Description   string     `json:"description" gorm:"type:text"`
	Status        string     `json:"status" gorm:"size:20;default:open"` // open/scheduled/in_progress/completed/cancelled
	ScheduledDate *time.Time `json:"scheduled_date" gorm:"type:date"`
	Amounts       `gorm:"embedded"`
	CreatedBy     string    `json:"created_by" gorm:"size:32"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}

// WorkOrder状态
const (
	WorkOrderStatusOpen       = "open"
	WorkOrderStatusScheduled  = "scheduled"
	WorkOrderStatusInProgress = "in_progress"
	WorkOrderStatusCompleted  = "completed"
	WorkOrderStatusCancelled  = "cancelled"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_purchase_orders_tenant_number"`
	Number       string     `json:"number" gorm:"size:64;not null;uniqueIndex:idx_purchase_orders_tenant_number"`
	VendorID     string     `json:"vendor_id" gorm:"size:32;not null;index"`
	WorkOrderID  *string    `json:"work_order_id" gorm:"size:32"`
	Status       string     `json:"status" gorm:"size:20;default:draft"` // draft/submitted/approved/received/cancelled
	ExpectedDate *time.Time `json:"expected_date" gorm:"type:date"`
	Notes        string     `json:"notes" gorm:"type:text"`
	Amounts      `gorm:"embedded"`
	CreatedBy    string    `json:"created_by" gorm:"size:32"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PO状态
const (
	POStatusDraft     = "draft"
	POStatusSubmitted = "submitted"
	POStatusApproved  = "approved"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

// Invoice 发票
type Invoice struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	TenantID    string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_invoices_tenant_number"`
	Number      string     `json:"number" gorm:"size:64;not null;uniqueIndex:idx_invoices_tenant_number"`
	CustomerID  string     `json:"customer_id" gorm:"size:32;not null;index"`
	WorkOrderID *string    `json:"work_order_id" gorm:"size:32"`
	Status      string     `json:"status" gorm:"size:20;default:draft"` // draft/sent/paid/overdue/void
	DueDate     *time.Time `json:"due_date" gorm:"type:date"`
	Notes       string     `json:"notes" gorm:"type:text"`
	Amounts     `gorm:"embedded"`
	CreatedBy   string    `json:"created_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// Invoice状态
const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusSent    = "sent"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
	InvoiceStatusVoid    = "void"
)
