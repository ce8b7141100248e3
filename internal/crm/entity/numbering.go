package entity

import "time"

// DocumentKind numbered document category
type DocumentKind string

const (
	KindWorkOrder     DocumentKind = "work_order"
	KindPurchaseOrder DocumentKind = "purchase_order"
	KindEstimate      DocumentKind = "estimate"
	KindInvoice       DocumentKind = "invoice"
)

// DocumentKinds every kind that shares the numbering mechanism, in display order.
var DocumentKinds = []DocumentKind{KindWorkOrder, KindPurchaseOrder, KindEstimate, KindInvoice}

var defaultPrefixes = map[DocumentKind]string{
	KindWorkOrder:     "WO",
	KindPurchaseOrder: "PO",
	KindEstimate:      "EST",
	KindInvoice:       "INV",
}

// DefaultNumberFormat is used for kinds a tenant never configured.
const DefaultNumberFormat = "{PREFIX}-{YYYY}-{####}"

// Valid reports whether k is one of the numbered kinds.
func (k DocumentKind) Valid() bool {
	_, ok := defaultPrefixes[k]
	return ok
}

// DefaultPrefix built-in prefix for k, empty for unknown kinds.
func (k DocumentKind) DefaultPrefix() string {
	return defaultPrefixes[k]
}

// NumberingSequence per-tenant, per-kind numbering config and counter.
// NextNumber is the counter value the next committed document consumes; it only
// moves through an atomic UPDATE or an explicit settings edit.
type NumberingSequence struct {
	ID         string       `json:"id" gorm:"primaryKey;size:32"`
	TenantID   string       `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_numbering_tenant_kind"`
	Kind       DocumentKind `json:"kind" gorm:"size:20;not null;uniqueIndex:idx_numbering_tenant_kind"`
	Prefix     string       `json:"prefix" gorm:"size:20"`
	Format     string       `json:"format" gorm:"size:64;not null"`
	NextNumber int64        `json:"next_number" gorm:"not null;default:1"`
	UpdatedBy  string       `json:"updated_by" gorm:"size:32"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (NumberingSequence) TableName() string {
	return "numbering_sequences"
}

// DefaultNumberingSequence the row a tenant starts with for kind.
// The caller assigns ID before inserting.
func DefaultNumberingSequence(tenantID string, kind DocumentKind) NumberingSequence {
	return NumberingSequence{
		TenantID:   tenantID,
		Kind:       kind,
		Prefix:     kind.DefaultPrefix(),
		Format:     DefaultNumberFormat,
		NextNumber: 1,
	}
}

// NumberAllocation ledger row for every committed number.
type NumberAllocation struct {
	ID             string       `json:"id" gorm:"primaryKey;size:32"`
	TenantID       string       `json:"tenant_id" gorm:"size:32;not null;index:idx_allocation_tenant_kind;uniqueIndex:idx_allocation_tenant_key"`
	Kind           DocumentKind `json:"kind" gorm:"size:20;not null;index:idx_allocation_tenant_kind"`
	Sequence       int64        `json:"sequence" gorm:"not null"`
	Number         string       `json:"number" gorm:"size:64;not null"`
	IdempotencyKey *string      `json:"idempotency_key,omitempty" gorm:"size:128;uniqueIndex:idx_allocation_tenant_key"`
	DocumentID     *string      `json:"document_id,omitempty" gorm:"size:32"`
	AllocatedBy    string       `json:"allocated_by" gorm:"size:32"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (NumberAllocation) TableName() string {
	return "number_allocations"
}
