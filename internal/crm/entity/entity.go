package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JSONB jsonb column
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(raw, j)
}

// Amounts money fields shared by every document kind.
// TotalAmount is always Subtotal + TaxAmount; it is stored for reporting but
// recomputed on every write.
type Amounts struct {
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:decimal(15,2);not null;default:0"`
	TaxRate     decimal.Decimal `json:"tax_rate" gorm:"type:decimal(7,4);not null;default:0"`
	TaxAmount   decimal.Decimal `json:"tax_amount" gorm:"type:decimal(15,2);not null;default:0"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2);not null;default:0"`
}

var hundred = decimal.NewFromInt(100)

// ComputeAmounts derives tax and total. An explicit taxAmount wins over taxRate
// (percent).
func ComputeAmounts(subtotal, taxRate decimal.Decimal, taxAmount *decimal.Decimal) Amounts {
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	if taxAmount != nil {
		tax = taxAmount.Round(2)
	}
	subtotal = subtotal.Round(2)
	return Amounts{
		Subtotal:    subtotal,
		TaxRate:     taxRate,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}
}

// Company tenant
type Company struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

// Customer 客户
type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	TenantID  string    `json:"tenant_id" gorm:"size:32;not null;index"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Email     string    `json:"email" gorm:"size:200"`
	Phone     string    `json:"phone" gorm:"size:50"`
	Address   string    `json:"address" gorm:"size:500"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// Vendor 供应商
type Vendor struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	TenantID    string    `json:"tenant_id" gorm:"size:32;not null;index"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	ContactName string    `json:"contact_name" gorm:"size:100"`
	Email       string    `json:"email" gorm:"size:200"`
	Phone       string    `json:"phone" gorm:"size:50"`
	CreatedBy   string    `json:"created_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vendors"
}

// ActivityLog 操作日志
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	TenantID   string `json:"tenant_id" gorm:"size:32;not null;index"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // estimate/project/work_order/purchase_order/invoice/numbering
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"size:64"`

	Action     string `json:"action" gorm:"size:50;not null"` // create/status_change/convert/config_update
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`

	Content  string `json:"content" gorm:"type:text"`
	Metadata JSONB  `json:"metadata" gorm:"type:jsonb"`

	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// Activity actions
const (
	ActionCreate       = "create"
	ActionStatusChange = "status_change"
	ActionConvert      = "convert"
	ActionConfigUpdate = "config_update"
)

// AllModels every table of the CRM core, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&Customer{},
		&Vendor{},
		&NumberingSequence{},
		&NumberAllocation{},
		&WorkOrder{},
		&PurchaseOrder{},
		&Estimate{},
		&Invoice{},
		&Project{},
		&ActivityLog{},
	}
}
