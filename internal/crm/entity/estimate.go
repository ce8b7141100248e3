package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estimate 报价单
type Estimate struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	TenantID    string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_estimates_tenant_number"`
	Number      string     `json:"number" gorm:"size:64;not null;uniqueIndex:idx_estimates_tenant_number"`
	CustomerID  string     `json:"customer_id" gorm:"size:32;not null;index"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"size:20;default:draft"`
	ExpiresAt   *time.Time `json:"expires_at" gorm:"type:date"`
	Amounts     `gorm:"embedded"`

	SentAt      *time.Time `json:"sent_at"`
	ApprovedBy  *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ConvertedAt *time.Time `json:"converted_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Estimate) TableName() string {
	return "estimates"
}

// Estimate状态
const (
	EstimateStatusDraft     = "draft"
	EstimateStatusSent      = "sent"
	EstimateStatusApproved  = "approved"
	EstimateStatusRejected  = "rejected"
	EstimateStatusExpired   = "expired"
	EstimateStatusConverted = "converted"
)

// estimateTransitions plain status edits. approved→converted is only reachable
// through the conversion service.
var estimateTransitions = map[string][]string{
	EstimateStatusDraft:    {EstimateStatusSent, EstimateStatusExpired},
	EstimateStatusSent:     {EstimateStatusApproved, EstimateStatusRejected, EstimateStatusExpired},
	EstimateStatusApproved: {EstimateStatusRejected, EstimateStatusExpired},
}

// ValidEstimateStatus reports whether s is a known estimate status.
func ValidEstimateStatus(s string) bool {
	switch s {
	case EstimateStatusDraft, EstimateStatusSent, EstimateStatusApproved,
		EstimateStatusRejected, EstimateStatusExpired, EstimateStatusConverted:
		return true
	}
	return false
}

// CanTransitionEstimate reports whether a plain status edit from → to is allowed.
func CanTransitionEstimate(from, to string) bool {
	for _, next := range estimateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Project 项目
type Project struct {
	ID               string          `json:"id" gorm:"primaryKey;size:32"`
	TenantID         string          `json:"tenant_id" gorm:"size:32;not null;index"`
	EstimateID       *string         `json:"estimate_id" gorm:"size:32;uniqueIndex:idx_projects_estimate"`
	CustomerID       string          `json:"customer_id" gorm:"size:32;not null;index"`
	ProjectName      string          `json:"project_name" gorm:"size:200;not null"`
	Description      string          `json:"description" gorm:"type:text"`
	TotalBudget      decimal.Decimal `json:"total_budget" gorm:"type:decimal(15,2);not null;default:0"`
	Status           string          `json:"status" gorm:"size:20;not null;default:planning"`
	ProjectManagerID *string         `json:"project_manager_id" gorm:"size:32"`
	StartDate        *time.Time      `json:"start_date" gorm:"type:date"`
	EstimatedEndDate *time.Time      `json:"estimated_end_date" gorm:"type:date"`
	CreatedBy        string          `json:"created_by" gorm:"size:32"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// Project状态
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)
