package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/crm/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDocuments(t *testing.T) (*gorm.DB, *DocumentService, *recordingNotifier) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	numbering := NewNumberingService(db, repos.Numbering, repos.ActivityLog, zap.NewNop())
	numbering.SetClock(func() time.Time { return fixedNow })
	n := &recordingNotifier{}
	numbering.SetNotifier(n)
	return db, NewDocumentService(db, repos, numbering, zap.NewNop()), n
}

func TestCreateWorkOrder_AssignsSequentialNumbers(t *testing.T) {
	db, svc, notifier := setupDocuments(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	actor := Actor{TenantID: "tenant-a", UserID: "u1", Role: RoleMember}

	want := []string{"WO-2024-0001", "WO-2024-0002", "WO-2024-0003"}
	for _, number := range want {
		wo, err := svc.CreateWorkOrder(ctx, actor, &CreateWorkOrderRequest{CustomerID: customer.ID, Title: "Leak"})
		if err != nil {
			t.Fatalf("CreateWorkOrder: %v", err)
		}
		if wo.Number != number {
			t.Fatalf("Number = %q, want %q", wo.Number, number)
		}
		if wo.Status != entity.WorkOrderStatusOpen {
			t.Fatalf("Status = %q, want open", wo.Status)
		}
	}

	var ledger []entity.NumberAllocation
	db.Where("tenant_id = ?", "tenant-a").Order("sequence").Find(&ledger)
	if len(ledger) != 3 || ledger[0].DocumentID == nil {
		t.Fatalf("expected 3 ledger rows linked to documents, got %+v", ledger)
	}
	if len(notifier.snapshot()) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(notifier.snapshot()))
	}

	stored, err := svc.GetWorkOrder(ctx, "tenant-a", *ledger[1].DocumentID)
	if err != nil {
		t.Fatalf("GetWorkOrder: %v", err)
	}
	if stored.Number != "WO-2024-0002" {
		t.Fatalf("stored number = %q", stored.Number)
	}
}

func TestCreateWorkOrder_ScheduledStatus(t *testing.T) {
	db, svc, _ := setupDocuments(t)
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	when := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	wo, err := svc.CreateWorkOrder(context.Background(), Actor{TenantID: "tenant-a", UserID: "u1"}, &CreateWorkOrderRequest{
		CustomerID:    customer.ID,
		Title:         "Install heater",
		ScheduledDate: &when,
	})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	if wo.Status != entity.WorkOrderStatusScheduled {
		t.Fatalf("Status = %q, want scheduled", wo.Status)
	}
}

func TestCreateEstimate_ComputesTotals(t *testing.T) {
	db, svc, _ := setupDocuments(t)
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	actor := Actor{TenantID: "tenant-a", UserID: "u1"}

	est, err := svc.CreateEstimate(context.Background(), actor, &CreateEstimateRequest{
		CustomerID: customer.ID,
		Title:      "Roof repair",
		AmountsInput: AmountsInput{
			Subtotal: decimal.RequireFromString("1000.00"),
			TaxRate:  decimal.RequireFromString("8.25"),
		},
	})
	if err != nil {
		t.Fatalf("CreateEstimate: %v", err)
	}
	if est.Number != "EST-2024-0001" || est.Status != entity.EstimateStatusDraft {
		t.Fatalf("unexpected estimate %+v", est)
	}
	if !est.TaxAmount.Equal(decimal.RequireFromString("82.50")) || !est.TotalAmount.Equal(decimal.RequireFromString("1082.50")) {
		t.Fatalf("tax/total = %s/%s", est.TaxAmount, est.TotalAmount)
	}

	// explicit tax amount wins over the rate
	tax := decimal.RequireFromString("10")
	est, err = svc.CreateEstimate(context.Background(), actor, &CreateEstimateRequest{
		CustomerID: customer.ID,
		Title:      "Gutter",
		AmountsInput: AmountsInput{
			Subtotal:  decimal.RequireFromString("200"),
			TaxRate:   decimal.RequireFromString("50"),
			TaxAmount: &tax,
		},
	})
	if err != nil {
		t.Fatalf("CreateEstimate: %v", err)
	}
	if !est.TotalAmount.Equal(decimal.RequireFromString("210")) {
		t.Fatalf("total = %s, want 210", est.TotalAmount)
	}
}

func TestCreateDocuments_InvalidReferences(t *testing.T) {
	db, svc, _ := setupDocuments(t)
	ctx := context.Background()
	actor := Actor{TenantID: "tenant-a", UserID: "u1"}
	foreign := testutil.SeedCustomer(t, db, "tenant-b", "Other tenant")

	if _, err := svc.CreateWorkOrder(ctx, actor, &CreateWorkOrderRequest{CustomerID: foreign.ID, Title: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign customer, got %v", err)
	}
	if _, err := svc.CreatePurchaseOrder(ctx, actor, &CreatePurchaseOrderRequest{VendorID: testutil.NewID()}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown vendor, got %v", err)
	}
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	missing := testutil.NewID()
	if _, err := svc.CreateInvoice(ctx, actor, &CreateInvoiceRequest{CustomerID: customer.ID, WorkOrderID: &missing}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown work order, got %v", err)
	}
	if _, err := svc.CreateInvoice(ctx, actor, &CreateInvoiceRequest{
		CustomerID:   customer.ID,
		AmountsInput: AmountsInput{Subtotal: decimal.NewFromInt(-1)},
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative subtotal, got %v", err)
	}

	var n int64
	db.Model(&entity.NumberAllocation{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected requests consumed %d numbers", n)
	}
}

func TestCreatePurchaseOrderAndInvoice(t *testing.T) {
	db, svc, _ := setupDocuments(t)
	ctx := context.Background()
	actor := Actor{TenantID: "tenant-a", UserID: "u1"}
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	vendor := testutil.SeedVendor(t, db, "tenant-a", "Pipe Supply")

	wo, err := svc.CreateWorkOrder(ctx, actor, &CreateWorkOrderRequest{CustomerID: customer.ID, Title: "Leak"})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	po, err := svc.CreatePurchaseOrder(ctx, actor, &CreatePurchaseOrderRequest{VendorID: vendor.ID, WorkOrderID: &wo.ID})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if po.Number != "PO-2024-0001" || po.Status != entity.POStatusDraft {
		t.Fatalf("unexpected purchase order %+v", po)
	}
	inv, err := svc.CreateInvoice(ctx, actor, &CreateInvoiceRequest{CustomerID: customer.ID, WorkOrderID: &wo.ID})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Number != "INV-2024-0001" {
		t.Fatalf("invoice number = %q", inv.Number)
	}

	items, total, err := svc.ListInvoices(ctx, "tenant-a", 1, 20, repository.DocumentFilter{})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("ListInvoices = %d/%d, %v", len(items), total, err)
	}
	if _, err := svc.GetPurchaseOrder(ctx, "tenant-b", po.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestCreateWorkOrder_NumberCollision(t *testing.T) {
	db, svc, _ := setupDocuments(t)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, db, "tenant-a", "Acme")
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindWorkOrder, "WO", "{PREFIX}-FIXED", 1)
	actor := Actor{TenantID: "tenant-a", UserID: "u1"}

	if _, err := svc.CreateWorkOrder(ctx, actor, &CreateWorkOrderRequest{CustomerID: customer.ID, Title: "first"}); err != nil {
		t.Fatalf("first CreateWorkOrder: %v", err)
	}
	_, err := svc.CreateWorkOrder(ctx, actor, &CreateWorkOrderRequest{CustomerID: customer.ID, Title: "second"})
	if !errors.Is(err, ErrNumberCollision) {
		t.Fatalf("expected ErrNumberCollision, got %v", err)
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindWorkOrder); n != 2 {
		t.Fatalf("collision consumed a number: next_number = %d", n)
	}
	if n := countAllocations(t, db, "tenant-a"); n != 1 {
		t.Fatalf("collision left a ledger row: %d rows", n)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	_, svc, _ := setupDocuments(t)
	if _, err := svc.GetProject(context.Background(), "tenant-a", testutil.NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
