package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/crm/testutil"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestBuildLedgerWorkbook(t *testing.T) {
	key, doc := "req-1", "doc-1"
	rows := []entity.NumberAllocation{
		{Sequence: 1, Number: "WO-2024-0001", DocumentID: &doc, AllocatedBy: "u1", CreatedAt: fixedNow},
		{Sequence: 2, Number: "WO-2024-0002", IdempotencyKey: &key, AllocatedBy: "u2", CreatedAt: fixedNow},
	}

	data, err := buildLedgerWorkbook("work_order", rows)
	if err != nil {
		t.Fatalf("buildLedgerWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows("work_order")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(got))
	}
	if got[0][1] != ledgerExportHeaders[1] {
		t.Fatalf("header = %v", got[0])
	}
	if got[1][1] != "WO-2024-0001" || got[1][2] != "doc-1" {
		t.Fatalf("row 1 = %v", got[1])
	}
	if got[2][3] != "req-1" || got[2][4] != "u2" {
		t.Fatalf("row 2 = %v", got[2])
	}
}

func TestExportLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	numbering := NewNumberingService(db, repos.Numbering, repos.ActivityLog, zap.NewNop())
	svc := NewExportService(repos.Numbering, nil, "", zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	actor := Actor{TenantID: "tenant-a", UserID: "m1", Role: RoleManager}
	for i := 0; i < 3; i++ {
		if _, err := numbering.Commit(ctx, actor, entity.KindInvoice, ""); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	out, err := svc.ExportLedger(ctx, actor, entity.KindInvoice)
	if err != nil {
		t.Fatalf("ExportLedger: %v", err)
	}
	if out.Rows != 3 || out.ObjectKey != "" {
		t.Fatalf("unexpected export %+v", out)
	}
	if out.FileName != "invoice-ledger-20240305T093000Z.xlsx" {
		t.Fatalf("FileName = %q", out.FileName)
	}

	if _, err := svc.ExportLedger(ctx, Actor{TenantID: "tenant-a", Role: RoleMember}, entity.KindInvoice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ExportLedger(ctx, actor, "quote"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}
