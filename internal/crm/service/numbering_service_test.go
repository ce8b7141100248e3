package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/crm/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)

type recordedEvent struct {
	tenantID string
	kind     entity.DocumentKind
	next     int64
	preview  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) NumberingAdvanced(_ context.Context, tenantID string, kind entity.DocumentKind, next int64, preview string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{tenantID, kind, next, preview})
}

func (n *recordingNotifier) snapshot() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

func setupNumbering(t *testing.T) (*gorm.DB, *NumberingService, *recordingNotifier) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewNumberingService(db, repos.Numbering, repos.ActivityLog, zap.NewNop())
	svc.SetClock(func() time.Time { return fixedNow })
	n := &recordingNotifier{}
	svc.SetNotifier(n)
	return db, svc, n
}

func nextNumber(t *testing.T, db *gorm.DB, tenantID string, kind entity.DocumentKind) int64 {
	t.Helper()
	var seq entity.NumberingSequence
	if err := db.Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&seq).Error; err != nil {
		t.Fatalf("load sequence: %v", err)
	}
	return seq.NextNumber
}

func countAllocations(t *testing.T, db *gorm.DB, tenantID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&entity.NumberAllocation{}).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		t.Fatalf("count allocations: %v", err)
	}
	return n
}

func TestPeek_DefaultsWithoutConfig(t *testing.T) {
	_, svc, _ := setupNumbering(t)
	ctx := context.Background()

	tests := map[entity.DocumentKind]string{
		entity.KindWorkOrder:     "WO-2024-0001",
		entity.KindPurchaseOrder: "PO-2024-0001",
		entity.KindEstimate:      "EST-2024-0001",
		entity.KindInvoice:       "INV-2024-0001",
	}
	for kind, want := range tests {
		got, err := svc.Peek(ctx, "tenant-a", kind)
		if err != nil {
			t.Fatalf("Peek(%s): %v", kind, err)
		}
		if got != want {
			t.Fatalf("Peek(%s) = %q, want %q", kind, got, want)
		}
	}

	if _, err := svc.Peek(ctx, "tenant-a", "quote"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound for unknown kind, got %v", err)
	}
}

func TestPeek_DoesNotConsume(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindWorkOrder, "WO", "WO-{YYYY}-{####}", 42)

	for i := 0; i < 3; i++ {
		got, err := svc.Peek(ctx, "tenant-a", entity.KindWorkOrder)
		if err != nil {
			t.Fatalf("Peek: %v", err)
		}
		if got != "WO-2024-0042" {
			t.Fatalf("Peek = %q, want WO-2024-0042", got)
		}
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindWorkOrder); n != 42 {
		t.Fatalf("peek changed next_number to %d", n)
	}
	if n := countAllocations(t, db, "tenant-a"); n != 0 {
		t.Fatalf("peek wrote %d allocations", n)
	}
}

func TestCommit_ConsumesAndAdvances(t *testing.T) {
	db, svc, notifier := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindWorkOrder, "WO", "WO-{YYYY}-{####}", 7)
	actor := Actor{TenantID: "tenant-a", UserID: "u1", Role: RoleMember}

	alloc, err := svc.Commit(ctx, actor, entity.KindWorkOrder, "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if alloc.Number != "WO-2024-0007" || alloc.Sequence != 7 || alloc.NextNumber != 8 {
		t.Fatalf("unexpected allocation %+v", alloc)
	}
	if alloc.Replayed {
		t.Fatal("first commit should not be a replay")
	}

	preview, _ := svc.Peek(ctx, "tenant-a", entity.KindWorkOrder)
	if preview != "WO-2024-0008" {
		t.Fatalf("preview after commit = %q, want WO-2024-0008", preview)
	}

	events := notifier.snapshot()
	if len(events) != 1 || events[0].next != 8 || events[0].preview != "WO-2024-0008" {
		t.Fatalf("unexpected notifications %+v", events)
	}
}

func TestCommit_SeedsMissingConfig(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	actor := Actor{TenantID: "tenant-new", UserID: "u1", Role: RoleMember}

	alloc, err := svc.Commit(ctx, actor, entity.KindInvoice, "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if alloc.Number != "INV-2024-0001" {
		t.Fatalf("Number = %q, want INV-2024-0001", alloc.Number)
	}
	if n := nextNumber(t, db, "tenant-new", entity.KindInvoice); n != 2 {
		t.Fatalf("next_number = %d, want 2", n)
	}

	if _, err := svc.Commit(ctx, actor, "quote", ""); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestCommit_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindEstimate, "EST", "{PREFIX}-{####}", 1)

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan *Allocation, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alloc, err := svc.Commit(ctx, Actor{TenantID: "tenant-a", UserID: fmt.Sprintf("u%d", i), Role: RoleMember}, entity.KindEstimate, "")
			if err != nil {
				errs <- err
				return
			}
			results <- alloc
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("Commit: %v", err)
	}

	seen := make(map[int64]bool)
	numbers := make(map[string]bool)
	for alloc := range results {
		if seen[alloc.Sequence] {
			t.Fatalf("sequence %d handed out twice", alloc.Sequence)
		}
		seen[alloc.Sequence] = true
		numbers[alloc.Number] = true
	}
	for seq := int64(1); seq <= workers; seq++ {
		if !seen[seq] {
			t.Fatalf("sequence %d missing: counter skipped a value", seq)
		}
	}
	if len(numbers) != workers {
		t.Fatalf("expected %d distinct numbers, got %d", workers, len(numbers))
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindEstimate); n != workers+1 {
		t.Fatalf("next_number = %d, want %d", n, workers+1)
	}
}

func TestCommit_TenantsAreIndependent(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindWorkOrder, "WO", "{PREFIX}-{####}", 10)
	testutil.SeedNumbering(t, db, "tenant-b", entity.KindWorkOrder, "WO", "{PREFIX}-{####}", 10)

	a, err := svc.Commit(ctx, Actor{TenantID: "tenant-a", UserID: "u"}, entity.KindWorkOrder, "")
	if err != nil {
		t.Fatalf("Commit a: %v", err)
	}
	b, err := svc.Commit(ctx, Actor{TenantID: "tenant-b", UserID: "u"}, entity.KindWorkOrder, "")
	if err != nil {
		t.Fatalf("Commit b: %v", err)
	}
	if a.Number != "WO-0010" || b.Number != "WO-0010" {
		t.Fatalf("tenants should not share counters: %s / %s", a.Number, b.Number)
	}
	// other kinds are untouched
	if preview, _ := svc.Peek(ctx, "tenant-a", entity.KindPurchaseOrder); preview != "PO-2024-0001" {
		t.Fatalf("purchase order preview = %q", preview)
	}
}

func TestCommit_IdempotencyKeyReplays(t *testing.T) {
	db, svc, notifier := setupNumbering(t)
	ctx := context.Background()
	actor := Actor{TenantID: "tenant-a", UserID: "u1", Role: RoleMember}

	first, err := svc.Commit(ctx, actor, entity.KindPurchaseOrder, "req-123")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	second, err := svc.Commit(ctx, actor, entity.KindPurchaseOrder, "req-123")
	if err != nil {
		t.Fatalf("replayed Commit: %v", err)
	}
	if !second.Replayed || second.Number != first.Number || second.Sequence != first.Sequence {
		t.Fatalf("expected replay of %+v, got %+v", first, second)
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindPurchaseOrder); n != 2 {
		t.Fatalf("replay consumed a number: next_number = %d", n)
	}
	if len(notifier.snapshot()) != 1 {
		t.Fatalf("replay should not notify")
	}

	// same key in another tenant is a different request
	other, err := svc.Commit(ctx, Actor{TenantID: "tenant-b", UserID: "u2"}, entity.KindPurchaseOrder, "req-123")
	if err != nil {
		t.Fatalf("Commit other tenant: %v", err)
	}
	if other.Replayed {
		t.Fatal("keys must be scoped per tenant")
	}
}

func TestCommit_IdempotencyKeyBoundToKind(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	actor := Actor{TenantID: "tenant-a", UserID: "u1", Role: RoleMember}

	if _, err := svc.Commit(ctx, actor, entity.KindWorkOrder, "K"); err != nil {
		t.Fatalf("Commit work order: %v", err)
	}
	alloc, err := svc.Commit(ctx, actor, entity.KindInvoice, "K")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a key reused across kinds, got %+v, %v", alloc, err)
	}
	if n := countAllocations(t, db, "tenant-a"); n != 1 {
		t.Fatalf("expected 1 allocation, got %d", n)
	}
	if preview, _ := svc.Peek(ctx, "tenant-a", entity.KindInvoice); preview != "INV-2024-0001" {
		t.Fatalf("invoice counter moved: preview = %q", preview)
	}
}

func TestCommit_ConcurrentSameKey(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindInvoice, "INV", "{PREFIX}-{####}", 1)
	actor := Actor{TenantID: "tenant-a", UserID: "u1"}

	const workers = 10
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc, err := svc.Commit(ctx, actor, entity.KindInvoice, "retry-key")
			if err != nil {
				t.Errorf("Commit: %v", err)
				return
			}
			numbers <- alloc.Number
		}()
	}
	wg.Wait()
	close(numbers)

	for n := range numbers {
		if n != "INV-0001" {
			t.Fatalf("duplicate key produced %q, want INV-0001", n)
		}
	}
	if n := countAllocations(t, db, "tenant-a"); n != 1 {
		t.Fatalf("expected one allocation, got %d", n)
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindInvoice); n != 2 {
		t.Fatalf("next_number = %d, want 2", n)
	}
}

func TestCommit_StorageFailureLeavesCounter(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	ctx := context.Background()
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindWorkOrder, "WO", "{PREFIX}-{####}", 5)

	// the ledger insert fails after the increment ran in the same transaction
	if err := db.Migrator().DropTable(&entity.NumberAllocation{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := svc.Commit(ctx, Actor{TenantID: "tenant-a", UserID: "u1"}, entity.KindWorkOrder, "")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindWorkOrder); n != 5 {
		t.Fatalf("failed commit moved next_number to %d", n)
	}
}

func TestCommit_DatabaseDown(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	sqlDB, _ := db.DB()
	sqlDB.Close()

	_, err := svc.Commit(context.Background(), Actor{TenantID: "tenant-a", UserID: "u1"}, entity.KindWorkOrder, "")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := svc.Peek(context.Background(), "tenant-a", entity.KindWorkOrder); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable from Peek, got %v", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	db, svc, notifier := setupNumbering(t)
	ctx := context.Background()
	manager := Actor{TenantID: "tenant-a", UserID: "m1", Role: RoleManager}

	prefix, format, next := "ＷＯ", "{PREFIX}{YY}-{###}", int64(100)
	if _, err := svc.UpdateConfig(ctx, Actor{TenantID: "tenant-a", UserID: "u", Role: RoleMember}, entity.KindWorkOrder, &UpdateNumberingRequest{Prefix: &prefix}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member should be forbidden, got %v", err)
	}

	cfg, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{Prefix: &prefix, Format: &format, NextNumber: &next})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if cfg.Prefix != "WO" || cfg.Preview != "WO24-100" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if events := notifier.snapshot(); len(events) != 1 || events[0].preview != "WO24-100" {
		t.Fatalf("expected preview notification, got %+v", events)
	}

	// lowering next_number and dropping the counter are accepted
	lower, noCounter := int64(3), "{PREFIX}-FIXED"
	cfg, err = svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{NextNumber: &lower, Format: &noCounter})
	if err != nil {
		t.Fatalf("UpdateConfig hazardous edit: %v", err)
	}
	if cfg.NextNumber != 3 || cfg.Preview != "WO-FIXED" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	zero, empty := int64(0), ""
	if _, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{NextNumber: &zero}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for next_number 0, got %v", err)
	}
	if _, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{Format: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty format, got %v", err)
	}
	longPrefix := strings.Repeat("P", 30)
	if _, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{Prefix: &longPrefix}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a 30-character prefix, got %v", err)
	}
	longFormat := strings.Repeat("x", 65) + "{####}"
	if _, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{Format: &longFormat}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a long format, got %v", err)
	}
	// each part fits, the rendered number does not
	maxPrefix, wideFormat := strings.Repeat("P", 20), "{PREFIX}-{YYYY}-"+strings.Repeat("9", 40)+"-{####}"
	if _, err := svc.UpdateConfig(ctx, manager, entity.KindWorkOrder, &UpdateNumberingRequest{Prefix: &maxPrefix, Format: &wideFormat}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an oversized rendered number, got %v", err)
	}
	if n := nextNumber(t, db, "tenant-a", entity.KindWorkOrder); n != 3 {
		t.Fatalf("rejected edits changed next_number to %d", n)
	}
	if _, err := svc.UpdateConfig(ctx, manager, "quote", &UpdateNumberingRequest{}); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}

	var logs int64
	db.Model(&entity.ActivityLog{}).Where("tenant_id = ? AND action = ?", "tenant-a", entity.ActionConfigUpdate).Count(&logs)
	if logs != 2 {
		t.Fatalf("expected 2 config_update logs, got %d", logs)
	}
}

func TestListConfigs_FillsDefaults(t *testing.T) {
	db, svc, _ := setupNumbering(t)
	testutil.SeedNumbering(t, db, "tenant-a", entity.KindInvoice, "BILL", "{PREFIX}/{YYYY}/{#####}", 12)

	configs, err := svc.ListConfigs(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if len(configs) != len(entity.DocumentKinds) {
		t.Fatalf("expected %d configs, got %d", len(entity.DocumentKinds), len(configs))
	}
	for _, cfg := range configs {
		switch cfg.Kind {
		case entity.KindInvoice:
			if cfg.Preview != "BILL/2024/00012" {
				t.Fatalf("invoice preview = %q", cfg.Preview)
			}
		case entity.KindWorkOrder:
			if cfg.Preview != "WO-2024-0001" {
				t.Fatalf("work order preview = %q", cfg.Preview)
			}
		}
	}
}
