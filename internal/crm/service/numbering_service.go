package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/shared/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/kcwalters0610/folioops/internal/crm/service")

// NumberingNotifier is told about every counter move so open forms can
// refresh a stale preview.
type NumberingNotifier interface {
	NumberingAdvanced(ctx context.Context, tenantID string, kind entity.DocumentKind, nextNumber int64, preview string)
}

// Allocation a committed number.
type Allocation struct {
	Kind        entity.DocumentKind `json:"kind"`
	Sequence    int64               `json:"sequence"`
	Number      string              `json:"number"`
	NextNumber  int64               `json:"next_number"`
	Replayed    bool                `json:"replayed"`
	AllocatedAt time.Time           `json:"allocated_at"`
}

// NumberingConfig a sequence row plus the number the next document would get.
type NumberingConfig struct {
	entity.NumberingSequence
	Preview string `json:"preview"`
}

// UpdateNumberingRequest 编号配置修改
type UpdateNumberingRequest struct {
	Prefix     *string `json:"prefix"`
	Format     *string `json:"format"`
	NextNumber *int64  `json:"next_number"`
}

// NumberingService 单据编号服务
type NumberingService struct {
	db       *gorm.DB
	repo     *repository.NumberingRepository
	logRepo  *repository.ActivityLogRepository
	notifier NumberingNotifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewNumberingService(db *gorm.DB, repo *repository.NumberingRepository, logRepo *repository.ActivityLogRepository, logger *zap.Logger) *NumberingService {
	return &NumberingService{
		db:      db,
		repo:    repo,
		logRepo: logRepo,
		logger:  logger,
		now:     utcNow,
	}
}

// SetNotifier 设置编号变更通知
func (s *NumberingService) SetNotifier(n NumberingNotifier) {
	s.notifier = n
}

// SetClock overrides the date source used for {YYYY}/{MM}/{DD}.
func (s *NumberingService) SetClock(now func() time.Time) {
	s.now = now
}

// loadOrDefault returns the stored row or the built-in default for kind.
func (s *NumberingService) loadOrDefault(ctx context.Context, tenantID string, kind entity.DocumentKind) (*entity.NumberingSequence, error) {
	if !kind.Valid() {
		return nil, ErrConfigNotFound
	}
	seq, err := s.repo.Find(ctx, tenantID, kind)
	if errors.Is(err, repository.ErrNotFound) {
		def := entity.DefaultNumberingSequence(tenantID, kind)
		return &def, nil
	}
	if err != nil {
		return nil, storageErr("load numbering config", err)
	}
	return seq, nil
}

// Peek renders the number the next commit would produce. It never writes.
func (s *NumberingService) Peek(ctx context.Context, tenantID string, kind entity.DocumentKind) (string, error) {
	seq, err := s.loadOrDefault(ctx, tenantID, kind)
	if err != nil {
		return "", err
	}
	return RenderNumber(seq.Format, seq.Prefix, seq.NextNumber, s.now()), nil
}

// ListConfigs 租户全部编号配置（缺失的以默认值补齐）
func (s *NumberingService) ListConfigs(ctx context.Context, tenantID string) ([]NumberingConfig, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, storageErr("list numbering configs", err)
	}
	byKind := make(map[entity.DocumentKind]entity.NumberingSequence, len(rows))
	for _, row := range rows {
		byKind[row.Kind] = row
	}

	now := s.now()
	configs := make([]NumberingConfig, 0, len(entity.DocumentKinds))
	for _, kind := range entity.DocumentKinds {
		seq, ok := byKind[kind]
		if !ok {
			seq = entity.DefaultNumberingSequence(tenantID, kind)
		}
		configs = append(configs, NumberingConfig{
			NumberingSequence: seq,
			Preview:           RenderNumber(seq.Format, seq.Prefix, seq.NextNumber, now),
		})
	}
	return configs, nil
}

// Commit consumes the next number of kind for the actor's tenant.
// With an idempotency key, a retried request gets the stored allocation back
// instead of consuming a second number.
func (s *NumberingService) Commit(ctx context.Context, actor Actor, kind entity.DocumentKind, idempotencyKey string) (*Allocation, error) {
	ctx, span := tracer.Start(ctx, "NumberingService.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", actor.TenantID),
		attribute.String("numbering.kind", string(kind)),
	)

	start := time.Now()
	alloc, err := s.commit(ctx, actor, kind, idempotencyKey)
	metrics.ObserveCommit(string(kind), resultLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("numbering.sequence", alloc.Sequence))
	return alloc, nil
}

func (s *NumberingService) commit(ctx context.Context, actor Actor, kind entity.DocumentKind, idempotencyKey string) (*Allocation, error) {
	if !kind.Valid() {
		return nil, ErrConfigNotFound
	}

	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
		if replay, err := s.replay(ctx, actor.TenantID, kind, idempotencyKey); replay != nil || err != nil {
			return replay, err
		}
	}

	var row *entity.NumberAllocation
	var seq *entity.NumberingSequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, seq, err = s.allocate(ctx, tx, actor, kind, key, nil)
		return err
	})
	if err != nil {
		// A concurrent request with the same key won the unique index.
		if key != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			if replay, rerr := s.replay(ctx, actor.TenantID, kind, idempotencyKey); replay != nil || rerr != nil {
				return replay, rerr
			}
		}
		return nil, classify("commit number", err)
	}

	s.logger.Info("number committed",
		zap.String("tenant_id", actor.TenantID),
		zap.String("kind", string(kind)),
		zap.String("number", row.Number),
		zap.Int64("sequence", row.Sequence),
	)
	s.notify(ctx, seq)

	return &Allocation{
		Kind:        kind,
		Sequence:    row.Sequence,
		Number:      row.Number,
		NextNumber:  seq.NextNumber,
		AllocatedAt: row.CreatedAt,
	}, nil
}

// replay returns the stored allocation for key, or nil when there is none.
// A key is bound to the kind it was first used with.
func (s *NumberingService) replay(ctx context.Context, tenantID string, kind entity.DocumentKind, key string) (*Allocation, error) {
	row, err := s.repo.FindAllocationByKey(ctx, tenantID, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find allocation", err)
	}
	if row.Kind != kind {
		return nil, fmt.Errorf("%w: idempotency key already used for %s", ErrInvalidInput, row.Kind)
	}
	seq, err := s.loadOrDefault(ctx, tenantID, row.Kind)
	if err != nil {
		return nil, err
	}
	return &Allocation{
		Kind:        row.Kind,
		Sequence:    row.Sequence,
		Number:      row.Number,
		NextNumber:  seq.NextNumber,
		Replayed:    true,
		AllocatedAt: row.CreatedAt,
	}, nil
}

// allocate increments the counter and writes the ledger row inside tx.
// A tenant without a row for kind gets the default row seeded first.
// Errors are returned raw so callers can tell duplicate keys apart.
func (s *NumberingService) allocate(ctx context.Context, tx *gorm.DB, actor Actor, kind entity.DocumentKind, key, documentID *string) (*entity.NumberAllocation, *entity.NumberingSequence, error) {
	repo := s.repo.WithTx(tx)

	seq, err := repo.Increment(ctx, actor.TenantID, kind)
	if errors.Is(err, repository.ErrNotFound) {
		def := entity.DefaultNumberingSequence(actor.TenantID, kind)
		if err := repo.SeedDefaults(ctx, []entity.NumberingSequence{def}); err != nil {
			return nil, nil, fmt.Errorf("seed numbering config: %w", err)
		}
		seq, err = repo.Increment(ctx, actor.TenantID, kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("increment counter: %w", err)
	}

	consumed := seq.NextNumber - 1
	row := &entity.NumberAllocation{
		TenantID:       actor.TenantID,
		Kind:           kind,
		Sequence:       consumed,
		Number:         RenderNumber(seq.Format, seq.Prefix, consumed, s.now()),
		IdempotencyKey: key,
		DocumentID:     documentID,
		AllocatedBy:    actor.UserID,
	}
	if err := repo.CreateAllocation(ctx, row); err != nil {
		return nil, nil, fmt.Errorf("record allocation: %w", err)
	}
	return row, seq, nil
}

// notify publishes the fresh preview. Call only after the transaction commits.
func (s *NumberingService) notify(ctx context.Context, seq *entity.NumberingSequence) {
	if s.notifier == nil || seq == nil {
		return
	}
	preview := RenderNumber(seq.Format, seq.Prefix, seq.NextNumber, s.now())
	s.notifier.NumberingAdvanced(ctx, seq.TenantID, seq.Kind, seq.NextNumber, preview)
}

// UpdateConfig edits prefix, format or next_number of kind.
// Formats without a counter token and a lowered next_number are accepted:
// both can reproduce numbers already issued, which the per-tenant unique
// index on document numbers then rejects.
func (s *NumberingService) UpdateConfig(ctx context.Context, actor Actor, kind entity.DocumentKind, req *UpdateNumberingRequest) (*NumberingConfig, error) {
	if !actor.CanManage() {
		return nil, ErrForbidden
	}
	if !kind.Valid() {
		return nil, ErrConfigNotFound
	}
	if req.Format != nil && *req.Format == "" {
		return nil, fmt.Errorf("%w: format must not be empty", ErrInvalidInput)
	}
	if req.NextNumber != nil && *req.NextNumber < 1 {
		return nil, fmt.Errorf("%w: next_number must be at least 1", ErrInvalidInput)
	}
	if req.Prefix != nil && utf8.RuneCountInString(NormalizePrefix(*req.Prefix)) > maxPrefixLen {
		return nil, fmt.Errorf("%w: prefix longer than %d characters", ErrInvalidInput, maxPrefixLen)
	}
	if req.Format != nil && utf8.RuneCountInString(*req.Format) > maxFormatLen {
		return nil, fmt.Errorf("%w: format longer than %d characters", ErrInvalidInput, maxFormatLen)
	}

	var updated *entity.NumberingSequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		seq, err := repo.FindForUpdate(ctx, actor.TenantID, kind)
		if errors.Is(err, repository.ErrNotFound) {
			if err := repo.SeedDefaults(ctx, []entity.NumberingSequence{entity.DefaultNumberingSequence(actor.TenantID, kind)}); err != nil {
				return err
			}
			seq, err = repo.FindForUpdate(ctx, actor.TenantID, kind)
		}
		if err != nil {
			return err
		}

		before := *seq
		if req.Prefix != nil {
			seq.Prefix = NormalizePrefix(*req.Prefix)
		}
		if req.Format != nil {
			seq.Format = *req.Format
		}
		if req.NextNumber != nil {
			seq.NextNumber = *req.NextNumber
		}
		seq.UpdatedBy = actor.UserID

		if preview := RenderNumber(seq.Format, seq.Prefix, seq.NextNumber, s.now()); utf8.RuneCountInString(preview) > maxNumberLen {
			return fmt.Errorf("%w: rendered number longer than %d characters", ErrInvalidInput, maxNumberLen)
		}

		if !HasCounterToken(seq.Format) {
			s.logger.Warn("numbering format has no counter token, numbers may repeat",
				zap.String("tenant_id", actor.TenantID),
				zap.String("kind", string(kind)),
				zap.String("format", seq.Format),
			)
		}
		if seq.NextNumber < before.NextNumber {
			s.logger.Warn("numbering next_number lowered, numbers may repeat",
				zap.String("tenant_id", actor.TenantID),
				zap.String("kind", string(kind)),
				zap.Int64("from", before.NextNumber),
				zap.Int64("to", seq.NextNumber),
			)
		}

		if err := repo.UpdateSettings(ctx, seq); err != nil {
			return err
		}
		if err := s.logRepo.WithTx(tx).Create(ctx, &entity.ActivityLog{
			TenantID:   actor.TenantID,
			EntityType: "numbering",
			EntityID:   seq.ID,
			EntityCode: string(kind),
			Action:     entity.ActionConfigUpdate,
			Content:    fmt.Sprintf("编号配置修改: %s → %s", before.Format, seq.Format),
			Metadata: entity.JSONB{
				"prefix":           seq.Prefix,
				"format":           seq.Format,
				"next_number":      seq.NextNumber,
				"prev_prefix":      before.Prefix,
				"prev_format":      before.Format,
				"prev_next_number": before.NextNumber,
			},
			OperatorID: actor.UserID,
		}); err != nil {
			return err
		}
		updated = seq
		return nil
	})
	if err != nil {
		return nil, classify("update numbering config", err)
	}

	s.notify(ctx, updated)
	return &NumberingConfig{
		NumberingSequence: *updated,
		Preview:           RenderNumber(updated.Format, updated.Prefix, updated.NextNumber, s.now()),
	}, nil
}
