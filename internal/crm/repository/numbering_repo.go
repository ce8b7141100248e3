package repository

import (
	"context"
	"errors"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberingRepository 单据编号仓库
type NumberingRepository struct {
	db *gorm.DB
}

func NewNumberingRepository(db *gorm.DB) *NumberingRepository {
	return &NumberingRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *NumberingRepository) WithTx(tx *gorm.DB) *NumberingRepository {
	return &NumberingRepository{db: tx}
}

// Find 查询租户某类单据的编号配置
func (r *NumberingRepository) Find(ctx context.Context, tenantID string, kind entity.DocumentKind) (*entity.NumberingSequence, error) {
	var seq entity.NumberingSequence
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &seq, nil
}

// FindForUpdate 加行锁读取编号配置（需在事务内调用）
func (r *NumberingRepository) FindForUpdate(ctx context.Context, tenantID string, kind entity.DocumentKind) (*entity.NumberingSequence, error) {
	var seq entity.NumberingSequence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &seq, nil
}

// ListByTenant 租户全部编号配置
func (r *NumberingRepository) ListByTenant(ctx context.Context, tenantID string) ([]entity.NumberingSequence, error) {
	var items []entity.NumberingSequence
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("kind ASC").
		Find(&items).Error
	return items, err
}

// SeedDefaults inserts rows that do not exist yet; existing (tenant_id, kind)
// rows are left untouched.
func (r *NumberingRepository) SeedDefaults(ctx context.Context, seqs []entity.NumberingSequence) error {
	if len(seqs) == 0 {
		return nil
	}
	for i := range seqs {
		if seqs[i].ID == "" {
			seqs[i].ID = NewID()
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(&seqs).Error
}

// Increment advances next_number by exactly one in a single UPDATE and returns
// the row as it is after the increment. The consumed value is NextNumber-1.
// ErrNotFound when the tenant has no row for kind.
func (r *NumberingRepository) Increment(ctx context.Context, tenantID string, kind entity.DocumentKind) (*entity.NumberingSequence, error) {
	var seq entity.NumberingSequence
	res := r.db.WithContext(ctx).
		Model(&seq).
		Clauses(clause.Returning{}).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Update("next_number", gorm.Expr("next_number + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &seq, nil
}

// UpdateSettings 更新前缀/格式/下一个编号
func (r *NumberingRepository) UpdateSettings(ctx context.Context, seq *entity.NumberingSequence) error {
	return r.db.WithContext(ctx).
		Model(&entity.NumberingSequence{}).
		Where("id = ?", seq.ID).
		Updates(map[string]interface{}{
			"prefix":      seq.Prefix,
			"format":      seq.Format,
			"next_number": seq.NextNumber,
			"updated_by":  seq.UpdatedBy,
		}).Error
}

// CreateAllocation 写入编号台账
func (r *NumberingRepository) CreateAllocation(ctx context.Context, a *entity.NumberAllocation) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// FindAllocationByKey 按幂等键查找已提交的编号
func (r *NumberingRepository) FindAllocationByKey(ctx context.Context, tenantID, key string) (*entity.NumberAllocation, error) {
	var a entity.NumberAllocation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAllocations 编号台账，按序号升序
func (r *NumberingRepository) ListAllocations(ctx context.Context, tenantID string, kind entity.DocumentKind, limit int) ([]entity.NumberAllocation, error) {
	var items []entity.NumberAllocation
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Order("sequence ASC, created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}
