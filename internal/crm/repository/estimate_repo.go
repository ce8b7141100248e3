package repository

import (
	"context"
	"errors"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EstimateRepository 报价单仓库
type EstimateRepository struct {
	db *gorm.DB
}

func NewEstimateRepository(db *gorm.DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

func (r *EstimateRepository) WithTx(tx *gorm.DB) *EstimateRepository {
	return &EstimateRepository{db: tx}
}

func (r *EstimateRepository) Create(ctx context.Context, e *entity.Estimate) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EstimateRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Estimate, error) {
	return findScoped[entity.Estimate](ctx, r.db, tenantID, id)
}

func (r *EstimateRepository) FindAll(ctx context.Context, tenantID string, page, pageSize int, f DocumentFilter) ([]entity.Estimate, int64, error) {
	return listScoped[entity.Estimate](ctx, r.db, tenantID, page, pageSize, f)
}

// FindForUpdate 加行锁读取报价单（需在事务内调用）
func (r *EstimateRepository) FindForUpdate(ctx context.Context, tenantID, id string) (*entity.Estimate, error) {
	var e entity.Estimate
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// TransitionStatus moves the estimate from → to only if it is still in from.
// Returns false when another writer got there first.
func (r *EstimateRepository) TransitionStatus(ctx context.Context, tenantID, id, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&entity.Estimate{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
