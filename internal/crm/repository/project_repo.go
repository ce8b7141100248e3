package repository

import (
	"context"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"gorm.io/gorm"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProjectRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Project, error) {
	return findScoped[entity.Project](ctx, r.db, tenantID, id)
}

// ExistsForEstimate 报价单是否已生成项目
func (r *ProjectRepository) ExistsForEstimate(ctx context.Context, tenantID, estimateID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("tenant_id = ? AND estimate_id = ?", tenantID, estimateID).
		Count(&count).Error
	return count > 0, err
}
