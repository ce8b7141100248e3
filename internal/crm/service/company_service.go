package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompanyService 租户开通
type CompanyService struct {
	db        *gorm.DB
	repo      *repository.CompanyRepository
	numbering *repository.NumberingRepository
	logger    *zap.Logger
}

func NewCompanyService(db *gorm.DB, repo *repository.CompanyRepository, numbering *repository.NumberingRepository, logger *zap.Logger) *CompanyService {
	return &CompanyService{db: db, repo: repo, numbering: numbering, logger: logger}
}

// CreateCompanyRequest 创建租户请求
type CreateCompanyRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// Create provisions a tenant together with its default numbering rows.
func (s *CompanyService) Create(ctx context.Context, actor Actor, req *CreateCompanyRequest) (*entity.Company, error) {
	if actor.Role != RolePlatformAdmin {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	company := &entity.Company{
		ID:        repository.NewID(),
		Name:      name,
		CreatedBy: actor.UserID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, company); err != nil {
			return err
		}
		seqs := make([]entity.NumberingSequence, 0, len(entity.DocumentKinds))
		for _, kind := range entity.DocumentKinds {
			seqs = append(seqs, entity.DefaultNumberingSequence(company.ID, kind))
		}
		return s.numbering.WithTx(tx).SeedDefaults(ctx, seqs)
	})
	if err != nil {
		return nil, classify("create company", err)
	}

	s.logger.Info("company created", zap.String("tenant_id", company.ID), zap.String("name", company.Name))
	return company, nil
}

// Get 查询租户
func (s *CompanyService) Get(ctx context.Context, id string) (*entity.Company, error) {
	return found(s.repo.FindByID(ctx, id))
}
