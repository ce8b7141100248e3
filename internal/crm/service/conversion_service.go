package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/shared/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConvertOverrides project fields that replace the values derived from the
// estimate. Nil means derive.
type ConvertOverrides struct {
	ProjectName      *string
	Description      *string
	ProjectManagerID *string
	StartDate        *time.Time
	EstimatedEndDate *time.Time
}

// ConversionResult 转换结果
type ConversionResult struct {
	Project  *entity.Project  `json:"project"`
	Estimate *entity.Estimate `json:"estimate"`
}

// ConversionService 报价单转项目
type ConversionService struct {
	db        *gorm.DB
	estimates *repository.EstimateRepository
	projects  *repository.ProjectRepository
	logRepo   *repository.ActivityLogRepository
	logger    *zap.Logger
	now       func() time.Time

	// afterProjectCreate runs between the project insert and the estimate
	// update. Tests use it to fail the transaction halfway.
	afterProjectCreate func(ctx context.Context, tx *gorm.DB, p *entity.Project) error
}

func NewConversionService(db *gorm.DB, estimates *repository.EstimateRepository, projects *repository.ProjectRepository, logRepo *repository.ActivityLogRepository, logger *zap.Logger) *ConversionService {
	return &ConversionService{
		db:        db,
		estimates: estimates,
		projects:  projects,
		logRepo:   logRepo,
		logger:    logger,
		now:       utcNow,
	}
}

// Convert turns an approved estimate into a project. It succeeds at most once
// per estimate; everything happens in one transaction holding the estimate
// row lock.
func (s *ConversionService) Convert(ctx context.Context, actor Actor, estimateID string, overrides ConvertOverrides) (*ConversionResult, error) {
	ctx, span := tracer.Start(ctx, "ConversionService.Convert")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", actor.TenantID),
		attribute.String("estimate.id", estimateID),
	)

	result, err := s.convert(ctx, actor, estimateID, overrides)
	metrics.ObserveConversion(resultLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *ConversionService) convert(ctx context.Context, actor Actor, estimateID string, overrides ConvertOverrides) (*ConversionResult, error) {
	if !actor.CanManage() {
		return nil, ErrForbidden
	}

	var result ConversionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		estimates := s.estimates.WithTx(tx)
		projects := s.projects.WithTx(tx)

		est, err := estimates.FindForUpdate(ctx, actor.TenantID, estimateID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock estimate: %w", err)
		}

		switch est.Status {
		case entity.EstimateStatusApproved:
		case entity.EstimateStatusConverted:
			return ErrAlreadyConverted
		default:
			return &StateError{Current: est.Status}
		}

		exists, err := projects.ExistsForEstimate(ctx, actor.TenantID, est.ID)
		if err != nil {
			return fmt.Errorf("check project: %w", err)
		}
		if exists {
			return ErrAlreadyConverted
		}

		project := &entity.Project{
			TenantID:         actor.TenantID,
			EstimateID:       &est.ID,
			CustomerID:       est.CustomerID,
			ProjectName:      est.Title,
			Description:      est.Description,
			TotalBudget:      est.TotalAmount,
			Status:           entity.ProjectStatusPlanning,
			ProjectManagerID: overrides.ProjectManagerID,
			StartDate:        overrides.StartDate,
			EstimatedEndDate: overrides.EstimatedEndDate,
			CreatedBy:        actor.UserID,
		}
		if overrides.ProjectName != nil && *overrides.ProjectName != "" {
			project.ProjectName = *overrides.ProjectName
		}
		if overrides.Description != nil {
			project.Description = *overrides.Description
		}
		if err := projects.Create(ctx, project); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyConverted
			}
			return fmt.Errorf("create project: %w", err)
		}

		if s.afterProjectCreate != nil {
			if err := s.afterProjectCreate(ctx, tx, project); err != nil {
				return err
			}
		}

		now := s.now()
		ok, err := estimates.TransitionStatus(ctx, actor.TenantID, est.ID,
			entity.EstimateStatusApproved, entity.EstimateStatusConverted,
			map[string]interface{}{"converted_at": now})
		if err != nil {
			return fmt.Errorf("update estimate: %w", err)
		}
		if !ok {
			return ErrAlreadyConverted
		}
		est.Status = entity.EstimateStatusConverted
		est.ConvertedAt = &now

		if err := s.logRepo.WithTx(tx).Create(ctx, &entity.ActivityLog{
			TenantID:   actor.TenantID,
			EntityType: "estimate",
			EntityID:   est.ID,
			EntityCode: est.Number,
			Action:     entity.ActionConvert,
			FromStatus: entity.EstimateStatusApproved,
			ToStatus:   entity.EstimateStatusConverted,
			Content:    fmt.Sprintf("报价单 %s 转为项目 %s", est.Number, project.ProjectName),
			Metadata:   entity.JSONB{"project_id": project.ID},
			OperatorID: actor.UserID,
		}); err != nil {
			return fmt.Errorf("log conversion: %w", err)
		}

		result = ConversionResult{Project: project, Estimate: est}
		return nil
	})
	if err != nil {
		return nil, classify("convert estimate", err)
	}

	s.logger.Info("estimate converted",
		zap.String("tenant_id", actor.TenantID),
		zap.String("estimate_id", estimateID),
		zap.String("project_id", result.Project.ID),
	)
	return &result, nil
}
