package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EstimateService 报价单状态流转（转项目见 ConversionService）
type EstimateService struct {
	db        *gorm.DB
	estimates *repository.EstimateRepository
	logRepo   *repository.ActivityLogRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewEstimateService(db *gorm.DB, estimates *repository.EstimateRepository, logRepo *repository.ActivityLogRepository, logger *zap.Logger) *EstimateService {
	return &EstimateService{
		db:        db,
		estimates: estimates,
		logRepo:   logRepo,
		logger:    logger,
		now:       utcNow,
	}
}

// Transition moves an estimate along a plain status edge.
// Approving and rejecting need a manager; converted is only reachable
// through ConversionService.Convert.
func (s *EstimateService) Transition(ctx context.Context, actor Actor, id, target string) (*entity.Estimate, error) {
	if !entity.ValidEstimateStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	if target == entity.EstimateStatusConverted {
		return nil, fmt.Errorf("%w: use the convert operation", ErrInvalidInput)
	}
	if (target == entity.EstimateStatusApproved || target == entity.EstimateStatusRejected) && !actor.CanManage() {
		return nil, ErrForbidden
	}

	var est *entity.Estimate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		estimates := s.estimates.WithTx(tx)

		var err error
		est, err = estimates.FindForUpdate(ctx, actor.TenantID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		from := est.Status
		if !entity.CanTransitionEstimate(from, target) {
			return &StateError{Current: from}
		}

		now := s.now()
		fields := map[string]interface{}{}
		switch target {
		case entity.EstimateStatusSent:
			fields["sent_at"] = now
			est.SentAt = &now
		case entity.EstimateStatusApproved:
			fields["approved_by"] = actor.UserID
			fields["approved_at"] = now
			est.ApprovedBy = &actor.UserID
			est.ApprovedAt = &now
		}

		ok, err := estimates.TransitionStatus(ctx, actor.TenantID, id, from, target, fields)
		if err != nil {
			return err
		}
		if !ok {
			return &StateError{Current: from}
		}
		est.Status = target

		return s.logRepo.WithTx(tx).Create(ctx, &entity.ActivityLog{
			TenantID:   actor.TenantID,
			EntityType: "estimate",
			EntityID:   est.ID,
			EntityCode: est.Number,
			Action:     entity.ActionStatusChange,
			FromStatus: from,
			ToStatus:   target,
			OperatorID: actor.UserID,
		})
	})
	if err != nil {
		return nil, classify("transition estimate", err)
	}

	s.logger.Info("estimate status changed",
		zap.String("tenant_id", actor.TenantID),
		zap.String("estimate_id", id),
		zap.String("status", target),
	)
	return est, nil
}
