package handler

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/service"
)

const dateLayout = "2006-01-02"

// EstimateHandler 报价单状态与转项目
type EstimateHandler struct {
	svc        *service.EstimateService
	conversion *service.ConversionService
}

func NewEstimateHandler(svc *service.EstimateService, conversion *service.ConversionService) *EstimateHandler {
	return &EstimateHandler{svc: svc, conversion: conversion}
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// Transition 报价单状态流转
// POST /api/v1/estimates/:id/transition
func (h *EstimateHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	est, err := h.svc.Transition(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, est)
}

// ConvertRequest optional overrides; dates are YYYY-MM-DD.
type ConvertRequest struct {
	ProjectName      *string `json:"project_name" binding:"omitempty,max=200"`
	Description      *string `json:"description"`
	ProjectManagerID *string `json:"project_manager_id" binding:"omitempty,max=32"`
	StartDate        string  `json:"start_date"`
	EstimatedEndDate string  `json:"estimated_end_date"`
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, errors.New(field + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func (r *ConvertRequest) overrides() (service.ConvertOverrides, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return service.ConvertOverrides{}, err
	}
	end, err := parseDate("estimated_end_date", r.EstimatedEndDate)
	if err != nil {
		return service.ConvertOverrides{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return service.ConvertOverrides{}, errors.New("estimated_end_date is before start_date")
	}
	return service.ConvertOverrides{
		ProjectName:      r.ProjectName,
		Description:      r.Description,
		ProjectManagerID: r.ProjectManagerID,
		StartDate:        start,
		EstimatedEndDate: end,
	}, nil
}

// Convert 报价单转项目
// POST /api/v1/estimates/:id/convert
func (h *EstimateHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	overrides, err := req.overrides()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.conversion.Convert(c.Request.Context(), actorFrom(c), c.Param("id"), overrides)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, result)
}
