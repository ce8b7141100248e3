package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/service"
)

// CompanyHandler 租户开通
type CompanyHandler struct {
	svc *service.CompanyService
}

func NewCompanyHandler(svc *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

// Create 创建租户并初始化编号配置
// POST /api/v1/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	var req service.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	company, err := h.svc.Create(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, company)
}

// Get GET /api/v1/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, company)
}
