package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/service"
)

// DirectoryHandler 客户/供应商处理器
type DirectoryHandler struct {
	svc *service.DirectoryService
}

func NewDirectoryHandler(svc *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

// ListCustomers 客户列表
// GET /api/v1/customers?search=xxx
func (h *DirectoryHandler) ListCustomers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListCustomers(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, c.Query("search"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

func (h *DirectoryHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	customer, err := h.svc.CreateCustomer(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, customer)
}

func (h *DirectoryHandler) GetCustomer(c *gin.Context) {
	customer, err := h.svc.GetCustomer(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, customer)
}

// ListVendors 供应商列表
// GET /api/v1/vendors?search=xxx
func (h *DirectoryHandler) ListVendors(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListVendors(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, c.Query("search"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

func (h *DirectoryHandler) CreateVendor(c *gin.Context) {
	var req service.CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	vendor, err := h.svc.CreateVendor(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, vendor)
}

func (h *DirectoryHandler) GetVendor(c *gin.Context) {
	vendor, err := h.svc.GetVendor(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, vendor)
}
