package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/kcwalters0610/folioops/internal/crm/service"
)

// DocumentHandler 单据处理器
type DocumentHandler struct {
	svc *service.DocumentService
}

func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func documentFilter(c *gin.Context) repository.DocumentFilter {
	return repository.DocumentFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
}

// CreateWorkOrder 创建工单
// POST /api/v1/work-orders
func (h *DocumentHandler) CreateWorkOrder(c *gin.Context) {
	var req service.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	wo, err := h.svc.CreateWorkOrder(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, wo)
}

// GetWorkOrder 工单详情
// GET /api/v1/work-orders/:id
func (h *DocumentHandler) GetWorkOrder(c *gin.Context) {
	wo, err := h.svc.GetWorkOrder(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, wo)
}

// ListWorkOrders 工单列表
// GET /api/v1/work-orders?status=xxx&search=xxx
func (h *DocumentHandler) ListWorkOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListWorkOrders(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, documentFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

// CreatePurchaseOrder 创建采购订单
// POST /api/v1/purchase-orders
func (h *DocumentHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	po, err := h.svc.CreatePurchaseOrder(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, po)
}

func (h *DocumentHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, po)
}

func (h *DocumentHandler) ListPurchaseOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListPurchaseOrders(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, documentFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

// CreateEstimate 创建报价单
// POST /api/v1/estimates
func (h *DocumentHandler) CreateEstimate(c *gin.Context) {
	var req service.CreateEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	est, err := h.svc.CreateEstimate(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, est)
}

func (h *DocumentHandler) GetEstimate(c *gin.Context) {
	est, err := h.svc.GetEstimate(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, est)
}

func (h *DocumentHandler) ListEstimates(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListEstimates(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, documentFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

// CreateInvoice 创建发票
// POST /api/v1/invoices
func (h *DocumentHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inv, err := h.svc.CreateInvoice(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, inv)
}

func (h *DocumentHandler) GetInvoice(c *gin.Context) {
	inv, err := h.svc.GetInvoice(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, inv)
}

func (h *DocumentHandler) ListInvoices(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListInvoices(c.Request.Context(), c.GetString("tenant_id"), page, pageSize, documentFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}

// GetProject 项目详情
// GET /api/v1/projects/:id
func (h *DocumentHandler) GetProject(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, p)
}

// ListEstimateActivity 报价单操作记录
// GET /api/v1/estimates/:id/activity
func (h *DocumentHandler) ListEstimateActivity(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListActivity(c.Request.Context(), c.GetString("tenant_id"), "estimate", c.Param("id"), page, pageSize)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, listResponse(items, total, page, pageSize))
}
