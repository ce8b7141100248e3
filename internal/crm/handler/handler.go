package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/service"
	"github.com/kcwalters0610/folioops/internal/crm/sse"
	"github.com/kcwalters0610/folioops/internal/middleware"
)

// Handlers CRM处理器集合
type Handlers struct {
	Numbering *NumberingHandler
	Document  *DocumentHandler
	Estimate  *EstimateHandler
	Company   *CompanyHandler
	Directory *DirectoryHandler
	SSE       *SSEHandler
}

// NewHandlers 创建CRM处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Numbering: NewNumberingHandler(svc.Numbering, svc.Export),
		Document:  NewDocumentHandler(svc.Document),
		Estimate:  NewEstimateHandler(svc.Estimate, svc.Conversion),
		Company:   NewCompanyHandler(svc.Company),
		Directory: NewDirectoryHandler(svc.Directory),
		SSE:       NewSSEHandler(hub),
	}
}

// RegisterRoutes mounts the CRM API on an authenticated group.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	numbering := api.Group("/numbering")
	{
		numbering.GET("", h.Numbering.ListConfigs)
		numbering.GET("/events", h.SSE.Stream)
		numbering.GET("/:kind/peek", h.Numbering.Peek)
		numbering.POST("/:kind/commit", h.Numbering.Commit)
		numbering.PUT("/:kind", h.Numbering.UpdateConfig)
		numbering.GET("/:kind/ledger/export", h.Numbering.ExportLedger)
	}

	workOrders := api.Group("/work-orders")
	{
		workOrders.GET("", h.Document.ListWorkOrders)
		workOrders.POST("", h.Document.CreateWorkOrder)
		workOrders.GET("/:id", h.Document.GetWorkOrder)
	}

	purchaseOrders := api.Group("/purchase-orders")
	{
		purchaseOrders.GET("", h.Document.ListPurchaseOrders)
		purchaseOrders.POST("", h.Document.CreatePurchaseOrder)
		purchaseOrders.GET("/:id", h.Document.GetPurchaseOrder)
	}

	invoices := api.Group("/invoices")
	{
		invoices.GET("", h.Document.ListInvoices)
		invoices.POST("", h.Document.CreateInvoice)
		invoices.GET("/:id", h.Document.GetInvoice)
	}

	estimates := api.Group("/estimates")
	{
		estimates.GET("", h.Document.ListEstimates)
		estimates.POST("", h.Document.CreateEstimate)
		estimates.GET("/:id", h.Document.GetEstimate)
		estimates.POST("/:id/transition", h.Estimate.Transition)
		estimates.POST("/:id/convert", h.Estimate.Convert)
		estimates.GET("/:id/activity", h.Document.ListEstimateActivity)
	}

	api.GET("/projects/:id", h.Document.GetProject)

	customers := api.Group("/customers")
	{
		customers.GET("", h.Directory.ListCustomers)
		customers.POST("", h.Directory.CreateCustomer)
		customers.GET("/:id", h.Directory.GetCustomer)
	}

	vendors := api.Group("/vendors")
	{
		vendors.GET("", h.Directory.ListVendors)
		vendors.POST("", h.Directory.CreateVendor)
		vendors.GET("/:id", h.Directory.GetVendor)
	}

	api.POST("/companies", middleware.RequireRole(service.RolePlatformAdmin), h.Company.Create)
	api.GET("/companies/:id", middleware.RequireRole(service.RolePlatformAdmin), h.Company.Get)
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 错误码
const (
	CodeInvalidInput       = 40000
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeConfigNotFound     = 40401
	CodeInvalidState       = 40900
	CodeAlreadyConverted   = 40901
	CodeNumberCollision    = 40902
	CodeInternal           = 50000
	CodeStorageUnavailable = 50300
)

// RespondError maps service errors onto the response envelope.
func RespondError(c *gin.Context, err error) {
	var stateErr *service.StateError
	switch {
	case errors.As(err, &stateErr):
		ErrorWithData(c, CodeInvalidState, stateErr.Error(), gin.H{"current_status": stateErr.Current})
	case errors.Is(err, service.ErrConfigNotFound):
		Error(c, CodeConfigNotFound, "numbering config not found")
	case errors.Is(err, service.ErrNotFound):
		Error(c, CodeNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		Error(c, CodeForbidden, "forbidden")
	case errors.Is(err, service.ErrAlreadyConverted):
		Error(c, CodeAlreadyConverted, "estimate already converted")
	case errors.Is(err, service.ErrNumberCollision):
		Error(c, CodeNumberCollision, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		Error(c, CodeInvalidInput, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		c.Error(err)
		Error(c, CodeStorageUnavailable, "storage unavailable, retry later")
	default:
		c.Error(err)
		InternalError(c, "internal error")
	}
}

// actorFrom builds the service actor from the JWT context.
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		TenantID: c.GetString("tenant_id"),
		UserID:   c.GetString("user_id"),
		Role:     c.GetString("role"),
	}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, total int64, page, pageSize int) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}
