package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/service"
)

// IdempotencyKeyHeader lets a client retry a commit without consuming a
// second number.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// NumberingHandler 单据编号处理器
type NumberingHandler struct {
	svc    *service.NumberingService
	export *service.ExportService
}

func NewNumberingHandler(svc *service.NumberingService, export *service.ExportService) *NumberingHandler {
	return &NumberingHandler{svc: svc, export: export}
}

// ListConfigs 编号配置列表
// GET /api/v1/numbering
func (h *NumberingHandler) ListConfigs(c *gin.Context) {
	configs, err := h.svc.ListConfigs(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, configs)
}

// Peek 预览下一个编号（不占号）
// GET /api/v1/numbering/:kind/peek
func (h *NumberingHandler) Peek(c *gin.Context) {
	kind := entity.DocumentKind(c.Param("kind"))
	preview, err := h.svc.Peek(c.Request.Context(), c.GetString("tenant_id"), kind)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"kind": kind, "preview": preview})
}

// Commit 占用下一个编号
// POST /api/v1/numbering/:kind/commit
func (h *NumberingHandler) Commit(c *gin.Context) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		BadRequest(c, "Idempotency-Key too long")
		return
	}

	alloc, err := h.svc.Commit(c.Request.Context(), actorFrom(c), entity.DocumentKind(c.Param("kind")), key)
	if err != nil {
		RespondError(c, err)
		return
	}
	if alloc.Replayed {
		c.Header("Idempotent-Replayed", "true")
		Success(c, alloc)
		return
	}
	Created(c, alloc)
}

// UpdateConfig 修改编号配置
// PUT /api/v1/numbering/:kind
func (h *NumberingHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateNumberingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cfg, err := h.svc.UpdateConfig(c.Request.Context(), actorFrom(c), entity.DocumentKind(c.Param("kind")), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, cfg)
}

// ExportLedger 导出编号台账
// GET /api/v1/numbering/:kind/ledger/export
func (h *NumberingHandler) ExportLedger(c *gin.Context) {
	out, err := h.export.ExportLedger(c.Request.Context(), actorFrom(c), entity.DocumentKind(c.Param("kind")))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+out.FileName+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("X-Ledger-Rows", strconv.Itoa(out.Rows))
	if out.ObjectKey != "" {
		c.Header("X-Archive-Key", out.ObjectKey)
	}
	c.Data(200, out.ContentType, out.Data)
}
