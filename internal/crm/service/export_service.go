package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxLedgerRows caps a single export.
const maxLedgerRows = 100000

var ledgerExportHeaders = []string{"序号", "编号", "单据ID", "幂等键", "分配人", "分配时间"}

// LedgerExport a rendered ledger workbook.
type LedgerExport struct {
	FileName    string
	ContentType string
	Data        []byte
	ObjectKey   string // empty when not archived
	Rows        int
}

// ExportService 编号台账导出
type ExportService struct {
	repo        *repository.NumberingRepository
	minioClient *minio.Client
	bucketName  string
	logger      *zap.Logger
	now         func() time.Time
}

func NewExportService(repo *repository.NumberingRepository, minioClient *minio.Client, bucketName string, logger *zap.Logger) *ExportService {
	return &ExportService{
		repo:        repo,
		minioClient: minioClient,
		bucketName:  bucketName,
		logger:      logger,
		now:         utcNow,
	}
}

// ExportLedger builds an xlsx of every committed number of kind and archives
// it to object storage when one is configured. An archive failure is logged,
// the workbook is still returned.
func (s *ExportService) ExportLedger(ctx context.Context, actor Actor, kind entity.DocumentKind) (*LedgerExport, error) {
	if !actor.CanManage() {
		return nil, ErrForbidden
	}
	if !kind.Valid() {
		return nil, ErrConfigNotFound
	}

	rows, err := s.repo.ListAllocations(ctx, actor.TenantID, kind, maxLedgerRows)
	if err != nil {
		return nil, storageErr("list allocations", err)
	}

	data, err := buildLedgerWorkbook(string(kind), rows)
	if err != nil {
		return nil, fmt.Errorf("build workbook: %w", err)
	}

	stamp := s.now().UTC().Format("20060102T150405Z")
	out := &LedgerExport{
		FileName:    fmt.Sprintf("%s-ledger-%s.xlsx", kind, stamp),
		ContentType: xlsxContentType,
		Data:        data,
		Rows:        len(rows),
	}

	if s.minioClient != nil {
		key := fmt.Sprintf("exports/%s/%s-%s.xlsx", actor.TenantID, kind, stamp)
		_, err := s.minioClient.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: xlsxContentType,
		})
		if err != nil {
			s.logger.Warn("archive ledger export failed",
				zap.String("tenant_id", actor.TenantID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		} else {
			out.ObjectKey = key
		}
	}
	return out, nil
}

func buildLedgerWorkbook(sheet string, rows []entity.NumberAllocation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range ledgerExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, a := range rows {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.Sequence)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.Number)
		if a.DocumentID != nil {
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), *a.DocumentID)
		}
		if a.IdempotencyKey != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), *a.IdempotencyKey)
		}
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.AllocatedBy)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), a.CreatedAt.Format(time.RFC3339))
	}

	colWidths := []float64{8, 22, 34, 30, 34, 24}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
