package service

import (
	"github.com/kcwalters0610/folioops/internal/config"
	"github.com/kcwalters0610/folioops/internal/crm/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Numbering  *NumberingService
	Conversion *ConversionService
	Estimate   *EstimateService
	Document   *DocumentService
	Company    *CompanyService
	Directory  *DirectoryService
	Export     *ExportService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio disabled", zap.Error(err))
			minioClient = nil
		}
	}

	numbering := NewNumberingService(db, repos.Numbering, repos.ActivityLog, logger)

	return &Services{
		Numbering:  numbering,
		Conversion: NewConversionService(db, repos.Estimate, repos.Project, repos.ActivityLog, logger),
		Estimate:   NewEstimateService(db, repos.Estimate, repos.ActivityLog, logger),
		Document:   NewDocumentService(db, repos, numbering, logger),
		Company:    NewCompanyService(db, repos.Company, repos.Numbering, logger),
		Directory:  NewDirectoryService(repos.Customer, repos.Vendor),
		Export:     NewExportService(repos.Numbering, minioClient, cfg.MinIO.Bucket, logger),
	}
}
