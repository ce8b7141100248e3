package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/kcwalters0610/folioops/internal/middleware"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_folioops"
	JWTSecret  = "folioops-test-jwt-secret"
	JWTIssuer  = "folioops"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB connects to Postgres with an isolated schema that is dropped
// after the test. The test is skipped when Postgres is unreachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "folioops")
	password := getEnv("DB_PASSWORD", "folioops")
	dbname := getEnv("DB_NAME", "folioops")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable connect_timeout=3",
		host, port, user, password, dbname)

	schemaName := fmt.Sprintf("%s_%s", TestSchema, uuid.New().String()[:8])

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("cannot create test schema: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so every pooled connection uses the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(20)

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret, JWTIssuer))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, tenantID, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       userID,
		"uid":       userID,
		"tenant_id": tenantID,
		"role":      role,
		"name":      "Test " + userID,
		"iss":       JWTIssuer,
		"iat":       now.Unix(),
		"exp":       now.Add(24 * time.Hour).Unix(),
		"jti":       fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	return DoRequestWithHeaders(r, method, path, body, token, nil)
}

// DoRequestWithHeaders DoRequest with extra request headers
func DoRequestWithHeaders(r http.Handler, method, path string, body interface{}, token string, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// NewID random id in the 32-char primary key format
func NewID() string {
	return uuid.New().String()[:32]
}

// SeedCustomer creates a customer in tenantID.
func SeedCustomer(t *testing.T, db *gorm.DB, tenantID, name string) *entity.Customer {
	t.Helper()
	c := &entity.Customer{ID: NewID(), TenantID: tenantID, Name: name}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
	return c
}

// SeedVendor creates a vendor in tenantID.
func SeedVendor(t *testing.T, db *gorm.DB, tenantID, name string) *entity.Vendor {
	t.Helper()
	v := &entity.Vendor{ID: NewID(), TenantID: tenantID, Name: name}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("Failed to seed vendor: %v", err)
	}
	return v
}

// SeedEstimate creates an estimate with the given status and total.
func SeedEstimate(t *testing.T, db *gorm.DB, tenantID, customerID, status, total string) *entity.Estimate {
	t.Helper()
	amount := decimal.RequireFromString(total)
	e := &entity.Estimate{
		ID:         NewID(),
		TenantID:   tenantID,
		Number:     "EST-SEED-" + uuid.New().String()[:8],
		CustomerID: customerID,
		Title:      "Kitchen remodel",
		Status:     status,
		Amounts: entity.Amounts{
			Subtotal:    amount,
			TotalAmount: amount,
		},
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("Failed to seed estimate: %v", err)
	}
	return e
}

// SeedNumbering stores a numbering row.
func SeedNumbering(t *testing.T, db *gorm.DB, tenantID string, kind entity.DocumentKind, prefix, format string, next int64) *entity.NumberingSequence {
	t.Helper()
	seq := &entity.NumberingSequence{
		ID:         NewID(),
		TenantID:   tenantID,
		Kind:       kind,
		Prefix:     prefix,
		Format:     format,
		NextNumber: next,
	}
	if err := db.Create(seq).Error; err != nil {
		t.Fatalf("Failed to seed numbering: %v", err)
	}
	return seq
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
