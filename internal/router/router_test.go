package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dayflow/internal/db"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouterTest(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := db.EnsureUser(gdb, "admin", "secret"); err != nil {
		t.Fatalf("failed to seed admin user: %v", err)
	}

	return SetupRouter(gdb, "test-secret"), func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestPingIsPublic(t *testing.T) {
	r, cleanup := setupRouterTest(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestAuthRequiredBlocksAnonymous(t *testing.T) {
	r, cleanup := setupRouterTest(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestLoginGrantsSessionAccess(t *testing.T) {
	r, cleanup := setupRouterTest(t)
	defer cleanup()

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "secret"})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRR := httptest.NewRecorder()
	r.ServeHTTP(loginRR, loginReq)

	if loginRR.Code != http.StatusOK {
		t.Fatalf("expected login status %d, got %d: %s", http.StatusOK, loginRR.Code, loginRR.Body.String())
	}

	cookies := loginRR.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie after login")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	for _, cookie := range cookies {
		listReq.AddCookie(cookie)
	}
	listRR := httptest.NewRecorder()
	r.ServeHTTP(listRR, listReq)

	if listRR.Code != http.StatusOK {
		t.Fatalf("expected status %d with session, got %d", http.StatusOK, listRR.Code)
	}

	badBody, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	badReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(badBody))
	badReq.Header.Set("Content-Type", "application/json")
	badRR := httptest.NewRecorder()
	r.ServeHTTP(badRR, badReq)

	if badRR.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for wrong password, got %d", http.StatusUnauthorized, badRR.Code)
	}
}
