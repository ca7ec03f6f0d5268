package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"santiye-backend/internal/config"
	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuthApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	database.DB = db

	cfg := &config.Config{JWTSecret: "test-secret-test-secret-test-secret!"}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Beklenmeyen sunucu hatası"})
		},
	})

	app.Post("/api/auth/register-admin", RegisterAdminHandler(cfg))
	app.Post("/api/auth/login", LoginHandler(cfg))
	app.Get("/api/auth/me", JWTMiddleware(cfg), MeHandler())
	app.Get("/api/admin-only", JWTMiddleware(cfg), RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisterLoginMe(t *testing.T) {
	app := setupAuthApp(t)

	resp := postJSON(t, app, "/api/auth/register-admin", fiber.Map{
		"name":     "Şantiye Şefi",
		"email":    "Sef@Santiye.Local",
		"password": "gizli-sifre",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// İkinci admin kaydı reddedilir
	resp = postJSON(t, app, "/api/auth/register-admin", fiber.Map{
		"name":     "Başkası",
		"email":    "baska@santiye.local",
		"password": "sifre",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Yanlış şifre
	resp = postJSON(t, app, "/api/auth/login", fiber.Map{
		"email":    "sef@santiye.local",
		"password": "yanlis",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Email küçük harfe çevrilerek eşleşir
	resp = postJSON(t, app, "/api/auth/login", fiber.Map{
		"email":    "SEF@santiye.local",
		"password": "gizli-sifre",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var loginBody struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginBody))
	resp.Body.Close()
	require.NotEmpty(t, loginBody.Token)
	assert.Equal(t, "sef@santiye.local", loginBody.User.Email)
	assert.Equal(t, string(models.RoleAdmin), loginBody.User.Role)

	// Token ile korumalı uca erişim
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+loginBody.Token)
	meResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, meResp.StatusCode)

	var meBody map[string]any
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&meBody))
	meResp.Body.Close()
	assert.Equal(t, "sef@santiye.local", meBody["email"])
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	app := setupAuthApp(t)

	// Header yok
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Bozuk format
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Geçersiz token
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer invalid.token.here")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRequireRole(t *testing.T) {
	app := setupAuthApp(t)

	// Staff kullanıcıyı elle oluştur, token üret
	staff := models.User{Name: "Personel", Email: "personel@santiye.local", PasswordHash: "x", Role: models.RoleStaff}
	require.NoError(t, database.DB.Create(&staff).Error)

	token, err := GenerateToken("test-secret-test-secret-test-secret!", &staff)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestMeHandler_DeletedUser(t *testing.T) {
	app := setupAuthApp(t)

	resp := postJSON(t, app, "/api/auth/register-admin", fiber.Map{
		"name":     "Geçici Kullanıcı",
		"email":    "gecici@santiye.local",
		"password": "gizli-sifre",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, app, "/api/auth/login", fiber.Map{
		"email":    "gecici@santiye.local",
		"password": "gizli-sifre",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var loginBody map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginBody))
	resp.Body.Close()
	token, _ := loginBody["token"].(string)
	require.NotEmpty(t, token)

	// Token geçerli ama kullanıcı kaydı silinmiş
	require.NoError(t, database.DB.Where("email = ?", "gecici@santiye.local").Delete(&models.User{}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	meResp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, meResp.StatusCode)

	var errBody map[string]string
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&errBody))
	meResp.Body.Close()
	assert.Equal(t, "Kullanıcı bilgileri alınamadı", errBody["error"])
}
