package hakedis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"santiye-backend/internal/auth"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	user := models.User{
		Name:         "Test Kullanıcı",
		Email:        "test@santiye.local",
		PasswordHash: "x",
		Role:         models.RoleAdmin,
	}
	require.NoError(t, db.Create(&user).Error)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Beklenmeyen sunucu hatası"})
		},
	})

	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, user.ID)
		c.Locals(auth.CtxUserRoleKey, user.Role)
		return c.Next()
	})

	app.Post("/api/progress-payments", CreateProgressPaymentHandler())
	app.Get("/api/progress-payments", ListProgressPaymentsHandler())
	app.Get("/api/progress-payments/:id", GetProgressPaymentHandler())
	app.Patch("/api/progress-payments/:id", UpdateProgressPaymentHandler())
	app.Delete("/api/progress-payments/:id", DeleteProgressPaymentHandler())
	app.Get("/api/projects/:id/remaining-advance", RemainingAdvanceHandler())

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestProgressPaymentHandlers_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))
	app := setupTestApp(t, db)

	a := createExpense(t, db, project.ID, "600.00")
	b := createExpense(t, db, project.ID, "400.00")

	resp := doJSON(t, app, http.MethodPost, "/api/progress-payments", fiber.Map{
		"project_id":             project.ID,
		"payment_number":         1,
		"date":                   "2026-03-31",
		"description":            "Mart hakedişi",
		"contractor_fee_rate":    "10",
		"advance_deduction_rate": "20",
		"transaction_ids":        []uint{a.ID, b.ID},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created ProgressPaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	assert.Equal(t, "1000", created.Amount.String())
	assert.Equal(t, "1100", created.GrossAmount.String())
	assert.Equal(t, "220", created.AdvanceDeduction.String())
	assert.Equal(t, "880", created.NetPayment.String())
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, created.TransactionIDs)

	// Durum PATCH ile değiştirilir, tutar zinciri korunur
	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/progress-payments/%d", created.ID), fiber.Map{
		"status": "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated ProgressPaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, "approved", updated.Status)
	assert.Equal(t, "880", updated.NetPayment.String())

	resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/progress-payments/%d", created.ID), nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/progress-payments/%d", created.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateProgressPaymentHandler_InvalidSelection(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))
	app := setupTestApp(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/progress-payments", fiber.Map{
		"project_id":      project.ID,
		"payment_number":  1,
		"date":            "2026-03-31",
		"transaction_ids": []uint{9999},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRemainingAdvanceHandler(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(1000))
	app := setupTestApp(t, db)

	tr := createExpense(t, db, project.ID, "2000.00")
	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 mustDate(t, "2026-03-31"),
		AdvanceDeductionRate: decimal.NewFromInt(50),
		TransactionIDs:       []uint{tr.ID},
	})
	require.NoError(t, err)

	resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/projects/%d/remaining-advance", project.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Total     decimal.Decimal `json:"total"`
		Used      decimal.Decimal `json:"used"`
		Remaining decimal.Decimal `json:"remaining"`
		Exhausted bool            `json:"exhausted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	assert.Equal(t, "1000", body.Total.String())
	assert.Equal(t, "1000", body.Used.String())
	assert.Equal(t, "0", body.Remaining.String())
	assert.True(t, body.Exhausted)

	// Düzenlenen hakediş hariç tutulunca avansın tamamı görünür
	resp = doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/projects/%d/remaining-advance?exclude_payment_id=%d", project.ID, payment.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "1000", body.Remaining.String())
	assert.False(t, body.Exhausted)
}
