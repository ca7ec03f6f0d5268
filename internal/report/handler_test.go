package report

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"santiye-backend/internal/database"
	"santiye-backend/internal/hakedis"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Subcontractor{},
		&models.Project{},
		&models.BudgetItem{},
		&models.Transaction{},
		&models.Invoice{},
		&models.ProgressPayment{},
		&models.AuditLog{},
	))
	database.DB = db

	app := fiber.New()
	app.Get("/api/projects/:id/summary", ProjectSummaryHandler())
	return app, db
}

func TestProjectSummaryHandler(t *testing.T) {
	app, db := setupTestApp(t)

	project := models.Project{
		Name:           "Hastane Projesi",
		Code:           "ADN-2026-05",
		ContractAmount: decimal.NewFromInt(3000000),
		AdvancePayment: decimal.NewFromInt(10000),
		StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:         models.ProjectStatusActive,
	}
	require.NoError(t, db.Create(&project).Error)

	mkTr := func(trType models.TransactionType, amount, isGrubu, date string) models.Transaction {
		d, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		tr := models.Transaction{
			ProjectID: project.ID,
			Type:      trType,
			Amount:    decimal.RequireFromString(amount),
			IsGrubu:   isGrubu,
			Date:      d,
		}
		require.NoError(t, db.Create(&tr).Error)
		return tr
	}

	mkTr(models.TransactionTypeIncome, "5000.00", "", "2026-02-05")
	expA := mkTr(models.TransactionTypeExpense, "1200.00", "Kaba İnşaat", "2026-02-10")
	mkTr(models.TransactionTypeExpense, "800.00", "Elektrik", "2026-02-15")
	// Tarih aralığının dışında kalan işlem toplamlara girmemeli
	mkTr(models.TransactionTypeExpense, "999.00", "Kaba İnşaat", "2026-05-01")

	budget := models.BudgetItem{
		ProjectID: project.ID,
		IsGrubu:   "Kaba İnşaat",
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: decimal.NewFromInt(1500),
		TotalCost: decimal.NewFromInt(1500),
	}
	require.NoError(t, db.Create(&budget).Error)

	_, err := hakedis.CreateProgressPayment(hakedis.ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		ContractorFeeRate:    decimal.NewFromInt(10),
		AdvanceDeductionRate: decimal.NewFromInt(20),
		TransactionIDs:       []uint{expA.ID},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/projects/%d/summary?from=2026-02-01&to=2026-02-28", project.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body ProjectSummaryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	assert.Equal(t, "5000.00", body.TotalIncome.StringFixed(2))
	assert.Equal(t, "2000.00", body.TotalExpense.StringFixed(2))
	assert.Equal(t, "3000.00", body.NetResult.StringFixed(2))

	// Hakediş: 1200 * 1.10 = 1320 brüt, %20 kesinti 264, net 1056
	assert.Equal(t, "1320.00", body.TotalGrossPaid.StringFixed(2))
	assert.Equal(t, "1056.00", body.TotalNetPaid.StringFixed(2))
	assert.Equal(t, "10000.00", body.AdvanceTotal.StringFixed(2))
	assert.Equal(t, "264.00", body.AdvanceUsed.StringFixed(2))
	assert.Equal(t, "9736.00", body.AdvanceRemaining.StringFixed(2))

	// İş grubu karşılaştırması: bütçe 1500, gerçekleşen 1200, fark 300
	require.Len(t, body.BudgetComparison, 2)
	byGroup := map[string]BudgetComparisonItem{}
	for _, item := range body.BudgetComparison {
		byGroup[item.IsGrubu] = item
	}
	kaba := byGroup["Kaba İnşaat"]
	assert.Equal(t, "1500.00", kaba.Budgeted.StringFixed(2))
	assert.Equal(t, "1200.00", kaba.Actual.StringFixed(2))
	assert.Equal(t, "300.00", kaba.Variance.StringFixed(2))

	elektrik := byGroup["Elektrik"]
	assert.Equal(t, "0.00", elektrik.Budgeted.StringFixed(2))
	assert.Equal(t, "800.00", elektrik.Actual.StringFixed(2))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/projects/9999/summary", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
