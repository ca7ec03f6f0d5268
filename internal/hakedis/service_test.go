package hakedis

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

var testProjectSeq int

func createTestProject(t *testing.T, db *gorm.DB, advance decimal.Decimal) models.Project {
	t.Helper()
	testProjectSeq++
	project := models.Project{
		Name:           "Okul İnşaatı",
		Code:           fmt.Sprintf("ANK-2026-%02d", testProjectSeq),
		ContractAmount: decimal.NewFromInt(5000000),
		AdvancePayment: advance,
		StartDate:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:         models.ProjectStatusActive,
	}
	require.NoError(t, db.Create(&project).Error)
	return project
}

func createExpense(t *testing.T, db *gorm.DB, projectID uint, amount string) models.Transaction {
	t.Helper()
	tr := models.Transaction{
		ProjectID: projectID,
		Type:      models.TransactionTypeExpense,
		Amount:    decimal.RequireFromString(amount),
		Date:      time.Now(),
	}
	require.NoError(t, db.Create(&tr).Error)
	return tr
}

func TestCreateProgressPayment(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))

	a := createExpense(t, db, project.ID, "600.00")
	b := createExpense(t, db, project.ID, "400.00")

	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		ContractorFeeRate:    decimal.NewFromInt(10),
		AdvanceDeductionRate: decimal.NewFromInt(20),
		Status:               models.ProgressPaymentStatusDraft,
		TransactionIDs:       []uint{a.ID, b.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "1000.00", payment.Amount.StringFixed(2))
	assert.Equal(t, "1100.00", payment.GrossAmount.StringFixed(2))
	assert.Equal(t, "220.00", payment.AdvanceDeduction.StringFixed(2))
	assert.Equal(t, "880.00", payment.NetPayment.StringFixed(2))
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, payment.TransactionIDList())

	// Seçilen işlemlere geri referans yazılmış olmalı
	for _, id := range []uint{a.ID, b.ID} {
		var tr models.Transaction
		require.NoError(t, db.First(&tr, id).Error)
		require.NotNil(t, tr.ProgressPaymentID)
		assert.Equal(t, payment.ID, *tr.ProgressPaymentID)
	}
}

func TestCreateProgressPayment_InvalidSelection(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))
	other := createTestProject(t, db, decimal.Zero)

	// Gelir tipinde işlem seçilemez
	income := models.Transaction{
		ProjectID: project.ID,
		Type:      models.TransactionTypeIncome,
		Amount:    decimal.NewFromInt(100),
		Date:      time.Now(),
	}
	require.NoError(t, db.Create(&income).Error)

	_, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:      project.ID,
		PaymentNumber:  1,
		Date:           time.Now(),
		TransactionIDs: []uint{income.ID},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelection))

	// Başka projenin gideri seçilemez
	foreign := createExpense(t, db, other.ID, "250.00")
	_, err = CreateProgressPayment(ProgressPaymentInput{
		ProjectID:      project.ID,
		PaymentNumber:  1,
		Date:           time.Now(),
		TransactionIDs: []uint{foreign.ID},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelection))

	// Var olmayan id seçilemez
	_, err = CreateProgressPayment(ProgressPaymentInput{
		ProjectID:      project.ID,
		PaymentNumber:  1,
		Date:           time.Now(),
		TransactionIDs: []uint{9999},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelection))

	var count int64
	db.Model(&models.ProgressPayment{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCreateProgressPayment_AdvanceExhaustedClampsRate(t *testing.T) {
	db := setupTestDB(t)
	// Toplam avans 500: ilk hakediş tamamını tüketiyor
	project := createTestProject(t, db, decimal.NewFromInt(500))

	first := createExpense(t, db, project.ID, "2500.00")
	payment1, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 time.Now(),
		ContractorFeeRate:    decimal.Zero,
		AdvanceDeductionRate: decimal.NewFromInt(20),
		TransactionIDs:       []uint{first.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", payment1.AdvanceDeduction.StringFixed(2))

	balance, err := RemainingAdvance(project.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.Remaining.StringFixed(2))

	// Avans bittiği için ikinci hakedişte oran 0'a çekilir, net = brüt
	second := createExpense(t, db, project.ID, "1000.00")
	payment2, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        2,
		Date:                 time.Now(),
		ContractorFeeRate:    decimal.NewFromInt(10),
		AdvanceDeductionRate: decimal.NewFromInt(20),
		TransactionIDs:       []uint{second.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", payment2.AdvanceDeductionRate.StringFixed(2))
	assert.Equal(t, "0.00", payment2.AdvanceDeduction.StringFixed(2))
	assert.Equal(t, "1100.00", payment2.GrossAmount.StringFixed(2))
	assert.Equal(t, "1100.00", payment2.NetPayment.StringFixed(2))
}

func TestUpdateProgressPayment_ReconcilesBackRefs(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))

	a := createExpense(t, db, project.ID, "600.00")
	b := createExpense(t, db, project.ID, "400.00")
	c := createExpense(t, db, project.ID, "300.00")

	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:         project.ID,
		PaymentNumber:     1,
		Date:              time.Now(),
		ContractorFeeRate: decimal.NewFromInt(10),
		TransactionIDs:    []uint{a.ID, b.ID},
	})
	require.NoError(t, err)

	// [a, b] -> [b, c]: a temizlenir, c eklenir, b değişmez
	newIDs := []uint{b.ID, c.ID}
	updated, err := UpdateProgressPayment(payment.ID, ProgressPaymentUpdate{
		TransactionIDs: &newIDs,
	})
	require.NoError(t, err)

	assert.Equal(t, "700.00", updated.Amount.StringFixed(2))
	assert.Equal(t, "770.00", updated.GrossAmount.StringFixed(2))
	assert.ElementsMatch(t, []uint{b.ID, c.ID}, updated.TransactionIDList())

	var trA, trB, trC models.Transaction
	require.NoError(t, db.First(&trA, a.ID).Error)
	require.NoError(t, db.First(&trB, b.ID).Error)
	require.NoError(t, db.First(&trC, c.ID).Error)
	assert.Nil(t, trA.ProgressPaymentID)
	require.NotNil(t, trB.ProgressPaymentID)
	assert.Equal(t, payment.ID, *trB.ProgressPaymentID)
	require.NotNil(t, trC.ProgressPaymentID)
	assert.Equal(t, payment.ID, *trC.ProgressPaymentID)
}

func TestUpdateProgressPayment_ExcludesOwnDeduction(t *testing.T) {
	db := setupTestDB(t)
	// Avansın tamamı bu hakedişin kendi kesintisiyle kullanılmış durumda
	project := createTestProject(t, db, decimal.NewFromInt(500))

	tr := createExpense(t, db, project.ID, "2500.00")
	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 time.Now(),
		ContractorFeeRate:    decimal.Zero,
		AdvanceDeductionRate: decimal.NewFromInt(20),
		TransactionIDs:       []uint{tr.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", payment.AdvanceDeduction.StringFixed(2))

	// Kendi kesintisi hariç tutulduğu için oran düzenlemede sıfırlanmamalı
	desc := "revize"
	updated, err := UpdateProgressPayment(payment.ID, ProgressPaymentUpdate{
		Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "20.00", updated.AdvanceDeductionRate.StringFixed(2))
	assert.Equal(t, "500.00", updated.AdvanceDeduction.StringFixed(2))
}

func TestUpdateProgressPayment_NotFound(t *testing.T) {
	setupTestDB(t)

	_, err := UpdateProgressPayment(42, ProgressPaymentUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProgressPaymentNotFound))
}

func TestDeleteProgressPayment_ClearsBackRefs(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(100000))

	a := createExpense(t, db, project.ID, "600.00")
	b := createExpense(t, db, project.ID, "400.00")

	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:      project.ID,
		PaymentNumber:  1,
		Date:           time.Now(),
		TransactionIDs: []uint{a.ID, b.ID},
	})
	require.NoError(t, err)

	_, err = DeleteProgressPayment(payment.ID)
	require.NoError(t, err)

	// Hakediş silinmiş, işlemler duruyor ama referansları temizlenmiş olmalı
	var check models.ProgressPayment
	err = db.First(&check, payment.ID).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	var trA, trB models.Transaction
	require.NoError(t, db.First(&trA, a.ID).Error)
	require.NoError(t, db.First(&trB, b.ID).Error)
	assert.Nil(t, trA.ProgressPaymentID)
	assert.Nil(t, trB.ProgressPaymentID)
}

func TestRemainingAdvance_ExcludePayment(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, decimal.NewFromInt(1000))

	tr := createExpense(t, db, project.ID, "2000.00")
	payment, err := CreateProgressPayment(ProgressPaymentInput{
		ProjectID:            project.ID,
		PaymentNumber:        1,
		Date:                 time.Now(),
		ContractorFeeRate:    decimal.Zero,
		AdvanceDeductionRate: decimal.NewFromInt(15),
		TransactionIDs:       []uint{tr.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", payment.AdvanceDeduction.StringFixed(2))

	balance, err := RemainingAdvance(project.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "300.00", balance.Used.StringFixed(2))
	assert.Equal(t, "700.00", balance.Remaining.StringFixed(2))

	// Düzenlenen hakedişin kendi kesintisi hariç tutulur
	balance, err = RemainingAdvance(project.ID, &payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.Used.StringFixed(2))
	assert.Equal(t, "1000.00", balance.Remaining.StringFixed(2))
}
