package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"santiye-backend/internal/audit"
	"santiye-backend/internal/auth"
	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateTransactionRequest struct {
	ProjectID       uint            `json:"project_id"`
	Type            string          `json:"type"` // "income" veya "expense"
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"` // "2025-12-09"
	Description     string          `json:"description"`
	IsGrubu         string          `json:"is_grubu"`
	RayicGrubu      string          `json:"rayic_grubu"`
	IncomeKind      string          `json:"income_kind"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentMethod   string          `json:"payment_method"`
	CustomerID      *uint           `json:"customer_id"`
	SubcontractorID *uint           `json:"subcontractor_id"`

	// İşlemle birlikte bağlı fatura da oluşturulsun mu?
	CreateInvoice  bool             `json:"create_invoice"`
	InvoiceTaxRate *decimal.Decimal `json:"invoice_tax_rate"` // varsayılan %20
}

type UpdateTransactionRequest struct {
	Type          *string          `json:"type"`
	Amount        *decimal.Decimal `json:"amount"`
	Date          *string          `json:"date"`
	Description   *string          `json:"description"`
	IsGrubu       *string          `json:"is_grubu"`
	RayicGrubu    *string          `json:"rayic_grubu"`
	IncomeKind    *string          `json:"income_kind"`
	PaymentMethod *string          `json:"payment_method"`
}

type TransactionResponse struct {
	ID                uint            `json:"id"`
	ProjectID         uint            `json:"project_id"`
	Type              string          `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Date              string          `json:"date"`
	Description       string          `json:"description"`
	IsGrubu           string          `json:"is_grubu"`
	RayicGrubu        string          `json:"rayic_grubu"`
	IncomeKind        string          `json:"income_kind"`
	InvoiceNumber     string          `json:"invoice_number"`
	PaymentMethod     string          `json:"payment_method"`
	CustomerID        *uint           `json:"customer_id"`
	SubcontractorID   *uint           `json:"subcontractor_id"`
	LinkedInvoiceID   *uint           `json:"linked_invoice_id"`
	ProgressPaymentID *uint           `json:"progress_payment_id"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

func toTransactionResponse(tr *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                tr.ID,
		ProjectID:         tr.ProjectID,
		Type:              string(tr.Type),
		Amount:            tr.Amount,
		Date:              tr.Date.Format("2006-01-02"),
		Description:       tr.Description,
		IsGrubu:           tr.IsGrubu,
		RayicGrubu:        tr.RayicGrubu,
		IncomeKind:        tr.IncomeKind,
		InvoiceNumber:     tr.InvoiceNumber,
		PaymentMethod:     string(tr.PaymentMethod),
		CustomerID:        tr.CustomerID,
		SubcontractorID:   tr.SubcontractorID,
		LinkedInvoiceID:   tr.LinkedInvoiceID,
		ProgressPaymentID: tr.ProgressPaymentID,
		CreatedAt:         tr.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         tr.UpdatedAt.Format(time.RFC3339),
	}
}

// -------------------------
// Yardımcı: Kullanıcı bilgilerini al
// -------------------------
func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

// POST /api/transactions
func CreateTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTransactionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		// Validasyon
		if body.Type != string(models.TransactionTypeIncome) && body.Type != string(models.TransactionTypeExpense) {
			return fiber.NewError(fiber.StatusBadRequest, "type 'income' veya 'expense' olmalı")
		}
		if body.Amount.LessThanOrEqual(decimal.Zero) {
			return fiber.NewError(fiber.StatusBadRequest, "amount 0'dan büyük olmalı")
		}
		if body.ProjectID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "project_id zorunlu")
		}

		var project models.Project
		if err := database.DB.First(&project, "id = ?", body.ProjectID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Proje bulunamadı")
		}

		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

		taxRate := decimal.NewFromInt(20)
		if body.InvoiceTaxRate != nil {
			if body.InvoiceTaxRate.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "invoice_tax_rate negatif olamaz")
			}
			taxRate = *body.InvoiceTaxRate
		}

		input := models.Transaction{
			ProjectID:       body.ProjectID,
			Type:            models.TransactionType(body.Type),
			Amount:          body.Amount.Round(2),
			Date:            d,
			Description:     strings.TrimSpace(body.Description),
			IsGrubu:         strings.TrimSpace(body.IsGrubu),
			RayicGrubu:      strings.TrimSpace(body.RayicGrubu),
			IncomeKind:      strings.TrimSpace(body.IncomeKind),
			InvoiceNumber:   strings.TrimSpace(body.InvoiceNumber),
			PaymentMethod:   models.PaymentMethod(body.PaymentMethod),
			CustomerID:      body.CustomerID,
			SubcontractorID: body.SubcontractorID,
		}

		transaction, err := CreateLinkedTransactionAndInvoice(input, body.CreateInvoice, taxRate)
		if err != nil {
			if errors.Is(err, ErrDuplicateInvoiceNumber) {
				return fiber.NewError(fiber.StatusConflict,
					fmt.Sprintf("%s numaralı fatura zaten kayıtlı, kayıt iptal edildi", input.InvoiceNumber))
			}
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem ve fatura oluşturulamadı, kayıt iptal edildi")
		}

		// Audit log yaz
		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			typeLabel := "Gelir"
			if transaction.Type == models.TransactionTypeExpense {
				typeLabel = "Gider"
			}
			projectIDForLog := &transaction.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "transaction",
				EntityID:    transaction.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("%s eklendi: %s TL - %s", typeLabel, transaction.Amount.StringFixed(2), transaction.Description),
				Before:      nil,
				After:       toTransactionResponse(transaction),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toTransactionResponse(transaction))
	}
}

// GET /api/transactions?project_id=...&type=...&is_grubu=...&from=...&to=...
func ListTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Transaction{})

		if pidStr := c.Query("project_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "project_id geçersiz")
			}
			dbq = dbq.Where("project_id = ?", pid)
		}

		if typeFilter := c.Query("type"); typeFilter != "" {
			if typeFilter != string(models.TransactionTypeIncome) && typeFilter != string(models.TransactionTypeExpense) {
				return fiber.NewError(fiber.StatusBadRequest, "type 'income' veya 'expense' olmalı")
			}
			dbq = dbq.Where("type = ?", typeFilter)
		}

		if isGrubu := c.Query("is_grubu"); isGrubu != "" {
			dbq = dbq.Where("is_grubu = ?", isGrubu)
		}

		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi geçersiz")
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi geçersiz")
			}
			dbq = dbq.Where("date <= ?", to)
		}

		var transactions []models.Transaction
		if err := dbq.Order("date desc, id desc").Find(&transactions).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlemler listelenemedi")
		}

		resp := make([]TransactionResponse, 0, len(transactions))
		for i := range transactions {
			resp = append(resp, toTransactionResponse(&transactions[i]))
		}

		return c.JSON(resp)
	}
}

// GET /api/transactions/:id
func GetTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var tr models.Transaction
		if err := database.DB.First(&tr, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İşlem bulunamadı")
		}
		return c.JSON(toTransactionResponse(&tr))
	}
}

// PUT /api/transactions/:id
func UpdateTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var tr models.Transaction
		if err := database.DB.First(&tr, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İşlem bulunamadı")
		}

		var body UpdateTransactionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		// Hakediş tutarı ve bağlı fatura toplamı işlem tutarından türetilir,
		// bu alanlar bağlantı varken burada değiştirilemez
		if tr.ProgressPaymentID != nil {
			if body.Type != nil && strings.TrimSpace(*body.Type) != string(tr.Type) {
				return fiber.NewError(fiber.StatusBadRequest, "Hakedişe bağlı işlemin türü değiştirilemez")
			}
			if body.Amount != nil && !body.Amount.Round(2).Equal(tr.Amount) {
				return fiber.NewError(fiber.StatusBadRequest, "Hakedişe bağlı işlemin tutarı değiştirilemez, önce hakediş seçimini güncelle")
			}
		}
		if tr.LinkedInvoiceID != nil && body.Amount != nil && !body.Amount.Round(2).Equal(tr.Amount) {
			return fiber.NewError(fiber.StatusBadRequest, "Bağlı faturası olan işlemin tutarı değiştirilemez")
		}

		beforeData := toTransactionResponse(&tr)
		updated := false

		if body.Type != nil {
			typeStr := strings.TrimSpace(*body.Type)
			if typeStr != string(models.TransactionTypeIncome) && typeStr != string(models.TransactionTypeExpense) {
				return fiber.NewError(fiber.StatusBadRequest, "type 'income' veya 'expense' olmalı")
			}
			tr.Type = models.TransactionType(typeStr)
			updated = true
		}

		if body.Amount != nil {
			if body.Amount.LessThanOrEqual(decimal.Zero) {
				return fiber.NewError(fiber.StatusBadRequest, "amount 0'dan büyük olmalı")
			}
			tr.Amount = body.Amount.Round(2)
			updated = true
		}

		if body.Date != nil {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			tr.Date = d
			updated = true
		}

		if body.Description != nil {
			tr.Description = strings.TrimSpace(*body.Description)
			updated = true
		}
		if body.IsGrubu != nil {
			tr.IsGrubu = strings.TrimSpace(*body.IsGrubu)
			updated = true
		}
		if body.RayicGrubu != nil {
			tr.RayicGrubu = strings.TrimSpace(*body.RayicGrubu)
			updated = true
		}
		if body.IncomeKind != nil {
			tr.IncomeKind = strings.TrimSpace(*body.IncomeKind)
			updated = true
		}
		if body.PaymentMethod != nil {
			tr.PaymentMethod = models.PaymentMethod(*body.PaymentMethod)
			updated = true
		}

		if !updated {
			return c.JSON(toTransactionResponse(&tr))
		}

		if err := database.DB.Save(&tr).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem güncellenemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &tr.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "transaction",
				EntityID:    tr.ID,
				Action:      models.AuditActionUpdate,
				Description: "İşlem güncellendi",
				Before:      beforeData,
				After:       toTransactionResponse(&tr),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toTransactionResponse(&tr))
	}
}

// DELETE /api/transactions/:id
func DeleteTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var tr models.Transaction
		if err := database.DB.First(&tr, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İşlem bulunamadı")
		}

		beforeData := toTransactionResponse(&tr)

		// Bağlı fatura varsa önce faturadaki geri referansı temizle,
		// okuyucular silinmiş bir işleme işaret eden fatura görmesin
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if tr.LinkedInvoiceID != nil {
				if err := tx.Model(&models.Invoice{}).
					Where("id = ?", *tr.LinkedInvoiceID).
					Update("linked_transaction_id", nil).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&tr).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem silinemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			typeLabel := "Gelir"
			if tr.Type == models.TransactionTypeExpense {
				typeLabel = "Gider"
			}
			projectIDForLog := &tr.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "transaction",
				EntityID:    tr.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("%s silindi: %s TL", typeLabel, tr.Amount.StringFixed(2)),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
