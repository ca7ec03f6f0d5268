package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"santiye-backend/internal/audit"
	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	InvoiceNumber   string          `json:"invoice_number"`
	Type            string          `json:"type"` // "sale" veya "purchase"
	ProjectID       *uint           `json:"project_id"`
	CustomerID      *uint           `json:"customer_id"`
	SubcontractorID *uint           `json:"subcontractor_id"`
	Date            string          `json:"date"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Status          string          `json:"status"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Description     string          `json:"description"`

	// Faturayla birlikte bağlı gelir/gider işlemi de oluşturulsun mu?
	CreateTransaction bool `json:"create_transaction"`
}

type UpdateInvoiceRequest struct {
	Date        *string          `json:"date"`
	Subtotal    *decimal.Decimal `json:"subtotal"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	Status      *string          `json:"status"`
	PaidAmount  *decimal.Decimal `json:"paid_amount"`
	Description *string          `json:"description"`
}

type InvoiceResponse struct {
	ID                  uint            `json:"id"`
	InvoiceNumber       string          `json:"invoice_number"`
	Type                string          `json:"type"`
	ProjectID           *uint           `json:"project_id"`
	CustomerID          *uint           `json:"customer_id"`
	SubcontractorID     *uint           `json:"subcontractor_id"`
	Date                string          `json:"date"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	Total               decimal.Decimal `json:"total"`
	Status              string          `json:"status"`
	PaidAmount          decimal.Decimal `json:"paid_amount"`
	Description         string          `json:"description"`
	LinkedTransactionID *uint           `json:"linked_transaction_id"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

func toInvoiceResponse(inv *models.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                  inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		Type:                string(inv.Type),
		ProjectID:           inv.ProjectID,
		CustomerID:          inv.CustomerID,
		SubcontractorID:     inv.SubcontractorID,
		Date:                inv.Date.Format("2006-01-02"),
		Subtotal:            inv.Subtotal,
		TaxRate:             inv.TaxRate,
		TaxAmount:           inv.TaxAmount,
		Total:               inv.Total,
		Status:              string(inv.Status),
		PaidAmount:          inv.PaidAmount,
		Description:         inv.Description,
		LinkedTransactionID: inv.LinkedTransactionID,
		CreatedAt:           inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           inv.UpdatedAt.Format(time.RFC3339),
	}
}

func validInvoiceStatus(s string) bool {
	return s == string(models.InvoiceStatusPaid) ||
		s == string(models.InvoiceStatusUnpaid) ||
		s == string(models.InvoiceStatusPartial)
}

// POST /api/invoices
func CreateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.InvoiceNumber = strings.TrimSpace(body.InvoiceNumber)
		if body.InvoiceNumber == "" {
			return fiber.NewError(fiber.StatusBadRequest, "invoice_number zorunlu")
		}
		if body.Type != string(models.InvoiceTypeSale) && body.Type != string(models.InvoiceTypePurchase) {
			return fiber.NewError(fiber.StatusBadRequest, "type 'sale' veya 'purchase' olmalı")
		}
		if body.Subtotal.LessThanOrEqual(decimal.Zero) {
			return fiber.NewError(fiber.StatusBadRequest, "subtotal 0'dan büyük olmalı")
		}
		if body.TaxRate.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "tax_rate negatif olamaz")
		}
		if body.CreateTransaction && body.ProjectID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bağlı işlem için project_id zorunlu")
		}

		status := models.InvoiceStatusUnpaid
		if body.Status != "" {
			if !validInvoiceStatus(body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'paid', 'unpaid' veya 'partial' olmalı")
			}
			status = models.InvoiceStatus(body.Status)
		}

		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

		// Duplicate fatura numarası (aktif faturalar içinde)
		var count int64
		if err := database.DB.Model(&models.Invoice{}).
			Where("invoice_number = ?", body.InvoiceNumber).
			Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fatura numarası kontrol edilemedi")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("%s numaralı fatura zaten kayıtlı", body.InvoiceNumber))
		}

		input := models.Invoice{
			InvoiceNumber:   body.InvoiceNumber,
			Type:            models.InvoiceType(body.Type),
			ProjectID:       body.ProjectID,
			CustomerID:      body.CustomerID,
			SubcontractorID: body.SubcontractorID,
			Date:            d,
			Subtotal:        body.Subtotal.Round(2),
			TaxRate:         body.TaxRate,
			Status:          status,
			PaidAmount:      body.PaidAmount.Round(2),
			Description:     strings.TrimSpace(body.Description),
		}

		invoice, err := CreateLinkedInvoiceAndTransaction(input, body.CreateTransaction)
		if err != nil {
			if errors.Is(err, ErrDuplicateInvoiceNumber) {
				return fiber.NewError(fiber.StatusConflict,
					fmt.Sprintf("%s numaralı fatura zaten kayıtlı, kayıt iptal edildi", input.InvoiceNumber))
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Fatura ve işlem oluşturulamadı, kayıt iptal edildi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			typeLabel := "Satış faturası"
			if invoice.Type == models.InvoiceTypePurchase {
				typeLabel = "Alış faturası"
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   invoice.ProjectID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "invoice",
				EntityID:    invoice.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("%s eklendi: %s - %s TL", typeLabel, invoice.InvoiceNumber, invoice.Total.StringFixed(2)),
				Before:      nil,
				After:       toInvoiceResponse(invoice),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toInvoiceResponse(invoice))
	}
}

// GET /api/invoices?project_id=...&type=...&status=...
func ListInvoicesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Invoice{})

		if pidStr := c.Query("project_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "project_id geçersiz")
			}
			dbq = dbq.Where("project_id = ?", pid)
		}

		if typeFilter := c.Query("type"); typeFilter != "" {
			if typeFilter != string(models.InvoiceTypeSale) && typeFilter != string(models.InvoiceTypePurchase) {
				return fiber.NewError(fiber.StatusBadRequest, "type 'sale' veya 'purchase' olmalı")
			}
			dbq = dbq.Where("type = ?", typeFilter)
		}

		if statusFilter := c.Query("status"); statusFilter != "" {
			if !validInvoiceStatus(statusFilter) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'paid', 'unpaid' veya 'partial' olmalı")
			}
			dbq = dbq.Where("status = ?", statusFilter)
		}

		var invoices []models.Invoice
		if err := dbq.Order("date desc, id desc").Find(&invoices).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Faturalar listelenemedi")
		}

		resp := make([]InvoiceResponse, 0, len(invoices))
		for i := range invoices {
			resp = append(resp, toInvoiceResponse(&invoices[i]))
		}

		return c.JSON(resp)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var inv models.Invoice
		if err := database.DB.First(&inv, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fatura bulunamadı")
		}
		return c.JSON(toInvoiceResponse(&inv))
	}
}

// PUT /api/invoices/:id
func UpdateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var inv models.Invoice
		if err := database.DB.First(&inv, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fatura bulunamadı")
		}

		var body UpdateInvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		beforeData := toInvoiceResponse(&inv)
		updated := false

		if body.Date != nil {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			inv.Date = d
			updated = true
		}

		if body.Subtotal != nil {
			if body.Subtotal.LessThanOrEqual(decimal.Zero) {
				return fiber.NewError(fiber.StatusBadRequest, "subtotal 0'dan büyük olmalı")
			}
			inv.Subtotal = body.Subtotal.Round(2)
			updated = true
		}

		if body.TaxRate != nil {
			if body.TaxRate.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "tax_rate negatif olamaz")
			}
			inv.TaxRate = *body.TaxRate
			updated = true
		}

		if body.Status != nil {
			if !validInvoiceStatus(*body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'paid', 'unpaid' veya 'partial' olmalı")
			}
			inv.Status = models.InvoiceStatus(*body.Status)
			updated = true
		}

		if body.PaidAmount != nil {
			if body.PaidAmount.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "paid_amount negatif olamaz")
			}
			inv.PaidAmount = body.PaidAmount.Round(2)
			updated = true
		}

		if body.Description != nil {
			inv.Description = strings.TrimSpace(*body.Description)
			updated = true
		}

		if !updated {
			return c.JSON(toInvoiceResponse(&inv))
		}

		// Türetilen alanlar her kayıtta yeniden hesaplanır
		ComputeInvoiceTotals(&inv)

		if err := database.DB.Save(&inv).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fatura güncellenemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   inv.ProjectID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "invoice",
				EntityID:    inv.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Fatura güncellendi: %s", inv.InvoiceNumber),
				Before:      beforeData,
				After:       toInvoiceResponse(&inv),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toInvoiceResponse(&inv))
	}
}

// DELETE /api/invoices/:id
func DeleteInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var inv models.Invoice
		if err := database.DB.First(&inv, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fatura bulunamadı")
		}

		beforeData := toInvoiceResponse(&inv)

		// Bağlı işlem varsa önce işlemdeki geri referansı temizle
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if inv.LinkedTransactionID != nil {
				if err := tx.Model(&models.Transaction{}).
					Where("id = ?", *inv.LinkedTransactionID).
					Update("linked_invoice_id", nil).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&inv).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fatura silinemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   inv.ProjectID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "invoice",
				EntityID:    inv.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Fatura silindi: %s - %s TL", inv.InvoiceNumber, inv.Total.StringFixed(2)),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
