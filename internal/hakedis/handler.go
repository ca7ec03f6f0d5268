package hakedis

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
)

type CreateProgressPaymentRequest struct {
	ProjectID            uint             `json:"project_id"`
	PaymentNumber        int              `json:"payment_number"`
	Date                 string           `json:"date"` // "2025-12-09"
	Description          string           `json:"description"`
	ContractorFeeRate    decimal.Decimal  `json:"contractor_fee_rate"`
	AdvanceDeductionRate decimal.Decimal  `json:"advance_deduction_rate"`
	ReceivedAmount       *decimal.Decimal `json:"received_amount"`
	Status               string           `json:"status"`
	TransactionIDs       []uint           `json:"transaction_ids"` // boş olabilir
}

type UpdateProgressPaymentRequest struct {
	PaymentNumber        *int             `json:"payment_number"`
	Date                 *string          `json:"date"`
	Description          *string          `json:"description"`
	ContractorFeeRate    *decimal.Decimal `json:"contractor_fee_rate"`
	AdvanceDeductionRate *decimal.Decimal `json:"advance_deduction_rate"`
	ReceivedAmount       *decimal.Decimal `json:"received_amount"`
	Status               *string          `json:"status"`
	TransactionIDs       *[]uint          `json:"transaction_ids"`
}

type ProgressPaymentResponse struct {
	ID                   uint            `json:"id"`
	ProjectID            uint            `json:"project_id"`
	PaymentNumber        int             `json:"payment_number"`
	Date                 string          `json:"date"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	ContractorFeeRate    decimal.Decimal `json:"contractor_fee_rate"`
	GrossAmount          decimal.Decimal `json:"gross_amount"`
	AdvanceDeductionRate decimal.Decimal `json:"advance_deduction_rate"`
	AdvanceDeduction     decimal.Decimal `json:"advance_deduction"`
	NetPayment           decimal.Decimal `json:"net_payment"`
	ReceivedAmount       decimal.Decimal `json:"received_amount"`
	Status               string          `json:"status"`
	TransactionIDs       []uint          `json:"transaction_ids"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
}

func toProgressPaymentResponse(p *models.ProgressPayment) ProgressPaymentResponse {
	return ProgressPaymentResponse{
		ID:                   p.ID,
		ProjectID:            p.ProjectID,
		PaymentNumber:        p.PaymentNumber,
		Date:                 p.Date.Format("2006-01-02"),
		Description:          p.Description,
		Amount:               p.Amount,
		ContractorFeeRate:    p.ContractorFeeRate,
		GrossAmount:          p.GrossAmount,
		AdvanceDeductionRate: p.AdvanceDeductionRate,
		AdvanceDeduction:     p.AdvanceDeduction,
		NetPayment:           p.NetPayment,
		ReceivedAmount:       p.ReceivedAmount,
		Status:               string(p.Status),
		TransactionIDs:       p.TransactionIDList(),
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
}

func validProgressPaymentStatus(s string) bool {
	return s == string(models.ProgressPaymentStatusDraft) ||
		s == string(models.ProgressPaymentStatusApproved) ||
		s == string(models.ProgressPaymentStatusPaid)
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

// POST /api/progress-payments
func CreateProgressPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProgressPaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if body.ProjectID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "project_id zorunlu")
		}
		if body.PaymentNumber <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "payment_number 0'dan büyük olmalı")
		}
		if body.ContractorFeeRate.IsNegative() || body.AdvanceDeductionRate.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "oranlar negatif olamaz")
		}

		var project models.Project
		if err := database.DB.First(&project, "id = ?", body.ProjectID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Proje bulunamadı")
		}

		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

		status := models.ProgressPaymentStatusDraft
		if body.Status != "" {
			if !validProgressPaymentStatus(body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'draft', 'approved' veya 'paid' olmalı")
			}
			status = models.ProgressPaymentStatus(body.Status)
		}

		received := decimal.Zero
		if body.ReceivedAmount != nil {
			if body.ReceivedAmount.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "received_amount negatif olamaz")
			}
			received = body.ReceivedAmount.Round(2)
		}

		payment, err := CreateProgressPayment(ProgressPaymentInput{
			ProjectID:            body.ProjectID,
			PaymentNumber:        body.PaymentNumber,
			Date:                 d,
			Description:          strings.TrimSpace(body.Description),
			ContractorFeeRate:    body.ContractorFeeRate,
			AdvanceDeductionRate: body.AdvanceDeductionRate,
			ReceivedAmount:       received,
			Status:               status,
			TransactionIDs:       body.TransactionIDs,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidSelection) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Hakediş kaydedilemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &payment.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "progress_payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Hakediş #%d eklendi: net %s TL", payment.PaymentNumber, payment.NetPayment.StringFixed(2)),
				Before:      nil,
				After:       toProgressPaymentResponse(payment),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toProgressPaymentResponse(payment))
	}
}

// GET /api/progress-payments?project_id=...
func ListProgressPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.ProgressPayment{})

		if pidStr := c.Query("project_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "project_id geçersiz")
			}
			dbq = dbq.Where("project_id = ?", pid)
		}

		var payments []models.ProgressPayment
		if err := dbq.Order("payment_number asc, id asc").Find(&payments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hakedişler listelenemedi")
		}

		resp := make([]ProgressPaymentResponse, 0, len(payments))
		for i := range payments {
			resp = append(resp, toProgressPaymentResponse(&payments[i]))
		}

		return c.JSON(resp)
	}
}

// GET /api/progress-payments/:id
func GetProgressPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var payment models.ProgressPayment
		if err := database.DB.First(&payment, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Hakediş bulunamadı")
		}
		return c.JSON(toProgressPaymentResponse(&payment))
	}
}

// PATCH /api/progress-payments/:id
func UpdateProgressPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := c.Params("id")
		var id uint
		if _, err := fmt.Sscan(idStr, &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz hakediş ID")
		}

		var body UpdateProgressPaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		update := ProgressPaymentUpdate{
			PaymentNumber:        body.PaymentNumber,
			ContractorFeeRate:    body.ContractorFeeRate,
			AdvanceDeductionRate: body.AdvanceDeductionRate,
			ReceivedAmount:       body.ReceivedAmount,
			TransactionIDs:       body.TransactionIDs,
		}

		if body.PaymentNumber != nil && *body.PaymentNumber <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "payment_number 0'dan büyük olmalı")
		}
		if body.ContractorFeeRate != nil && body.ContractorFeeRate.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "contractor_fee_rate negatif olamaz")
		}
		if body.AdvanceDeductionRate != nil && body.AdvanceDeductionRate.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "advance_deduction_rate negatif olamaz")
		}
		if body.ReceivedAmount != nil && body.ReceivedAmount.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "received_amount negatif olamaz")
		}

		if body.Date != nil {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			update.Date = &d
		}
		if body.Description != nil {
			desc := strings.TrimSpace(*body.Description)
			update.Description = &desc
		}
		if body.Status != nil {
			if !validProgressPaymentStatus(*body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'draft', 'approved' veya 'paid' olmalı")
			}
			status := models.ProgressPaymentStatus(*body.Status)
			update.Status = &status
		}

		// Audit için önceki hal
		var before models.ProgressPayment
		var beforeData *ProgressPaymentResponse
		if err := database.DB.First(&before, "id = ?", id).Error; err == nil {
			b := toProgressPaymentResponse(&before)
			beforeData = &b
		}

		payment, err := UpdateProgressPayment(id, update)
		if err != nil {
			if errors.Is(err, ErrProgressPaymentNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Hakediş bulunamadı")
			}
			if errors.Is(err, ErrInvalidSelection) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Hakediş güncellenemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &payment.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "progress_payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Hakediş #%d güncellendi", payment.PaymentNumber),
				Before:      beforeData,
				After:       toProgressPaymentResponse(payment),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toProgressPaymentResponse(payment))
	}
}

// DELETE /api/progress-payments/:id
func DeleteProgressPaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := c.Params("id")
		var id uint
		if _, err := fmt.Sscan(idStr, &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz hakediş ID")
		}

		payment, err := DeleteProgressPayment(id)
		if err != nil {
			if errors.Is(err, ErrProgressPaymentNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Hakediş bulunamadı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Hakediş silinemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &payment.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "progress_payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Hakediş #%d silindi: net %s TL", payment.PaymentNumber, payment.NetPayment.StringFixed(2)),
				Before:      toProgressPaymentResponse(payment),
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/projects/:id/remaining-advance?exclude_payment_id=...
func RemainingAdvanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pidStr := c.Params("id")
		var pid uint
		if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz proje ID")
		}

		var excludeID *uint
		if exStr := c.Query("exclude_payment_id"); exStr != "" {
			var ex uint
			if _, err := fmt.Sscan(exStr, &ex); err != nil || ex == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "exclude_payment_id geçersiz")
			}
			excludeID = &ex
		}

		var project models.Project
		if err := database.DB.First(&project, "id = ?", pid).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}

		balance, err := RemainingAdvance(pid, excludeID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Avans bakiyesi hesaplanamadı")
		}

		// Avans tükendiyse kullanıcıya uyarı göster
		exhausted := balance.Remaining.LessThanOrEqual(decimal.Zero)

		return c.JSON(fiber.Map{
			"total":     balance.Total,
			"used":      balance.Used,
			"remaining": balance.Remaining,
			"exhausted": exhausted,
		})
	}
}
