package project

import (
	"fmt"
	"strings"
	"time"

	"santiye-backend/internal/audit"
	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateBudgetItemRequest struct {
	IsGrubu     string          `json:"is_grubu"`
	RayicGrubu  string          `json:"rayic_grubu"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type UpdateBudgetItemRequest struct {
	IsGrubu     *string          `json:"is_grubu"`
	RayicGrubu  *string          `json:"rayic_grubu"`
	Description *string          `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Unit        *string          `json:"unit"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type BudgetItemResponse struct {
	ID          uint            `json:"id"`
	ProjectID   uint            `json:"project_id"`
	IsGrubu     string          `json:"is_grubu"`
	RayicGrubu  string          `json:"rayic_grubu"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	CreatedAt   string          `json:"created_at"`
}

func toBudgetItemResponse(item *models.BudgetItem) BudgetItemResponse {
	return BudgetItemResponse{
		ID:          item.ID,
		ProjectID:   item.ProjectID,
		IsGrubu:     item.IsGrubu,
		RayicGrubu:  item.RayicGrubu,
		Description: item.Description,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		UnitPrice:   item.UnitPrice,
		TotalCost:   item.TotalCost,
		CreatedAt:   item.CreatedAt.Format(time.RFC3339),
	}
}

// POST /api/projects/:id/budget-items
func CreateBudgetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pidStr := c.Params("id")
		var pid uint
		if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz proje ID")
		}

		var p models.Project
		if err := database.DB.First(&p, "id = ?", pid).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}

		var body CreateBudgetItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.IsGrubu = strings.TrimSpace(body.IsGrubu)
		if body.IsGrubu == "" {
			return fiber.NewError(fiber.StatusBadRequest, "is_grubu zorunlu")
		}
		if body.Quantity.LessThanOrEqual(decimal.Zero) {
			return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
		}
		if body.UnitPrice.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "unit_price negatif olamaz")
		}

		item := models.BudgetItem{
			ProjectID:   pid,
			IsGrubu:     body.IsGrubu,
			RayicGrubu:  strings.TrimSpace(body.RayicGrubu),
			Description: strings.TrimSpace(body.Description),
			Quantity:    body.Quantity,
			Unit:        strings.TrimSpace(body.Unit),
			UnitPrice:   body.UnitPrice.Round(2),
			// Toplam istemciden alınmaz, kayıtta hesaplanır
			TotalCost: body.Quantity.Mul(body.UnitPrice).Round(2),
		}

		if err := database.DB.Create(&item).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe kalemi kaydedilemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &item.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "budget_item",
				EntityID:    item.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Bütçe kalemi eklendi: %s", item.IsGrubu),
				Before:      nil,
				After:       toBudgetItemResponse(&item),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toBudgetItemResponse(&item))
	}
}

// GET /api/projects/:id/budget-items
func ListBudgetItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pidStr := c.Params("id")
		var pid uint
		if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz proje ID")
		}

		var items []models.BudgetItem
		if err := database.DB.Where("project_id = ?", pid).
			Order("is_grubu asc, id asc").
			Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe kalemleri listelenemedi")
		}

		resp := make([]BudgetItemResponse, 0, len(items))
		for i := range items {
			resp = append(resp, toBudgetItemResponse(&items[i]))
		}

		return c.JSON(resp)
	}
}

// PUT /api/budget-items/:id
func UpdateBudgetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var item models.BudgetItem
		if err := database.DB.First(&item, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Bütçe kalemi bulunamadı")
		}

		var body UpdateBudgetItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		beforeData := toBudgetItemResponse(&item)
		updated := false

		if body.IsGrubu != nil {
			isGrubu := strings.TrimSpace(*body.IsGrubu)
			if isGrubu == "" {
				return fiber.NewError(fiber.StatusBadRequest, "is_grubu boş olamaz")
			}
			item.IsGrubu = isGrubu
			updated = true
		}
		if body.RayicGrubu != nil {
			item.RayicGrubu = strings.TrimSpace(*body.RayicGrubu)
			updated = true
		}
		if body.Description != nil {
			item.Description = strings.TrimSpace(*body.Description)
			updated = true
		}
		if body.Quantity != nil {
			if body.Quantity.LessThanOrEqual(decimal.Zero) {
				return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
			}
			item.Quantity = *body.Quantity
			updated = true
		}
		if body.Unit != nil {
			item.Unit = strings.TrimSpace(*body.Unit)
			updated = true
		}
		if body.UnitPrice != nil {
			if body.UnitPrice.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "unit_price negatif olamaz")
			}
			item.UnitPrice = body.UnitPrice.Round(2)
			updated = true
		}

		if !updated {
			return c.JSON(toBudgetItemResponse(&item))
		}

		item.TotalCost = item.Quantity.Mul(item.UnitPrice).Round(2)

		if err := database.DB.Save(&item).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe kalemi güncellenemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &item.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "budget_item",
				EntityID:    item.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Bütçe kalemi güncellendi: %s", item.IsGrubu),
				Before:      beforeData,
				After:       toBudgetItemResponse(&item),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toBudgetItemResponse(&item))
	}
}

// DELETE /api/budget-items/:id
func DeleteBudgetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var item models.BudgetItem
		if err := database.DB.First(&item, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Bütçe kalemi bulunamadı")
		}

		beforeData := toBudgetItemResponse(&item)

		if err := database.DB.Delete(&item).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe kalemi silinemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &item.ProjectID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "budget_item",
				EntityID:    item.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Bütçe kalemi silindi: %s", item.IsGrubu),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
