package project

import (
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

type CreateProjectRequest struct {
	Name           string           `json:"name"`
	Code           string           `json:"code"`
	Description    string           `json:"description"`
	CustomerID     *uint            `json:"customer_id"`
	ContractAmount decimal.Decimal  `json:"contract_amount"`
	AdvancePayment *decimal.Decimal `json:"advance_payment"` // verilmemişse 0
	StartDate      string           `json:"start_date"`
	EndDate        *string          `json:"end_date"`
	Status         string           `json:"status"`
}

type UpdateProjectRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	CustomerID     *uint            `json:"customer_id"`
	ContractAmount *decimal.Decimal `json:"contract_amount"`
	AdvancePayment *decimal.Decimal `json:"advance_payment"`
	StartDate      *string          `json:"start_date"`
	EndDate        *string          `json:"end_date"`
	Status         *string          `json:"status"`
}

type ProjectResponse struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	CustomerID     *uint           `json:"customer_id"`
	ContractAmount decimal.Decimal `json:"contract_amount"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`
	StartDate      string          `json:"start_date"`
	EndDate        *string         `json:"end_date"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

func toProjectResponse(p *models.Project) ProjectResponse {
	var endDate *string
	if p.EndDate != nil {
		formatted := p.EndDate.Format("2006-01-02")
		endDate = &formatted
	}
	return ProjectResponse{
		ID:             p.ID,
		Name:           p.Name,
		Code:           p.Code,
		Description:    p.Description,
		CustomerID:     p.CustomerID,
		ContractAmount: p.ContractAmount,
		AdvancePayment: p.AdvancePayment,
		StartDate:      p.StartDate.Format("2006-01-02"),
		EndDate:        endDate,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

func validProjectStatus(s string) bool {
	return s == string(models.ProjectStatusActive) ||
		s == string(models.ProjectStatusCompleted) ||
		s == string(models.ProjectStatusOnHold)
}

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

// POST /api/projects
func CreateProjectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProjectRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Code = strings.TrimSpace(body.Code)
		if body.Name == "" || body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name ve code zorunlu")
		}
		if body.ContractAmount.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "contract_amount negatif olamaz")
		}

		startDate, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date formatı 'YYYY-MM-DD' olmalı")
		}

		var endDate *time.Time
		if body.EndDate != nil && *body.EndDate != "" {
			d, err := time.Parse("2006-01-02", *body.EndDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
			}
			endDate = &d
		}

		status := models.ProjectStatusActive
		if body.Status != "" {
			if !validProjectStatus(body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'active', 'completed' veya 'on_hold' olmalı")
			}
			status = models.ProjectStatus(body.Status)
		}

		advance := decimal.Zero
		if body.AdvancePayment != nil {
			if body.AdvancePayment.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "advance_payment negatif olamaz")
			}
			advance = body.AdvancePayment.Round(2)
		}

		p := models.Project{
			Name:           body.Name,
			Code:           body.Code,
			Description:    strings.TrimSpace(body.Description),
			CustomerID:     body.CustomerID,
			ContractAmount: body.ContractAmount.Round(2),
			AdvancePayment: advance,
			StartDate:      startDate,
			EndDate:        endDate,
			Status:         status,
		}

		if err := database.DB.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Proje kaydedilemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &p.ID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "project",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Proje oluşturuldu: %s", p.Name),
				Before:      nil,
				After:       toProjectResponse(&p),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toProjectResponse(&p))
	}
}

// GET /api/projects?status=...
func ListProjectsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Project{})

		if statusFilter := c.Query("status"); statusFilter != "" {
			if !validProjectStatus(statusFilter) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'active', 'completed' veya 'on_hold' olmalı")
			}
			dbq = dbq.Where("status = ?", statusFilter)
		}

		var projects []models.Project
		if err := dbq.Order("created_at desc").Find(&projects).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Projeler listelenemedi")
		}

		resp := make([]ProjectResponse, 0, len(projects))
		for i := range projects {
			resp = append(resp, toProjectResponse(&projects[i]))
		}

		return c.JSON(resp)
	}
}

// GET /api/projects/:id
func GetProjectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var p models.Project
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}
		return c.JSON(toProjectResponse(&p))
	}
}

// PUT /api/projects/:id
func UpdateProjectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var p models.Project
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}

		var body UpdateProjectRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		beforeData := toProjectResponse(&p)
		updated := false

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
			}
			p.Name = name
			updated = true
		}
		if body.Description != nil {
			p.Description = strings.TrimSpace(*body.Description)
			updated = true
		}
		if body.CustomerID != nil {
			p.CustomerID = body.CustomerID
			updated = true
		}
		if body.ContractAmount != nil {
			if body.ContractAmount.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "contract_amount negatif olamaz")
			}
			p.ContractAmount = body.ContractAmount.Round(2)
			updated = true
		}
		if body.AdvancePayment != nil {
			if body.AdvancePayment.IsNegative() {
				return fiber.NewError(fiber.StatusBadRequest, "advance_payment negatif olamaz")
			}
			p.AdvancePayment = body.AdvancePayment.Round(2)
			updated = true
		}
		if body.StartDate != nil {
			d, err := time.Parse("2006-01-02", *body.StartDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start_date formatı 'YYYY-MM-DD' olmalı")
			}
			p.StartDate = d
			updated = true
		}
		if body.EndDate != nil {
			if *body.EndDate == "" {
				p.EndDate = nil
			} else {
				d, err := time.Parse("2006-01-02", *body.EndDate)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
				}
				p.EndDate = &d
			}
			updated = true
		}
		if body.Status != nil {
			if !validProjectStatus(*body.Status) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'active', 'completed' veya 'on_hold' olmalı")
			}
			p.Status = models.ProjectStatus(*body.Status)
			updated = true
		}

		if !updated {
			return c.JSON(toProjectResponse(&p))
		}

		if err := database.DB.Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Proje güncellenemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &p.ID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "project",
				EntityID:    p.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Proje güncellendi: %s", p.Name),
				Before:      beforeData,
				After:       toProjectResponse(&p),
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toProjectResponse(&p))
	}
}

// DELETE /api/projects/:id
func DeleteProjectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var p models.Project
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}

		// Projeye bağlı finansal kayıt varsa silme
		var trCount int64
		database.DB.Model(&models.Transaction{}).Where("project_id = ?", p.ID).Count(&trCount)
		if trCount > 0 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Projede %d adet işlem kaydı var, önce onları silmelisin", trCount))
		}

		var ppCount int64
		database.DB.Model(&models.ProgressPayment{}).Where("project_id = ?", p.ID).Count(&ppCount)
		if ppCount > 0 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Projede %d adet hakediş kaydı var, önce onları silmelisin", ppCount))
		}

		beforeData := toProjectResponse(&p)

		if err := database.DB.Delete(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Proje silinemedi")
		}

		userID, userName, uErr := getUserInfo(c)
		if uErr == nil {
			projectIDForLog := &p.ID
			if logErr := audit.WriteLog(audit.LogOptions{
				ProjectID:   projectIDForLog,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "project",
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Proje silindi: %s", p.Name),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
