package partner

import (
	"fmt"
	"strings"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CustomerRequest struct {
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

type SubcontractorRequest struct {
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	IsGrubu   string `json:"is_grubu"`
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name zorunlu")
		}

		customer := models.Customer{
			Name:      body.Name,
			TaxNumber: strings.TrimSpace(body.TaxNumber),
			Phone:     strings.TrimSpace(body.Phone),
			Email:     strings.TrimSpace(body.Email),
			Address:   strings.TrimSpace(body.Address),
		}

		if err := database.DB.Create(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri kaydedilemedi")
		}

		return c.Status(fiber.StatusCreated).JSON(customer)
	}
}

// GET /api/customers
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customers []models.Customer
		if err := database.DB.Order("name asc").Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteriler listelenemedi")
		}
		return c.JSON(customers)
	}
}

// PUT /api/customers/:id
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}

		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name zorunlu")
		}

		customer.Name = body.Name
		customer.TaxNumber = strings.TrimSpace(body.TaxNumber)
		customer.Phone = strings.TrimSpace(body.Phone)
		customer.Email = strings.TrimSpace(body.Email)
		customer.Address = strings.TrimSpace(body.Address)

		if err := database.DB.Save(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri güncellenemedi")
		}

		return c.JSON(customer)
	}
}

// DELETE /api/customers/:id
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Müşteri bulunamadı")
		}

		// Referans veren proje veya işlem varsa silme
		var refCount int64
		database.DB.Model(&models.Project{}).Where("customer_id = ?", customer.ID).Count(&refCount)
		if refCount > 0 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Müşteriye bağlı %d proje var, önce onları güncellemelisin", refCount))
		}

		if err := database.DB.Delete(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Müşteri silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/subcontractors
func CreateSubcontractorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SubcontractorRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name zorunlu")
		}

		sub := models.Subcontractor{
			Name:      body.Name,
			TaxNumber: strings.TrimSpace(body.TaxNumber),
			Phone:     strings.TrimSpace(body.Phone),
			Email:     strings.TrimSpace(body.Email),
			Address:   strings.TrimSpace(body.Address),
			IsGrubu:   strings.TrimSpace(body.IsGrubu),
		}

		if err := database.DB.Create(&sub).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Taşeron kaydedilemedi")
		}

		return c.Status(fiber.StatusCreated).JSON(sub)
	}
}

// GET /api/subcontractors
func ListSubcontractorsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var subs []models.Subcontractor
		if err := database.DB.Order("name asc").Find(&subs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Taşeronlar listelenemedi")
		}
		return c.JSON(subs)
	}
}

// PUT /api/subcontractors/:id
func UpdateSubcontractorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var sub models.Subcontractor
		if err := database.DB.First(&sub, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Taşeron bulunamadı")
		}

		var body SubcontractorRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name zorunlu")
		}

		sub.Name = body.Name
		sub.TaxNumber = strings.TrimSpace(body.TaxNumber)
		sub.Phone = strings.TrimSpace(body.Phone)
		sub.Email = strings.TrimSpace(body.Email)
		sub.Address = strings.TrimSpace(body.Address)
		sub.IsGrubu = strings.TrimSpace(body.IsGrubu)

		if err := database.DB.Save(&sub).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Taşeron güncellenemedi")
		}

		return c.JSON(sub)
	}
}

// DELETE /api/subcontractors/:id
func DeleteSubcontractorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var sub models.Subcontractor
		if err := database.DB.First(&sub, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Taşeron bulunamadı")
		}

		if err := database.DB.Delete(&sub).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Taşeron silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
