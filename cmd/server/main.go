package main

import (
	"log"
	"strings"

	"santiye-backend/internal/audit"
	"santiye-backend/internal/auth"
	"santiye-backend/internal/config"
	"santiye-backend/internal/database"
	"santiye-backend/internal/finance"
	"santiye-backend/internal/hakedis"
	"santiye-backend/internal/models"
	"santiye-backend/internal/partner"
	"santiye-backend/internal/project"
	"santiye-backend/internal/report"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Proje yönetimi
	protected.Post("/projects", project.CreateProjectHandler())
	protected.Get("/projects", project.ListProjectsHandler())
	protected.Get("/projects/:id", project.GetProjectHandler())
	protected.Put("/projects/:id", project.UpdateProjectHandler())
	protected.Delete("/projects/:id", project.DeleteProjectHandler())

	// Bütçe kalemleri
	protected.Post("/projects/:id/budget-items", project.CreateBudgetItemHandler())
	protected.Get("/projects/:id/budget-items", project.ListBudgetItemsHandler())
	protected.Put("/budget-items/:id", project.UpdateBudgetItemHandler())
	protected.Delete("/budget-items/:id", project.DeleteBudgetItemHandler())

	// Müşteri & taşeron yönetimi
	protected.Post("/customers", partner.CreateCustomerHandler())
	protected.Get("/customers", partner.ListCustomersHandler())
	protected.Put("/customers/:id", partner.UpdateCustomerHandler())
	protected.Delete("/customers/:id", partner.DeleteCustomerHandler())
	protected.Post("/subcontractors", partner.CreateSubcontractorHandler())
	protected.Get("/subcontractors", partner.ListSubcontractorsHandler())
	protected.Put("/subcontractors/:id", partner.UpdateSubcontractorHandler())
	protected.Delete("/subcontractors/:id", partner.DeleteSubcontractorHandler())

	// Gelir/gider işlemleri (create_invoice ile bağlı fatura oluşturulabilir)
	protected.Post("/transactions", finance.CreateTransactionHandler())
	protected.Get("/transactions", finance.ListTransactionsHandler())
	protected.Get("/transactions/:id", finance.GetTransactionHandler())
	protected.Put("/transactions/:id", finance.UpdateTransactionHandler())
	protected.Delete("/transactions/:id", finance.DeleteTransactionHandler())

	// Faturalar (create_transaction ile bağlı işlem oluşturulabilir)
	protected.Post("/invoices", finance.CreateInvoiceHandler())
	protected.Get("/invoices", finance.ListInvoicesHandler())
	protected.Get("/invoices/:id", finance.GetInvoiceHandler())
	protected.Put("/invoices/:id", finance.UpdateInvoiceHandler())
	protected.Delete("/invoices/:id", finance.DeleteInvoiceHandler())

	// Hakedişler
	protected.Post("/progress-payments", hakedis.CreateProgressPaymentHandler())
	protected.Get("/progress-payments", hakedis.ListProgressPaymentsHandler())
	protected.Get("/progress-payments/:id", hakedis.GetProgressPaymentHandler())
	protected.Patch("/progress-payments/:id", hakedis.UpdateProgressPaymentHandler())
	protected.Delete("/progress-payments/:id", hakedis.DeleteProgressPaymentHandler())

	// Avans bakiyesi & proje özeti
	protected.Get("/projects/:id/remaining-advance", hakedis.RemainingAdvanceHandler())
	protected.Get("/projects/:id/summary", report.ProjectSummaryHandler())

	// Audit logs (geri alma sadece admin)
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())
	adminRoutes := protected.Group("")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))
	adminRoutes.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
