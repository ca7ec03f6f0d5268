package report

import (
	"fmt"
	"time"

	"santiye-backend/internal/database"
	"santiye-backend/internal/hakedis"
	"santiye-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BudgetComparisonItem struct {
	IsGrubu  string          `json:"is_grubu"`
	Budgeted decimal.Decimal `json:"budgeted"` // bütçe kalemleri toplamı
	Actual   decimal.Decimal `json:"actual"`   // gerçekleşen gider toplamı
	Variance decimal.Decimal `json:"variance"` // budgeted - actual
}

type ProjectSummaryResponse struct {
	ProjectID        uint                   `json:"project_id"`
	ProjectName      string                 `json:"project_name"`
	From             string                 `json:"from,omitempty"`
	To               string                 `json:"to,omitempty"`
	TotalIncome      decimal.Decimal        `json:"total_income"`
	TotalExpense     decimal.Decimal        `json:"total_expense"`
	NetResult        decimal.Decimal        `json:"net_result"` // income - expense
	TotalGrossPaid   decimal.Decimal        `json:"total_gross_paid"`
	TotalNetPaid     decimal.Decimal        `json:"total_net_paid"`
	AdvanceTotal     decimal.Decimal        `json:"advance_total"`
	AdvanceUsed      decimal.Decimal        `json:"advance_used"`
	AdvanceRemaining decimal.Decimal        `json:"advance_remaining"`
	BudgetComparison []BudgetComparisonItem `json:"budget_comparison"`
}

// GET /api/projects/:id/summary?from=...&to=...
// Proje finansal özeti: gelir/gider toplamları, hakediş toplamları,
// avans durumu ve iş grubu bazında bütçe-gerçekleşen karşılaştırması.
func ProjectSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		pidStr := c.Params("id")
		var pid uint
		if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz proje ID")
		}

		var project models.Project
		if err := database.DB.First(&project, "id = ?", pid).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Proje bulunamadı")
		}

		dbq := database.DB.Where("project_id = ?", pid)

		fromStr := c.Query("from")
		toStr := c.Query("to")
		if fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi geçersiz")
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi geçersiz")
			}
			dbq = dbq.Where("date <= ?", to)
		}

		var transactions []models.Transaction
		if err := dbq.Find(&transactions).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlemler okunamadı")
		}

		totalIncome := decimal.Zero
		totalExpense := decimal.Zero
		actualByGroup := map[string]decimal.Decimal{}
		for _, tr := range transactions {
			if tr.Type == models.TransactionTypeIncome {
				totalIncome = totalIncome.Add(tr.Amount)
				continue
			}
			totalExpense = totalExpense.Add(tr.Amount)
			if tr.IsGrubu != "" {
				actualByGroup[tr.IsGrubu] = actualByGroup[tr.IsGrubu].Add(tr.Amount)
			}
		}

		var payments []models.ProgressPayment
		if err := database.DB.Where("project_id = ?", pid).Find(&payments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hakedişler okunamadı")
		}

		totalGross := decimal.Zero
		totalNet := decimal.Zero
		for _, p := range payments {
			totalGross = totalGross.Add(p.GrossAmount)
			totalNet = totalNet.Add(p.NetPayment)
		}

		balance, err := hakedis.RemainingAdvance(pid, nil)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Avans bakiyesi hesaplanamadı")
		}

		// İş grubu bazında bütçe-gerçekleşen karşılaştırması
		var budgetItems []models.BudgetItem
		if err := database.DB.Where("project_id = ?", pid).Find(&budgetItems).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe kalemleri okunamadı")
		}

		budgetByGroup := map[string]decimal.Decimal{}
		groupOrder := []string{}
		for _, item := range budgetItems {
			if _, seen := budgetByGroup[item.IsGrubu]; !seen {
				groupOrder = append(groupOrder, item.IsGrubu)
			}
			budgetByGroup[item.IsGrubu] = budgetByGroup[item.IsGrubu].Add(item.TotalCost)
		}
		// Bütçesi olmayan ama gideri olan gruplar da listeye girsin
		for group := range actualByGroup {
			if _, seen := budgetByGroup[group]; !seen {
				groupOrder = append(groupOrder, group)
				budgetByGroup[group] = decimal.Zero
			}
		}

		comparison := make([]BudgetComparisonItem, 0, len(groupOrder))
		for _, group := range groupOrder {
			budgeted := budgetByGroup[group]
			actual := actualByGroup[group]
			comparison = append(comparison, BudgetComparisonItem{
				IsGrubu:  group,
				Budgeted: budgeted,
				Actual:   actual,
				Variance: budgeted.Sub(actual),
			})
		}

		return c.JSON(ProjectSummaryResponse{
			ProjectID:        project.ID,
			ProjectName:      project.Name,
			From:             fromStr,
			To:               toStr,
			TotalIncome:      totalIncome,
			TotalExpense:     totalExpense,
			NetResult:        totalIncome.Sub(totalExpense),
			TotalGrossPaid:   totalGross,
			TotalNetPaid:     totalNet,
			AdvanceTotal:     balance.Total,
			AdvanceUsed:      balance.Used,
			AdvanceRemaining: balance.Remaining,
			BudgetComparison: comparison,
		})
	}
}
