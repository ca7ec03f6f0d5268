package hakedis

import (
	"fmt"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/shopspring/decimal"
)

type AdvanceBalance struct {
	Total     decimal.Decimal `json:"total"`     // projeye verilen toplam avans
	Used      decimal.Decimal `json:"used"`      // hakedişlerle kesilen toplam
	Remaining decimal.Decimal `json:"remaining"` // kalan avans
}

// RemainingAdvance - Projenin kalan avansını hesaplar. excludePaymentID verilirse o
// hakedişin kesintisi toplama katılmaz (düzenleme sırasında kendi kesintisi
// kendine karşı sayılmasın diye).
func RemainingAdvance(projectID uint, excludePaymentID *uint) (*AdvanceBalance, error) {
	var project models.Project
	if err := database.DB.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, fmt.Errorf("proje bulunamadı: %w", err)
	}

	var payments []models.ProgressPayment
	if err := database.DB.Where("project_id = ?", projectID).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("hakedişler okunamadı: %w", err)
	}

	used := decimal.Zero
	for _, p := range payments {
		if excludePaymentID != nil && p.ID == *excludePaymentID {
			continue
		}
		used = used.Add(p.AdvanceDeduction)
	}

	return &AdvanceBalance{
		Total:     project.AdvancePayment,
		Used:      used,
		Remaining: project.AdvancePayment.Sub(used),
	}, nil
}
