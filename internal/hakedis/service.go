package hakedis

import (
	"errors"
	"fmt"
	"time"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProgressPaymentNotFound = errors.New("hakediş bulunamadı")
	ErrInvalidSelection        = errors.New("geçersiz işlem seçimi")
)

type ProgressPaymentInput struct {
	ProjectID            uint
	PaymentNumber        int
	Date                 time.Time
	Description          string
	ContractorFeeRate    decimal.Decimal
	AdvanceDeductionRate decimal.Decimal
	ReceivedAmount       decimal.Decimal
	Status               models.ProgressPaymentStatus
	TransactionIDs       []uint
}

type ProgressPaymentUpdate struct {
	PaymentNumber        *int
	Date                 *time.Time
	Description          *string
	ContractorFeeRate    *decimal.Decimal
	AdvanceDeductionRate *decimal.Decimal
	ReceivedAmount       *decimal.Decimal
	Status               *models.ProgressPaymentStatus
	TransactionIDs       *[]uint
}

// sumSelectedTransactions - Seçilen işlemlerin toplamını döner. Tüm id'ler var olmalı,
// hepsi gider tipinde ve aynı projeye ait olmalı.
func sumSelectedTransactions(projectID uint, ids []uint) (decimal.Decimal, error) {
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	var transactions []models.Transaction
	if err := database.DB.Where("id IN ?", ids).Find(&transactions).Error; err != nil {
		return decimal.Zero, fmt.Errorf("işlemler okunamadı: %w", err)
	}
	if len(transactions) != len(ids) {
		return decimal.Zero, fmt.Errorf("%w: bazı işlemler bulunamadı", ErrInvalidSelection)
	}

	total := decimal.Zero
	for _, tr := range transactions {
		if tr.Type != models.TransactionTypeExpense {
			return decimal.Zero, fmt.Errorf("%w: işlem %d gider tipinde değil", ErrInvalidSelection, tr.ID)
		}
		if tr.ProjectID != projectID {
			return decimal.Zero, fmt.Errorf("%w: işlem %d başka bir projeye ait", ErrInvalidSelection, tr.ID)
		}
		total = total.Add(tr.Amount)
	}

	return total, nil
}

// clampAdvanceRate - Projenin kalan avansı bittiyse kesinti oranı 0'a çekilir.
func clampAdvanceRate(projectID uint, excludePaymentID *uint, rate decimal.Decimal) (decimal.Decimal, error) {
	balance, err := RemainingAdvance(projectID, excludePaymentID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.Remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}
	return rate, nil
}

// CreateProgressPayment - Hakedişi kaydeder ve seçilen işlemlerin geri referansını
// (progress_payment_id) aynı veritabanı transaction'ı içinde günceller.
func CreateProgressPayment(input ProgressPaymentInput) (*models.ProgressPayment, error) {
	amount, err := sumSelectedTransactions(input.ProjectID, input.TransactionIDs)
	if err != nil {
		return nil, err
	}

	advanceRate, err := clampAdvanceRate(input.ProjectID, nil, input.AdvanceDeductionRate)
	if err != nil {
		return nil, err
	}

	gross, deduction, net := ComputeAmounts(amount, input.ContractorFeeRate, advanceRate)

	payment := models.ProgressPayment{
		ProjectID:            input.ProjectID,
		PaymentNumber:        input.PaymentNumber,
		Date:                 input.Date,
		Description:          input.Description,
		Amount:               amount,
		ContractorFeeRate:    input.ContractorFeeRate,
		GrossAmount:          gross,
		AdvanceDeductionRate: advanceRate,
		AdvanceDeduction:     deduction,
		NetPayment:           net,
		ReceivedAmount:       input.ReceivedAmount,
		Status:               input.Status,
	}
	payment.SetTransactionIDList(input.TransactionIDs)

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if len(input.TransactionIDs) > 0 {
			if err := tx.Model(&models.Transaction{}).
				Where("id IN ?", input.TransactionIDs).
				Update("progress_payment_id", payment.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hakediş kaydedilemedi: %w", err)
	}

	return &payment, nil
}

// UpdateProgressPayment - Kısmi güncelleme. transaction_ids değişiyorsa eski/yeni
// kümeler diff'lenir: çıkarılanların geri referansı temizlenir, yeni kümenin tamamına
// hakediş id'si yazılır; bu adım hakediş satırı güncellenmeden önce çalışır.
func UpdateProgressPayment(id uint, update ProgressPaymentUpdate) (*models.ProgressPayment, error) {
	var payment models.ProgressPayment
	if err := database.DB.First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgressPaymentNotFound
		}
		return nil, fmt.Errorf("hakediş okunamadı: %w", err)
	}

	oldIDs := payment.TransactionIDList()
	newIDs := oldIDs
	idsChanged := false
	if update.TransactionIDs != nil {
		newIDs = *update.TransactionIDs
		idsChanged = true
	}

	// Seçim değiştiyse tutar yeni kümeden yeniden hesaplanır
	amount := payment.Amount
	if idsChanged {
		var err error
		amount, err = sumSelectedTransactions(payment.ProjectID, newIDs)
		if err != nil {
			return nil, err
		}
	}

	if update.PaymentNumber != nil {
		payment.PaymentNumber = *update.PaymentNumber
	}
	if update.Date != nil {
		payment.Date = *update.Date
	}
	if update.Description != nil {
		payment.Description = *update.Description
	}
	if update.ContractorFeeRate != nil {
		payment.ContractorFeeRate = *update.ContractorFeeRate
	}
	if update.AdvanceDeductionRate != nil {
		payment.AdvanceDeductionRate = *update.AdvanceDeductionRate
	}
	if update.ReceivedAmount != nil {
		payment.ReceivedAmount = *update.ReceivedAmount
	}
	if update.Status != nil {
		payment.Status = *update.Status
	}

	// Kendi kesintisi hariç kalan avansa göre oran sıfırlanabilir
	excludeID := payment.ID
	advanceRate, err := clampAdvanceRate(payment.ProjectID, &excludeID, payment.AdvanceDeductionRate)
	if err != nil {
		return nil, err
	}
	payment.AdvanceDeductionRate = advanceRate

	payment.Amount = amount
	payment.GrossAmount, payment.AdvanceDeduction, payment.NetPayment =
		ComputeAmounts(amount, payment.ContractorFeeRate, payment.AdvanceDeductionRate)
	payment.SetTransactionIDList(newIDs)

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if idsChanged {
			newSet := make(map[uint]bool, len(newIDs))
			for _, tid := range newIDs {
				newSet[tid] = true
			}

			var removed []uint
			for _, tid := range oldIDs {
				if !newSet[tid] {
					removed = append(removed, tid)
				}
			}

			if len(removed) > 0 {
				if err := tx.Model(&models.Transaction{}).
					Where("id IN ?", removed).
					Update("progress_payment_id", nil).Error; err != nil {
					return err
				}
			}
			if len(newIDs) > 0 {
				if err := tx.Model(&models.Transaction{}).
					Where("id IN ?", newIDs).
					Update("progress_payment_id", payment.ID).Error; err != nil {
					return err
				}
			}
		}

		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, fmt.Errorf("hakediş güncellenemedi: %w", err)
	}

	return &payment, nil
}

// DeleteProgressPayment - Önce kapsanan işlemlerin geri referansları temizlenir,
// sonra hakediş satırı silinir; silinmiş bir hakedişe işaret eden işlem kalmaz.
// İşlemlerin kendisi asla silinmez.
func DeleteProgressPayment(id uint) (*models.ProgressPayment, error) {
	var payment models.ProgressPayment
	if err := database.DB.First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProgressPaymentNotFound
		}
		return nil, fmt.Errorf("hakediş okunamadı: %w", err)
	}

	ids := payment.TransactionIDList()

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			if err := tx.Model(&models.Transaction{}).
				Where("id IN ?", ids).
				Update("progress_payment_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&payment).Error
	})
	if err != nil {
		return nil, fmt.Errorf("hakediş silinemedi: %w", err)
	}

	return &payment, nil
}
