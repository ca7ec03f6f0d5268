package finance

import (
	"errors"
	"fmt"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bağlı kayıt oluşturma hataları. Handler katmanı bunları HTTP koduna çevirir
// (duplicate -> 409, creation -> 500).
var (
	ErrDuplicateInvoiceNumber = errors.New("fatura numarası zaten kayıtlı")
	ErrLinkedRecordCreation   = errors.New("bağlı kayıt oluşturulamadı")
)

var hundred = decimal.NewFromInt(100)

// ComputeInvoiceTotals - KDV tutarı ve toplam sunucuda her kayıtta yeniden hesaplanır.
func ComputeInvoiceTotals(inv *models.Invoice) {
	inv.TaxAmount = inv.Subtotal.Mul(inv.TaxRate).Div(hundred).Round(2)
	inv.Total = inv.Subtotal.Add(inv.TaxAmount)
}

// splitGrossAmount - KDV dahil tutarı matrah + KDV olarak ayırır.
// subtotal = amount / (1 + taxRate/100), iki haneye yuvarlanır.
func splitGrossAmount(amount, taxRate decimal.Decimal) (subtotal, taxAmount decimal.Decimal) {
	divisor := decimal.NewFromInt(1).Add(taxRate.Div(hundred))
	subtotal = amount.DivRound(divisor, 2)
	taxAmount = amount.Sub(subtotal)
	return subtotal, taxAmount
}

// CreateLinkedTransactionAndInvoice - İşlemi kaydeder; createInvoice istendiyse ve
// fatura numarası girildiyse karşılığında faturayı da oluşturup iki kaydı
// çapraz referansla bağlar. Adımlardan biri başarısız olursa hiçbir kayıt kalmaz.
func CreateLinkedTransactionAndInvoice(input models.Transaction, createInvoice bool, invoiceTaxRate decimal.Decimal) (*models.Transaction, error) {
	link := createInvoice && input.InvoiceNumber != ""

	if link {
		// Aktif faturalar arasında aynı numara var mı?
		var count int64
		if err := database.DB.Model(&models.Invoice{}).
			Where("invoice_number = ?", input.InvoiceNumber).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("fatura numarası kontrol edilemedi: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInvoiceNumber, input.InvoiceNumber)
		}
	}

	transaction := input

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&transaction).Error; err != nil {
			return err
		}

		if !link {
			return nil
		}

		subtotal, taxAmount := splitGrossAmount(transaction.Amount, invoiceTaxRate)

		invoiceType := models.InvoiceTypeSale
		if transaction.Type == models.TransactionTypeExpense {
			invoiceType = models.InvoiceTypePurchase
		}

		projectID := transaction.ProjectID
		invoice := models.Invoice{
			InvoiceNumber:       transaction.InvoiceNumber,
			Type:                invoiceType,
			ProjectID:           &projectID,
			CustomerID:          transaction.CustomerID,
			SubcontractorID:     transaction.SubcontractorID,
			Date:                transaction.Date,
			Subtotal:            subtotal,
			TaxRate:             invoiceTaxRate,
			TaxAmount:           taxAmount,
			Total:               transaction.Amount,
			Status:              models.InvoiceStatusPaid,
			PaidAmount:          transaction.Amount,
			Description:         transaction.Description,
			LinkedTransactionID: &transaction.ID,
		}

		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Transaction{}).
			Where("id = ?", transaction.ID).
			Update("linked_invoice_id", invoice.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("işlem güncellenemedi: id=%d", transaction.ID)
		}

		transaction.LinkedInvoiceID = &invoice.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkedRecordCreation, err)
	}

	return &transaction, nil
}

// CreateLinkedInvoiceAndTransaction - Faturayı kaydeder; createTransaction istendiyse
// karşılık gelen gelir/gider işlemini de oluşturup iki kaydı bağlar.
// Satış faturasından doğan işlem hakediş geliri olarak etiketlenir.
func CreateLinkedInvoiceAndTransaction(input models.Invoice, createTransaction bool) (*models.Invoice, error) {
	link := createTransaction && input.ProjectID != nil

	ComputeInvoiceTotals(&input)

	if link {
		// Aynı fatura numarasını taşıyan bir işlem zaten var mı?
		var count int64
		if err := database.DB.Model(&models.Transaction{}).
			Where("invoice_number = ?", input.InvoiceNumber).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("fatura numarası kontrol edilemedi: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInvoiceNumber, input.InvoiceNumber)
		}
	}

	invoice := input

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}

		if !link {
			return nil
		}

		transactionType := models.TransactionTypeIncome
		incomeKind := models.IncomeKindHakedis
		if invoice.Type == models.InvoiceTypePurchase {
			transactionType = models.TransactionTypeExpense
			incomeKind = ""
		}

		transaction := models.Transaction{
			ProjectID:       *invoice.ProjectID,
			Type:            transactionType,
			Amount:          invoice.Total,
			Date:            invoice.Date,
			Description:     invoice.Description,
			IncomeKind:      incomeKind,
			InvoiceNumber:   invoice.InvoiceNumber,
			CustomerID:      invoice.CustomerID,
			SubcontractorID: invoice.SubcontractorID,
			LinkedInvoiceID: &invoice.ID,
		}

		if err := tx.Create(&transaction).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Invoice{}).
			Where("id = ?", invoice.ID).
			Update("linked_transaction_id", transaction.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("fatura güncellenemedi: id=%d", invoice.ID)
		}

		invoice.LinkedTransactionID = &transaction.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkedRecordCreation, err)
	}

	return &invoice, nil
}
