package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceTypeSale     InvoiceType = "sale"     // satış faturası
	InvoiceTypePurchase InvoiceType = "purchase" // alış faturası
)

type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
)

// Invoice - Fatura kaydı. TaxAmount ve Total sunucuda yeniden hesaplanır,
// istemciden gelen değere güvenilmez.
type Invoice struct {
	ID              uint        `gorm:"primaryKey"`
	InvoiceNumber   string      `gorm:"size:50;uniqueIndex;not null"`
	Type            InvoiceType `gorm:"size:20;not null;index"` // "sale" veya "purchase"
	ProjectID       *uint       `gorm:"index"`
	Project         *Project
	CustomerID      *uint `gorm:"index"`
	Customer        *Customer
	SubcontractorID *uint `gorm:"index"`
	Subcontractor   *Subcontractor
	Date            time.Time       `gorm:"index;not null"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(14,2);not null"` // KDV hariç tutar
	TaxRate         decimal.Decimal `gorm:"type:numeric(5,2);not null"`  // KDV oranı (%)
	TaxAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null"` // subtotal * tax_rate / 100
	Total           decimal.Decimal `gorm:"type:numeric(14,2);not null"` // subtotal + tax_amount
	Status          InvoiceStatus   `gorm:"size:20;not null;default:unpaid"`
	PaidAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Description     string          `gorm:"size:500"`

	// Bağlı işlem (nullable çapraz referans)
	LinkedTransactionID *uint `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
