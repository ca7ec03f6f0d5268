package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"  // gelir
	TransactionTypeExpense TransactionType = "expense" // gider
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"     // nakit
	PaymentMethodTransfer PaymentMethod = "transfer" // havale/EFT
	PaymentMethodCheck    PaymentMethod = "check"    // çek
)

// Hakediş faturası üzerinden oluşturulan gelir işlemlerine basılan sabit etiket
const IncomeKindHakedis = "hakedis_geliri"

// Transaction - Proje gelir/gider işlemi
type Transaction struct {
	ID          uint `gorm:"primaryKey"`
	ProjectID   uint `gorm:"index;not null"`
	Project     Project
	Type        TransactionType `gorm:"size:20;not null;index"` // "income" veya "expense"
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Date        time.Time       `gorm:"index;not null"`
	Description string          `gorm:"size:500"`
	IsGrubu     string          `gorm:"size:100"` // iş grubu
	RayicGrubu  string          `gorm:"size:100"` // rayiç grubu
	IncomeKind  string          `gorm:"size:50"`  // gelir türü (sadece income için)

	InvoiceNumber   string        `gorm:"size:50;index"` // bağlı fatura numarası (opsiyonel)
	PaymentMethod   PaymentMethod `gorm:"size:20"`
	CustomerID      *uint         `gorm:"index"`
	Customer        *Customer
	SubcontractorID *uint `gorm:"index"`
	Subcontractor   *Subcontractor

	// Çapraz referanslar: bağlı fatura ve hakediş (nullable)
	LinkedInvoiceID   *uint `gorm:"index"`
	ProgressPaymentID *uint `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
