package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type ProgressPaymentStatus string

const (
	ProgressPaymentStatusDraft    ProgressPaymentStatus = "draft"    // taslak
	ProgressPaymentStatusApproved ProgressPaymentStatus = "approved" // onaylandı
	ProgressPaymentStatusPaid     ProgressPaymentStatus = "paid"     // ödendi
)

// ProgressPayment - Hakediş kaydı.
// Amount seçilen gider işlemlerinin toplamıdır; GrossAmount, AdvanceDeduction ve
// NetPayment her kayıtta Amount ve oranlardan yeniden hesaplanır.
type ProgressPayment struct {
	ID            uint `gorm:"primaryKey"`
	ProjectID     uint `gorm:"index;not null"`
	Project       Project
	PaymentNumber int       `gorm:"not null"` // hakediş no (proje içinde sıralı)
	Date          time.Time `gorm:"index;not null"`
	Description   string    `gorm:"size:500"`

	Amount               decimal.Decimal `gorm:"type:numeric(14,2);not null"` // seçilen işlemlerin toplamı
	ContractorFeeRate    decimal.Decimal `gorm:"type:numeric(5,2);not null"`  // müteahhit karı (%)
	GrossAmount          decimal.Decimal `gorm:"type:numeric(14,2);not null"` // amount + amount * fee / 100
	AdvanceDeductionRate decimal.Decimal `gorm:"type:numeric(5,2);not null"`  // avans kesintisi (%), avans bitince 0
	AdvanceDeduction     decimal.Decimal `gorm:"type:numeric(14,2);not null"` // gross * rate / 100
	NetPayment           decimal.Decimal `gorm:"type:numeric(14,2);not null"` // gross - advance_deduction
	ReceivedAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null"` // tahsil edilen

	Status ProgressPaymentStatus `gorm:"size:20;not null;default:draft"`

	// Kapsanan gider işlemlerinin id listesi (jsonb, sıralı)
	TransactionIDs string `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionIDList - jsonb alanındaki id listesini çözer. Boş/bozuk alan boş liste döner.
func (p *ProgressPayment) TransactionIDList() []uint {
	if p.TransactionIDs == "" || p.TransactionIDs == "null" {
		return []uint{}
	}
	var ids []uint
	if err := json.Unmarshal([]byte(p.TransactionIDs), &ids); err != nil {
		return []uint{}
	}
	return ids
}

// SetTransactionIDList - id listesini jsonb alanına yazar.
func (p *ProgressPayment) SetTransactionIDList(ids []uint) {
	if ids == nil {
		ids = []uint{}
	}
	b, _ := json.Marshal(ids)
	p.TransactionIDs = string(b)
}
