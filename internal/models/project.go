package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"    // devam ediyor
	ProjectStatusCompleted ProjectStatus = "completed" // tamamlandı
	ProjectStatusOnHold    ProjectStatus = "on_hold"   // askıda
)

// Project - Şantiye/proje kaydı
type Project struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:150;not null"`
	Code           string `gorm:"size:50;uniqueIndex;not null"` // proje kodu (ör: "IST-2025-01")
	Description    string `gorm:"size:500"`
	CustomerID     *uint  `gorm:"index"`
	Customer       *Customer
	ContractAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"` // sözleşme bedeli
	AdvancePayment decimal.Decimal `gorm:"type:numeric(14,2);not null"` // verilen toplam avans
	StartDate      time.Time       `gorm:"index;not null"`
	EndDate        *time.Time
	Status         ProjectStatus `gorm:"size:20;not null;default:active"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BudgetItem - Proje bütçe kalemi
type BudgetItem struct {
	ID          uint `gorm:"primaryKey"`
	ProjectID   uint `gorm:"index;not null"`
	Project     Project
	IsGrubu     string `gorm:"size:100;not null"` // iş grubu (ör: "Kaba İnşaat")
	RayicGrubu  string `gorm:"size:100"`          // rayiç grubu (ör: "Beton")
	Description string `gorm:"size:255"`
	Quantity    decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	Unit        string          `gorm:"size:20"` // m2, m3, adet, ton...
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalCost   decimal.Decimal `gorm:"type:numeric(14,2);not null"` // quantity * unit_price, kayıtta hesaplanır
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
