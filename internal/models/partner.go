package models

import "time"

// Customer - İşveren/müşteri kaydı
type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null"`
	TaxNumber string `gorm:"size:20"` // vergi no (opsiyonel)
	Phone     string `gorm:"size:50"`
	Email     string `gorm:"size:100"`
	Address   string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subcontractor - Taşeron kaydı
type Subcontractor struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null"`
	TaxNumber string `gorm:"size:20"`
	Phone     string `gorm:"size:50"`
	Email     string `gorm:"size:100"`
	Address   string `gorm:"size:255"`
	IsGrubu   string `gorm:"size:100"` // taşeronun çalıştığı iş grubu
	CreatedAt time.Time
	UpdatedAt time.Time
}
