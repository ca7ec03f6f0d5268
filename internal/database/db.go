package database

import (
	"log"

	"santiye-backend/internal/config"
	"santiye-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.Customer{},
		&models.Subcontractor{},
		&models.Project{},
		&models.BudgetItem{},
		&models.Transaction{},
		&models.Invoice{},
		&models.ProgressPayment{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	// Eski kayıtlarda transaction_ids NULL kalmış olabilir; diff mantığı boş liste bekler
	if DB.Migrator().HasTable(&models.ProgressPayment{}) {
		var nullCount int64
		DB.Raw("SELECT COUNT(*) FROM progress_payments WHERE transaction_ids IS NULL").Scan(&nullCount)
		if nullCount > 0 {
			log.Printf("%d hakediş kaydında transaction_ids NULL, '[]' ile güncelleniyor...", nullCount)
			DB.Exec("UPDATE progress_payments SET transaction_ids = '[]' WHERE transaction_ids IS NULL")
		}
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}
