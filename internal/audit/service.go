package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"santiye-backend/internal/database"
	"santiye-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LogOptions struct {
	ProjectID   *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		ProjectID:   opts.ProjectID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
		Undone:      false,
		IsUndone:    false,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}

// UndoLog - Bir audit log'u geri al
func UndoLog(logID uint, userID uint, userName string) error {
	var log models.AuditLog
	if err := database.DB.First(&log, "id = ?", logID).Error; err != nil {
		return fmt.Errorf("log bulunamadı: %w", err)
	}

	if log.IsUndone {
		return fmt.Errorf("bu işlem zaten geri alınmış")
	}

	switch log.Action {
	case models.AuditActionCreate:
		// Create ise entity'yi sil
		if err := deleteEntity(log.EntityType, log.EntityID); err != nil {
			return fmt.Errorf("entity silinemedi: %w", err)
		}

	case models.AuditActionUpdate:
		// Update ise önceki haline geri döndür
		if err := restoreEntity(log.EntityType, log.EntityID, log.BeforeData); err != nil {
			return fmt.Errorf("entity geri yüklenemedi: %w", err)
		}

	case models.AuditActionDelete:
		// Delete ise entity'yi son halinden (before) geri oluştur
		if err := recreateEntity(log.EntityType, log.BeforeData); err != nil {
			return fmt.Errorf("entity geri oluşturulamadı: %w", err)
		}

	default:
		return fmt.Errorf("bu işlem türü geri alınamaz")
	}

	now := time.Now()
	log.IsUndone = true
	log.UndoneBy = &userID
	log.UndoneAt = &now

	if err := database.DB.Save(&log).Error; err != nil {
		return fmt.Errorf("log güncellenemedi: %w", err)
	}

	undoLog := models.AuditLog{
		ProjectID:   log.ProjectID,
		UserID:      userID,
		UserName:    userName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      models.AuditActionUndo,
		Description: fmt.Sprintf("Geri alındı: %s", log.Description),
		BeforeData:  log.AfterData,
		AfterData:   log.BeforeData,
		Undone:      true,
		IsUndone:    false,
	}

	if err := database.DB.Create(&undoLog).Error; err != nil {
		return fmt.Errorf("undo log kaydedilemedi: %w", err)
	}

	return nil
}

func deleteEntity(entityType string, entityID uint) error {
	switch entityType {
	case "transaction":
		var tr models.Transaction
		if err := database.DB.First(&tr, "id = ?", entityID).Error; err != nil {
			return err
		}
		// Bağlı fatura varsa önce bağlantıyı çözmek gerekir
		if tr.LinkedInvoiceID != nil {
			return fmt.Errorf("bağlı faturası olan işlem geri alınamaz")
		}
		return database.DB.Delete(&models.Transaction{}, "id = ?", entityID).Error
	case "invoice":
		var inv models.Invoice
		if err := database.DB.First(&inv, "id = ?", entityID).Error; err != nil {
			return err
		}
		if inv.LinkedTransactionID != nil {
			return fmt.Errorf("bağlı işlemi olan fatura geri alınamaz")
		}
		return database.DB.Delete(&models.Invoice{}, "id = ?", entityID).Error
	case "progress_payment":
		var payment models.ProgressPayment
		if err := database.DB.First(&payment, "id = ?", entityID).Error; err != nil {
			return err
		}
		// Kapsanan işlemlerin geri referanslarını temizle, sonra sil
		ids := payment.TransactionIDList()
		if len(ids) > 0 {
			if err := database.DB.Model(&models.Transaction{}).
				Where("id IN ?", ids).
				Update("progress_payment_id", nil).Error; err != nil {
				return err
			}
		}
		return database.DB.Delete(&models.ProgressPayment{}, "id = ?", entityID).Error
	case "budget_item":
		return database.DB.Delete(&models.BudgetItem{}, "id = ?", entityID).Error
	case "project":
		var trCount int64
		database.DB.Model(&models.Transaction{}).Where("project_id = ?", entityID).Count(&trCount)
		if trCount > 0 {
			return fmt.Errorf("işlem kaydı olan proje geri alınamaz")
		}
		var ppCount int64
		database.DB.Model(&models.ProgressPayment{}).Where("project_id = ?", entityID).Count(&ppCount)
		if ppCount > 0 {
			return fmt.Errorf("hakediş kaydı olan proje geri alınamaz")
		}
		return database.DB.Delete(&models.Project{}, "id = ?", entityID).Error
	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}

// Loglardaki before/after verisi handler response formatında tutulur
// (snake_case alanlar, tarih "YYYY-MM-DD"). Geri alma bu formatı çözer.
type transactionSnapshot struct {
	ProjectID       uint            `json:"project_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	IsGrubu         string          `json:"is_grubu"`
	RayicGrubu      string          `json:"rayic_grubu"`
	IncomeKind      string          `json:"income_kind"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentMethod   string          `json:"payment_method"`
	CustomerID      *uint           `json:"customer_id"`
	SubcontractorID *uint           `json:"subcontractor_id"`
}

type invoiceSnapshot struct {
	InvoiceNumber   string          `json:"invoice_number"`
	Type            string          `json:"type"`
	ProjectID       *uint           `json:"project_id"`
	CustomerID      *uint           `json:"customer_id"`
	SubcontractorID *uint           `json:"subcontractor_id"`
	Date            string          `json:"date"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Description     string          `json:"description"`
}

type budgetItemSnapshot struct {
	ProjectID   uint            `json:"project_id"`
	IsGrubu     string          `json:"is_grubu"`
	RayicGrubu  string          `json:"rayic_grubu"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

type progressPaymentSnapshot struct {
	ProjectID            uint            `json:"project_id"`
	PaymentNumber        int             `json:"payment_number"`
	Date                 string          `json:"date"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	ContractorFeeRate    decimal.Decimal `json:"contractor_fee_rate"`
	GrossAmount          decimal.Decimal `json:"gross_amount"`
	AdvanceDeductionRate decimal.Decimal `json:"advance_deduction_rate"`
	AdvanceDeduction     decimal.Decimal `json:"advance_deduction"`
	NetPayment           decimal.Decimal `json:"net_payment"`
	ReceivedAmount       decimal.Decimal `json:"received_amount"`
	Status               string          `json:"status"`
	TransactionIDs       []uint          `json:"transaction_ids"`
}

type projectSnapshot struct {
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	CustomerID     *uint           `json:"customer_id"`
	ContractAmount decimal.Decimal `json:"contract_amount"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`
	StartDate      string          `json:"start_date"`
	EndDate        *string         `json:"end_date"`
	Status         string          `json:"status"`
}

func parseSnapshotDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// a'da olup b'de olmayan id'ler
func idDiff(a, b []uint) []uint {
	inB := make(map[uint]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []uint
	for _, id := range a {
		if !inB[id] {
			out = append(out, id)
		}
	}
	return out
}

// Hakediş geri alınırken snapshot'taki işlemler hâlâ mevcut ve başka bir
// hakedişe bağlanmamış olmalı. selfID düzenlenmekte olan hakediştir (0 = yeni).
func checkCoveredTransactions(tx *gorm.DB, selfID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var trs []models.Transaction
	if err := tx.Where("id IN ?", ids).Find(&trs).Error; err != nil {
		return err
	}
	if len(trs) != len(ids) {
		return fmt.Errorf("kapsanan işlemlerden bazıları artık mevcut değil")
	}
	for i := range trs {
		if trs[i].ProgressPaymentID != nil && *trs[i].ProgressPaymentID != selfID {
			return fmt.Errorf("işlem %d başka bir hakedişe bağlanmış", trs[i].ID)
		}
	}
	return nil
}

func recreateEntity(entityType string, dataJSON string) error {
	switch entityType {
	case "transaction":
		var snap transactionSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		// Bağlantı referansları taşınmaz, kayıt bağımsız olarak geri gelir
		tr := models.Transaction{
			ProjectID:       snap.ProjectID,
			Type:            models.TransactionType(snap.Type),
			Amount:          snap.Amount,
			Date:            d,
			Description:     snap.Description,
			IsGrubu:         snap.IsGrubu,
			RayicGrubu:      snap.RayicGrubu,
			IncomeKind:      snap.IncomeKind,
			InvoiceNumber:   snap.InvoiceNumber,
			PaymentMethod:   models.PaymentMethod(snap.PaymentMethod),
			CustomerID:      snap.CustomerID,
			SubcontractorID: snap.SubcontractorID,
		}
		return database.DB.Create(&tr).Error

	case "invoice":
		var snap invoiceSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		inv := models.Invoice{
			InvoiceNumber:   snap.InvoiceNumber,
			Type:            models.InvoiceType(snap.Type),
			ProjectID:       snap.ProjectID,
			CustomerID:      snap.CustomerID,
			SubcontractorID: snap.SubcontractorID,
			Date:            d,
			Subtotal:        snap.Subtotal,
			TaxRate:         snap.TaxRate,
			TaxAmount:       snap.TaxAmount,
			Total:           snap.Total,
			Status:          models.InvoiceStatus(snap.Status),
			PaidAmount:      snap.PaidAmount,
			Description:     snap.Description,
		}
		return database.DB.Create(&inv).Error

	case "budget_item":
		var snap budgetItemSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		item := models.BudgetItem{
			ProjectID:   snap.ProjectID,
			IsGrubu:     snap.IsGrubu,
			RayicGrubu:  snap.RayicGrubu,
			Description: snap.Description,
			Quantity:    snap.Quantity,
			Unit:        snap.Unit,
			UnitPrice:   snap.UnitPrice,
			TotalCost:   snap.TotalCost,
		}
		return database.DB.Create(&item).Error

	case "progress_payment":
		var snap progressPaymentSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		payment := models.ProgressPayment{
			ProjectID:            snap.ProjectID,
			PaymentNumber:        snap.PaymentNumber,
			Date:                 d,
			Description:          snap.Description,
			Amount:               snap.Amount,
			ContractorFeeRate:    snap.ContractorFeeRate,
			GrossAmount:          snap.GrossAmount,
			AdvanceDeductionRate: snap.AdvanceDeductionRate,
			AdvanceDeduction:     snap.AdvanceDeduction,
			NetPayment:           snap.NetPayment,
			ReceivedAmount:       snap.ReceivedAmount,
			Status:               models.ProgressPaymentStatus(snap.Status),
		}
		payment.SetTransactionIDList(snap.TransactionIDs)
		return database.DB.Transaction(func(tx *gorm.DB) error {
			if err := checkCoveredTransactions(tx, 0, snap.TransactionIDs); err != nil {
				return err
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			if len(snap.TransactionIDs) > 0 {
				return tx.Model(&models.Transaction{}).
					Where("id IN ?", snap.TransactionIDs).
					Update("progress_payment_id", payment.ID).Error
			}
			return nil
		})

	case "project":
		var snap projectSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		start, err := parseSnapshotDate(snap.StartDate)
		if err != nil {
			return err
		}
		var end *time.Time
		if snap.EndDate != nil && *snap.EndDate != "" {
			d, err := parseSnapshotDate(*snap.EndDate)
			if err != nil {
				return err
			}
			end = &d
		}
		p := models.Project{
			Name:           snap.Name,
			Code:           snap.Code,
			Description:    snap.Description,
			CustomerID:     snap.CustomerID,
			ContractAmount: snap.ContractAmount,
			AdvancePayment: snap.AdvancePayment,
			StartDate:      start,
			EndDate:        end,
			Status:         models.ProjectStatus(snap.Status),
		}
		return database.DB.Create(&p).Error

	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}

func restoreEntity(entityType string, entityID uint, dataJSON string) error {
	switch entityType {
	case "transaction":
		var snap transactionSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		return database.DB.Model(&models.Transaction{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"type":           snap.Type,
			"amount":         snap.Amount,
			"date":           d,
			"description":    snap.Description,
			"is_grubu":       snap.IsGrubu,
			"rayic_grubu":    snap.RayicGrubu,
			"income_kind":    snap.IncomeKind,
			"payment_method": snap.PaymentMethod,
		}).Error

	case "invoice":
		var snap invoiceSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		return database.DB.Model(&models.Invoice{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"date":        d,
			"subtotal":    snap.Subtotal,
			"tax_rate":    snap.TaxRate,
			"tax_amount":  snap.TaxAmount,
			"total":       snap.Total,
			"status":      snap.Status,
			"paid_amount": snap.PaidAmount,
			"description": snap.Description,
		}).Error

	case "budget_item":
		var snap budgetItemSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		return database.DB.Model(&models.BudgetItem{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"is_grubu":    snap.IsGrubu,
			"rayic_grubu": snap.RayicGrubu,
			"description": snap.Description,
			"quantity":    snap.Quantity,
			"unit":        snap.Unit,
			"unit_price":  snap.UnitPrice,
			"total_cost":  snap.TotalCost,
		}).Error

	case "progress_payment":
		var snap progressPaymentSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		d, err := parseSnapshotDate(snap.Date)
		if err != nil {
			return err
		}
		var payment models.ProgressPayment
		if err := database.DB.First(&payment, "id = ?", entityID).Error; err != nil {
			return err
		}
		// Geri referanslar eski/yeni küme farkına göre düzeltilir
		removed := idDiff(payment.TransactionIDList(), snap.TransactionIDs)
		added := idDiff(snap.TransactionIDs, payment.TransactionIDList())
		var idsJSON models.ProgressPayment
		idsJSON.SetTransactionIDList(snap.TransactionIDs)
		return database.DB.Transaction(func(tx *gorm.DB) error {
			if err := checkCoveredTransactions(tx, payment.ID, added); err != nil {
				return err
			}
			if len(removed) > 0 {
				if err := tx.Model(&models.Transaction{}).
					Where("id IN ?", removed).
					Update("progress_payment_id", nil).Error; err != nil {
					return err
				}
			}
			if len(added) > 0 {
				if err := tx.Model(&models.Transaction{}).
					Where("id IN ?", added).
					Update("progress_payment_id", payment.ID).Error; err != nil {
					return err
				}
			}
			return tx.Model(&models.ProgressPayment{}).Where("id = ?", entityID).Updates(map[string]interface{}{
				"payment_number":         snap.PaymentNumber,
				"date":                   d,
				"description":            snap.Description,
				"amount":                 snap.Amount,
				"contractor_fee_rate":    snap.ContractorFeeRate,
				"gross_amount":           snap.GrossAmount,
				"advance_deduction_rate": snap.AdvanceDeductionRate,
				"advance_deduction":      snap.AdvanceDeduction,
				"net_payment":            snap.NetPayment,
				"received_amount":        snap.ReceivedAmount,
				"status":                 snap.Status,
				"transaction_ids":        idsJSON.TransactionIDs,
			}).Error
		})

	case "project":
		var snap projectSnapshot
		if err := json.Unmarshal([]byte(dataJSON), &snap); err != nil {
			return err
		}
		start, err := parseSnapshotDate(snap.StartDate)
		if err != nil {
			return err
		}
		var end *time.Time
		if snap.EndDate != nil && *snap.EndDate != "" {
			d, err := parseSnapshotDate(*snap.EndDate)
			if err != nil {
				return err
			}
			end = &d
		}
		return database.DB.Model(&models.Project{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":            snap.Name,
			"description":     snap.Description,
			"customer_id":     snap.CustomerID,
			"contract_amount": snap.ContractAmount,
			"advance_payment": snap.AdvancePayment,
			"start_date":      start,
			"end_date":        end,
			"status":          snap.Status,
		}).Error

	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}
