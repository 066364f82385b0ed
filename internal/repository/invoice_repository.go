package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
)

type invoiceRepo struct {
	data *Data
}

func NewInvoiceRepository(data *Data) repository.InvoiceStore {
	return &invoiceRepo{data: data}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	if inv.Status == "" {
		inv.Status = models.InvoicePending
	}
	if err := r.data.DB(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("create invoice %s: %w", inv.ReferenceID, err)
	}
	return nil
}

func (r *invoiceRepo) GetByReference(ctx context.Context, referenceID string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.data.DB(ctx).Where("reference_id = ?", referenceID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %s: %w", referenceID, models.ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

// MarkPaid is a compare-and-swap on status: only a PENDING row moves, so
// duplicate confirmations see false.
func (r *invoiceRepo) MarkPaid(ctx context.Context, referenceID, externalTxID string, paidAt time.Time) (bool, error) {
	res := r.data.DB(ctx).Model(&models.Invoice{}).
		Where("reference_id = ? AND status = ?", referenceID, models.InvoicePending).
		Updates(map[string]interface{}{
			"status":         models.InvoicePaid,
			"external_tx_id": externalTxID,
			"paid_at":        paidAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark paid %s: %w", referenceID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *invoiceRepo) ListPending(ctx context.Context, createdAfter, createdBefore time.Time) ([]*models.Invoice, error) {
	var out []*models.Invoice
	err := r.data.DB(ctx).
		Where("status = ? AND created_at >= ? AND created_at < ?", models.InvoicePending, createdAfter, createdBefore).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	return out, nil
}

func (r *invoiceRepo) ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	res := r.data.DB(ctx).Model(&models.Invoice{}).
		Where("status = ? AND created_at < ?", models.InvoicePending, createdBefore).
		Update("status", models.InvoiceExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expire invoices: %w", res.Error)
	}
	return res.RowsAffected, nil
}
