package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	*pg.DB
}

func NewInvoiceRepository(db *pg.DB) *InvoiceRepository {
	return &InvoiceRepository{
		db,
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error) {
	entity := toInvoiceEntity(invoice)
	if entity.Status == "" {
		entity.Status = string(model.InvoiceStatusPending)
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toInvoiceModel(entity), nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*model.Invoice, error) {
	var entity InvoiceEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	invoice := toInvoiceModel(&entity)
	if err := r.attachSettlements(ctx, []*model.Invoice{invoice}); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetByIDForUser hides invoices of other users behind ErrInvoiceNotFound.
func (r *InvoiceRepository) GetByIDForUser(ctx context.Context, id, userID int64) (*model.Invoice, error) {
	var entity InvoiceEntity
	err := r.Read(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	invoice := toInvoiceModel(&entity)
	if err := r.attachSettlements(ctx, []*model.Invoice{invoice}); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *InvoiceRepository) List(ctx context.Context, f model.InvoiceFilter) ([]*model.Invoice, int64, error) {
	q := r.Read(ctx).Model(&InvoiceEntity{}).Where("user_id = ?", f.UserID)
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := normalizeLimit(f.Limit, 10, 100)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*InvoiceEntity
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	invoices := toInvoiceModels(entities)
	if err := r.attachSettlements(ctx, invoices); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindPendingByAddress returns the most recently created pending invoice for the
// address, highest id first on equal timestamps.
func (r *InvoiceRepository) FindPendingByAddress(ctx context.Context, address string) (*model.Invoice, error) {
	var entity InvoiceEntity
	err := r.Read(ctx).
		Where("btc_address = ? AND status = ?", address, string(model.InvoiceStatusPending)).
		Order("created_at DESC").
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return toInvoiceModel(&entity), nil
}

// MarkPaid moves the invoice from pending to paid. Only one caller can win;
// every other gets ErrInvoiceNotPending.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	return r.transition(ctx, id, nil, map[string]interface{}{
		"status":     string(model.InvoiceStatusPaid),
		"paid_at":    paidAt,
		"updated_at": paidAt,
	})
}

func (r *InvoiceRepository) Cancel(ctx context.Context, id, userID int64) error {
	return r.transition(ctx, id, &userID, map[string]interface{}{
		"status":     string(model.InvoiceStatusCancelled),
		"updated_at": time.Now().UTC(),
	})
}

func (r *InvoiceRepository) transition(ctx context.Context, id int64, userID *int64, updates map[string]interface{}) error {
	q := r.Write(ctx).
		Model(&InvoiceEntity{}).
		Where("id = ? AND status = ?", id, string(model.InvoiceStatusPending))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	result := q.Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// Distinguish a missing invoice from a lost race.
	var count int64
	exists := r.Write(ctx).Model(&InvoiceEntity{}).Where("id = ?", id)
	if userID != nil {
		exists = exists.Where("user_id = ?", *userID)
	}
	if err := exists.Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrInvoiceNotFound
	}
	return ErrInvoiceNotPending
}

func (r *InvoiceRepository) attachSettlements(ctx context.Context, invoices []*model.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(invoices))
	byID := make(map[int64]*model.Invoice, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
		byID[inv.ID] = inv
	}

	var rows []struct {
		ID        int64
		InvoiceID int64
	}
	err := r.Read(ctx).
		Model(&TransactionEntity{}).
		Select("id, invoice_id").
		Where("invoice_id IN ?", ids).
		Scan(&rows).
		Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if inv, ok := byID[row.InvoiceID]; ok {
			txID := row.ID
			inv.TransactionID = &txID
		}
	}
	return nil
}
