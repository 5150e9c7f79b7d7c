package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockReservationRepository implements stock.ReservationRepository using GORM
type GormStockReservationRepository struct {
	db *gorm.DB
}

// NewGormStockReservationRepository creates a new GormStockReservationRepository
func NewGormStockReservationRepository(db *gorm.DB) *GormStockReservationRepository {
	return &GormStockReservationRepository{db: db}
}

// Create inserts a reservation
func (r *GormStockReservationRepository) Create(ctx context.Context, res *stock.Reservation) error {
	return r.db.WithContext(ctx).Create(models.StockReservationModelFromDomain(res)).Error
}

// FindByID finds a reservation by ID
func (r *GormStockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	var model models.StockReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stock.ErrReservationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder returns all reservations of an order, oldest first
func (r *GormStockReservationRepository) FindByOrder(ctx context.Context, orderRef string) ([]stock.Reservation, error) {
	var rows []models.StockReservationModel
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// FindLiveByOrder returns the live reservations of an order
func (r *GormStockReservationRepository) FindLiveByOrder(ctx context.Context, orderRef string) ([]stock.Reservation, error) {
	var rows []models.StockReservationModel
	err := r.db.WithContext(ctx).
		Where("order_ref = ? AND state = ?", orderRef, string(stock.ReservationLive)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// FindOverdue returns live reservations whose TTL ran out before now
func (r *GormStockReservationRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]stock.Reservation, error) {
	var rows []models.StockReservationModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at IS NOT NULL AND expires_at < ?", string(stock.ReservationLive), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// Settle moves a LIVE reservation to `to`. The state check is part of the
// UPDATE, so of two concurrent settles only one affects the row.
func (r *GormStockReservationRepository) Settle(ctx context.Context, id uuid.UUID, to stock.ReservationState, now time.Time) (*stock.Reservation, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservationModel{}).
		Where("id = ? AND state = ?", id, string(stock.ReservationLive)).
		Updates(map[string]interface{}{
			"state":      string(to),
			"settled_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	res, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, stock.ErrAlreadyReleased
	}
	return res, nil
}

func toReservations(rows []models.StockReservationModel) []stock.Reservation {
	out := make([]stock.Reservation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormStockReservationRepository implements stock.ReservationRepository
var _ stock.ReservationRepository = (*GormStockReservationRepository)(nil)
