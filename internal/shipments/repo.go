package shipments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

// Repository persists order shipments.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// FindByTrackingNumber returns the newest shipment carrying the number.
func (r *Repository) FindByTrackingNumber(ctx context.Context, number string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("tracking_number = ?", number).
		Order("created_at DESC").
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// Label is the purchased label data stored on the shipment.
type Label struct {
	TransactionID  string
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
}

// MarkLabelPurchased stores the label while the shipment is still awaiting
// one. It reports false when another worker got there first.
func (r *Repository) MarkLabelPurchased(ctx context.Context, id uuid.UUID, label Label, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", id, enums.ShipmentStatusAwaitingLabel).
		Updates(map[string]any{
			"transaction_id":    label.TransactionID,
			"tracking_number":   nullable(label.TrackingNumber),
			"tracking_url":      nullable(label.TrackingURL),
			"label_url":         nullable(label.LabelURL),
			"status":            enums.ShipmentStatusLabelPurchased,
			"status_details":    nil,
			"status_updated_at": at,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetStatusDetails records a diagnostic without changing the status.
func (r *Repository) SetStatusDetails(ctx context.Context, id uuid.UUID, details string) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(map[string]any{"status_details": nullable(details), "updated_at": time.Now().UTC()}).Error
}

// UpdateTracking applies a carrier scan, conditional on the previous status.
func (r *Repository) UpdateTracking(ctx context.Context, shipment *models.Shipment, next enums.ShipmentStatus, details string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND status = ?", shipment.ID, shipment.Status).
		Updates(map[string]any{
			"status":            next,
			"status_details":    nullable(details),
			"status_updated_at": at,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	shipment.Status = next
	shipment.StatusDetails = nullable(details)
	shipment.StatusUpdatedAt = &at
	return true, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
