package pgdelivery

import (
	"context"
	"fmt"
	"time"

	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const deliveryColumns = `
  id, builder_id, provider_id,
  pickup_address, pickup_lat, pickup_lon,
  dropoff_address, dropoff_lat, dropoff_lon,
  material, quantity, status,
  created_at, updated_at`

func scanDelivery(row pgx.Row) (*models.Delivery, error) {
	var d models.Delivery
	if err := row.Scan(
		&d.ID, &d.BuilderID, &d.ProviderID,
		&d.PickupAddress, &d.PickupLat, &d.PickupLon,
		&d.DropoffAddress, &d.DropoffLat, &d.DropoffLon,
		&d.Material, &d.Quantity, &d.Status,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Storage) CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
INSERT INTO deliveries (
  builder_id, pickup_address, pickup_lat, pickup_lon,
  dropoff_address, dropoff_lat, dropoff_lon,
  material, quantity, status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING `+deliveryColumns+`
`, in.BuilderID, in.PickupAddress, in.PickupLat, in.PickupLon,
		in.DropoffAddress, in.DropoffLat, in.DropoffLon,
		in.Material, in.Quantity, models.DeliveryStatusPending, now)

	d, err := scanDelivery(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert delivery")
	}
	return d, nil
}

func (s *Storage) GetDeliveriesByIDs(ctx context.Context, ids []uint64) ([]*models.Delivery, error) {
	if len(ids) == 0 {
		return []*models.Delivery{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT `+deliveryColumns+`
FROM deliveries
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select deliveries")
	}
	defer rows.Close()

	out := make([]*models.Delivery, 0, len(ids))
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan delivery")
		}
		out = append(out, d)
	}

	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// RespondToDelivery — ответ провайдера на заявку. Принятие закрепляет
// провайдера за доставкой; отказ переводит её в rejected. И то и другое
// возможно только из pending.
func (s *Storage) RespondToDelivery(ctx context.Context, deliveryID uint64, providerID string, accept bool) (*models.Delivery, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM deliveries WHERE id = $1 FOR UPDATE`, deliveryID).Scan(&status)
	if err != nil {
		return nil, errors.Wrap(err, "select delivery for update")
	}
	if status != models.DeliveryStatusPending {
		return nil, fmt.Errorf("delivery %d is %s, not pending", deliveryID, status)
	}

	var d *models.Delivery
	if accept {
		d, err = scanDelivery(tx.QueryRow(ctx, `
UPDATE deliveries SET status = $2, provider_id = $3, updated_at = now()
WHERE id = $1
RETURNING `+deliveryColumns+`
`, deliveryID, models.DeliveryStatusAccepted, providerID))
	} else {
		d, err = scanDelivery(tx.QueryRow(ctx, `
UPDATE deliveries SET status = $2, updated_at = now()
WHERE id = $1
RETURNING `+deliveryColumns+`
`, deliveryID, models.DeliveryStatusRejected))
	}
	if err != nil {
		return nil, errors.Wrap(err, "update delivery")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return d, nil
}

// UpdateDeliveryStatus продвигает статус вперёд. Переходы, которых нет в
// таблице переходов, отклоняются здесь, а не только в UI.
func (s *Storage) UpdateDeliveryStatus(ctx context.Context, deliveryID uint64, to string) (*models.Delivery, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM deliveries WHERE id = $1 FOR UPDATE`, deliveryID).Scan(&from)
	if err != nil {
		return nil, errors.Wrap(err, "select delivery for update")
	}
	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("invalid status transition %s -> %s", from, to)
	}

	d, err := scanDelivery(tx.QueryRow(ctx, `
UPDATE deliveries SET status = $2, updated_at = now()
WHERE id = $1
RETURNING `+deliveryColumns+`
`, deliveryID, to))
	if err != nil {
		return nil, errors.Wrap(err, "update delivery status")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return d, nil
}
