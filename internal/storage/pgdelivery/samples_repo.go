package pgdelivery

import (
	"context"

	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const sampleColumns = `
  id, delivery_id, provider_id,
  latitude, longitude, heading, speed, accuracy,
  status, notes, created_at`

func scanSample(row pgx.Row) (*models.TrackingSample, error) {
	var sm models.TrackingSample
	if err := row.Scan(
		&sm.ID, &sm.DeliveryID, &sm.ProviderID,
		&sm.Latitude, &sm.Longitude, &sm.Heading, &sm.Speed, &sm.Accuracy,
		&sm.Status, &sm.Notes, &sm.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &sm, nil
}

// InsertSample добавляет одну неизменяемую строку журнала. created_at всегда
// now() сервера — клиентское время наблюдения хранится отдельно в recorded_at.
// Повтор того же замера (at-least-once доставка из Kafka) — no-op; тогда
// inserted=false и возвращается существующая строка.
func (s *Storage) InsertSample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, bool, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO tracking_samples (
  delivery_id, provider_id, latitude, longitude, heading, speed, accuracy,
  status, notes, recorded_at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
ON CONFLICT (delivery_id, provider_id, status, recorded_at) DO NOTHING
RETURNING `+sampleColumns+`
`, in.DeliveryID, in.ProviderID, in.Latitude, in.Longitude,
		in.Heading, in.Speed, in.Accuracy,
		in.Status, in.Notes, in.RecordedAt.UTC())

	sm, err := scanSample(row)
	if err == nil {
		return sm, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, errors.Wrap(err, "insert sample")
	}

	// конфликт дедупа — отдаём уже записанную строку
	sm, err = scanSample(s.db.QueryRow(ctx, `
SELECT `+sampleColumns+`
FROM tracking_samples
WHERE delivery_id = $1 AND provider_id = $2 AND status = $3 AND recorded_at = $4
`, in.DeliveryID, in.ProviderID, in.Status, in.RecordedAt.UTC()))
	if err != nil {
		return nil, false, errors.Wrap(err, "select deduped sample")
	}
	return sm, false, nil
}

// ListSamples отдаёт последние замеры, новые первыми. Больше одной страницы
// истории не бывает: limit прижимается к 50.
func (s *Storage) ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
SELECT `+sampleColumns+`
FROM tracking_samples
WHERE delivery_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, deliveryID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select samples")
	}
	defer rows.Close()

	var out []*models.TrackingSample
	for rows.Next() {
		sm, err := scanSample(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan sample")
		}
		out = append(out, sm)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) LatestSample(ctx context.Context, deliveryID uint64) (*models.TrackingSample, error) {
	sm, err := scanSample(s.db.QueryRow(ctx, `
SELECT `+sampleColumns+`
FROM tracking_samples
WHERE delivery_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1
`, deliveryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest sample")
	}
	return sm, nil
}
