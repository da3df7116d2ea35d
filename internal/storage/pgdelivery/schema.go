package pgdelivery

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS deliveries (
  id BIGSERIAL PRIMARY KEY,
  builder_id TEXT NOT NULL,
  provider_id TEXT NULL,
  pickup_address TEXT NOT NULL,
  pickup_lat DOUBLE PRECISION NULL,
  pickup_lon DOUBLE PRECISION NULL,
  dropoff_address TEXT NOT NULL,
  dropoff_lat DOUBLE PRECISION NULL,
  dropoff_lon DOUBLE PRECISION NULL,
  material TEXT NOT NULL,
  quantity TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_builder_id ON deliveries(builder_id)`,
		`
CREATE TABLE IF NOT EXISTS tracking_samples (
  id BIGSERIAL PRIMARY KEY,
  delivery_id BIGINT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
  provider_id TEXT NOT NULL,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  heading DOUBLE PRECISION NULL,
  speed DOUBLE PRECISION NULL,
  accuracy DOUBLE PRECISION NULL,
  status TEXT NOT NULL,
  notes TEXT NULL,
  recorded_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_samples_delivery_id_created_at ON tracking_samples(delivery_id, created_at DESC)`,
		// Канал доставки at-least-once: повторное применение того же замера
		// должно быть no-op.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tracking_samples_dedup ON tracking_samples(delivery_id, provider_id, status, recorded_at)`,
		`
CREATE TABLE IF NOT EXISTS delivery_messages (
  id BIGSERIAL PRIMARY KEY,
  delivery_id BIGINT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
  sender_role TEXT NOT NULL,
  kind TEXT NOT NULL,
  body TEXT NOT NULL,
  metadata JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_messages_delivery_id_created_at ON delivery_messages(delivery_id, created_at ASC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
