package pgdelivery

import (
	"context"

	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/pkg/errors"
)

type MessageInput struct {
	DeliveryID uint64
	SenderRole string
	Kind       string
	Body       string
	Metadata   *string
}

func (s *Storage) InsertMessage(ctx context.Context, in MessageInput) (*models.Communication, error) {
	var m models.Communication
	err := s.db.QueryRow(ctx, `
INSERT INTO delivery_messages (delivery_id, sender_role, kind, body, metadata, created_at)
VALUES ($1,$2,$3,$4,$5, now())
RETURNING id, delivery_id, sender_role, kind, body, metadata, created_at
`, in.DeliveryID, in.SenderRole, in.Kind, in.Body, in.Metadata).Scan(
		&m.ID, &m.DeliveryID, &m.SenderRole, &m.Kind, &m.Body, &m.Metadata, &m.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	return &m, nil
}

// ListMessages — лента общения по доставке, по возрастанию времени.
func (s *Storage) ListMessages(ctx context.Context, deliveryID uint64, limit int) ([]*models.Communication, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	rows, err := s.db.Query(ctx, `
SELECT id, delivery_id, sender_role, kind, body, metadata, created_at
FROM delivery_messages
WHERE delivery_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2
`, deliveryID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select messages")
	}
	defer rows.Close()

	var out []*models.Communication
	for rows.Next() {
		var m models.Communication
		if err := rows.Scan(&m.ID, &m.DeliveryID, &m.SenderRole, &m.Kind, &m.Body, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		out = append(out, &m)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
