package messages

import "time"

// SampleRecorded публикуется агентом провайдера на каждый персистируемый
// замер позиции. Консьюмер в track-api делает из него строку журнала.
type SampleRecorded struct {
	DeliveryID uint64 `json:"delivery_id"`
	ProviderID string `json:"provider_id"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`

	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`

	// RecordedAt — момент наблюдения на устройстве. created_at строки журнала
	// всё равно ставит сервер при вставке.
	RecordedAt time.Time `json:"recorded_at"`
}
