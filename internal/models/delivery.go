package models

import "time"

// Статусы доставки (однонаправленный жизненный цикл).
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusAccepted  = "accepted"
	DeliveryStatusPickedUp  = "picked_up"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusNearby    = "nearby"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusCancelled = "cancelled"
	DeliveryStatusRejected  = "rejected"
)

// Sample statuses written by the provider while tracking is on, plus the
// supplier-observed ones posted through the API.
const (
	SampleStatusPickedUp  = "picked_up"
	SampleStatusEnRoute   = "en_route"
	SampleStatusNearby    = "nearby"
	SampleStatusDelivered = "delivered"
	SampleStatusArrived   = "arrived_at_destination"
	SampleStatusDelayed   = "delayed"
	SampleStatusIssue     = "issue_reported"
)

// Roles that can post messages on a delivery.
const (
	RoleSupplier = "supplier"
	RoleProvider = "delivery_provider"
	RoleBuilder  = "builder"
)

const (
	MessageKindText     = "text"
	MessageKindStatus   = "status_update"
	MessageKindLocation = "location_update"
)

type Delivery struct {
	ID         uint64  `json:"id"`
	BuilderID  string  `json:"builder_id"`
	ProviderID *string `json:"provider_id,omitempty"`

	PickupAddress string   `json:"pickup_address"`
	PickupLat     *float64 `json:"pickup_lat,omitempty"`
	PickupLon     *float64 `json:"pickup_lon,omitempty"`

	DropoffAddress string   `json:"dropoff_address"`
	DropoffLat     *float64 `json:"dropoff_lat,omitempty"`
	DropoffLon     *float64 `json:"dropoff_lon,omitempty"`

	Material string `json:"material"`
	Quantity string `json:"quantity"`

	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrackingSample — одна неизменяемая запись (позиция, статус, момент времени).
// created_at всегда ставит сервер при вставке, никогда не клиент.
type TrackingSample struct {
	ID         uint64 `json:"id"`
	DeliveryID uint64 `json:"delivery_id"`
	ProviderID string `json:"provider_id"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`

	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Communication struct {
	ID         uint64    `json:"id"`
	DeliveryID uint64    `json:"delivery_id"`
	SenderRole string    `json:"sender_role"`
	Kind       string    `json:"kind"`
	Body       string    `json:"body"`
	Metadata   *string   `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DeliveryCreateInput struct {
	BuilderID      string
	PickupAddress  string
	PickupLat      *float64
	PickupLon      *float64
	DropoffAddress string
	DropoffLat     *float64
	DropoffLon     *float64
	Material       string
	Quantity       string
}

type SampleInput struct {
	DeliveryID uint64
	ProviderID string
	Latitude   float64
	Longitude  float64
	Heading    *float64
	Speed      *float64
	Accuracy   *float64
	Status     string
	Notes      *string
	RecordedAt time.Time
}
