package geo

import (
	"context"
	"time"
)

// Fix — одно наблюдение позиции устройства.
type Fix struct {
	Latitude  float64
	Longitude float64
	Heading   *float64
	Speed     *float64
	Accuracy  *float64
	At        time.Time
}

// Source is the device location API. Watch emits fixes in platform order until
// ctx is cancelled, then closes the channel. A source that cannot start
// observation (device off, permission denied) returns the error from Watch;
// that is a reported, non-fatal condition for the caller.
type Source interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}
