package simsource

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/UjenziPro/HaulTrack/internal/geo"
)

// SimSource — заглушка GPS-приёмника: детерминированная случайная прогулка
// вокруг стартовой точки. Сид считается из deliveryID, чтобы прогон был
// воспроизводимым.
type SimSource struct {
	startLat float64
	startLon float64
	interval time.Duration
	r        *rand.Rand
}

func New(deliveryID uint64, startLat, startLon float64, interval time.Duration) *SimSource {
	if interval <= 0 {
		interval = 1 * time.Second
	}
	h := fnv.New64a()
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(deliveryID >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return &SimSource{
		startLat: startLat,
		startLon: startLon,
		interval: interval,
		r:        rand.New(rand.NewSource(int64(h.Sum64()))),
	}
}

func (s *SimSource) Watch(ctx context.Context) (<-chan geo.Fix, error) {
	out := make(chan geo.Fix)
	go func() {
		defer close(out)

		lat, lon := s.startLat, s.startLon
		t := time.NewTicker(s.interval)
		defer t.Stop()

		emit := func() {
			// ~десятки метров за шаг, курс и скорость правдоподобные
			lat += (s.r.Float64() - 0.5) * 0.0006
			lon += (s.r.Float64() - 0.5) * 0.0006
			heading := s.r.Float64() * 360
			speed := 5 + s.r.Float64()*15
			accuracy := 5 + s.r.Float64()*10
			select {
			case out <- geo.Fix{
				Latitude:  lat,
				Longitude: lon,
				Heading:   &heading,
				Speed:     &speed,
				Accuracy:  &accuracy,
				At:        time.Now().UTC(),
			}:
			case <-ctx.Done():
			}
		}

		emit() // first fix right away, the tracker is waiting on it
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				emit()
			}
		}
	}()
	return out, nil
}
