package viewer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/UjenziPro/HaulTrack/internal/feed"
	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/pkg/errors"
)

const defaultHistoryLimit = 50

type HistoryReader interface {
	ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error)
}

// Viewer держит живую картину трекинга ровно одной доставки: один раз
// вычитывает историю (свежие сверху), подписывается на фид и дальше только
// добавляет новые замеры в начало. Переключение на другую доставку всегда
// начинается с освобождения старой подписки.
type Viewer struct {
	reader HistoryReader
	feed   feed.Feed
	limit  int

	mu         sync.Mutex
	deliveryID uint64
	samples    []*models.TrackingSample // свежие в начале
	seen       map[uint64]struct{}
	sub        feed.Subscription
	done       chan struct{}
}

func New(reader HistoryReader, f feed.Feed) *Viewer {
	return &Viewer{
		reader: reader,
		feed:   f,
		limit:  defaultHistoryLimit,
	}
}

func (v *Viewer) WithHistoryLimit(limit int) *Viewer {
	if limit > 0 {
		v.limit = limit
	}
	return v
}

// Select начинает наблюдение за доставкой. Предыдущая подписка, если была,
// закрывается до того, как откроется новая — двух активных подписок у
// зрителя не бывает.
func (v *Viewer) Select(ctx context.Context, deliveryID uint64) error {
	if deliveryID == 0 {
		return errors.New("deliveryId is required")
	}

	v.release()

	// Сначала подписка, потом история: замер, проскочивший между ними,
	// придёт по фиду и погасится дедупом по id.
	sub, err := v.feed.Subscribe(ctx, deliveryID)
	if err != nil {
		return errors.Wrap(err, "subscribe to feed")
	}

	history, err := v.reader.ListSamples(ctx, deliveryID, v.limit)
	if err != nil {
		sub.Close()
		return errors.Wrap(err, "load history")
	}

	seen := make(map[uint64]struct{}, len(history))
	for _, sm := range history {
		seen[sm.ID] = struct{}{}
	}

	v.mu.Lock()
	v.deliveryID = deliveryID
	v.samples = history
	v.seen = seen
	v.sub = sub
	v.done = make(chan struct{})
	done := v.done
	v.mu.Unlock()

	go v.pump(deliveryID, sub, done)
	return nil
}

func (v *Viewer) pump(deliveryID uint64, sub feed.Subscription, done chan struct{}) {
	defer close(done)
	for payload := range sub.Events() {
		var sm models.TrackingSample
		if err := json.Unmarshal(payload, &sm); err != nil {
			slog.Warn("decode feed event", "delivery_id", deliveryID, "error", err.Error())
			continue
		}
		v.ingest(deliveryID, &sm)
	}
}

func (v *Viewer) ingest(deliveryID uint64, sm *models.TrackingSample) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deliveryID != deliveryID {
		// событие от уже отпущенной подписки
		return
	}
	if _, dup := v.seen[sm.ID]; dup {
		return
	}
	v.seen[sm.ID] = struct{}{}
	v.samples = append([]*models.TrackingSample{sm}, v.samples...)
}

// Snapshot — копия текущей ленты, свежие в начале.
func (v *Viewer) Snapshot() []*models.TrackingSample {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*models.TrackingSample, len(v.samples))
	copy(out, v.samples)
	return out
}

// Current — последний известный замер или nil, если их ещё нет.
func (v *Viewer) Current() *models.TrackingSample {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.samples) == 0 {
		return nil
	}
	return v.samples[0]
}

func (v *Viewer) Watching() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deliveryID, v.sub != nil
}

// Close отпускает подписку. Идемпотентен.
func (v *Viewer) Close() {
	v.release()
}

func (v *Viewer) release() {
	v.mu.Lock()
	sub := v.sub
	done := v.done
	v.sub = nil
	v.done = nil
	v.deliveryID = 0
	v.samples = nil
	v.seen = nil
	v.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
}
