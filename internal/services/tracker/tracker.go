package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UjenziPro/HaulTrack/internal/broker/messages"
	"github.com/UjenziPro/HaulTrack/internal/geo"
	"github.com/UjenziPro/HaulTrack/internal/metrics"
	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Tracker ведёт трекинг ровно одной доставки за раз: наблюдает позиции
// устройства, прореживает их throttle-воротами и публикует замеры в Kafka.
// Позиции между окнами не пропадают — последняя всегда хранится как
// "текущая" и уходит финальным flush при остановке.
type Tracker struct {
	src        geo.Source
	producer   Producer
	topic      string
	providerID string

	throttle        time.Duration
	firstFixTimeout time.Duration

	mu           sync.Mutex
	active       bool
	starting     bool // Start ждёт первый fix, второй Start в это окно отклоняем
	deliveryID   uint64
	status       string
	current      *geo.Fix
	lastPersist  time.Time // fix.At последнего опубликованного замера
	cancelWatch  context.CancelFunc
	done         chan struct{}

	startedAtUnixNano int64
	fixesObserved     atomic.Int64
	samplesPublished  atomic.Int64
	fixesThrottled    atomic.Int64
	publishErrors     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(src geo.Source, producer Producer, topic, providerID string) *Tracker {
	return &Tracker{
		src:             src,
		producer:        producer,
		topic:           topic,
		providerID:      providerID,
		throttle:        5 * time.Second,
		firstFixTimeout: 10 * time.Second,
	}
}

func (t *Tracker) WithSettings(throttle, firstFixTimeout time.Duration) *Tracker {
	if throttle > 0 {
		t.throttle = throttle
	}
	if firstFixTimeout > 0 {
		t.firstFixTimeout = firstFixTimeout
	}
	return t
}

// Start начинает непрерывное наблюдение позиции для доставки. Если источник
// недоступен или первый fix не пришёл за firstFixTimeout — трекинг просто не
// стартует, ошибка уходит вызывающему.
func (t *Tracker) Start(ctx context.Context, deliveryID uint64, status string) error {
	if deliveryID == 0 {
		return errors.New("deliveryId is required")
	}
	if status == "" {
		status = models.SampleStatusPickedUp
	}
	if !models.IsValidSampleStatus(status) {
		return errors.Errorf("unknown sample status %q", status)
	}

	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return errors.Errorf("tracking already active for delivery %d", t.deliveryID)
	}
	if t.starting {
		t.mu.Unlock()
		return errors.New("tracking start already in progress")
	}
	t.starting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.starting = false
		t.mu.Unlock()
	}()

	watchCtx, cancel := context.WithCancel(ctx)
	ch, err := t.src.Watch(watchCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "location source unavailable")
	}

	var first geo.Fix
	select {
	case f, ok := <-ch:
		if !ok {
			cancel()
			return errors.New("location source closed before first fix")
		}
		first = f
	case <-time.After(t.firstFixTimeout):
		cancel()
		return errors.Errorf("no position fix within %s", t.firstFixTimeout)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	t.mu.Lock()
	t.active = true
	t.deliveryID = deliveryID
	t.status = status
	t.current = &first
	t.lastPersist = time.Time{}
	t.cancelWatch = cancel
	t.done = make(chan struct{})
	t.startedAtUnixNano = time.Now().UTC().UnixNano()
	t.mu.Unlock()

	t.fixesObserved.Add(1)
	t.persist(ctx, first, status) // первый замер уходит сразу, t=0

	go t.run(ctx, ch)
	return nil
}

func (t *Tracker) run(ctx context.Context, ch <-chan geo.Fix) {
	defer close(t.done)
	for fix := range ch {
		t.fixesObserved.Add(1)

		t.mu.Lock()
		f := fix
		t.current = &f
		status := t.status
		due := fix.At.Sub(t.lastPersist) >= t.throttle
		t.mu.Unlock()

		if !due {
			// наблюдаем, но не персистим: это и ограничивает объём записи
			t.fixesThrottled.Add(1)
			metrics.SamplesThrottledTotal.Inc()
			continue
		}
		t.persist(ctx, fix, status)
	}
}

func (t *Tracker) persist(ctx context.Context, fix geo.Fix, status string) {
	msg := messages.SampleRecorded{
		DeliveryID: t.deliveryID,
		ProviderID: t.providerID,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Heading:    fix.Heading,
		Speed:      fix.Speed,
		Accuracy:   fix.Accuracy,
		Status:     status,
		RecordedAt: fix.At,
	}

	b, err := json.Marshal(msg)
	if err != nil {
		t.noteError(err)
		return
	}

	key := []byte(fmt.Sprintf("%d", t.deliveryID))
	if err := t.producer.Publish(ctx, t.topic, key, b); err != nil {
		// Замер теряется: очереди повторов нет, это осознанно.
		t.publishErrors.Add(1)
		t.noteError(err)
		slog.Error("publish sample", "delivery_id", t.deliveryID, "error", err.Error())
		return
	}

	t.samplesPublished.Add(1)
	t.mu.Lock()
	t.lastPersist = fix.At
	t.mu.Unlock()
}

// SetStatus меняет статус следующих замеров и сразу публикует замер с новым
// статусом, не дожидаясь throttle-окна. delivered — терминальный: после
// flush наблюдение останавливается.
func (t *Tracker) SetStatus(status string) error {
	if !models.IsValidSampleStatus(status) {
		return errors.Errorf("unknown sample status %q", status)
	}

	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return errors.New("tracking is not active")
	}
	t.status = status
	fix := t.current
	t.mu.Unlock()

	if fix != nil {
		t.persist(context.Background(), *fix, status)
	}

	if status == models.SampleStatusDelivered {
		t.Stop()
	}
	return nil
}

// Stop идемпотентен. Последняя наблюдённая позиция уходит финальным flush
// независимо от throttle-окна — журнал всегда заканчивается последней
// известной позицией провайдера.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	fix := t.current
	status := t.status
	lastPersist := t.lastPersist
	cancel := t.cancelWatch
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done

	if fix != nil && fix.At.After(lastPersist) {
		t.persist(context.Background(), *fix, status)
	}

	t.mu.Lock()
	t.deliveryID = 0
	t.current = nil
	t.cancelWatch = nil
	t.done = nil
	t.mu.Unlock()
}

// Active возвращает (деливери, true), если трекинг идёт.
func (t *Tracker) Active() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deliveryID, t.active
}

// Current — последняя наблюдённая позиция (для отображения), даже если она
// ещё не персистирована.
func (t *Tracker) Current() *geo.Fix {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	f := *t.current
	return &f
}

type Stats struct {
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	Active           bool       `json:"active"`
	DeliveryID       uint64     `json:"deliveryId,omitempty"`
	FixesObserved    int64      `json:"fixesObserved"`
	SamplesPublished int64      `json:"samplesPublished"`
	FixesThrottled   int64      `json:"fixesThrottled"`
	PublishErrors    int64      `json:"publishErrors"`
	LastError        string     `json:"lastError,omitempty"`
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	st := Stats{
		Active:     t.active,
		DeliveryID: t.deliveryID,
	}
	startedAt := t.startedAtUnixNano
	t.mu.Unlock()

	if startedAt > 0 {
		ts := time.Unix(0, startedAt).UTC()
		st.StartedAt = &ts
	}
	st.FixesObserved = t.fixesObserved.Load()
	st.SamplesPublished = t.samplesPublished.Load()
	st.FixesThrottled = t.fixesThrottled.Load()
	st.PublishErrors = t.publishErrors.Load()

	t.lastErrorMu.Lock()
	st.LastError = t.lastError
	t.lastErrorMu.Unlock()
	return st
}

func (t *Tracker) noteError(err error) {
	t.lastErrorMu.Lock()
	t.lastError = err.Error()
	t.lastErrorMu.Unlock()
}
