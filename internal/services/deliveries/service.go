package deliveries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/UjenziPro/HaulTrack/internal/broker/messages"
	"github.com/UjenziPro/HaulTrack/internal/cache"
	"github.com/UjenziPro/HaulTrack/internal/feed"
	"github.com/UjenziPro/HaulTrack/internal/metrics"
	"github.com/UjenziPro/HaulTrack/internal/models"
	"github.com/UjenziPro/HaulTrack/internal/storage/pgdelivery"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error)
	GetDeliveriesByIDs(ctx context.Context, ids []uint64) ([]*models.Delivery, error)
	RespondToDelivery(ctx context.Context, deliveryID uint64, providerID string, accept bool) (*models.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, deliveryID uint64, to string) (*models.Delivery, error)
	InsertSample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, bool, error)
	ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error)
	LatestSample(ctx context.Context, deliveryID uint64) (*models.TrackingSample, error)
	InsertMessage(ctx context.Context, in pgdelivery.MessageInput) (*models.Communication, error)
	ListMessages(ctx context.Context, deliveryID uint64, limit int) ([]*models.Communication, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	feed       feed.Feed
	rl         RateLimiter
	currentTTL time.Duration

	// Серверный предохранитель поверх клиентского throttle gate.
	sampleLimitPerMinute int64
}

func New(repo Repository, c cache.BytesCache, f feed.Feed, currentTTL time.Duration) *Service {
	return &Service{
		repo:                 repo,
		cache:                c,
		feed:                 f,
		currentTTL:           currentTTL,
		sampleLimitPerMinute: 30,
	}
}

func (s *Service) WithRateLimiter(rl RateLimiter, perMinute int64) *Service {
	s.rl = rl
	if perMinute > 0 {
		s.sampleLimitPerMinute = perMinute
	}
	return s
}

func (s *Service) CreateDelivery(ctx context.Context, in models.DeliveryCreateInput) (*models.Delivery, error) {
	if in.BuilderID == "" {
		return nil, errors.New("builderId is required")
	}
	if in.PickupAddress == "" {
		return nil, errors.New("pickupAddress is required")
	}
	if in.DropoffAddress == "" {
		return nil, errors.New("dropoffAddress is required")
	}
	if in.Material == "" {
		return nil, errors.New("material is required")
	}

	d, err := s.repo.CreateDelivery(ctx, in)
	if err != nil {
		return nil, err
	}
	metrics.DeliveriesCreatedTotal.Inc()
	return d, nil
}

func (s *Service) GetDeliveriesByIDs(ctx context.Context, ids []uint64) ([]*models.Delivery, error) {
	if len(ids) == 0 {
		return []*models.Delivery{}, nil
	}
	// Кэшируем "текущее состояние" целиком как JSON доставки, на лучшем
	// усилии: кэш не обязан быть всегда.
	miss := make([]uint64, 0, len(ids))
	got := make(map[uint64]*models.Delivery, len(ids))

	if s.cache != nil && s.currentTTL > 0 {
		for _, id := range ids {
			key := currentKey(id)
			b, ok, err := s.cache.Get(ctx, key)
			if err != nil || !ok {
				miss = append(miss, id)
				continue
			}
			var d models.Delivery
			if json.Unmarshal(b, &d) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &d
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		fromDB, err := s.repo.GetDeliveriesByIDs(ctx, miss)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.currentTTL > 0 {
			for _, d := range fromDB {
				b, _ := json.Marshal(d)
				_ = s.cache.Set(ctx, currentKey(d.ID), b, s.currentTTL)
			}
		}
		for _, d := range fromDB {
			got[d.ID] = d
		}
	}

	// Собираем ответ в том же порядке, что ids.
	out := make([]*models.Delivery, 0, len(ids))
	for _, id := range ids {
		if d, ok := got[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) RespondToDelivery(ctx context.Context, deliveryID uint64, providerID string, accept bool) (*models.Delivery, error) {
	if deliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	if accept && providerID == "" {
		return nil, errors.New("providerId is required to accept")
	}
	d, err := s.repo.RespondToDelivery(ctx, deliveryID, providerID, accept)
	if err != nil {
		// отказ обычно значит, что кэш показал устаревший статус
		s.invalidateCurrent(ctx, deliveryID)
		return nil, err
	}
	s.refreshCurrent(ctx, d)
	return d, nil
}

func (s *Service) UpdateStatus(ctx context.Context, deliveryID uint64, to string) (*models.Delivery, error) {
	if !models.IsValidDeliveryStatus(to) {
		return nil, errors.Errorf("unknown delivery status %q", to)
	}
	d, err := s.repo.UpdateDeliveryStatus(ctx, deliveryID, to)
	if err != nil {
		s.invalidateCurrent(ctx, deliveryID)
		return nil, err
	}
	s.refreshCurrent(ctx, d)
	return d, nil
}

// RecordSample — прямой путь записи (HTTP). Один вызов — максимум одна новая
// строка журнала; строки никогда не обновляются.
func (s *Service) RecordSample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, error) {
	if s.rl != nil && s.sampleLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:sample:%s:%s", in.ProviderID, time.Now().UTC().Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, minuteKey, s.sampleLimitPerMinute, 70*time.Second)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errors.Errorf("sample rate limit exceeded for provider %s (%d/min)", in.ProviderID, n)
		}
	}
	return s.applySample(ctx, in)
}

// ApplySampleMessage применяет замер, приехавший из Kafka от агента.
// Доставка at-least-once: повтор гасится дедупом на вставке.
func (s *Service) ApplySampleMessage(ctx context.Context, msg messages.SampleRecorded) (*models.TrackingSample, error) {
	return s.applySample(ctx, models.SampleInput{
		DeliveryID: msg.DeliveryID,
		ProviderID: msg.ProviderID,
		Latitude:   msg.Latitude,
		Longitude:  msg.Longitude,
		Heading:    msg.Heading,
		Speed:      msg.Speed,
		Accuracy:   msg.Accuracy,
		Status:     msg.Status,
		Notes:      msg.Notes,
		RecordedAt: msg.RecordedAt,
	})
}

func (s *Service) applySample(ctx context.Context, in models.SampleInput) (*models.TrackingSample, error) {
	if in.DeliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	if in.ProviderID == "" {
		return nil, errors.New("providerId is required")
	}
	if !models.IsValidSampleStatus(in.Status) {
		return nil, errors.Errorf("unknown sample status %q", in.Status)
	}
	// recorded_at входит в дедуп-ключ вставки: нулевое время склеило бы все
	// прямые записи провайдера с одним статусом в одну строку.
	if in.RecordedAt.IsZero() {
		in.RecordedAt = time.Now().UTC()
	}

	sm, inserted, err := s.repo.InsertSample(ctx, in)
	if err != nil {
		return nil, err
	}
	if !inserted {
		metrics.SamplesDedupedTotal.Inc()
		return sm, nil
	}
	metrics.SamplesRecordedTotal.Inc()

	// Продвигаем родительскую доставку, если статус замера этого требует.
	// delivered — терминальный: после него записи больше не приходят
	// (агент сам останавливает трекинг).
	if target := models.DeliveryStatusForSample(in.Status); target != "" {
		if err := s.advanceDelivery(ctx, in.DeliveryID, target); err != nil {
			return nil, err
		}
	}

	if s.feed != nil {
		b, _ := json.Marshal(sm)
		if err := s.feed.Publish(ctx, sm.DeliveryID, b); err != nil {
			// Фид — уведомление, не источник истины: строка уже в журнале,
			// зрители доберут её при следующем начальном чтении.
			slog.Error("publish sample to feed", "delivery_id", sm.DeliveryID, "error", err.Error())
		} else {
			metrics.FeedEventsPublishedTotal.Inc()
		}
	}

	return sm, nil
}

func (s *Service) advanceDelivery(ctx context.Context, deliveryID uint64, target string) error {
	ds, err := s.repo.GetDeliveriesByIDs(ctx, []uint64{deliveryID})
	if err != nil {
		return err
	}
	if len(ds) != 1 {
		return errors.Errorf("delivery %d not found", deliveryID)
	}
	if !models.CanTransition(ds[0].Status, target) {
		// доставка уже там или дальше — замер просто ложится в журнал
		return nil
	}

	d, err := s.repo.UpdateDeliveryStatus(ctx, deliveryID, target)
	if err != nil {
		return err
	}
	s.refreshCurrent(ctx, d)
	return nil
}

func (s *Service) ListSamples(ctx context.Context, deliveryID uint64, limit int) ([]*models.TrackingSample, error) {
	if deliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	return s.repo.ListSamples(ctx, deliveryID, limit)
}

func (s *Service) LatestSample(ctx context.Context, deliveryID uint64) (*models.TrackingSample, error) {
	return s.repo.LatestSample(ctx, deliveryID)
}

func (s *Service) PostMessage(ctx context.Context, in pgdelivery.MessageInput) (*models.Communication, error) {
	if in.DeliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	if !models.IsValidRole(in.SenderRole) {
		return nil, errors.Errorf("unknown sender role %q", in.SenderRole)
	}
	if !models.IsValidMessageKind(in.Kind) {
		return nil, errors.Errorf("unknown message kind %q", in.Kind)
	}
	if in.Body == "" {
		return nil, errors.New("body is required")
	}
	return s.repo.InsertMessage(ctx, in)
}

func (s *Service) ListMessages(ctx context.Context, deliveryID uint64, limit int) ([]*models.Communication, error) {
	if deliveryID == 0 {
		return nil, errors.New("deliveryId is required")
	}
	return s.repo.ListMessages(ctx, deliveryID, limit)
}

func (s *Service) invalidateCurrent(ctx context.Context, id uint64) {
	if s.cache == nil || s.currentTTL <= 0 {
		return
	}
	_ = s.cache.Del(ctx, currentKey(id))
}

func (s *Service) refreshCurrent(ctx context.Context, d *models.Delivery) {
	if s.cache == nil || s.currentTTL <= 0 {
		return
	}
	b, _ := json.Marshal(d)
	_ = s.cache.Set(ctx, currentKey(d.ID), b, s.currentTTL)
}

func currentKey(id uint64) string {
	return fmt.Sprintf("delivery:%d:current", id)
}
