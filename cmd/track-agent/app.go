package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/UjenziPro/HaulTrack/config"
	"github.com/UjenziPro/HaulTrack/internal/broker/kafka"
	"github.com/UjenziPro/HaulTrack/internal/geo"
	"github.com/UjenziPro/HaulTrack/internal/geo/gatewayhttp"
	"github.com/UjenziPro/HaulTrack/internal/geo/simsource"
	"github.com/UjenziPro/HaulTrack/internal/services/tracker"
	"github.com/pkg/errors"
)

type agentFactories struct {
	newProducer  func(cfg *config.Config) tracker.Producer
	newGeoSource func(cfg *config.Config, deliveryID uint64) geo.Source
}

func defaultAgentFactories() agentFactories {
	return agentFactories{
		newProducer: func(cfg *config.Config) tracker.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newGeoSource: func(cfg *config.Config, deliveryID uint64) geo.Source {
			// По умолчанию — детерминированный симулятор; gateway включается
			// явно, когда есть живой GPS-шлюз.
			if cfg.HaulTrack.GeoSourceMode == "gateway" && cfg.HaulTrack.GatewayBaseURL != "" {
				poll := time.Duration(cfg.HaulTrack.GatewayPollIntervalSeconds) * time.Second
				if poll <= 0 {
					poll = time.Second
				}
				maxAge := time.Duration(cfg.HaulTrack.GatewayMaxFixAgeSeconds) * time.Second
				return gatewayhttp.New(
					cfg.HaulTrack.GatewayBaseURL,
					cfg.HaulTrack.GatewayAPIKey,
					cfg.HaulTrack.GatewayDeviceID,
					poll, maxAge,
				)
			}
			tick := time.Duration(cfg.HaulTrack.SimTickIntervalSeconds) * time.Second
			if tick <= 0 {
				tick = time.Second
			}
			return simsource.New(deliveryID, cfg.HaulTrack.SimStartLat, cfg.HaulTrack.SimStartLon, tick)
		},
	}
}

// agent связывает admin-HTTP с трекером. Трекер живёт от start до stop:
// источник позиции сидируется конкретной доставкой, поэтому создаётся заново
// на каждый запуск.
type agent struct {
	cfg        *config.Config
	factories  agentFactories
	producer   tracker.Producer
	topic      string
	providerID string

	throttle        time.Duration
	firstFixTimeout time.Duration

	mu sync.Mutex
	tr *tracker.Tracker
}

func (a *agent) start(ctx context.Context, deliveryID uint64, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tr != nil {
		if id, active := a.tr.Active(); active {
			return errors.Errorf("tracking already active for delivery %d", id)
		}
	}

	src := a.factories.newGeoSource(a.cfg, deliveryID)
	tr := tracker.New(src, a.producer, a.topic, a.providerID).
		WithSettings(a.throttle, a.firstFixTimeout)
	if err := tr.Start(ctx, deliveryID, status); err != nil {
		return err
	}
	a.tr = tr
	return nil
}

func (a *agent) setStatus(status string) error {
	a.mu.Lock()
	tr := a.tr
	a.mu.Unlock()
	if tr == nil {
		return errors.New("tracking is not active")
	}
	return tr.SetStatus(status)
}

func (a *agent) stop() {
	a.mu.Lock()
	tr := a.tr
	a.mu.Unlock()
	if tr != nil {
		tr.Stop()
	}
}

func (a *agent) stats() tracker.Stats {
	a.mu.Lock()
	tr := a.tr
	a.mu.Unlock()
	if tr == nil {
		return tracker.Stats{}
	}
	return tr.Stats()
}

func (a *agent) current() *geo.Fix {
	a.mu.Lock()
	tr := a.tr
	a.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Current()
}

func RunTrackAgent(ctx context.Context, cfg *config.Config, f agentFactories) error {
	topic := cfg.Kafka.SampleRecordedTopicName
	if topic == "" {
		topic = "tracking.sample.recorded"
	}
	providerID := cfg.HaulTrack.AgentProviderID
	if providerID == "" {
		return errors.New("agent_provider_id is required")
	}

	throttle := time.Duration(cfg.HaulTrack.AgentThrottleSeconds) * time.Second
	if throttle <= 0 {
		throttle = 5 * time.Second
	}
	firstFix := time.Duration(cfg.HaulTrack.AgentFirstFixTimeoutSeconds) * time.Second
	if firstFix <= 0 {
		firstFix = 10 * time.Second
	}

	a := &agent{
		cfg:             cfg,
		factories:       f,
		producer:        f.newProducer(cfg),
		topic:           topic,
		providerID:      providerID,
		throttle:        throttle,
		firstFixTimeout: firstFix,
	}
	defer a.stop()

	return runAgentHTTPServer(ctx, agentHTTPOpts{
		httpAddr: cfg.HaulTrack.AgentHTTPAddr,
		agent:    a,
	})
}
