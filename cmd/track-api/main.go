package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UjenziPro/HaulTrack/config"
	"github.com/UjenziPro/HaulTrack/internal/broker/kafka"
	"github.com/UjenziPro/HaulTrack/internal/cache/rediscache"
	"github.com/UjenziPro/HaulTrack/internal/feed/redisfeed"
	"github.com/UjenziPro/HaulTrack/internal/services/deliveries"
	"github.com/UjenziPro/HaulTrack/internal/storage/pgdelivery"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.HaulTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.HaulTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-api"
	}
	topic := cfg.Kafka.SampleRecordedTopicName
	if topic == "" {
		topic = "tracking.sample.recorded"
	}
	cacheTTL := time.Duration(cfg.HaulTrack.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgdelivery.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	ff := redisfeed.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	svc := deliveries.New(st, rc, ff, cacheTTL).
		WithRateLimiter(rl, int64(cfg.HaulTrack.SampleRateLimitPerMinute))

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runTrackAPI(ctx, trackAPIOpts{
		httpAddr:      httpAddr,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, svc, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
