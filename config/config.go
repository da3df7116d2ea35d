package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	HaulTrack HaulTrackConfig `yaml:"haultrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	SampleRecordedTopicName string `yaml:"sample_recorded_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type HaulTrackConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`
	SampleRateLimitPerMinute int   `yaml:"sample_rate_limit_per_minute"`

	// Агент-трекер.
	AgentHTTPAddr             string `yaml:"agent_http_addr"`
	AgentProviderID           string `yaml:"agent_provider_id"`
	AgentThrottleSeconds      int    `yaml:"agent_throttle_seconds"`
	AgentFirstFixTimeoutSeconds int  `yaml:"agent_first_fix_timeout_seconds"`

	// Источник позиции: "sim" | "gateway".
	GeoSourceMode string `yaml:"geo_source_mode"`

	// sim: детерминированная прогулка от стартовой точки.
	SimStartLat             float64 `yaml:"sim_start_lat"`
	SimStartLon             float64 `yaml:"sim_start_lon"`
	SimTickIntervalSeconds  int     `yaml:"sim_tick_interval_seconds"`

	// gateway: опрос GPS-шлюза по HTTP.
	GatewayBaseURL             string `yaml:"gateway_base_url"`
	GatewayAPIKey              string `yaml:"gateway_api_key"`
	GatewayDeviceID            string `yaml:"gateway_device_id"`
	GatewayPollIntervalSeconds int    `yaml:"gateway_poll_interval_seconds"`
	GatewayMaxFixAgeSeconds    int    `yaml:"gateway_max_fix_age_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
