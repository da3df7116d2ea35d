package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  sample_recorded_topic_name: "tracking.sample.recorded"
redis:
  host: "localhost"
  port: 6379
haultrack:
  http_addr: ":8080"
  kafka_consumer_group: "track-api"
  current_status_ttl_seconds: 600
  agent_provider_id: "prov-1"
  agent_throttle_seconds: 5
  geo_source_mode: "sim"
  sim_start_lat: -1.2921
  sim_start_lon: 36.8219
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "tracking.sample.recorded", cfg.Kafka.SampleRecordedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.HaulTrack.HTTPAddr)
	require.Equal(t, 5, cfg.HaulTrack.AgentThrottleSeconds)
	require.Equal(t, "sim", cfg.HaulTrack.GeoSourceMode)
	require.InDelta(t, -1.2921, cfg.HaulTrack.SimStartLat, 1e-9)
}

func TestLoadConfig_missingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
