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
  name: "orderpulse"
kafka:
  host: "localhost"
  port: 9092
  status_updated_topic_name: "orders.status.updated"
  location_updated_topic_name: "orders.location.updated"
redis:
  host: "localhost"
  port: 6379
hubs:
  order_status_url: "ws://localhost:8080/orderStatusHub"
  notification_url: "ws://localhost:8080/notificationHub"
  location_url: "ws://localhost:8080/locationHub"
order_api:
  base_url: "http://localhost:8080/api"
orderpulse:
  http_addr: ":8091"
  kafka_consumer_group: "orderpulse-mirror"
  tenant_id: 7
  location_interval_seconds: 60
  geo_source_mode: "fake"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/orderpulse?sslmode=disable", cfg.Database.DSN())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "orders.status.updated", cfg.Kafka.StatusUpdatedTopicName)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, "ws://localhost:8080/orderStatusHub", cfg.Hubs.OrderStatusURL)
	require.Equal(t, ":8091", cfg.OrderPulse.HTTPAddr)
	require.Equal(t, int64(7), cfg.OrderPulse.TenantID)
	require.Equal(t, 60, cfg.OrderPulse.LocationIntervalSeconds)
}
