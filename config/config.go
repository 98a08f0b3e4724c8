package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Hubs       HubsConfig       `yaml:"hubs"`
	OrderAPI   OrderAPIConfig   `yaml:"order_api"`
	OrderPulse OrderPulseConfig `yaml:"orderpulse"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, ssl)
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	StatusUpdatedTopicName   string `yaml:"status_updated_topic_name"`
	LocationUpdatedTopicName string `yaml:"location_updated_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HubsConfig holds the three realtime hub endpoints.
type HubsConfig struct {
	OrderStatusURL  string `yaml:"order_status_url"`
	NotificationURL string `yaml:"notification_url"`
	LocationURL     string `yaml:"location_url"`
}

type OrderAPIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type OrderPulseConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	TenantID  int64  `yaml:"tenant_id"`
	BookingID string `yaml:"booking_id"`

	SessionToken string `yaml:"session_token"`

	LocationIntervalSeconds int    `yaml:"location_interval_seconds"`
	GeoSourceMode           string `yaml:"geo_source_mode"` // "fake" | "http"
	GeoSourceBaseURL        string `yaml:"geo_source_base_url"`

	SnapshotTTLSeconds int `yaml:"snapshot_ttl_seconds"`

	RepullLimitPerWindow int `yaml:"repull_limit_per_window"`
	OrdersPageSize       int `yaml:"orders_page_size"`
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
