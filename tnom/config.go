package tnom

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/go-yaml/yaml"
)

// Config holds the read-only, process-lifetime settings that drive the
// monitor loop: which validator and wallet to watch, and which
// redundant endpoints to poll.
type Config struct {
	ValidatorAddress   string   `yaml:"validator_address"`
	PriceFeedAddr      string   `yaml:"price_feed_addr"`
	APIs               []string `yaml:"APIs"`
	MonitoringInterval int      `yaml:"monitoring_interval"`
}

// AlertConfig holds the read-only, process-lifetime settings for
// notification channels, the health-check pinger, and the metrics
// endpoint.
type AlertConfig struct {
	TelegramAlerts  bool `yaml:"telegram_alerts"`
	PagerdutyAlerts bool `yaml:"pagerduty_alerts"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	PagerdutyRoutingKey string `yaml:"pagerduty_routing_key"`

	HealthCheckEnabled  bool   `yaml:"health_check_enabled"`
	HealthCheckURL      string `yaml:"health_check_url"`
	HealthCheckInterval int    `yaml:"health_check_interval"`

	PrometheusClientEnabled bool   `yaml:"prometheus_client_enabled"`
	PrometheusHost          string `yaml:"prometheus_host"`
	PrometheusPort          int    `yaml:"prometheus_port"`
}

// LoadConfig reads and validates config.yml. Required fields are
// validator_address, price_feed_addr, and a non-empty APIs list, per
// spec; monitoring_interval defaults to DefaultMonitoringIntervalSeconds.
func LoadConfig(path string) (*Config, error) {
	//#nosec -- path is specified on the command line
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c := &Config{}
	if err = yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.ValidatorAddress == "" {
		return nil, errors.New("config: validator_address must be provided")
	}
	if c.PriceFeedAddr == "" {
		return nil, errors.New("config: price_feed_addr must be provided")
	}
	if len(c.APIs) == 0 {
		return nil, errors.New("config: APIs must be provided")
	}
	if _, _, err = bech32.DecodeAndConvert(c.ValidatorAddress); err != nil {
		return nil, fmt.Errorf("config: validator_address is not a valid bech32 address: %w", err)
	}
	if _, _, err = bech32.DecodeAndConvert(c.PriceFeedAddr); err != nil {
		return nil, fmt.Errorf("config: price_feed_addr is not a valid bech32 address: %w", err)
	}

	if c.MonitoringInterval <= 0 {
		c.MonitoringInterval = DefaultMonitoringIntervalSeconds
	}

	return c, nil
}

// LoadAlertConfig reads and validates alert.yml. At least one of
// telegram_alerts/pagerduty_alerts must be true, and the credentials
// for whichever channel is enabled must be present.
func LoadAlertConfig(path string) (*AlertConfig, error) {
	//#nosec -- path is specified on the command line
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alert config %s: %w", path, err)
	}

	a := &AlertConfig{}
	if err = yaml.Unmarshal(b, a); err != nil {
		return nil, fmt.Errorf("parse alert config %s: %w", path, err)
	}

	if !a.TelegramAlerts && !a.PagerdutyAlerts {
		return nil, errors.New("alert config: no alerts are enabled, enable at least one of telegram_alerts or pagerduty_alerts")
	}
	if a.TelegramAlerts && (a.TelegramBotToken == "" || a.TelegramChatID == "") {
		return nil, errors.New("alert config: telegram_bot_token and telegram_chat_id must be provided when telegram_alerts is enabled")
	}
	if a.PagerdutyAlerts && a.PagerdutyRoutingKey == "" {
		return nil, errors.New("alert config: pagerduty_routing_key must be provided when pagerduty_alerts is enabled")
	}
	if a.HealthCheckEnabled {
		if a.HealthCheckURL == "" {
			return nil, errors.New("alert config: health_check_url must be provided when health_check_enabled is true")
		}
		if a.HealthCheckInterval <= 0 {
			return nil, errors.New("alert config: health_check_interval must be a positive number of seconds")
		}
	}

	if a.PrometheusHost == "" {
		a.PrometheusHost = DefaultPrometheusHost
	}
	if a.PrometheusPort == 0 {
		a.PrometheusPort = DefaultPrometheusPort
	}

	return a, nil
}

// HealthCheckIntervalDuration is a convenience accessor used by HealthPinger.
func (a *AlertConfig) HealthCheckIntervalDuration() time.Duration {
	return time.Duration(a.HealthCheckInterval) * time.Second
}
