package tnom

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// a12uel5l is the canonical zero-payload bech32 string from BIP-173's
// test vectors; it decodes cleanly regardless of human-readable part,
// which is all LoadConfig's bech32 sanity check exercises.
const validValidatorAddr = "a12uel5l"
const validWalletAddr = "a12uel5l"

func TestLoadConfigDefaultsMonitoringInterval(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
validator_address: `+validValidatorAddr+`
price_feed_addr: `+validWalletAddr+`
APIs:
  - https://a.example.com
  - https://b.example.com
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MonitoringInterval != DefaultMonitoringIntervalSeconds {
		t.Errorf("MonitoringInterval = %d, want default %d", cfg.MonitoringInterval, DefaultMonitoringIntervalSeconds)
	}
	if len(cfg.APIs) != 2 {
		t.Errorf("APIs = %v, want 2 entries", cfg.APIs)
	}
}

func TestLoadConfigRejectsMissingAPIs(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
validator_address: `+validValidatorAddr+`
price_feed_addr: `+validWalletAddr+`
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for missing APIs")
	}
}

func TestLoadAlertConfigRequiresAtLeastOneChannel(t *testing.T) {
	path := writeTempFile(t, "alert.yml", `
telegram_alerts: false
pagerduty_alerts: false
`)
	if _, err := LoadAlertConfig(path); err == nil {
		t.Fatal("expected an error when no alert channel is enabled")
	}
}

func TestLoadAlertConfigDefaultsMetricsAddress(t *testing.T) {
	path := writeTempFile(t, "alert.yml", `
telegram_alerts: true
telegram_bot_token: "token"
telegram_chat_id: "123"
pagerduty_alerts: false
`)
	cfg, err := LoadAlertConfig(path)
	if err != nil {
		t.Fatalf("LoadAlertConfig: %v", err)
	}
	if cfg.PrometheusHost != DefaultPrometheusHost || cfg.PrometheusPort != DefaultPrometheusPort {
		t.Errorf("metrics defaults = %s:%d, want %s:%d", cfg.PrometheusHost, cfg.PrometheusPort, DefaultPrometheusHost, DefaultPrometheusPort)
	}
}

func TestLoadAlertConfigRequiresPagerdutyRoutingKey(t *testing.T) {
	path := writeTempFile(t, "alert.yml", `
telegram_alerts: false
pagerduty_alerts: true
`)
	if _, err := LoadAlertConfig(path); err == nil {
		t.Fatal("expected an error when pagerduty_alerts is enabled without a routing key")
	}
}
