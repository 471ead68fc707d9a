// Package tnom implements the monitoring engine for a Nibiru oracle
// price-feeder: the redundant-endpoint health selector, the per-tick
// collector, the epoch-keyed state store, the deduplicating alert
// engine, and the concurrent task supervisor that ties them together.
package tnom

const (
	// OneNibi is the "1 NIBI" balance alert threshold, denominated in unibi.
	OneNibi = 1_000_000
	// TenthNibi is the "0.1 NIBI" balance alert threshold, denominated in unibi.
	TenthNibi = 100_000

	// MaxBlockHeightDiff is the maximum number of blocks an endpoint may
	// lag the tallest observed chain height and still be considered healthy.
	MaxBlockHeightDiff = 25

	// DefaultMonitoringIntervalSeconds is used when config.yml omits
	// monitoring_interval.
	DefaultMonitoringIntervalSeconds = 60

	// DefaultPrometheusHost and DefaultPrometheusPort back the metrics
	// endpoint when alert.yml doesn't override them.
	DefaultPrometheusHost = "127.0.0.1"
	DefaultPrometheusPort = 7130

	// requestTimeoutSeconds bounds every upstream REST call made by
	// EndpointProbe and Collector.
	requestTimeoutSeconds = 5

	// healthPingTimeoutSeconds bounds a single dead-man-switch ping.
	healthPingTimeoutSeconds = 10

	// tickBackoffSeconds is how long the monitor loop waits after a
	// failed tick before retrying.
	tickBackoffSeconds = 10

	// unibiDenom is the denomination the price feeder's balance is tracked in.
	unibiDenom = "unibi"
)

// EndpointStatus is the transient, per-tick outcome of probing a single
// configured REST endpoint for its latest block.
type EndpointStatus struct {
	BaseURL     string
	BlockHeight int64
	Healthy     bool
}

// CollectTick is the transient result of one full collection pass
// against a single, already-healthy endpoint.
type CollectTick struct {
	Endpoint       string
	MissCounter    int64
	SignedThisTick bool
	CurrentEpoch   int64
	WalletBalance  int64
}

// EpochRecord is the persistent, per-epoch row tracked in EpochStore.
// Field names match the `tnom` table's columns one-for-one.
type EpochRecord struct {
	SlashEpoch int64

	MissCounterEvents             int64
	MissCounterP1Executed         int
	MissCounterP2Executed         int
	MissCounterP3Executed         int
	UnsignedOracleEvents          int64
	PriceFeedAddrBalance          int64
	SmallBalanceAlertExecuted     int
	VerySmallBalanceAlertExecuted int
	ConsecutiveMisses             int64
	APIConsMiss                   int64
}
