package tnom

import "fmt"

// AlertEngine is the stateful, deduplicating evaluator that turns a
// reduced EpochRecord into zero or more outbound notifications. It is
// an explicitly constructed value owned by the supervisor and passed
// by reference into the monitor loop — never a package-level global —
// so that tests (and any future multi-validator supervisor) can run
// independent instances side by side.
type AlertEngine struct {
	notifier *Notifier

	haveLastAlertEpoch bool
	lastAlertEpoch     int64

	apiConsecutiveMisses int64
	alertSent            map[string]bool
}

const (
	flagConsecutive       = "consecutive"
	flagTotal             = "total"
	flagCritical          = "critical"
	flagHealthyAPIMissing = "healthy_api_missing"
)

// NewAlertEngine builds an AlertEngine with empty dedup state.
func NewAlertEngine(notifier *Notifier) *AlertEngine {
	return &AlertEngine{notifier: notifier, alertSent: map[string]bool{}}
}

// SeedFromRecord re-derives in-memory dedup state after a restart, so
// thresholds already latched in persisted state are not re-alerted.
// Persisted latches (balance, miss-counter) are read directly off the
// record at evaluation time and need no seeding; only the
// epoch-scoped signing flags and the API-down counter are reconstructed
// here, since they have no dedicated persisted flag of their own.
func (e *AlertEngine) SeedFromRecord(r *EpochRecord) {
	e.haveLastAlertEpoch = true
	e.lastAlertEpoch = r.SlashEpoch
	e.apiConsecutiveMisses = r.APIConsMiss

	e.alertSent[flagConsecutive] = r.ConsecutiveMisses >= 3
	e.alertSent[flagTotal] = r.UnsignedOracleEvents >= 10
	e.alertSent[flagCritical] = r.UnsignedOracleEvents >= 20
	e.alertSent[flagHealthyAPIMissing] = r.APIConsMiss >= 3
}

// Evaluate folds tick against record (as produced by ReduceState),
// emits any newly-crossed alerts, and persists every field it mutates
// back into store.
func (e *AlertEngine) Evaluate(store *EpochStore, record *EpochRecord, tick *CollectTick) error {
	if !e.haveLastAlertEpoch || tick.CurrentEpoch != e.lastAlertEpoch {
		delete(e.alertSent, flagConsecutive)
		delete(e.alertSent, flagTotal)
		delete(e.alertSent, flagCritical)
		e.lastAlertEpoch = tick.CurrentEpoch
		e.haveLastAlertEpoch = true
	}

	e.evaluateBalance(record, tick.WalletBalance)
	e.evaluateSigning(record, tick)
	e.evaluateMissCounter(record)

	return store.Upsert(record)
}

func (e *AlertEngine) evaluateBalance(record *EpochRecord, balance int64) {
	if balance < OneNibi {
		if record.SmallBalanceAlertExecuted == 0 {
			e.notifier.Send(SeverityCritical, "Price feeder wallet balance has less than 1 NIBI!",
				fmt.Sprintf("balance: %d unibi", balance))
			record.SmallBalanceAlertExecuted = 1
		}
	} else if record.SmallBalanceAlertExecuted != 0 {
		e.notifier.Send(SeverityInfo, "Price feeder wallet balance has recovered above 1 NIBI",
			fmt.Sprintf("balance: %d unibi", balance))
		record.SmallBalanceAlertExecuted = 0
	}

	if balance < TenthNibi {
		if record.VerySmallBalanceAlertExecuted == 0 {
			e.notifier.Send(SeverityCritical, "Price feeder wallet balance has less than 0.1 NIBI!",
				fmt.Sprintf("balance: %d unibi", balance))
			record.VerySmallBalanceAlertExecuted = 1
		}
	} else if record.VerySmallBalanceAlertExecuted != 0 {
		e.notifier.Send(SeverityInfo, "Price feeder wallet balance has recovered above 0.1 NIBI",
			fmt.Sprintf("balance: %d unibi", balance))
		record.VerySmallBalanceAlertExecuted = 0
	}
}

func (e *AlertEngine) evaluateSigning(record *EpochRecord, tick *CollectTick) {
	if tick.SignedThisTick {
		record.ConsecutiveMisses = 0
	} else {
		record.ConsecutiveMisses++
	}

	if record.ConsecutiveMisses >= 3 && !e.alertSent[flagConsecutive] {
		e.notifier.Send(SeverityCritical,
			fmt.Sprintf("%d consecutive unsigned events detected", record.ConsecutiveMisses),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		e.alertSent[flagConsecutive] = true
	}

	if record.UnsignedOracleEvents >= 10 && !e.alertSent[flagTotal] {
		e.notifier.Send(SeverityCritical,
			fmt.Sprintf("Total unsigned events (%d) exceeded threshold", record.UnsignedOracleEvents),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		e.alertSent[flagTotal] = true
	}

	if record.UnsignedOracleEvents >= 20 && !e.alertSent[flagCritical] {
		e.notifier.Send(SeverityCritical,
			fmt.Sprintf("CRITICAL: Unsigned events (%d) at critical level", record.UnsignedOracleEvents),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		e.alertSent[flagCritical] = true
	}
}

func (e *AlertEngine) evaluateMissCounter(record *EpochRecord) {
	if record.MissCounterEvents > 10 && record.MissCounterP3Executed == 0 {
		e.notifier.Send(SeverityWarning,
			fmt.Sprintf("Validator miss counter (%d) exceeded 10", record.MissCounterEvents),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		record.MissCounterP3Executed = 1
	}
	if record.MissCounterEvents > 25 && record.MissCounterP2Executed == 0 {
		e.notifier.Send(SeverityCritical,
			fmt.Sprintf("Validator miss counter (%d) exceeded 25", record.MissCounterEvents),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		record.MissCounterP2Executed = 1
	}
	if record.MissCounterEvents > 50 && record.MissCounterP1Executed == 0 {
		e.notifier.Send(SeverityCritical,
			fmt.Sprintf("Validator miss counter (%d) exceeded 50", record.MissCounterEvents),
			fmt.Sprintf("epoch: %d", record.SlashEpoch))
		record.MissCounterP1Executed = 1
	}
}

// EvaluateAPIStatus handles the API-down alert family, invoked by the
// monitor loop whenever EndpointProbe's healthy set is empty
// (noHealthy=true) or has just recovered (noHealthy=false). Unlike the
// other alert families this one is not epoch-scoped: it persists into
// whichever epoch row is currently the latest, since no tick (and thus
// no current epoch) exists while every endpoint is down.
func (e *AlertEngine) EvaluateAPIStatus(store *EpochStore, noHealthy bool) error {
	if noHealthy {
		e.apiConsecutiveMisses++
		if e.apiConsecutiveMisses >= 3 && !e.alertSent[flagHealthyAPIMissing] {
			e.notifier.Send(SeverityCritical, "API not working!",
				fmt.Sprintf("consecutive failed probes: %d", e.apiConsecutiveMisses))
			e.alertSent[flagHealthyAPIMissing] = true
		}
	} else {
		if e.apiConsecutiveMisses >= 3 && e.alertSent[flagHealthyAPIMissing] {
			e.notifier.Send(SeverityInfo, "API working again!", "healthy endpoint observed")
		}
		e.apiConsecutiveMisses = 0
		e.alertSent[flagHealthyAPIMissing] = false
	}

	epoch, ok, err := store.LastEpoch()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return store.SetField(epoch, "api_cons_miss", e.apiConsecutiveMisses)
}
