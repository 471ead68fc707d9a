package tnom

import "testing"

// Notifier has both PagerDuty and Telegram disabled in these tests, so
// Evaluate/EvaluateAPIStatus exercise real Send calls that are each a
// no-op; assertions instead check the persisted EpochRecord side
// effects and in-memory dedup flags, which is what the spec's testable
// properties actually quantify.

func TestAlertEngineConsecutiveMissThreshold(t *testing.T) {
	store := openTestStore(t)
	notifier := NewNotifier(&AlertConfig{}, NewLogger())
	engine := NewAlertEngine(notifier)

	var record *EpochRecord
	for i := 0; i < 3; i++ {
		tick := &CollectTick{SignedThisTick: false, CurrentEpoch: 2, WalletBalance: 5_000_000}
		r, err := ReduceState(store, tick)
		if err != nil {
			t.Fatalf("ReduceState: %v", err)
		}
		if err = engine.Evaluate(store, r, tick); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		record = r
	}

	if record.ConsecutiveMisses != 3 {
		t.Errorf("ConsecutiveMisses = %d, want 3", record.ConsecutiveMisses)
	}
	if record.UnsignedOracleEvents != 3 {
		t.Errorf("UnsignedOracleEvents = %d, want 3", record.UnsignedOracleEvents)
	}
	if !engine.alertSent[flagConsecutive] {
		t.Error("expected consecutive-miss alert flag to be set after 3 consecutive misses")
	}
}

func TestAlertEngineSignedTickResetsConsecutiveMisses(t *testing.T) {
	store := openTestStore(t)
	notifier := NewNotifier(&AlertConfig{}, NewLogger())
	engine := NewAlertEngine(notifier)

	unsignedTick := &CollectTick{SignedThisTick: false, CurrentEpoch: 1, WalletBalance: 5_000_000}
	r, err := ReduceState(store, unsignedTick)
	if err != nil {
		t.Fatalf("ReduceState: %v", err)
	}
	if err = engine.Evaluate(store, r, unsignedTick); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	signedTick := &CollectTick{SignedThisTick: true, CurrentEpoch: 1, WalletBalance: 5_000_000}
	r, err = ReduceState(store, signedTick)
	if err != nil {
		t.Fatalf("ReduceState: %v", err)
	}
	if err = engine.Evaluate(store, r, signedTick); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if r.ConsecutiveMisses != 0 {
		t.Errorf("ConsecutiveMisses = %d, want 0 after a signed tick", r.ConsecutiveMisses)
	}
}

func TestAlertEngineBalanceThresholdsAndRecovery(t *testing.T) {
	store := openTestStore(t)
	notifier := NewNotifier(&AlertConfig{}, NewLogger())
	engine := NewAlertEngine(notifier)

	tick1 := &CollectTick{SignedThisTick: true, CurrentEpoch: 1, WalletBalance: 900_000}
	r, _ := ReduceState(store, tick1)
	if err := engine.Evaluate(store, r, tick1); err != nil {
		t.Fatalf("Evaluate 1: %v", err)
	}
	if r.SmallBalanceAlertExecuted != 1 {
		t.Errorf("expected small_balance_alert_executed=1 after balance below T1, got %d", r.SmallBalanceAlertExecuted)
	}
	if r.VerySmallBalanceAlertExecuted != 0 {
		t.Errorf("expected very_small_balance_alert_executed=0 when balance is above T2, got %d", r.VerySmallBalanceAlertExecuted)
	}

	tick2 := &CollectTick{SignedThisTick: true, CurrentEpoch: 1, WalletBalance: 1_500_000}
	r, _ = ReduceState(store, tick2)
	if err := engine.Evaluate(store, r, tick2); err != nil {
		t.Fatalf("Evaluate 2: %v", err)
	}
	if r.SmallBalanceAlertExecuted != 0 {
		t.Errorf("expected recovery to clear small_balance_alert_executed, got %d", r.SmallBalanceAlertExecuted)
	}

	tick3 := &CollectTick{SignedThisTick: true, CurrentEpoch: 1, WalletBalance: 50_000}
	r, _ = ReduceState(store, tick3)
	if err := engine.Evaluate(store, r, tick3); err != nil {
		t.Fatalf("Evaluate 3: %v", err)
	}
	if r.SmallBalanceAlertExecuted != 1 || r.VerySmallBalanceAlertExecuted != 1 {
		t.Errorf("expected both latches set when balance crosses both thresholds, got small=%d very_small=%d",
			r.SmallBalanceAlertExecuted, r.VerySmallBalanceAlertExecuted)
	}
}

func TestAlertEngineAPIDownAndRecovery(t *testing.T) {
	store := openTestStore(t)
	if err := store.Upsert(&EpochRecord{SlashEpoch: 1}); err != nil {
		t.Fatalf("seed epoch: %v", err)
	}
	notifier := NewNotifier(&AlertConfig{}, NewLogger())
	engine := NewAlertEngine(notifier)

	for i := 0; i < 3; i++ {
		if err := engine.EvaluateAPIStatus(store, true); err != nil {
			t.Fatalf("EvaluateAPIStatus(down) iteration %d: %v", i, err)
		}
	}
	if !engine.alertSent[flagHealthyAPIMissing] {
		t.Error("expected healthy_api_missing flag set after 3 consecutive down probes")
	}

	r, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.APIConsMiss != 3 {
		t.Errorf("api_cons_miss = %d, want 3", r.APIConsMiss)
	}

	if err = engine.EvaluateAPIStatus(store, false); err != nil {
		t.Fatalf("EvaluateAPIStatus(recovery): %v", err)
	}
	if engine.alertSent[flagHealthyAPIMissing] {
		t.Error("expected healthy_api_missing flag cleared on recovery")
	}
	r, err = store.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.APIConsMiss != 0 {
		t.Errorf("api_cons_miss = %d, want 0 after recovery", r.APIConsMiss)
	}
}

func TestAlertEngineSeedFromRecordAvoidsReAlertingPastThresholds(t *testing.T) {
	notifier := NewNotifier(&AlertConfig{}, NewLogger())
	engine := NewAlertEngine(notifier)

	engine.SeedFromRecord(&EpochRecord{
		SlashEpoch:           4,
		ConsecutiveMisses:    5,
		UnsignedOracleEvents: 25,
		APIConsMiss:          4,
	})

	if !engine.alertSent[flagConsecutive] || !engine.alertSent[flagTotal] || !engine.alertSent[flagCritical] {
		t.Error("expected all signing flags to be pre-set after seeding from a record already past threshold")
	}
	if !engine.alertSent[flagHealthyAPIMissing] {
		t.Error("expected healthy_api_missing flag pre-set after seeding from a record already past threshold")
	}
}
