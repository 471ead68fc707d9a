package tnom

import "testing"

func TestReduceStateFreshRunInsertsRow(t *testing.T) {
	store := openTestStore(t)

	tick := &CollectTick{
		MissCounter:    0,
		SignedThisTick: true,
		CurrentEpoch:   2,
		WalletBalance:  5_000_000,
	}

	r, err := ReduceState(store, tick)
	if err != nil {
		t.Fatalf("ReduceState: %v", err)
	}
	if r.SlashEpoch != 2 || r.UnsignedOracleEvents != 0 || r.ConsecutiveMisses != 0 {
		t.Errorf("unexpected fresh row: %+v", r)
	}
}

func TestReduceStateExistingEpochAccumulatesUnsignedEvents(t *testing.T) {
	store := openTestStore(t)

	tick1 := &CollectTick{SignedThisTick: false, CurrentEpoch: 2, WalletBalance: 5_000_000}
	if _, err := ReduceState(store, tick1); err != nil {
		t.Fatalf("ReduceState 1: %v", err)
	}
	tick2 := &CollectTick{SignedThisTick: false, CurrentEpoch: 2, WalletBalance: 5_000_000}
	r, err := ReduceState(store, tick2)
	if err != nil {
		t.Fatalf("ReduceState 2: %v", err)
	}

	if r.UnsignedOracleEvents != 2 {
		t.Errorf("UnsignedOracleEvents = %d, want 2", r.UnsignedOracleEvents)
	}
}

func TestReduceStateEpochRolloverCarriesBalanceLatchesAndConsecutiveMisses(t *testing.T) {
	store := openTestStore(t)

	err := store.Upsert(&EpochRecord{
		SlashEpoch:                5,
		SmallBalanceAlertExecuted: 1,
		ConsecutiveMisses:         2,
	})
	if err != nil {
		t.Fatalf("seed epoch 5: %v", err)
	}

	tick := &CollectTick{SignedThisTick: true, CurrentEpoch: 6, WalletBalance: 1_500_000}
	r, err := ReduceState(store, tick)
	if err != nil {
		t.Fatalf("ReduceState: %v", err)
	}

	if r.SmallBalanceAlertExecuted != 1 {
		t.Errorf("expected small_balance_alert_executed carried over as 1, got %d", r.SmallBalanceAlertExecuted)
	}
	if r.ConsecutiveMisses != 2 {
		t.Errorf("expected consecutive_misses carried over as 2 before AlertEngine runs, got %d", r.ConsecutiveMisses)
	}
	if r.UnsignedOracleEvents != 0 {
		t.Errorf("expected unsigned_oracle_events reset to 0 on new epoch, got %d", r.UnsignedOracleEvents)
	}
	if r.MissCounterP1Executed != 0 || r.MissCounterP2Executed != 0 || r.MissCounterP3Executed != 0 {
		t.Error("expected miss-counter latches reset to 0 on new epoch")
	}
}

func TestReduceStateNewEpochWithNoPriorRowSeedsZero(t *testing.T) {
	store := openTestStore(t)

	tick := &CollectTick{SignedThisTick: false, CurrentEpoch: 0, WalletBalance: 0}
	r, err := ReduceState(store, tick)
	if err != nil {
		t.Fatalf("ReduceState: %v", err)
	}
	if r.ConsecutiveMisses != 0 || r.SmallBalanceAlertExecuted != 0 {
		t.Errorf("expected zeroed carryover with no prior epoch, got %+v", r)
	}
}
