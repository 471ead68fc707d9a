package tnom

// ReduceState folds tick into the EpochStore, returning the resulting
// EpochRecord. If tick.CurrentEpoch already has a row (Case A), counters
// are updated in place. Otherwise (Case B) a new row is inserted,
// carrying over balance latches and consecutive_misses from the
// previous epoch's row if one exists.
func ReduceState(store *EpochStore, tick *CollectTick) (*EpochRecord, error) {
	exists, err := store.Exists(tick.CurrentEpoch)
	if err != nil {
		return nil, err
	}

	var record *EpochRecord
	if exists {
		record, err = reduceExistingEpoch(store, tick)
	} else {
		record, err = reduceNewEpoch(store, tick)
	}
	if err != nil {
		return nil, err
	}

	if err = store.Upsert(record); err != nil {
		return nil, err
	}
	return record, nil
}

func reduceExistingEpoch(store *EpochStore, tick *CollectTick) (*EpochRecord, error) {
	r, err := store.Get(tick.CurrentEpoch)
	if err != nil {
		return nil, err
	}

	if !tick.SignedThisTick {
		r.UnsignedOracleEvents++
	}
	r.MissCounterEvents = tick.MissCounter
	r.PriceFeedAddrBalance = tick.WalletBalance
	return r, nil
}

func reduceNewEpoch(store *EpochStore, tick *CollectTick) (*EpochRecord, error) {
	r := &EpochRecord{
		SlashEpoch:           tick.CurrentEpoch,
		MissCounterEvents:    tick.MissCounter,
		UnsignedOracleEvents: 0,
		PriceFeedAddrBalance: tick.WalletBalance,
	}
	if !tick.SignedThisTick {
		r.UnsignedOracleEvents = 1
	}

	prevExists, err := store.Exists(tick.CurrentEpoch - 1)
	if err != nil {
		return nil, err
	}
	if prevExists {
		prev, err := store.Get(tick.CurrentEpoch - 1)
		if err != nil {
			return nil, err
		}
		r.SmallBalanceAlertExecuted = prev.SmallBalanceAlertExecuted
		r.VerySmallBalanceAlertExecuted = prev.VerySmallBalanceAlertExecuted
		r.ConsecutiveMisses = prev.ConsecutiveMisses
	}

	return r, nil
}
