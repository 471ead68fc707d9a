package tnom

import (
	"database/sql"
	"errors"
	"fmt"

	// registers the "sqlite3" driver used below
	_ "github.com/mattn/go-sqlite3"
)

// EpochStore is the single-file, embedded persistence layer for
// per-epoch state. One row lives per observed slash-window epoch.
type EpochStore struct {
	db *sql.DB
}

const epochTableDDL = `
CREATE TABLE IF NOT EXISTS tnom (
	slash_epoch                       INTEGER PRIMARY KEY,
	miss_counter_events               INTEGER NOT NULL DEFAULT 0,
	miss_counter_p1_executed          INTEGER NOT NULL DEFAULT 0,
	miss_counter_p2_executed          INTEGER NOT NULL DEFAULT 0,
	miss_counter_p3_executed          INTEGER NOT NULL DEFAULT 0,
	unsigned_oracle_events            INTEGER NOT NULL DEFAULT 0,
	price_feed_addr_balance           INTEGER NOT NULL DEFAULT 0,
	small_balance_alert_executed      INTEGER NOT NULL DEFAULT 0,
	very_small_balance_alert_executed INTEGER NOT NULL DEFAULT 0,
	consecutive_misses                INTEGER NOT NULL DEFAULT 0,
	api_cons_miss                     INTEGER NOT NULL DEFAULT 0
);`

// epochColumns lists every mutable column in the tnom table. It doubles
// as the allowlist SetField validates against: column identifiers can't
// be parameter-bound, so anything not in this list is rejected before
// it ever reaches a query string.
var epochColumns = map[string]bool{
	"miss_counter_events":               true,
	"miss_counter_p1_executed":          true,
	"miss_counter_p2_executed":          true,
	"miss_counter_p3_executed":          true,
	"unsigned_oracle_events":            true,
	"price_feed_addr_balance":           true,
	"small_balance_alert_executed":      true,
	"very_small_balance_alert_executed": true,
	"consecutive_misses":                true,
	"api_cons_miss":                     true,
}

// OpenEpochStore opens (creating if absent) the SQLite database at path
// and ensures the tnom table exists with the current schema.
func OpenEpochStore(path string) (*EpochStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open epoch store %s: %w", path, err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("ping epoch store %s: %w", path, err)
	}

	s := &EpochStore{db: db}
	if err = s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the table if missing and adds any column present in
// epochColumns but absent from an existing, older table.
func (s *EpochStore) migrate() error {
	if _, err := s.db.Exec(epochTableDDL); err != nil {
		return fmt.Errorf("create tnom table: %w", err)
	}

	rows, err := s.db.Query(`PRAGMA table_info(tnom)`)
	if err != nil {
		return fmt.Errorf("inspect tnom table: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			primaryKey int
		)
		if err = rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			rows.Close()
			return fmt.Errorf("scan table_info: %w", err)
		}
		existing[name] = true
	}
	if err = rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for col := range epochColumns {
		if existing[col] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE tnom ADD COLUMN %s INTEGER NOT NULL DEFAULT 0`, col)
		if _, err = s.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *EpochStore) Close() error {
	return s.db.Close()
}

// Exists reports whether a row for epoch has already been written.
func (s *EpochStore) Exists(epoch int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tnom WHERE slash_epoch = ?`, epoch).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check epoch %d exists: %w", epoch, err)
	}
	return count > 0, nil
}

// Get reads the full record for epoch. It returns ErrEpochNotFound if no
// such epoch has been recorded.
func (s *EpochStore) Get(epoch int64) (*EpochRecord, error) {
	r := &EpochRecord{}
	err := s.db.QueryRow(`
		SELECT slash_epoch, miss_counter_events, miss_counter_p1_executed, miss_counter_p2_executed,
		       miss_counter_p3_executed, unsigned_oracle_events, price_feed_addr_balance,
		       small_balance_alert_executed, very_small_balance_alert_executed, consecutive_misses, api_cons_miss
		FROM tnom WHERE slash_epoch = ?`, epoch).Scan(
		&r.SlashEpoch, &r.MissCounterEvents, &r.MissCounterP1Executed, &r.MissCounterP2Executed,
		&r.MissCounterP3Executed, &r.UnsignedOracleEvents, &r.PriceFeedAddrBalance,
		&r.SmallBalanceAlertExecuted, &r.VerySmallBalanceAlertExecuted, &r.ConsecutiveMisses, &r.APIConsMiss,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpochNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LastEpoch returns the highest slash_epoch recorded, or (0, false) if
// the table is empty.
func (s *EpochStore) LastEpoch() (int64, bool, error) {
	var epoch sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(slash_epoch) FROM tnom`).Scan(&epoch)
	if err != nil {
		return 0, false, fmt.Errorf("read last epoch: %w", err)
	}
	if !epoch.Valid {
		return 0, false, nil
	}
	return epoch.Int64, true, nil
}

// Upsert writes r in full, inserting a new row or overwriting every
// column of an existing one.
func (s *EpochStore) Upsert(r *EpochRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO tnom (
			slash_epoch, miss_counter_events, miss_counter_p1_executed, miss_counter_p2_executed,
			miss_counter_p3_executed, unsigned_oracle_events, price_feed_addr_balance,
			small_balance_alert_executed, very_small_balance_alert_executed, consecutive_misses, api_cons_miss
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slash_epoch) DO UPDATE SET
			miss_counter_events = excluded.miss_counter_events,
			miss_counter_p1_executed = excluded.miss_counter_p1_executed,
			miss_counter_p2_executed = excluded.miss_counter_p2_executed,
			miss_counter_p3_executed = excluded.miss_counter_p3_executed,
			unsigned_oracle_events = excluded.unsigned_oracle_events,
			price_feed_addr_balance = excluded.price_feed_addr_balance,
			small_balance_alert_executed = excluded.small_balance_alert_executed,
			very_small_balance_alert_executed = excluded.very_small_balance_alert_executed,
			consecutive_misses = excluded.consecutive_misses,
			api_cons_miss = excluded.api_cons_miss`,
		r.SlashEpoch, r.MissCounterEvents, r.MissCounterP1Executed, r.MissCounterP2Executed,
		r.MissCounterP3Executed, r.UnsignedOracleEvents, r.PriceFeedAddrBalance,
		r.SmallBalanceAlertExecuted, r.VerySmallBalanceAlertExecuted, r.ConsecutiveMisses, r.APIConsMiss,
	)
	if err != nil {
		return fmt.Errorf("upsert epoch %d: %w", r.SlashEpoch, err)
	}
	return nil
}

// SetField overwrites a single column for epoch. column must be a key
// of epochColumns; anything else is rejected rather than interpolated
// into the query.
func (s *EpochStore) SetField(epoch int64, column string, value int64) error {
	if !epochColumns[column] {
		return fmt.Errorf("set field: unknown column %q", column)
	}
	stmt := fmt.Sprintf(`UPDATE tnom SET %s = ? WHERE slash_epoch = ?`, column)
	res, err := s.db.Exec(stmt, value, epoch)
	if err != nil {
		return fmt.Errorf("set field %s for epoch %d: %w", column, epoch, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set field %s for epoch %d: %w", column, epoch, err)
	}
	if n == 0 {
		return fmt.Errorf("set field %s: epoch %d does not exist", column, epoch)
	}
	return nil
}

// ErrEpochNotFound is returned by Get when no row exists for the
// requested epoch.
var ErrEpochNotFound = errors.New("tnom: epoch not found")
