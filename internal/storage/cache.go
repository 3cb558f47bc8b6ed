package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	address  TEXT PRIMARY KEY,
	symbol   TEXT NOT NULL,
	decimals INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pools (
	venue    TEXT NOT NULL,
	pair_key TEXT NOT NULL,
	address  TEXT NOT NULL,
	PRIMARY KEY (venue, pair_key)
);
`

// CacheDB persists pool discovery results and token metadata so restarts
// skip the expensive factory enumeration.
type CacheDB struct {
	db *sql.DB
}

func NewCacheDB(dbPath string) (*CacheDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// WAL for concurrent readers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	return &CacheDB{db: db}, nil
}

func (c *CacheDB) Close() error {
	return c.db.Close()
}

func (c *CacheDB) GetToken(addr common.Address) (symbol string, decimals int, ok bool) {
	err := c.db.QueryRow(
		"SELECT symbol, decimals FROM tokens WHERE address = ?",
		addr.Hex(),
	).Scan(&symbol, &decimals)

	if err == sql.ErrNoRows {
		return "", 0, false
	}
	if err != nil {
		return "", 0, false
	}
	return symbol, decimals, true
}

func (c *CacheDB) SetToken(addr common.Address, symbol string, decimals int) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO tokens (address, symbol, decimals) VALUES (?, ?, ?)",
		addr.Hex(), symbol, decimals,
	)
	return err
}

func (c *CacheDB) GetPool(venue, pairKey string) (common.Address, bool) {
	var addrHex string
	err := c.db.QueryRow(
		"SELECT address FROM pools WHERE venue = ? AND pair_key = ?",
		venue, pairKey,
	).Scan(&addrHex)

	if err == sql.ErrNoRows {
		return common.Address{}, false
	}
	if err != nil {
		return common.Address{}, false
	}
	return common.HexToAddress(addrHex), true
}

func (c *CacheDB) SetPool(venue, pairKey string, addr common.Address) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO pools (venue, pair_key, address) VALUES (?, ?, ?)",
		venue, pairKey, addr.Hex(),
	)
	return err
}

// PoolEntry is one discovered pool for batch inserts
type PoolEntry struct {
	Venue   string
	PairKey string
	Address common.Address
}

func (c *CacheDB) BatchSetPools(entries []PoolEntry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO pools (venue, pair_key, address) VALUES (?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Venue, e.PairKey, e.Address.Hex()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CommonPairKeys returns pair keys present on both venues.
func (c *CacheDB) CommonPairKeys(venueA, venueB string) ([]string, error) {
	rows, err := c.db.Query(
		`SELECT a.pair_key FROM pools a
		 JOIN pools b ON a.pair_key = b.pair_key
		 WHERE a.venue = ? AND b.venue = ?`,
		venueA, venueB,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// stats for monitoring cache coverage

func (c *CacheDB) GetStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM tokens").Scan(&count); err != nil {
		return nil, err
	}
	stats["token_entries"] = count

	if err := c.db.QueryRow("SELECT COUNT(*) FROM pools").Scan(&count); err != nil {
		return nil, err
	}
	stats["pool_entries"] = count

	return stats, nil
}
