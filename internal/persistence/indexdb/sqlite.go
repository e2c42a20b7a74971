package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/game"
	"pixeltycoon/internal/sim/tuning"
)

// SQLiteIndex holds named save slots plus an append-only history of
// checkpoints and audited intents. Slot saves are written synchronously;
// history rows go through a buffered writer goroutine and are dropped when it
// falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCheckpoint atomic.Uint64
	dropAudit      atomic.Uint64
}

type reqKind int

const (
	reqCheckpoint reqKind = iota + 1
	reqAudit
)

type req struct {
	kind reqKind

	checkpoint CheckpointRow
	audit      game.AuditEntry
}

type CheckpointRow struct {
	Slot          string
	SavedAtMs     int64
	Coins         float64
	Income        float64
	TotalEarned   float64
	PrestigeCount int
}

type SlotInfo struct {
	Name      string
	SavedAtMs int64
	Coins     float64
	Bytes     int
}

type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	DropCheckpointTotal uint64
	DropAuditTotal      uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			slot TEXT PRIMARY KEY,
			raw_json TEXT NOT NULL,
			saved_at_ms INTEGER NOT NULL,
			coins REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slot TEXT NOT NULL,
			saved_at_ms INTEGER NOT NULL,
			coins REAL NOT NULL,
			income REAL NOT NULL,
			total_earned REAL NOT NULL,
			prestige_count INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_slot_time ON checkpoints(slot, saved_at_ms);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			ok INTEGER NOT NULL,
			earned REAL NOT NULL,
			coins REAL NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_ts ON audits(action, ts_ms);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued history rows, commits them and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropCheckpointTotal: s.dropCheckpoint.Load(),
		DropAuditTotal:      s.dropAudit.Load(),
	}
}

// WriteAudit queues an audit row. It never blocks the game loop.
func (s *SQLiteIndex) WriteAudit(entry game.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) recordCheckpoint(row CheckpointRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqCheckpoint, checkpoint: row}:
	default:
		s.dropCheckpoint.Add(1)
	}
}

// UpsertCatalogs stores the catalog tables and tuning in effect, keyed by
// name with their digests.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Businesses.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "businesses", digest: cats.Businesses.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Upgrades.ByCategory); len(b) > 0 {
		rows = append(rows, kv{name: "upgrades", digest: cats.Upgrades.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Shop); len(b) > 0 {
		rows = append(rows, kv{name: "shop", digest: cats.Shop.Digest, json: b})
	}
	if b, _ := json.Marshal(tune); len(b) > 0 {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for a catalog row, or "" if absent.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

// Slots lists stored save slots by name.
func (s *SQLiteIndex) Slots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, saved_at_ms, coins, length(raw_json) FROM saves ORDER BY slot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SlotInfo
	for rows.Next() {
		var si SlotInfo
		if err := rows.Scan(&si.Name, &si.SavedAtMs, &si.Coins, &si.Bytes); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// Checkpoints returns up to limit history rows for slot, newest first.
func (s *SQLiteIndex) Checkpoints(ctx context.Context, slot string, limit int) ([]CheckpointRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT slot, saved_at_ms, coins, income, total_earned, prestige_count
		FROM checkpoints WHERE slot=? ORDER BY id DESC LIMIT ?`, slot, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CheckpointRow
	for rows.Next() {
		var r CheckpointRow
		if err := rows.Scan(&r.Slot, &r.SavedAtMs, &r.Coins, &r.Income, &r.TotalEarned, &r.PrestigeCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AuditCount returns how many audit rows exist for action ("" counts all).
func (s *SQLiteIndex) AuditCount(ctx context.Context, action string) (int, error) {
	var n int
	var err error
	if action == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits WHERE action=?`, action).Scan(&n)
	}
	return n, err
}

// Slot is a game.Store backed by one row of the saves table.
type Slot struct {
	idx  *SQLiteIndex
	name string
}

func (s *SQLiteIndex) Slot(name string) *Slot {
	if name == "" {
		name = "default"
	}
	return &Slot{idx: s, name: name}
}

func (sl *Slot) Name() string { return sl.name }

func (sl *Slot) Load(ctx context.Context) ([]byte, bool, error) {
	var raw string
	err := sl.idx.db.QueryRowContext(ctx, `SELECT raw_json FROM saves WHERE slot=?`, sl.name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(raw), true, nil
}

// Save replaces the slot's save and queues a history row summarizing it.
func (sl *Slot) Save(ctx context.Context, raw []byte) error {
	var sum snapshot.SaveV1
	if err := json.Unmarshal(raw, &sum); err != nil {
		return fmt.Errorf("slot %s: %w", sl.name, err)
	}
	row := CheckpointRow{
		Slot:          sl.name,
		SavedAtMs:     deref(sum.LastSaveTime),
		Coins:         deref(sum.Coins),
		Income:        deref(sum.IncomePerSecond),
		TotalEarned:   deref(sum.TotalCoinsEarned),
		PrestigeCount: deref(sum.PrestigeCount),
	}
	if row.SavedAtMs == 0 {
		row.SavedAtMs = time.Now().UnixMilli()
	}
	_, err := sl.idx.db.ExecContext(ctx, `INSERT INTO saves(slot,raw_json,saved_at_ms,coins) VALUES(?,?,?,?)
		ON CONFLICT(slot) DO UPDATE SET raw_json=excluded.raw_json, saved_at_ms=excluded.saved_at_ms, coins=excluded.coins`,
		sl.name, string(raw), row.SavedAtMs, row.Coins)
	if err != nil {
		return err
	}
	sl.idx.recordCheckpoint(row)
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCheckpoint, _ := s.db.Prepare(`INSERT INTO checkpoints(slot,saved_at_ms,coins,income,total_earned,prestige_count) VALUES(?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(ts_ms,action,target,ok,earned,coins,raw_json) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertCheckpoint != nil {
			_ = insertCheckpoint.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Drain bursts into one transaction, but never hold rows past the deadline.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCheckpoint:
			c := r.checkpoint
			if insertCheckpoint != nil {
				if _, err := tx.Stmt(insertCheckpoint).Exec(c.Slot, c.SavedAtMs, c.Coins, c.Income, c.TotalEarned, c.PrestigeCount); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			ok := 0
			if a.OK {
				ok = 1
			}
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(a.TimeMs, a.Action, a.Target, ok, a.Earned, a.Coins, string(raw)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
