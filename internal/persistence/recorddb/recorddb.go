// Package recorddb keeps what an agent has learned about its surroundings in a
// local SQLite file: container contents, trade partners and per-item success
// records.
package recorddb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/world"
)

const schemaVersion = "1"

type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" works for
// tests.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
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
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
		`CREATE TABLE IF NOT EXISTS containers (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			dimension TEXT NOT NULL,
			stock_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS containers_dim ON containers(dimension);`,
		`CREATE TABLE IF NOT EXISTS trade_partners (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			dimension TEXT NOT NULL,
			offers_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS success_memory (
			item TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			last_success TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (d *DB) Close() error { return d.db.Close() }

// SetMeta stores a free-form key, e.g. the digest of the catalog in use.
func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, key, value)
	return err
}

// Meta returns "" for a missing key.
func (d *DB) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (d *DB) Containers(ctx context.Context) ([]world.ContainerRecord, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,type,x,y,z,dimension,stock_json,updated_at FROM containers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.ContainerRecord
	for rows.Next() {
		var (
			c          world.ContainerRecord
			stock, upd string
		)
		if err := rows.Scan(&c.ID, &c.Type, &c.Pos.X, &c.Pos.Y, &c.Pos.Z, &c.Dimension, &stock, &upd); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stock), &c.Stock); err != nil {
			return nil, fmt.Errorf("container %s: %w", c.ID, err)
		}
		c.UpdatedAt = parseTime(upd)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContainer replaces the record for rec.ID. Items counted at zero are
// dropped from the stored stock. A record carrying only an id takes its type
// and position from it.
func (d *DB) UpdateContainer(ctx context.Context, rec world.ContainerRecord) error {
	switch {
	case rec.ID == "":
		rec.ID = world.ContainerID(rec.Type, rec.Pos)
	case rec.Type == "":
		typ, pos, ok := world.ParseContainerID(rec.ID)
		if !ok {
			return fmt.Errorf("container %q has no type", rec.ID)
		}
		rec.Type, rec.Pos = typ, pos
	}
	stock := map[string]int{}
	for k, v := range rec.Stock {
		if v > 0 {
			stock[k] = v
		}
	}
	b, err := json.Marshal(stock)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO containers(id,type,x,y,z,dimension,stock_json,updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Type, rec.Pos.X, rec.Pos.Y, rec.Pos.Z, rec.Dimension, string(b), formatTime(rec.UpdatedAt))
	return err
}

func (d *DB) Partners(ctx context.Context) ([]world.TradePartner, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,name,x,y,z,dimension,offers_json,updated_at FROM trade_partners ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.TradePartner
	for rows.Next() {
		var (
			p           world.TradePartner
			offers, upd string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Pos.X, &p.Pos.Y, &p.Pos.Z, &p.Dimension, &offers, &upd); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(offers), &p.Offers); err != nil {
			return nil, fmt.Errorf("partner %s: %w", p.ID, err)
		}
		p.UpdatedAt = parseTime(upd)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpsertPartner(ctx context.Context, p world.TradePartner) error {
	if p.ID == "" {
		return fmt.Errorf("trade partner without id")
	}
	b, err := json.Marshal(p.Offers)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO trade_partners(id,name,x,y,z,dimension,offers_json,updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Pos.X, p.Pos.Y, p.Pos.Z, p.Dimension, string(b), formatTime(p.UpdatedAt))
	return err
}

func (d *DB) LoadSuccess(ctx context.Context) (map[string]memory.Record, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT item,count,last_success FROM success_memory`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]memory.Record{}
	for rows.Next() {
		var (
			item, last string
			r          memory.Record
		)
		if err := rows.Scan(&item, &r.Count, &last); err != nil {
			return nil, err
		}
		r.LastSuccess = parseTime(last)
		out[item] = r
	}
	return out, rows.Err()
}

func (d *DB) SaveSuccess(ctx context.Context, item string, r memory.Record) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO success_memory(item,count,last_success) VALUES(?,?,?)`,
		item, r.Count, formatTime(r.LastSuccess))
	return err
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var (
	_ world.ContainerRecords = (*DB)(nil)
	_ world.TradePartners    = (*DB)(nil)
	_ memory.Store           = (*DB)(nil)
)
