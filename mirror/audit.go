// Package mirror keeps off-chain copies of what the engine emits: an audit
// log of every event in SQLite and a cached read model that receipts
// invalidate.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// AuditLog stores receipt events in a SQLite database.
type AuditLog struct {
	conn *sqlx.DB
}

// AuditRow is one stored event.
type AuditRow struct {
	ID        string `db:"id"`
	Block     int64  `db:"block"`
	TxHash    string `db:"tx_hash"`
	LogIndex  int64  `db:"log_index"`
	Time      int64  `db:"time"`
	User      string `db:"user"`
	Op        string `db:"op"`
	Kind      string `db:"kind"`
	CountryID int64  `db:"country_id"`
	TargetID  int64  `db:"target_id"`
	Fee6      int64  `db:"fee6"`
	Payload   string `db:"payload"`
}

// OpenAuditLog opens or creates the audit database at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	a := &AuditLog{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *AuditLog) Close() error {
	return a.conn.Close()
}

func (a *AuditLog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		block INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		time INTEGER NOT NULL,
		user TEXT NOT NULL,
		op TEXT NOT NULL,
		kind TEXT NOT NULL,
		country_id INTEGER NOT NULL,
		target_id INTEGER NOT NULL,
		fee6 INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_tx ON events(tx_hash, log_index);
	CREATE INDEX IF NOT EXISTS idx_events_user ON events(user);
	CREATE INDEX IF NOT EXISTS idx_events_country ON events(country_id);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// Append writes every event of r in one transaction. Appending a receipt
// twice is a no-op.
func (a *AuditLog) Append(ctx context.Context, r *inter.Receipt) error {
	tx, err := a.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT OR IGNORE INTO events
		(id, block, tx_hash, log_index, time, user, op, kind, country_id, target_id, fee6, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ev := range r.Events {
		row, err := rowOf(r, i, ev)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.Block, row.TxHash, row.LogIndex, row.Time, row.User, row.Op,
			row.Kind, row.CountryID, row.TargetID, row.Fee6, row.Payload,
		); err != nil {
			return fmt.Errorf("insert %s of %s: %w", row.Kind, row.TxHash, err)
		}
	}
	return tx.Commit()
}

func rowOf(r *inter.Receipt, i int, ev inter.Event) (AuditRow, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return AuditRow{}, err
	}
	row := AuditRow{
		ID:       uuid.NewString(),
		Block:    int64(r.Block),
		TxHash:   r.TxHash.Hex(),
		LogIndex: int64(i),
		Time:     int64(r.Time),
		User:     ev.Account().Hex(),
		Op:       r.Op,
		Kind:     ev.Kind().String(),
		Payload:  string(payload),
	}
	ids := ev.Countries()
	row.CountryID = int64(ids[0])
	if len(ids) > 1 {
		row.TargetID = int64(ids[1])
	}
	switch e := ev.(type) {
	case inter.Bought:
		row.Fee6 = int64(e.Fee6)
	case inter.Sold:
		row.Fee6 = int64(e.Fee6)
	case inter.Attack:
		row.Fee6 = int64(e.Fee6)
	}
	return row, nil
}

// ByUser returns the events of user, oldest first.
func (a *AuditLog) ByUser(ctx context.Context, user common.Address) ([]AuditRow, error) {
	var rows []AuditRow
	err := a.conn.SelectContext(ctx, &rows,
		"SELECT * FROM events WHERE user = ? ORDER BY block, log_index", user.Hex())
	return rows, err
}

// ByCountry returns the events that touched country id, as attacker or
// target, oldest first.
func (a *AuditLog) ByCountry(ctx context.Context, id uint64) ([]AuditRow, error) {
	var rows []AuditRow
	err := a.conn.SelectContext(ctx, &rows,
		"SELECT * FROM events WHERE country_id = ? OR target_id = ? ORDER BY block, log_index", int64(id), int64(id))
	return rows, err
}

// ByTx returns the events of one transaction in emission order.
func (a *AuditLog) ByTx(ctx context.Context, hash common.Hash) ([]AuditRow, error) {
	var rows []AuditRow
	err := a.conn.SelectContext(ctx, &rows,
		"SELECT * FROM events WHERE tx_hash = ? ORDER BY log_index", hash.Hex())
	return rows, err
}

// Count returns the number of stored events.
func (a *AuditLog) Count(ctx context.Context) (int, error) {
	var n int
	err := a.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM events")
	return n, err
}

// FeesCollected sums the fees of every stored event of kind.
func (a *AuditLog) FeesCollected(ctx context.Context, kind inter.EventKind) (uint64, error) {
	var total int64
	err := a.conn.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(fee6), 0) FROM events WHERE kind = ?", kind.String())
	return uint64(total), err
}

// LastBlock returns the highest stored block, 0 when empty.
func (a *AuditLog) LastBlock(ctx context.Context) (uint64, error) {
	var b int64
	err := a.conn.GetContext(ctx, &b, "SELECT COALESCE(MAX(block), 0) FROM events")
	return uint64(b), err
}
