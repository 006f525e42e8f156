package plugin

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT,
		seq BIGINT,
		captured_ns BIGINT,
		elapsed DOUBLE,
		density DOUBLE,
		motion DOUBLE,
		motion_norm DOUBLE,
		anomaly DOUBLE,
		anomaly_flag INTEGER,
		score DOUBLE,
		band INTEGER,
		risk DOUBLE,
		fps DOUBLE
	);
	CREATE INDEX IF NOT EXISTS frames_captured ON frames (captured_ns);
	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		kind TEXT,
		severity TEXT,
		message TEXT,
		raised_at DOUBLE,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteOutput keeps a queryable log of every frame and alert
type SQLiteOutput struct {
	DB *sql.DB
}

func NewSQLiteOutput(path string) (*SQLiteOutput, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		slog.Error("SQLiteOutput failed to create schema", slog.Any("error", err))
		return nil, fmt.Errorf("schema error: %w", err)
	}

	slog.Info("SQLiteOutput opened", slog.String("path", path))
	return &SQLiteOutput{DB: db}, nil
}

const insertFrame = `INSERT INTO frames
	(run_id, seq, captured_ns, elapsed, density, motion, motion_norm, anomaly, anomaly_flag, score, band, risk, fps)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (so *SQLiteOutput) WriteRecord(rec *Ct.FrameRecord) error {
	_, err := so.DB.Exec(insertFrame, frameArgs(rec)...)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	return nil
}

func (so *SQLiteOutput) WriteBatch(recs []*Ct.FrameRecord) error {
	tx, err := so.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(insertFrame)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(frameArgs(r)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert frame %d: %w", r.Seq, err)
		}
	}
	return tx.Commit()
}

func frameArgs(r *Ct.FrameRecord) []any {
	flag := 0
	if r.AnomalyFlag {
		flag = 1
	}
	return []any{r.RunID, int64(r.Seq), r.Captured.UnixNano(), r.Elapsed, r.Density, r.Motion,
		r.MotionNorm, r.Anomaly, flag, r.Score, int(r.Band), r.Risk, r.FPS}
}

func (so *SQLiteOutput) WriteAlert(alert *Ct.AlertRecord) error {
	_, err := so.DB.Exec(
		"INSERT INTO alerts (alert_id, kind, severity, message, raised_at) VALUES (?, ?, ?, ?, ?)",
		alert.ID, alert.Kind, string(alert.Severity), alert.Message, alert.RaisedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// QueryRange retrieves frame records captured strictly between start and end
func (so *SQLiteOutput) QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) {
	rows, err := so.DB.Query(`SELECT run_id, seq, captured_ns, elapsed, density, motion, motion_norm,
		anomaly, anomaly_flag, score, band, risk, fps
		FROM frames WHERE captured_ns > ? AND captured_ns < ? ORDER BY captured_ns, seq`,
		start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var recs []*Ct.FrameRecord
	for rows.Next() {
		var (
			r        Ct.FrameRecord
			seq, ns  int64
			flag, bd int
		)
		if err := rows.Scan(&r.RunID, &seq, &ns, &r.Elapsed, &r.Density, &r.Motion, &r.MotionNorm,
			&r.Anomaly, &flag, &r.Score, &bd, &r.Risk, &r.FPS); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		r.Seq = uint64(seq)
		r.Captured = time.Unix(0, ns)
		r.AnomalyFlag = flag == 1
		r.Band = Ct.RiskBand(bd)
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// AlertCount is mostly for reports and tests
func (so *SQLiteOutput) AlertCount() (int, error) {
	var n int
	err := so.DB.QueryRow("SELECT COUNT(*) FROM alerts").Scan(&n)
	return n, err
}

func (so *SQLiteOutput) Flush() error { return nil }

func (so *SQLiteOutput) Close() error {
	slog.Info("SQLiteOutput closing")
	return so.DB.Close()
}

func (so *SQLiteOutput) Type() string { return "SQLite" }
