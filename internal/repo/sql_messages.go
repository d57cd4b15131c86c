package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/sms-webhook/internal/model"
)

const messageColumns = `id, phone, message, "timestamp", extracted_code, platform, used`

type SQLMessageRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLMessageRepo(db *sql.DB, d Dialect) *SQLMessageRepo {
	return &SQLMessageRepo{db: db, dialect: d}
}

// EnsureSchema creates the table and index when missing. Safe to call on every start.
func (r *SQLMessageRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *SQLMessageRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLMessageRepo) Insert(ctx context.Context, m model.Message) (int64, error) {
	if m.Phone == "" || m.Message == "" {
		return 0, errors.New("phone and message are required")
	}
	if m.Platform == "" {
		m.Platform = model.Unknown
	}

	var code sql.NullString
	if m.ExtractedCode != nil {
		code = sql.NullString{String: *m.ExtractedCode, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO sms_messages (phone, message, "timestamp", extracted_code, platform, used)
		VALUES (?, ?, ?, ?, ?, FALSE)
		RETURNING id
	`), m.Phone, m.Message, m.Timestamp, code, string(m.Platform)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

func (r *SQLMessageRepo) LatestCode(ctx context.Context, phone string) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT `+messageColumns+`
		FROM sms_messages
		WHERE phone = ? AND extracted_code IS NOT NULL
		ORDER BY "timestamp" DESC, id DESC
		LIMIT 1
	`), phone)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest code: %w", err)
	}
	return &m, nil
}

// ConsumeCode picks the newest unused code for phone and platform and marks it
// used in the same transaction. Concurrent callers never get the same row.
func (r *SQLMessageRepo) ConsumeCode(ctx context.Context, phone string, platform model.Platform) (*model.Message, error) {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	if r.dialect == SQLite {
		// sqlite only knows serializable; the single connection already serializes.
		opts = nil
	}
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("consume code: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lock := ""
	if r.dialect == Postgres {
		lock = "FOR UPDATE SKIP LOCKED"
	}

	row := tx.QueryRowContext(ctx, r.q(`
		SELECT `+messageColumns+`
		FROM sms_messages
		WHERE phone = ? AND platform = ?
		  AND extracted_code IS NOT NULL
		  AND used = FALSE
		ORDER BY "timestamp" DESC, id DESC
		LIMIT 1
		`+lock), phone, string(platform))

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("consume code: commit: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume code: select: %w", err)
	}

	res, err := tx.ExecContext(ctx, r.q(`
		UPDATE sms_messages
		SET used = TRUE
		WHERE id = ? AND used = FALSE
	`), m.ID)
	if err != nil {
		return nil, fmt.Errorf("consume code: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("consume code: rows affected: %w", err)
	}
	if n != 1 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("consume code: commit: %w", err)
	}

	m.Used = true
	return &m, nil
}

func (r *SQLMessageRepo) RecentByPhone(ctx context.Context, phone string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+messageColumns+`
		FROM sms_messages
		WHERE phone = ?
		ORDER BY "timestamp" DESC, id DESC
		LIMIT ?
	`), phone, limit)
	if err != nil {
		return nil, fmt.Errorf("recent by phone: %w", err)
	}
	return collect(rows)
}

func (r *SQLMessageRepo) Recent(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+messageColumns+`
		FROM sms_messages
		ORDER BY "timestamp" DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return collect(rows)
}

// CountSince compares timestamps as stored strings.
func (r *SQLMessageRepo) CountSince(ctx context.Context, cutoff string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM sms_messages WHERE "timestamp" > ?`), cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count since: %w", err)
	}
	return n, nil
}

func (r *SQLMessageRepo) CountTotal(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sms_messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count total: %w", err)
	}
	return n, nil
}

func (r *SQLMessageRepo) q(query string) string {
	return rebind(r.dialect, query)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (model.Message, error) {
	var m model.Message
	var code sql.NullString
	var platform string

	if err := s.Scan(
		&m.ID,
		&m.Phone,
		&m.Message,
		&m.Timestamp,
		&code,
		&platform,
		&m.Used,
	); err != nil {
		return model.Message{}, err
	}

	m.Platform = model.Platform(platform)
	if code.Valid {
		c := code.String
		m.ExtractedCode = &c
	}
	return m, nil
}

func collect(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
