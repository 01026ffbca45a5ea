package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Repository on a local SQLite file. Writes go
// through a single mutex on top of WAL mode, which serializes the
// read-modify-write paths without SQLITE_BUSY churn.
type SQLiteRepository struct {
	db      *sql.DB
	writeMu sync.Mutex
}

func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		score INTEGER NOT NULL,
		monthly_income REAL NOT NULL,
		current_limit REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS score_bands (
		score_min INTEGER NOT NULL,
		score_max INTEGER NOT NULL,
		max_limit REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS limit_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id TEXT NOT NULL,
		requested_at TEXT NOT NULL,
		prior_limit REAL NOT NULL,
		requested_limit REAL NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_limit_requests_customer ON limit_requests(customer_id);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, birth_date, score, monthly_income, current_limit
		 FROM customers WHERE id = ?`, NormalizeID(id))
	return scanCustomer(row)
}

func (r *SQLiteRepository) FindCustomerByIdentity(ctx context.Context, id, birthDate string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, birth_date, score, monthly_income, current_limit
		 FROM customers WHERE id = ? AND birth_date = ?`, NormalizeID(id), birthDate)
	return scanCustomer(row)
}

func scanCustomer(row *sql.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.BirthDate, &c.Score, &c.MonthlyIncome, &c.CurrentLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer row: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) UpdateCustomerScore(ctx context.Context, id string, score int) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET score = ? WHERE id = ?`, score, NormalizeID(id))
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) BandForScore(ctx context.Context, score int) (*ScoreBand, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT score_min, score_max, max_limit FROM score_bands
		 WHERE score_min <= ? AND score_max >= ? LIMIT 1`, score, score)

	var band ScoreBand
	err := row.Scan(&band.ScoreMin, &band.ScoreMax, &band.MaxLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBand
	}
	if err != nil {
		return nil, fmt.Errorf("scan score band: %w", err)
	}
	return &band, nil
}

func (r *SQLiteRepository) AppendLimitRequest(ctx context.Context, req *LimitRequest) error {
	if req == nil {
		return errors.New("nil limit request")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO limit_requests (customer_id, requested_at, prior_limit, requested_limit, status)
		 VALUES (?, ?, ?, ?, ?)`,
		NormalizeID(req.CustomerID),
		req.RequestedAt.UTC().Format(time.RFC3339),
		req.PriorLimit, req.RequestedLimit, string(req.Status))
	if err != nil {
		return fmt.Errorf("insert limit request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListLimitRequests(ctx context.Context, customerID string) ([]LimitRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, requested_at, prior_limit, requested_limit, status
		 FROM limit_requests WHERE customer_id = ? ORDER BY requested_at ASC`,
		NormalizeID(customerID))
	if err != nil {
		return nil, fmt.Errorf("select limit requests: %w", err)
	}
	defer rows.Close()

	var reqs []LimitRequest
	for rows.Next() {
		var req LimitRequest
		var requestedAt, status string
		if err := rows.Scan(&req.ID, &req.CustomerID, &requestedAt, &req.PriorLimit, &req.RequestedLimit, &status); err != nil {
			return nil, fmt.Errorf("scan limit request: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, requestedAt)
		if err != nil {
			return nil, fmt.Errorf("parse requested_at: %w", err)
		}
		req.RequestedAt = ts
		req.Status = RequestStatus(status)
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *SQLiteRepository) Seed(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range seedCustomers() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, name, birth_date, score, monthly_income, current_limit)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.BirthDate, c.Score, c.MonthlyIncome, c.CurrentLimit); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, b := range seedScoreBands() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO score_bands (score_min, score_max, max_limit) VALUES (?, ?, ?)`,
			b.ScoreMin, b.ScoreMax, b.MaxLimit); err != nil {
			return fmt.Errorf("seed score band [%d,%d]: %w", b.ScoreMin, b.ScoreMax, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
