package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
}

// PostgresRepository implements Repository on Postgres via bun. Score
// updates lock the customer row so concurrent sessions touching the same
// customer cannot lose writes.
type PostgresRepository struct {
	db *bun.DB
}

func NewPostgres(cfg PostgresConfig) (*PostgresRepository, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithTimeout(cfg.Timeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	r := &PostgresRepository{db: db}
	if err := r.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	models := []any{
		(*Customer)(nil),
		(*ScoreBand)(nil),
		(*LimitRequest)(nil),
	}
	for _, model := range models {
		if _, err := r.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	err := r.db.NewSelect().Model(&c).Where("id = ?", NormalizeID(id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) FindCustomerByIdentity(ctx context.Context, id, birthDate string) (*Customer, error) {
	var c Customer
	err := r.db.NewSelect().Model(&c).
		Where("id = ?", NormalizeID(id)).
		Where("birth_date = ?", birthDate).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer by identity: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) UpdateCustomerScore(ctx context.Context, id string, score int) error {
	normalized := NormalizeID(id)
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var c Customer
		err := tx.NewSelect().Model(&c).Where("id = ?", normalized).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock customer row: %w", err)
		}

		res, err := tx.NewUpdate().Model((*Customer)(nil)).
			Set("score = ?", score).
			Where("id = ?", normalized).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update score: %w", err)
		}
		affected, err := res.RowsAffected()
		if err == nil && affected == 0 {
			return ErrWriteConflict
		}
		return nil
	})
}

func (r *PostgresRepository) BandForScore(ctx context.Context, score int) (*ScoreBand, error) {
	var band ScoreBand
	err := r.db.NewSelect().Model(&band).
		Where("score_min <= ?", score).
		Where("score_max >= ?", score).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBand
	}
	if err != nil {
		return nil, fmt.Errorf("select score band: %w", err)
	}
	return &band, nil
}

func (r *PostgresRepository) AppendLimitRequest(ctx context.Context, req *LimitRequest) error {
	if req == nil {
		return errors.New("nil limit request")
	}
	if _, err := r.db.NewInsert().Model(req).Exec(ctx); err != nil {
		return fmt.Errorf("insert limit request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListLimitRequests(ctx context.Context, customerID string) ([]LimitRequest, error) {
	var reqs []LimitRequest
	err := r.db.NewSelect().Model(&reqs).
		Where("customer_id = ?", NormalizeID(customerID)).
		Order("requested_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select limit requests: %w", err)
	}
	return reqs, nil
}

func (r *PostgresRepository) Seed(ctx context.Context) error {
	count, err := r.db.NewSelect().Model((*Customer)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if count > 0 {
		return nil
	}

	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		customers := seedCustomers()
		if _, err := tx.NewInsert().Model(&customers).Exec(ctx); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
		bands := seedScoreBands()
		if _, err := tx.NewInsert().Model(&bands).Exec(ctx); err != nil {
			return fmt.Errorf("seed score bands: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
