// Package repo persists the three financial record sets: customers, score
// bands, and the append-only limit-request log.
package repo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNoBand        = errors.New("no score band matches")
	ErrWriteConflict = errors.New("concurrent write conflict")
)

var digitsOnly = regexp.MustCompile(`\D`)

// NormalizeID strips every non-digit character from a customer id
// ("123.456.789-00" and "12345678900" address the same record).
func NormalizeID(id string) string {
	return digitsOnly.ReplaceAllString(id, "")
}

type RequestStatus string

const (
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Customer is mutated only through UpdateCustomerScore and never deleted.
// BirthDate is kept as an ISO-8601 date string and matched exactly.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID            string  `bun:"id,pk" json:"id"`
	Name          string  `bun:"name,notnull" json:"name"`
	BirthDate     string  `bun:"birth_date,notnull" json:"birth_date"`
	Score         int     `bun:"score,notnull" json:"score"`
	MonthlyIncome float64 `bun:"monthly_income,notnull" json:"monthly_income"`
	CurrentLimit  float64 `bun:"current_limit,notnull" json:"current_limit"`
}

// ScoreBand maps an inclusive score range to the maximum approvable limit.
// The seeded bands partition [0,1000] without gaps.
type ScoreBand struct {
	bun.BaseModel `bun:"table:score_bands"`

	ScoreMin int     `bun:"score_min,notnull" json:"score_min"`
	ScoreMax int     `bun:"score_max,notnull" json:"score_max"`
	MaxLimit float64 `bun:"max_limit,notnull" json:"max_limit"`
}

// LimitRequest is an append-only log entry, created once per request and
// never mutated.
type LimitRequest struct {
	bun.BaseModel `bun:"table:limit_requests"`

	ID             int64         `bun:"id,pk,autoincrement" json:"id"`
	CustomerID     string        `bun:"customer_id,notnull" json:"customer_id"`
	RequestedAt    time.Time     `bun:"requested_at,notnull" json:"requested_at"`
	PriorLimit     float64       `bun:"prior_limit,notnull" json:"prior_limit"`
	RequestedLimit float64       `bun:"requested_limit,notnull" json:"requested_limit"`
	Status         RequestStatus `bun:"status,notnull" json:"status"`
}

// Repository is shared mutable state across sessions; implementations must
// make the score overwrite atomic per customer record.
type Repository interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	FindCustomerByIdentity(ctx context.Context, id, birthDate string) (*Customer, error)
	UpdateCustomerScore(ctx context.Context, id string, score int) error
	BandForScore(ctx context.Context, score int) (*ScoreBand, error)
	AppendLimitRequest(ctx context.Context, req *LimitRequest) error
	ListLimitRequests(ctx context.Context, customerID string) ([]LimitRequest, error)
	// Seed installs the default dataset when the customers table is empty.
	Seed(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
