// Package rules implements the deterministic business rules behind the
// banking tools: identity validation, limit eligibility, and score
// recomputation.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	repox "github.com/bancoagil/agent/agent/repo"
)

// Engine executes business rules against the repository. Mutating
// operations are serialized per customer so two sessions touching the same
// record cannot interleave a read-modify-write.
type Engine struct {
	repo repox.Repository
	now  func() time.Time

	mu         sync.Mutex
	customerMu map[string]*sync.Mutex
}

func NewEngine(repo repox.Repository) *Engine {
	return &Engine{
		repo:       repo,
		now:        time.Now,
		customerMu: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockCustomer(id string) func() {
	e.mu.Lock()
	m, ok := e.customerMu[id]
	if !ok {
		m = &sync.Mutex{}
		e.customerMu[id] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

/* ---------------------------- Identity ---------------------------- */

// ValidationResult is the outcome of an identity check. A mismatch is a
// result, not an error; only repository failures surface as errors.
type ValidationResult struct {
	Success  bool            `json:"success"`
	Reason   string          `json:"reason,omitempty"`
	Customer *repox.Customer `json:"customer,omitempty"`
}

// ValidateIdentity matches id+birthDate exactly against the customer
// table. No partial or fuzzy matching.
func (e *Engine) ValidateIdentity(ctx context.Context, id, birthDate string) (ValidationResult, error) {
	normalized := repox.NormalizeID(id)
	if len(normalized) != 11 {
		return ValidationResult{Reason: "id must have 11 digits"}, nil
	}
	if strings.TrimSpace(birthDate) == "" {
		return ValidationResult{Reason: "birth date is required"}, nil
	}

	customer, err := e.repo.FindCustomerByIdentity(ctx, normalized, strings.TrimSpace(birthDate))
	if errors.Is(err, repox.ErrNotFound) {
		return ValidationResult{Reason: "id or birth date does not match our records"}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("identity lookup: %w", err)
	}

	return ValidationResult{Success: true, Customer: customer}, nil
}

/* ----------------------------- Limits ----------------------------- */

type LimitSummary struct {
	CustomerID   string  `json:"customer_id"`
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	CurrentLimit float64 `json:"current_limit"`
}

// QueryLimit returns the current limit and score. Read-only; replaying it
// with no intervening writes yields identical output.
func (e *Engine) QueryLimit(ctx context.Context, id string) (*LimitSummary, error) {
	customer, err := e.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LimitSummary{
		CustomerID:   customer.ID,
		Name:         customer.Name,
		Score:        customer.Score,
		CurrentLimit: customer.CurrentLimit,
	}, nil
}

type LimitDecision struct {
	Status         repox.RequestStatus `json:"status"`
	Score          int                 `json:"score"`
	CurrentLimit   float64             `json:"current_limit"`
	RequestedLimit float64             `json:"requested_limit"`
	EligibleMax    float64             `json:"eligible_max"`
}

func (d *LimitDecision) Approved() bool {
	return d != nil && d.Status == repox.StatusApproved
}

// RequestLimitIncrease decides eligibility from the score band containing
// the current score (eligible max 0 when no band matches), appends a
// LimitRequest log entry, and returns the decision. A requested limit at
// or below the eligible max is approved even when it does not exceed the
// current limit.
func (e *Engine) RequestLimitIncrease(ctx context.Context, id string, requested float64) (*LimitDecision, error) {
	normalized := repox.NormalizeID(id)
	unlock := e.lockCustomer(normalized)
	defer unlock()

	customer, err := e.repo.GetCustomer(ctx, normalized)
	if err != nil {
		return nil, err
	}

	eligibleMax := 0.0
	band, err := e.repo.BandForScore(ctx, customer.Score)
	if err != nil && !errors.Is(err, repox.ErrNoBand) {
		return nil, fmt.Errorf("band lookup: %w", err)
	}
	if band != nil {
		eligibleMax = band.MaxLimit
	}

	status := repox.StatusRejected
	if requested <= eligibleMax {
		status = repox.StatusApproved
	}

	entry := &repox.LimitRequest{
		CustomerID:     customer.ID,
		RequestedAt:    e.now().UTC(),
		PriorLimit:     customer.CurrentLimit,
		RequestedLimit: requested,
		Status:         status,
	}
	if err := e.repo.AppendLimitRequest(ctx, entry); err != nil {
		return nil, fmt.Errorf("append limit request: %w", err)
	}

	return &LimitDecision{
		Status:         status,
		Score:          customer.Score,
		CurrentLimit:   customer.CurrentLimit,
		RequestedLimit: requested,
		EligibleMax:    eligibleMax,
	}, nil
}

/* ------------------------------ Score ------------------------------ */

const (
	incomeWeight         = 30
	employmentFormal     = 300
	employmentSelf       = 200
	employmentUnemployed = 0
	debtPenalty          = -100
	debtBonus            = 100

	scoreMin = 0
	scoreMax = 1000
)

type InterviewAnswers struct {
	Income         float64 `json:"income"`
	FixedExpenses  float64 `json:"fixed_expenses"`
	EmploymentType string  `json:"employment_type"`
	Dependents     int     `json:"dependents"`
	HasDebt        bool    `json:"has_debt"`
}

// ScoreFromInterview applies the recomputation formula: the raw sum is
// truncated to an integer and then clamped to [0,1000].
func ScoreFromInterview(a InterviewAnswers) int {
	raw := (a.Income/(a.FixedExpenses+1))*incomeWeight +
		float64(employmentWeight(a.EmploymentType)) +
		float64(dependentsWeight(a.Dependents)) +
		float64(debtWeight(a.HasDebt))

	score := int(raw)
	if score < scoreMin {
		return scoreMin
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

func employmentWeight(employmentType string) int {
	switch strings.ToLower(strings.TrimSpace(employmentType)) {
	case "formal":
		return employmentFormal
	case "autonomo", "autônomo", "self-employed":
		return employmentSelf
	default:
		// Unrecognized types fall back to unemployed.
		return employmentUnemployed
	}
}

func dependentsWeight(dependents int) int {
	switch {
	case dependents <= 0:
		return 100
	case dependents == 1:
		return 80
	case dependents == 2:
		return 60
	default:
		return 30
	}
}

func debtWeight(hasDebt bool) int {
	if hasDebt {
		return debtPenalty
	}
	return debtBonus
}

// RecomputeScoreFromInterview overwrites the customer's score with the
// recomputed value unconditionally and returns it.
func (e *Engine) RecomputeScoreFromInterview(ctx context.Context, id string, answers InterviewAnswers) (int, error) {
	normalized := repox.NormalizeID(id)
	unlock := e.lockCustomer(normalized)
	defer unlock()

	score := ScoreFromInterview(answers)
	if err := e.repo.UpdateCustomerScore(ctx, normalized, score); err != nil {
		return 0, err
	}
	return score, nil
}
