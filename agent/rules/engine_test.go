package rules

import (
	"context"
	"errors"
	"testing"

	repox "github.com/bancoagil/agent/agent/repo"
)

type fakeRepo struct {
	customers map[string]*repox.Customer
	bands     []repox.ScoreBand
	requests  []repox.LimitRequest

	scoreUpdates map[string]int
	findErr      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[string]*repox.Customer{
			"12345678900": {ID: "12345678900", Name: "João Silva", BirthDate: "1990-01-01", Score: 500, MonthlyIncome: 3000, CurrentLimit: 1000},
			"98765432100": {ID: "98765432100", Name: "Maria Oliveira", BirthDate: "1985-05-15", Score: 800, MonthlyIncome: 8000, CurrentLimit: 5000},
		},
		bands: []repox.ScoreBand{
			{ScoreMin: 0, ScoreMax: 299, MaxLimit: 0},
			{ScoreMin: 300, ScoreMax: 499, MaxLimit: 500},
			{ScoreMin: 500, ScoreMax: 699, MaxLimit: 2000},
			{ScoreMin: 700, ScoreMax: 899, MaxLimit: 10000},
			{ScoreMin: 900, ScoreMax: 1000, MaxLimit: 50000},
		},
		scoreUpdates: map[string]int{},
	}
}

func (f *fakeRepo) GetCustomer(ctx context.Context, id string) (*repox.Customer, error) {
	c, ok := f.customers[repox.NormalizeID(id)]
	if !ok {
		return nil, repox.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeRepo) FindCustomerByIdentity(ctx context.Context, id, birthDate string) (*repox.Customer, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.customers[id]
	if !ok || c.BirthDate != birthDate {
		return nil, repox.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeRepo) UpdateCustomerScore(ctx context.Context, id string, score int) error {
	c, ok := f.customers[id]
	if !ok {
		return repox.ErrNotFound
	}
	c.Score = score
	f.scoreUpdates[id] = score
	return nil
}

func (f *fakeRepo) BandForScore(ctx context.Context, score int) (*repox.ScoreBand, error) {
	for i := range f.bands {
		if score >= f.bands[i].ScoreMin && score <= f.bands[i].ScoreMax {
			band := f.bands[i]
			return &band, nil
		}
	}
	return nil, repox.ErrNoBand
}

func (f *fakeRepo) AppendLimitRequest(ctx context.Context, req *repox.LimitRequest) error {
	f.requests = append(f.requests, *req)
	return nil
}

func (f *fakeRepo) ListLimitRequests(ctx context.Context, customerID string) ([]repox.LimitRequest, error) {
	var out []repox.LimitRequest
	for _, r := range f.requests {
		if r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) Seed(ctx context.Context) error { return nil }
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func TestValidateIdentity(t *testing.T) {
	t.Parallel()

	engine := NewEngine(newFakeRepo())
	ctx := context.Background()

	res, err := engine.ValidateIdentity(ctx, "123.456.789-00", "1990-01-01")
	if err != nil {
		t.Fatalf("ValidateIdentity() error = %v", err)
	}
	if !res.Success || res.Customer == nil || res.Customer.Name != "João Silva" {
		t.Fatalf("expected formatted id to match, got %+v", res)
	}

	res, err = engine.ValidateIdentity(ctx, "12345678900", "1991-01-01")
	if err != nil {
		t.Fatalf("ValidateIdentity() error = %v", err)
	}
	if res.Success || res.Reason == "" {
		t.Fatalf("expected mismatch result, got %+v", res)
	}

	res, err = engine.ValidateIdentity(ctx, "12345", "1990-01-01")
	if err != nil {
		t.Fatalf("ValidateIdentity() error = %v", err)
	}
	if res.Success {
		t.Fatal("short id must not validate")
	}
}

func TestScoreFromInterview(t *testing.T) {
	t.Parallel()

	// (3000/(1000+1))*30 + 300 + 100 + 100 = 589 after truncation.
	got := ScoreFromInterview(InterviewAnswers{
		Income:         3000,
		FixedExpenses:  1000,
		EmploymentType: "formal",
		Dependents:     0,
		HasDebt:        false,
	})
	if got != 589 {
		t.Fatalf("ScoreFromInterview() = %d, want 589", got)
	}
}

func TestScoreFromInterviewClamps(t *testing.T) {
	t.Parallel()

	high := ScoreFromInterview(InterviewAnswers{
		Income:         1_000_000,
		FixedExpenses:  0,
		EmploymentType: "formal",
		Dependents:     0,
		HasDebt:        false,
	})
	if high != 1000 {
		t.Fatalf("expected clamp to 1000, got %d", high)
	}

	low := ScoreFromInterview(InterviewAnswers{
		Income:         0,
		FixedExpenses:  5000,
		EmploymentType: "desempregado",
		Dependents:     5,
		HasDebt:        true,
	})
	if low != 0 {
		t.Fatalf("expected clamp to exactly 0, got %d", low)
	}
}

func TestScoreFromInterviewEmploymentNormalization(t *testing.T) {
	t.Parallel()

	base := InterviewAnswers{Income: 0, FixedExpenses: 0, Dependents: 1, HasDebt: true}

	for _, employment := range []string{"autonomo", "Autônomo", " self-employed "} {
		a := base
		a.EmploymentType = employment
		if got := ScoreFromInterview(a); got != 180 {
			t.Fatalf("employment %q: got %d, want 180", employment, got)
		}
	}

	a := base
	a.EmploymentType = "freelancer"
	if got := ScoreFromInterview(a); got != 0 {
		t.Fatalf("unknown employment must weigh as unemployed, got %d", got)
	}
}

func TestRequestLimitIncreaseDecision(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	engine := NewEngine(repo)
	ctx := context.Background()

	// Score 500 sits in the [500,699] band with eligible max 2000.
	decision, err := engine.RequestLimitIncrease(ctx, "12345678900", 1500)
	if err != nil {
		t.Fatalf("RequestLimitIncrease() error = %v", err)
	}
	if !decision.Approved() || decision.EligibleMax != 2000 {
		t.Fatalf("expected approval within band, got %+v", decision)
	}

	decision, err = engine.RequestLimitIncrease(ctx, "12345678900", 2500)
	if err != nil {
		t.Fatalf("RequestLimitIncrease() error = %v", err)
	}
	if decision.Approved() {
		t.Fatalf("expected rejection above eligible max, got %+v", decision)
	}

	// A requested limit below the current one is still decided by the band.
	decision, err = engine.RequestLimitIncrease(ctx, "12345678900", 100)
	if err != nil {
		t.Fatalf("RequestLimitIncrease() error = %v", err)
	}
	if !decision.Approved() {
		t.Fatalf("expected approval below current limit, got %+v", decision)
	}

	requests, err := repo.ListLimitRequests(ctx, "12345678900")
	if err != nil {
		t.Fatalf("ListLimitRequests() error = %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("expected every request logged, got %d", len(requests))
	}
	if requests[0].Status != repox.StatusApproved || requests[1].Status != repox.StatusRejected {
		t.Fatalf("unexpected log statuses: %+v", requests)
	}
}

func TestRequestLimitIncreaseUnknownCustomer(t *testing.T) {
	t.Parallel()

	engine := NewEngine(newFakeRepo())
	_, err := engine.RequestLimitIncrease(context.Background(), "00000000000", 100)
	if !errors.Is(err, repox.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecomputeScoreOverwrites(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	engine := NewEngine(repo)

	score, err := engine.RecomputeScoreFromInterview(context.Background(), "987.654.321-00", InterviewAnswers{
		Income:         0,
		FixedExpenses:  0,
		EmploymentType: "desempregado",
		Dependents:     4,
		HasDebt:        true,
	})
	if err != nil {
		t.Fatalf("RecomputeScoreFromInterview() error = %v", err)
	}
	// A worse recomputation still overwrites the stored 800.
	if score != 0 {
		t.Fatalf("unexpected score: %d", score)
	}
	if repo.scoreUpdates["98765432100"] != 0 {
		t.Fatalf("expected stored score 0, got %d", repo.scoreUpdates["98765432100"])
	}
}

func TestQueryLimitIsReadOnly(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	engine := NewEngine(repo)
	ctx := context.Background()

	first, err := engine.QueryLimit(ctx, "12345678900")
	if err != nil {
		t.Fatalf("QueryLimit() error = %v", err)
	}
	second, err := engine.QueryLimit(ctx, "12345678900")
	if err != nil {
		t.Fatalf("QueryLimit() error = %v", err)
	}
	if *first != *second {
		t.Fatalf("replay diverged: %+v vs %+v", first, second)
	}
	if first.Score != 500 || first.CurrentLimit != 1000 {
		t.Fatalf("unexpected summary: %+v", first)
	}
}
