package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/bancoagil/agent/agent/contract"
	repox "github.com/bancoagil/agent/agent/repo"
	rulesx "github.com/bancoagil/agent/agent/rules"
	ratesx "github.com/bancoagil/agent/pkg/rates"
)

// RateSource is the currency-information backend.
type RateSource interface {
	Latest(ctx context.Context, base, target string) (*ratesx.Quote, error)
}

// Gateway executes tool requests against the rule engine and the rate
// source. Failures are returned as ToolResult values with a reason; the
// error return is reserved for a broken gateway, not for tool outcomes.
type Gateway struct {
	engine *rulesx.Engine
	rates  RateSource
}

func NewGateway(engine *rulesx.Engine, rates RateSource) (*Gateway, error) {
	if engine == nil {
		return nil, errors.New("rule engine is required")
	}
	return &Gateway{engine: engine, rates: rates}, nil
}

func (g *Gateway) Execute(ctx context.Context, handler contractx.HandlerType, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	allowed := allowedForHandler(handler)
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		if _, ok := allowed[req.Tool]; !ok {
			results = append(results, contractx.ToolResult{
				Tool:  req.Tool,
				Error: fmt.Sprintf("tool=%s is not available for handler=%s", req.Tool, handler),
			})
			continue
		}
		results = append(results, g.execute(ctx, req))
	}
	return results, nil
}

func (g *Gateway) execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	switch req.Tool {
	case ToolValidateIdentity:
		return g.validateIdentity(ctx, req)
	case ToolQueryLimit:
		return g.queryLimit(ctx, req)
	case ToolRequestLimitIncrease:
		return g.requestLimitIncrease(ctx, req)
	case ToolUpdateScore:
		return g.updateScore(ctx, req)
	case ToolCurrencyLookup:
		return g.currencyLookup(ctx, req)
	default:
		return contractx.ToolResult{Tool: req.Tool, Error: "unknown tool"}
	}
}

func (g *Gateway) validateIdentity(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	id, err := stringArg(req.Args, "id")
	if err != nil {
		return failure(req.Tool, err)
	}
	birthDate, err := stringArg(req.Args, "birth_date")
	if err != nil {
		return failure(req.Tool, err)
	}

	result, err := g.engine.ValidateIdentity(ctx, id, birthDate)
	if err != nil {
		return failure(req.Tool, err)
	}
	return contractx.ToolResult{Tool: req.Tool, Result: result}
}

func (g *Gateway) queryLimit(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	id, err := stringArg(req.Args, "id")
	if err != nil {
		return failure(req.Tool, err)
	}

	summary, err := g.engine.QueryLimit(ctx, id)
	if errors.Is(err, repox.ErrNotFound) {
		return contractx.ToolResult{Tool: req.Tool, Error: "customer not found"}
	}
	if err != nil {
		return failure(req.Tool, err)
	}
	return contractx.ToolResult{Tool: req.Tool, Result: summary}
}

func (g *Gateway) requestLimitIncrease(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	id, err := stringArg(req.Args, "id")
	if err != nil {
		return failure(req.Tool, err)
	}
	requested, err := floatArg(req.Args, "requested_limit")
	if err != nil {
		return failure(req.Tool, err)
	}
	if requested < 0 || math.IsNaN(requested) || math.IsInf(requested, 0) {
		return contractx.ToolResult{Tool: req.Tool, Error: "requested_limit must be a non-negative number"}
	}

	decision, err := g.engine.RequestLimitIncrease(ctx, id, requested)
	if errors.Is(err, repox.ErrNotFound) {
		return contractx.ToolResult{Tool: req.Tool, Error: "customer not found"}
	}
	if err != nil {
		return failure(req.Tool, err)
	}
	return contractx.ToolResult{Tool: req.Tool, Result: decision}
}

func (g *Gateway) updateScore(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	id, err := stringArg(req.Args, "id")
	if err != nil {
		return failure(req.Tool, err)
	}
	income, err := floatArg(req.Args, "income")
	if err != nil {
		return failure(req.Tool, err)
	}
	expenses, err := floatArg(req.Args, "fixed_expenses")
	if err != nil {
		return failure(req.Tool, err)
	}
	employment, err := stringArg(req.Args, "employment_type")
	if err != nil {
		return failure(req.Tool, err)
	}
	dependents, err := intArg(req.Args, "dependents")
	if err != nil {
		return failure(req.Tool, err)
	}
	hasDebt, err := boolArg(req.Args, "has_debt")
	if err != nil {
		return failure(req.Tool, err)
	}

	score, err := g.engine.RecomputeScoreFromInterview(ctx, id, rulesx.InterviewAnswers{
		Income:         income,
		FixedExpenses:  expenses,
		EmploymentType: employment,
		Dependents:     dependents,
		HasDebt:        hasDebt,
	})
	if errors.Is(err, repox.ErrNotFound) {
		return contractx.ToolResult{Tool: req.Tool, Error: "customer not found"}
	}
	if err != nil {
		return failure(req.Tool, err)
	}
	return contractx.ToolResult{Tool: req.Tool, Result: map[string]any{"score": score}}
}

func (g *Gateway) currencyLookup(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	if g.rates == nil {
		return contractx.ToolResult{Tool: req.Tool, Error: "currency information is unavailable"}
	}
	base, err := stringArg(req.Args, "base")
	if err != nil {
		return failure(req.Tool, err)
	}
	target, err := stringArg(req.Args, "target")
	if err != nil {
		return failure(req.Tool, err)
	}

	quote, err := g.rates.Latest(ctx, base, target)
	if err != nil {
		return failure(req.Tool, err)
	}
	return contractx.ToolResult{Tool: req.Tool, Result: quote}
}

func failure(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}
}

/* --------------------------- argument coercion --------------------------- */

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func floatArg(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func intArg(args map[string]any, key string) (int, error) {
	f, err := floatArg(args, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func boolArg(args map[string]any, key string) (bool, error) {
	raw, ok := args[key]
	if !ok {
		return false, fmt.Errorf("%s is required", key)
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "sim", "yes":
			return true, nil
		case "false", "nao", "não", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%s must be a boolean", key)
}
