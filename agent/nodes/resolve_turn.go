package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/bancoagil/agent/agent/contract"
	rulesx "github.com/bancoagil/agent/agent/rules"
	statex "github.com/bancoagil/agent/agent/state"
	toolx "github.com/bancoagil/agent/agent/tool"
	triagex "github.com/bancoagil/agent/agent/triage"
	"github.com/bancoagil/agent/pkg/metrics"
)

// ApologyMessage is the degraded reply for oracle outages and aborted
// routing loops.
const ApologyMessage = "Desculpe, estou com uma instabilidade técnica neste momento. Pode tentar novamente em instantes?"

const defaultMaxHops = 50

// TurnDeps carries everything ResolveTurn needs to walk the routing loop.
type TurnDeps struct {
	Router *triagex.Router
	Models contractx.Registry
	Tools  contractx.ToolGateway

	// MaxHops bounds handler transitions within one turn; zero means the
	// default of 50.
	MaxHops       int
	OracleTimeout time.Duration
	OracleRetries int
}

// ResolveTurn runs one full turn: the user message is appended, control
// starts at triage, and handler hops (including tool round-trips with
// their static return-routing) continue until some handler produces a
// user-facing reply or the hop limit cuts the turn off.
func ResolveTurn(ctx context.Context, in *GraphState, deps TurnDeps) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if deps.Router == nil || deps.Models == nil || deps.Tools == nil {
		return nil, fmt.Errorf("%w: turn dependencies are incomplete", contractx.ErrValidation)
	}

	st := in.Session
	before := st.Clone()
	st.AppendUser(in.Text)

	maxHops := deps.MaxHops
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}

	current := contractx.HandlerTriage
	for hop := 0; hop < maxHops; hop++ {
		if current == contractx.HandlerTriage {
			next, done, err := resolveTriageHop(ctx, in, deps)
			if err != nil {
				return nil, err
			}
			if done {
				return in, nil
			}
			current = next
			continue
		}

		next, done, err := resolveSpecialistHop(ctx, in, deps, current)
		if err != nil {
			return nil, err
		}
		if done {
			return in, nil
		}
		current = next
	}

	metrics.RoutingLoopAbortsTotal.Inc()
	log.Error().Err(contractx.ErrRoutingLoop).
		Str("session", st.SessionID).
		Int("max_hops", maxHops).
		Msg("turn aborted by hop limit")

	// The loop's partial progress (tool results, affinity changes) is
	// discarded: the saved state is what was loaded, plus the user
	// message and the apology.
	st = before
	st.AppendUser(in.Text)
	st.AppendAssistant(ApologyMessage)
	in.Session = st
	in.Reply = ApologyMessage
	in.Handler = current
	in.Outcome = OutcomeDegraded
	return in, nil
}

// resolveTriageHop consults the router once. done=true means the turn
// produced its reply; otherwise the returned handler takes over.
func resolveTriageHop(ctx context.Context, in *GraphState, deps TurnDeps) (contractx.HandlerType, bool, error) {
	st := in.Session
	dec, err := deps.Router.Route(ctx, st, in.Text)
	if err != nil {
		if errors.Is(err, contractx.ErrOracleUnavailable) {
			degradeTurn(in, contractx.HandlerTriage, err)
			return "", true, nil
		}
		return "", false, err
	}

	switch {
	case dec.Reply != "":
		st.AppendAssistant(dec.Reply)
		in.Reply = dec.Reply
		in.Handler = contractx.HandlerTriage
		in.Outcome = OutcomeOK
		return "", true, nil

	case len(dec.ToolRequests) > 0:
		next, err := executeTools(ctx, st, deps.Tools, contractx.HandlerTriage, dec.ToolRequests)
		if err != nil {
			return "", false, err
		}
		return next, false, nil

	default:
		next, ok := st.TakeNextHandler()
		if !ok {
			next = dec.Next
		}
		if !next.Specialist() {
			return "", false, fmt.Errorf("%w: triage routed to %q", contractx.ErrValidation, next)
		}
		return next, false, nil
	}
}

func resolveSpecialistHop(ctx context.Context, in *GraphState, deps TurnDeps, handler contractx.HandlerType) (contractx.HandlerType, bool, error) {
	st := in.Session
	resp, err := respondWithRetry(ctx, responderFor(deps.Models, handler), st, deps)
	if err != nil {
		degradeTurn(in, handler, err)
		return "", true, nil
	}

	// Affinity is recorded on every successful hop, tool round-trips
	// included, so a mid-interview turn stays sticky.
	st.LastHandler = handler

	if len(resp.ToolRequests) > 0 {
		next, err := executeTools(ctx, st, deps.Tools, handler, resp.ToolRequests)
		if err != nil {
			return "", false, err
		}
		return next, false, nil
	}

	st.AppendAssistant(resp.Message)
	in.Reply = resp.Message
	in.Handler = handler
	in.Outcome = OutcomeOK
	return "", true, nil
}

// degradeTurn records an oracle outage and answers with the apology. The
// session keeps whatever progress the turn made before the outage.
func degradeTurn(in *GraphState, handler contractx.HandlerType, err error) {
	metrics.OracleFallbacksTotal.WithLabelValues(string(handler)).Inc()
	log.Warn().Err(err).
		Str("session", in.SessionID).
		Str("handler", string(handler)).
		Msg("oracle unavailable, degrading turn")

	in.Session.AppendAssistant(ApologyMessage)
	in.Reply = ApologyMessage
	in.Handler = handler
	in.Outcome = OutcomeDegraded
}

// executeTools runs the requests, appends each result to the transcript,
// applies authentication side effects, and returns the handler the last
// tool routes back to.
func executeTools(ctx context.Context, st *statex.SessionState, tools contractx.ToolGateway, handler contractx.HandlerType, reqs []contractx.ToolRequest) (contractx.HandlerType, error) {
	results, err := tools.Execute(ctx, handler, reqs)
	if err != nil {
		return "", fmt.Errorf("execute tools for handler=%s: %w", handler, err)
	}

	next := toolx.ReturnHandler("")
	for _, res := range results {
		status := "ok"
		if res.Failed() {
			status = "failed"
		}
		metrics.ToolCallsTotal.WithLabelValues(res.Tool, status).Inc()

		st.AppendToolResult(res.Tool, encodeToolResult(res))
		if res.Tool == toolx.ToolValidateIdentity {
			applyIdentityOutcome(st, res)
		}
		next = toolx.ReturnHandler(res.Tool)
	}
	return next, nil
}

// applyIdentityOutcome is the only place session authentication flips. A
// structured mismatch counts as a failed attempt; argument errors do not.
func applyIdentityOutcome(st *statex.SessionState, res contractx.ToolResult) {
	if res.Failed() {
		return
	}

	var v rulesx.ValidationResult
	switch payload := res.Result.(type) {
	case rulesx.ValidationResult:
		v = payload
	case *rulesx.ValidationResult:
		if payload == nil {
			return
		}
		v = *payload
	default:
		return
	}

	if v.Success && v.Customer != nil {
		st.Authenticated = true
		st.CustomerID = v.Customer.ID
		st.CustomerName = v.Customer.Name
		st.FailedAttempts = 0
		log.Info().Str("session", st.SessionID).Str("customer", st.CustomerID).Msg("customer authenticated")
		return
	}
	st.FailedAttempts++
}

func encodeToolResult(res contractx.ToolResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"error":"unencodable result"}`, res.Tool)
	}
	return string(raw)
}

func responderFor(models contractx.Registry, handler contractx.HandlerType) contractx.Responder {
	switch handler {
	case contractx.HandlerCredit:
		return models.Credit()
	case contractx.HandlerExchange:
		return models.Exchange()
	case contractx.HandlerInterview:
		return models.Interview()
	default:
		return models.Identify()
	}
}

func respondWithRetry(ctx context.Context, responder contractx.Responder, st *statex.SessionState, deps TurnDeps) (contractx.ResponderResponse, error) {
	req := contractx.ResponderRequest{
		Transcript: st.Transcript,
		Vars:       map[string]string{"customer_id": st.CustomerID},
	}

	timeout := deps.OracleTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retries := deps.OracleRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := responder.Respond(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return contractx.ResponderResponse{}, fmt.Errorf("%w: %v", contractx.ErrOracleUnavailable, lastErr)
}
