// Package triage implements the always-first routing step: logout
// handling, sticky handler affinity, the authentication gate, and
// classification-based dispatch.
package triage

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	contractx "github.com/bancoagil/agent/agent/contract"
	promptx "github.com/bancoagil/agent/agent/prompt"
	statex "github.com/bancoagil/agent/agent/state"
	toolx "github.com/bancoagil/agent/agent/tool"
)

// Fixed logout vocabulary, matched case-insensitively as substrings.
var logoutKeywords = []string{"sair", "encerrar", "tchau", "fim", "parar", "logout"}

const (
	// FarewellMessage is emitted on logout, from any state.
	FarewellMessage = "Atendimento encerrado com segurança. Obrigado por usar o Banco Ágil! Se precisar, é só chamar novamente."
	// LockedMessage is emitted once identification attempts are exhausted.
	LockedMessage = "Por segurança, novas tentativas de identificação foram bloqueadas nesta conversa. Encerre o atendimento e tente novamente mais tarde."

	// minDigitsForValidation separates conversational turns from
	// identification attempts during the authentication gate.
	minDigitsForValidation = 3
)

type Config struct {
	MaxFailedAttempts int           `envconfig:"MAX_FAILED_ATTEMPTS" split_words:"true" default:"3"`
	OracleTimeout     time.Duration `envconfig:"ORACLE_TIMEOUT" split_words:"true" default:"20s"`
	OracleRetries     int           `envconfig:"ORACLE_RETRIES" split_words:"true" default:"1"`
}

func (c *Config) normalize() {
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = 3
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 20 * time.Second
	}
	if c.OracleRetries < 0 {
		c.OracleRetries = 0
	}
}

// Decision is the router's verdict for one step. Exactly one of Reply,
// Next, or ToolRequests is set.
type Decision struct {
	Reply        string
	Next         contractx.HandlerType
	ToolRequests []contractx.ToolRequest
	Reset        bool
}

// Router owns the per-turn routing rules. It never invokes a specialist
// itself; it only returns decisions.
type Router struct {
	registry contractx.Registry
	cfg      Config
}

func NewRouter(registry contractx.Registry, cfg Config) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: oracle registry is required", contractx.ErrValidation)
	}
	cfg.normalize()
	return &Router{registry: registry, cfg: cfg}, nil
}

// Route evaluates the routing rules in strict priority order for the
// current user message (already appended to the transcript).
func (r *Router) Route(ctx context.Context, st *statex.SessionState, text string) (Decision, error) {
	lowered := strings.ToLower(text)

	// 1. Termination always wins, even mid-interview.
	for _, keyword := range logoutKeywords {
		if strings.Contains(lowered, keyword) {
			log.Debug().Str("session", st.SessionID).Msg("logout requested")
			st.Reset(time.Now())
			return Decision{Reply: FarewellMessage, Reset: true}, nil
		}
	}

	// 2. Sticky interview affinity: classification is bypassed entirely
	// until the completion marker shows up in the prior assistant reply.
	if st.LastHandler == contractx.HandlerInterview {
		if strings.Contains(strings.ToUpper(st.PriorAssistantMessage()), promptx.CompletionMarker) {
			log.Debug().Str("session", st.SessionID).Msg("interview complete, releasing to credit")
			st.NextHandler = contractx.HandlerCredit
			return Decision{Next: contractx.HandlerCredit}, nil
		}
		st.NextHandler = contractx.HandlerInterview
		return Decision{Next: contractx.HandlerInterview}, nil
	}

	// Identity tool round-trips return here; answer them directly instead
	// of classifying the digits that triggered the validation.
	if last, ok := st.LastMessage(); ok && last.Role == contractx.RoleTool && last.Tool == toolx.ToolValidateIdentity {
		return r.respond(ctx, st, r.registry.Validate())
	}

	// 3. Authentication gate.
	if !(st.Authenticated && strings.TrimSpace(st.CustomerID) != "") {
		if st.FailedAttempts >= r.cfg.MaxFailedAttempts {
			st.LastHandler = contractx.HandlerTriage
			return Decision{Reply: LockedMessage}, nil
		}
		if countDigits(text) < minDigitsForValidation {
			return r.respond(ctx, st, r.registry.Identify())
		}
		return r.respond(ctx, st, r.registry.Validate())
	}

	// 4. Authenticated classification.
	next := r.classify(ctx, st, text)
	st.NextHandler = next
	return Decision{Next: next}, nil
}

// respond invokes a triage responder with timeout and bounded retry. The
// caller degrades ErrOracleUnavailable to a generic apology.
func (r *Router) respond(ctx context.Context, st *statex.SessionState, responder contractx.Responder) (Decision, error) {
	req := contractx.ResponderRequest{
		Transcript: st.Transcript,
		Vars:       map[string]string{"customer_id": st.CustomerID},
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.OracleRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
		resp, err := responder.Respond(callCtx, req)
		cancel()
		if err == nil {
			st.LastHandler = contractx.HandlerTriage
			if len(resp.ToolRequests) > 0 {
				return Decision{ToolRequests: resp.ToolRequests}, nil
			}
			return Decision{Reply: resp.Message}, nil
		}
		lastErr = err
	}
	return Decision{}, fmt.Errorf("%w: triage responder: %v", contractx.ErrOracleUnavailable, lastErr)
}

// classify asks the classifier oracle for a label; any failure or
// unrecognized answer falls back to the default route so an oracle outage
// never wedges the session.
func (r *Router) classify(ctx context.Context, st *statex.SessionState, text string) contractx.HandlerType {
	req := contractx.ClassifyRequest{
		Context:   st.PriorAssistantMessage(),
		Utterance: text,
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.OracleRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
		label, err := r.registry.Classifier().Classify(callCtx, req)
		cancel()
		if err == nil {
			return contractx.HandlerForLabel(label)
		}
		lastErr = err
	}

	log.Warn().Err(lastErr).Str("session", st.SessionID).Msg("classifier unavailable, defaulting to credit")
	return contractx.HandlerCredit
}

func countDigits(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			count++
		}
	}
	return count
}
