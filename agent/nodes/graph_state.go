// Package nodes holds the per-node logic of the orchestrator graph. Each
// node takes the shared GraphState, mutates it, and hands it on.
package nodes

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/bancoagil/agent/agent/contract"
	statex "github.com/bancoagil/agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply         string
	Handler       contractx.HandlerType
	Authenticated bool
}

// Outcome labels how a turn ended; it feeds the turn counter.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
)

type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session *statex.SessionState

	Reply   string
	Handler contractx.HandlerType
	Outcome string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
