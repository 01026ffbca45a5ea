// Package orchestrator wires the turn pipeline into a compiled graph and
// exposes the single entry point the transport layer calls.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/bancoagil/agent/agent/contract"
	nodex "github.com/bancoagil/agent/agent/nodes"
	statex "github.com/bancoagil/agent/agent/state"
	triagex "github.com/bancoagil/agent/agent/triage"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	// MaxHops bounds handler transitions per turn; zero means 50.
	MaxHops       int           `envconfig:"MAX_HOPS" split_words:"true" default:"50"`
	OracleTimeout time.Duration `envconfig:"ORACLE_TIMEOUT" split_words:"true" default:"20s"`
	OracleRetries int           `envconfig:"ORACLE_RETRIES" split_words:"true" default:"1"`
}

// TurnResult is what one handled message yields.
type TurnResult struct {
	Reply         string
	Handler       contractx.HandlerType
	Authenticated bool
}

type Orchestrator struct {
	store  statex.Store
	router *triagex.Router
	models contractx.Registry
	tools  contractx.ToolGateway

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	cfg Config
	now func() time.Time
}

func New(
	store statex.Store,
	router *triagex.Router,
	models contractx.Registry,
	tools contractx.ToolGateway,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if router == nil {
		return nil, errors.New("triage router is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	o := &Orchestrator{
		store:  store,
		router: router,
		models: models,
		tools:  tools,
		cfg:    cfg,
		now:    time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one full turn for the session and returns the reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (TurnResult, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Reply:         out.Reply,
		Handler:       out.Handler,
		Authenticated: out.Authenticated,
	}, nil
}

func (o *Orchestrator) turnDeps() nodex.TurnDeps {
	return nodex.TurnDeps{
		Router:        o.router,
		Models:        o.models,
		Tools:         o.tools,
		MaxHops:       o.cfg.MaxHops,
		OracleTimeout: o.cfg.OracleTimeout,
		OracleRetries: o.cfg.OracleRetries,
	}
}
