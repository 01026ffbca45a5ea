package nodes

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/bancoagil/agent/agent/contract"
	"github.com/bancoagil/agent/pkg/metrics"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced an empty reply", contractx.ErrValidation)
	}

	outcome := in.Outcome
	if outcome == "" {
		outcome = OutcomeOK
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	if !in.Now.IsZero() {
		metrics.TurnDuration.Observe(time.Since(in.Now).Seconds())
	}

	return GraphOutput{
		Reply:         reply,
		Handler:       in.Handler,
		Authenticated: in.Session.Authenticated,
	}, nil
}
