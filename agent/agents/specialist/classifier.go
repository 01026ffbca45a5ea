package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/bancoagil/agent/agent/contract"
)

type classifierImpl struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func newClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*classifierImpl, error) {
	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &classifierImpl{runner: runner}, nil
}

func (c *classifierImpl) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.Label, error) {
	payload, err := json.Marshal(map[string]string{
		"context":   req.Context,
		"utterance": req.Utterance,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(payload),
	})
	if err != nil {
		return "", fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return contractx.LabelCredit, nil
	}
	return parseLabel(out.Content), nil
}

// parseLabel maps the model's single-token answer onto the label
// vocabulary. Empty or unparseable output is the default label, never an
// error.
func parseLabel(content string) contractx.Label {
	token := strings.ToUpper(strings.TrimSpace(content))
	switch {
	case strings.Contains(token, "CAMBIO"):
		return contractx.LabelExchange
	case strings.Contains(token, "ENTREVISTA"):
		return contractx.LabelInterview
	default:
		return contractx.LabelCredit
	}
}
