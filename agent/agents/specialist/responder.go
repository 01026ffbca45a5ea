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

// responderImpl answers one persona: it replays the transcript to the
// model and maps the reply to either a message or tool requests.
type responderImpl struct {
	handler      contractx.HandlerType
	runner       compose.Runnable[map[string]any, *schema.Message]
	allowedTools map[string]struct{}
}

func newResponder(
	ctx context.Context,
	handler contractx.HandlerType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*responderImpl, error) {
	var boundModel einomodel.BaseChatModel = chatModel
	if len(tools) > 0 {
		withTools, err := chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for handler=%s: %v", contractx.ErrModelInvoke, handler, err)
		}
		boundModel = withTools
	}

	runner, err := compileResponderGraph(ctx, boundModel, systemPrompt, fmt.Sprintf("responder.%s", handler))
	if err != nil {
		return nil, fmt.Errorf("%w: compile responder graph for handler=%s: %v", contractx.ErrModelInvoke, handler, err)
	}

	allowed := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowed[t.Name] = struct{}{}
	}

	return &responderImpl{
		handler:      handler,
		runner:       runner,
		allowedTools: allowed,
	}, nil
}

func (r *responderImpl) Respond(ctx context.Context, req contractx.ResponderRequest) (contractx.ResponderResponse, error) {
	if len(req.Transcript) == 0 {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: transcript is empty", contractx.ErrValidation)
	}

	input := map[string]any{
		"transcript":  toSchemaMessages(req.Transcript),
		"customer_id": "",
	}
	for k, v := range req.Vars {
		input[k] = v
	}

	msg, err := r.runner.Invoke(ctx, input)
	if err != nil {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: responder=%s invoke: %v", contractx.ErrModelInvoke, r.handler, err)
	}
	if msg == nil {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: responder=%s returned nil message", contractx.ErrSchemaViolation, r.handler)
	}

	toolRequests, err := toToolRequests(msg.ToolCalls)
	if err != nil {
		return contractx.ResponderResponse{}, err
	}
	if len(toolRequests) > 0 {
		for _, tr := range toolRequests {
			if _, ok := r.allowedTools[tr.Tool]; !ok {
				return contractx.ResponderResponse{}, fmt.Errorf("%w: tool=%s is not bound to handler=%s", contractx.ErrSchemaViolation, tr.Tool, r.handler)
			}
		}
		return contractx.ResponderResponse{ToolRequests: toolRequests}, nil
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return contractx.ResponderResponse{}, fmt.Errorf("%w: responder=%s message is empty", contractx.ErrSchemaViolation, r.handler)
	}
	return contractx.ResponderResponse{Message: content}, nil
}

func toSchemaMessages(transcript []contractx.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(transcript))
	for _, m := range transcript {
		switch m.Role {
		case contractx.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		case contractx.RoleTool:
			msgs = append(msgs, schema.ToolMessage(m.Content, m.Tool))
		}
	}
	return msgs
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{Tool: tool, Args: args})
	}
	return reqs, nil
}
