package specialist

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/bancoagil/agent/agent/contract"
	toolx "github.com/bancoagil/agent/agent/tool"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func TestClassifierMapsLabels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		answer string
		want   contractx.Label
	}{
		{"CAMBIO", contractx.LabelExchange},
		{" cambio \n", contractx.LabelExchange},
		{"ENTREVISTA", contractx.LabelInterview},
		{"CREDITO", contractx.LabelCredit},
		{"not a label", contractx.LabelCredit},
		{"", contractx.LabelCredit},
	}

	for _, tc := range cases {
		fake := &fakeToolCallingModel{responses: []*schema.Message{{Content: tc.answer}}}
		classifier, err := newClassifier(context.Background(), fake, "classifier prompt")
		if err != nil {
			t.Fatalf("newClassifier() error = %v", err)
		}

		got, err := classifier.Classify(context.Background(), contractx.ClassifyRequest{
			Context:   "Como posso ajudar?",
			Utterance: "quero saber do dólar",
		})
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.answer, err)
		}
		if got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.answer, got, tc.want)
		}
	}
}

func TestClassifierModelFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{err: errors.New("upstream 502")}
	classifier, err := newClassifier(context.Background(), fake, "classifier prompt")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	_, err = classifier.Classify(context.Background(), contractx.ClassifyRequest{Utterance: "oi"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestResponderMessagePath(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{Content: "  Olá! Me informe seu CPF e data de nascimento.  "},
	}}
	responder, err := newResponder(context.Background(), contractx.HandlerTriage, fake, "persona prompt", nil)
	if err != nil {
		t.Fatalf("newResponder() error = %v", err)
	}

	resp, err := responder.Respond(context.Background(), contractx.ResponderRequest{
		Transcript: []contractx.Message{{Role: contractx.RoleUser, Content: "oi"}},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if resp.Message != "Olá! Me informe seu CPF e data de nascimento." {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
	if len(resp.ToolRequests) != 0 {
		t.Fatalf("expected no tool requests, got %#v", resp.ToolRequests)
	}
}

func TestResponderToolCallMapping(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				Function: schema.FunctionCall{
					Name:      toolx.ToolValidateIdentity,
					Arguments: `{"id":"12345678900","birth_date":"1990-01-01"}`,
				},
			}},
		},
	}}
	responder, err := newResponder(context.Background(), contractx.HandlerTriage, fake, "persona prompt",
		toolx.InfosForHandler(contractx.HandlerTriage))
	if err != nil {
		t.Fatalf("newResponder() error = %v", err)
	}

	resp, err := responder.Respond(context.Background(), contractx.ResponderRequest{
		Transcript: []contractx.Message{{Role: contractx.RoleUser, Content: "12345678900, 1990-01-01"}},
	})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(resp.ToolRequests) != 1 {
		t.Fatalf("expected one tool request, got %#v", resp.ToolRequests)
	}
	req := resp.ToolRequests[0]
	if req.Tool != toolx.ToolValidateIdentity {
		t.Fatalf("unexpected tool: %s", req.Tool)
	}
	if req.Args["id"] != "12345678900" || req.Args["birth_date"] != "1990-01-01" {
		t.Fatalf("unexpected args: %#v", req.Args)
	}
}

func TestResponderRejectsUnboundTool(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				Function: schema.FunctionCall{
					Name:      toolx.ToolCurrencyLookup,
					Arguments: `{"base":"BRL","target":"USD"}`,
				},
			}},
		},
	}}
	responder, err := newResponder(context.Background(), contractx.HandlerCredit, fake, "persona prompt",
		toolx.InfosForHandler(contractx.HandlerCredit))
	if err != nil {
		t.Fatalf("newResponder() error = %v", err)
	}

	_, err = responder.Respond(context.Background(), contractx.ResponderRequest{
		Transcript: []contractx.Message{{Role: contractx.RoleUser, Content: "dólar?"}},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestResponderEmptyOutputs(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{{Content: "   "}}}
	responder, err := newResponder(context.Background(), contractx.HandlerExchange, fake, "persona prompt", nil)
	if err != nil {
		t.Fatalf("newResponder() error = %v", err)
	}

	_, err = responder.Respond(context.Background(), contractx.ResponderRequest{
		Transcript: []contractx.Message{{Role: contractx.RoleUser, Content: "oi"}},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}

	_, err = responder.Respond(context.Background(), contractx.ResponderRequest{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty transcript, got %v", err)
	}
}
