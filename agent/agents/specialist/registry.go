package specialist

import (
	"context"
	"fmt"

	contractx "github.com/bancoagil/agent/agent/contract"
	llmx "github.com/bancoagil/agent/agent/llm"
	promptx "github.com/bancoagil/agent/agent/prompt"
	toolx "github.com/bancoagil/agent/agent/tool"
)

type registryImpl struct {
	classifier contractx.Classifier
	identify   contractx.Responder
	validate   contractx.Responder
	credit     contractx.Responder
	exchange   contractx.Responder
	interview  contractx.Responder
}

func (r *registryImpl) Classifier() contractx.Classifier { return r.classifier }
func (r *registryImpl) Identify() contractx.Responder    { return r.identify }
func (r *registryImpl) Validate() contractx.Responder    { return r.validate }
func (r *registryImpl) Credit() contractx.Responder      { return r.credit }
func (r *registryImpl) Exchange() contractx.Responder    { return r.exchange }
func (r *registryImpl) Interview() contractx.Responder   { return r.interview }

// NewRegistry builds every oracle from the LLM config: one classifier,
// two triage personas, and the three specialists with their fixed tool
// sets bound.
func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	classifierModelCfg := cfg.OpenRouterFor(llmx.RoleClassifier)
	classifierModel, err := classifierModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}
	classifier, err := newClassifier(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}

	triageModelCfg := cfg.OpenRouterFor(llmx.RoleTriage)
	triageModel, err := triageModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create triage model: %v", contractx.ErrModelInvoke, err)
	}
	identify, err := newResponder(ctx, contractx.HandlerTriage, triageModel, prompts.Identify, nil)
	if err != nil {
		return nil, err
	}
	validate, err := newResponder(ctx, contractx.HandlerTriage, triageModel, prompts.Validate,
		toolx.InfosForHandler(contractx.HandlerTriage))
	if err != nil {
		return nil, err
	}

	creditModelCfg := cfg.OpenRouterFor(llmx.RoleCredit)
	creditModel, err := creditModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create credit model: %v", contractx.ErrModelInvoke, err)
	}
	credit, err := newResponder(ctx, contractx.HandlerCredit, creditModel, prompts.Credit,
		toolx.InfosForHandler(contractx.HandlerCredit))
	if err != nil {
		return nil, err
	}

	exchangeModelCfg := cfg.OpenRouterFor(llmx.RoleExchange)
	exchangeModel, err := exchangeModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create exchange model: %v", contractx.ErrModelInvoke, err)
	}
	exchange, err := newResponder(ctx, contractx.HandlerExchange, exchangeModel, prompts.Exchange,
		toolx.InfosForHandler(contractx.HandlerExchange))
	if err != nil {
		return nil, err
	}

	interviewModelCfg := cfg.OpenRouterFor(llmx.RoleInterview)
	interviewModel, err := interviewModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create interview model: %v", contractx.ErrModelInvoke, err)
	}
	interview, err := newResponder(ctx, contractx.HandlerInterview, interviewModel, prompts.Interview,
		toolx.InfosForHandler(contractx.HandlerInterview))
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		classifier: classifier,
		identify:   identify,
		validate:   validate,
		credit:     credit,
		exchange:   exchange,
		interview:  interview,
	}, nil
}
