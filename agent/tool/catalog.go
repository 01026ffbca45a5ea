package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/bancoagil/agent/agent/contract"
)

const (
	ToolValidateIdentity     = "identity.validate"
	ToolQueryLimit           = "limit.query"
	ToolRequestLimitIncrease = "limit.request_increase"
	ToolUpdateScore          = "score.update_from_interview"
	ToolCurrencyLookup       = "currency.lookup"
)

// ReturnHandler is the static return-routing map: after a tool executes,
// the next hop depends only on the tool's identity, never on its result.
func ReturnHandler(tool string) contractx.HandlerType {
	switch tool {
	case ToolValidateIdentity:
		return contractx.HandlerTriage
	case ToolUpdateScore:
		return contractx.HandlerInterview
	case ToolCurrencyLookup:
		return contractx.HandlerExchange
	default:
		return contractx.HandlerCredit
	}
}

// InfosForHandler returns the fixed tool set bound to each handler.
func InfosForHandler(h contractx.HandlerType) []*schema.ToolInfo {
	switch h {
	case contractx.HandlerTriage:
		return []*schema.ToolInfo{
			{
				Name: ToolValidateIdentity,
				Desc: "Validate a customer's 11-digit id and birth date against the customer base.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"id":         {Type: schema.String, Desc: "Customer id, 11 digits", Required: true},
					"birth_date": {Type: schema.String, Desc: "Birth date, YYYY-MM-DD", Required: true},
				}),
			},
		}
	case contractx.HandlerCredit:
		return []*schema.ToolInfo{
			{
				Name: ToolQueryLimit,
				Desc: "Look up the customer's current credit limit and score.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"id": {Type: schema.String, Desc: "Customer id", Required: true},
				}),
			},
			{
				Name: ToolRequestLimitIncrease,
				Desc: "Register a credit limit request and decide it against the customer's score band.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"id":              {Type: schema.String, Desc: "Customer id", Required: true},
					"requested_limit": {Type: schema.Number, Desc: "Requested limit in BRL", Required: true},
				}),
			},
		}
	case contractx.HandlerExchange:
		return []*schema.ToolInfo{
			{
				Name: ToolCurrencyLookup,
				Desc: "Fetch the latest exchange rate for a currency pair.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"base":   {Type: schema.String, Desc: "Base currency code, e.g. BRL", Required: true},
					"target": {Type: schema.String, Desc: "Target currency code, e.g. USD", Required: true},
				}),
			},
		}
	case contractx.HandlerInterview:
		return []*schema.ToolInfo{
			{
				Name: ToolUpdateScore,
				Desc: "Recompute and store the customer's score from the interview answers.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"id":              {Type: schema.String, Desc: "Customer id", Required: true},
					"income":          {Type: schema.Number, Desc: "Monthly income", Required: true},
					"fixed_expenses":  {Type: schema.Number, Desc: "Monthly fixed expenses", Required: true},
					"employment_type": {Type: schema.String, Desc: "formal, autonomo or desempregado", Required: true},
					"dependents":      {Type: schema.Integer, Desc: "Number of dependents", Required: true},
					"has_debt":        {Type: schema.Boolean, Desc: "Whether the customer has outstanding debt", Required: true},
				}),
			},
		}
	default:
		return nil
	}
}

func allowedForHandler(h contractx.HandlerType) map[string]struct{} {
	infos := InfosForHandler(h)
	allowed := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if info != nil && info.Name != "" {
			allowed[info.Name] = struct{}{}
		}
	}
	return allowed
}
