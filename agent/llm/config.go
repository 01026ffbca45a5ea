package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/bancoagil/agent/agent/contract"
	openrouterx "github.com/bancoagil/agent/pkg/openrouter"
)

// Role names one oracle binding; each can run a different model.
type Role string

const (
	RoleClassifier Role = "classifier"
	RoleTriage     Role = "triage"
	RoleCredit     Role = "credit"
	RoleExchange   Role = "exchange"
	RoleInterview  Role = "interview"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"1"`
	TriageModel           string  `envconfig:"TRIAGE_MODEL" split_words:"true"`
	CreditModel           string  `envconfig:"CREDIT_MODEL" split_words:"true"`
	ExchangeModel         string  `envconfig:"EXCHANGE_MODEL" split_words:"true"`
	InterviewModel        string  `envconfig:"INTERVIEW_MODEL" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model config for one oracle role, falling
// back to the shared default model.
func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleClassifier:
		if v := strings.TrimSpace(c.ClassifierModel); v != "" {
			modelName = v
		}
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
	case RoleTriage:
		if v := strings.TrimSpace(c.TriageModel); v != "" {
			modelName = v
		}
	case RoleCredit:
		if v := strings.TrimSpace(c.CreditModel); v != "" {
			modelName = v
		}
	case RoleExchange:
		if v := strings.TrimSpace(c.ExchangeModel); v != "" {
			modelName = v
		}
	case RoleInterview:
		if v := strings.TrimSpace(c.InterviewModel); v != "" {
			modelName = v
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
