package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/identify.txt
	identifyRaw string

	//go:embed template/validate.txt
	validateRaw string

	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/credit.txt
	creditRaw string

	//go:embed template/exchange.txt
	exchangeRaw string

	//go:embed template/interview.txt
	interviewRaw string
)

// CompletionMarker is the token the interview persona emits on its final
// reply; triage watches for it to release the sticky interview routing.
const CompletionMarker = "REDIRECIONANDO"

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Identify   string
	Validate   string
	Classifier string
	Credit     string
	Exchange   string
	Interview  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Identify:   strings.TrimSpace(identifyRaw),
		Validate:   strings.TrimSpace(validateRaw),
		Classifier: strings.TrimSpace(classifierRaw),
		Credit:     strings.TrimSpace(creditRaw),
		Exchange:   strings.TrimSpace(exchangeRaw),
		Interview:  strings.TrimSpace(interviewRaw),
	}
}
