package contract

// HandlerType identifies a dialogue handler. Routing sites must switch
// exhaustively over these values; there are no other handlers.
type HandlerType string

const (
	HandlerTriage    HandlerType = "triage"
	HandlerCredit    HandlerType = "credit"
	HandlerExchange  HandlerType = "exchange"
	HandlerInterview HandlerType = "interview"
)

func (h HandlerType) Valid() bool {
	switch h {
	case HandlerTriage, HandlerCredit, HandlerExchange, HandlerInterview:
		return true
	}
	return false
}

// Specialist reports whether the handler is one of the three specialists
// (anything but triage).
func (h HandlerType) Specialist() bool {
	return h == HandlerCredit || h == HandlerExchange || h == HandlerInterview
}

// Label is the single-token vocabulary the classifier oracle answers with.
type Label string

const (
	LabelCredit    Label = "credito"
	LabelExchange  Label = "cambio"
	LabelInterview Label = "entrevista"
)

// HandlerForLabel maps a classifier label to a specialist. Unrecognized or
// empty labels map to credit; the classifier contract treats them as the
// default route, never as an error.
func HandlerForLabel(l Label) HandlerType {
	switch l {
	case LabelExchange:
		return HandlerExchange
	case LabelInterview:
		return HandlerInterview
	default:
		return HandlerCredit
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one transcript entry. Tool is set only for RoleTool entries
// and carries the tool identity used by return-routing.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Tool    string `json:"tool,omitempty"`
}

type ClassifyRequest struct {
	// Context is the previous assistant message, possibly empty.
	Context   string `json:"context"`
	Utterance string `json:"utterance"`
}

// ResponderRequest carries the transcript plus template variables (e.g. the
// authenticated customer id) into a persona-bound responder.
type ResponderRequest struct {
	Transcript []Message         `json:"transcript"`
	Vars       map[string]string `json:"vars,omitempty"`
}

// ResponderResponse is either a plain message or one or more tool
// invocation requests, never both.
type ResponderResponse struct {
	Message      string        `json:"message,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the discriminated outcome of one tool execution: Result is
// the success payload, Error the failure reason. Tool failures travel as
// values, never as Go errors across the orchestration boundary.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Error != ""
}
