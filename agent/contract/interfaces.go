package contract

import "context"

// Classifier is the routing oracle: it answers a single label token from
// the fixed vocabulary for an authenticated turn.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Label, error)
}

// Responder is the generation oracle bound to one persona (and, for some
// personas, a fixed tool set). It answers either a user-facing message or
// tool invocation requests.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (ResponderResponse, error)
}

// Registry exposes the oracle per routing role.
type Registry interface {
	Classifier() Classifier
	// Identify is the unauthenticated conversational persona, no tools.
	Identify() Responder
	// Validate is the identification persona with identity.validate bound.
	Validate() Responder
	Credit() Responder
	Exchange() Responder
	Interview() Responder
}

// ToolGateway executes tool requests on behalf of a handler and returns
// typed results tagged with each tool's identity.
type ToolGateway interface {
	Execute(ctx context.Context, handler HandlerType, reqs []ToolRequest) ([]ToolResult, error)
}
