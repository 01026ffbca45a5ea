package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrRoutingLoop       = errors.New("routing hop limit exceeded")
)
