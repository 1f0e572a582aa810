package contract

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrRoutingUnavailable = errors.New("routing decision unavailable")
	ErrInvalidRoute       = errors.New("routing decision outside worker enum")
	ErrWorkerInvoke       = errors.New("worker invocation failed")
	ErrSynthesis          = errors.New("answer synthesis failed")
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
)
