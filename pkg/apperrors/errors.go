package apperrors

import "errors"

var (
	ErrCycleDetected     = errors.New("dependency cycle detected")
	ErrUnknownDependency = errors.New("unknown model dependency")
	ErrUnknownModel      = errors.New("unknown model")
	ErrInvalidRule       = errors.New("invalid rule definition")
	ErrUnknownDriver     = errors.New("unknown source driver")
)
