package strategy

import "errors"

var (
	// ErrUnknownStrategy is returned by Registry.Create for an unregistered name.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy name")

	// ErrInvalidParameters corresponds to StrategyError::Parameter: validation
	// failure from validate_parameters, surfaced before any run starts.
	ErrInvalidParameters = errors.New("strategy: invalid parameters")
)
